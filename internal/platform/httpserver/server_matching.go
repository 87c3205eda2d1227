package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	matchingerrors "quadfund/contexts/funding-core/matching-engine/domain/errors"
	matchinghttp "quadfund/contexts/funding-core/matching-engine/transport/http"
)

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("round_id")
	resp, err := s.matching.Handler.DistributionHandler(r.Context(), roundID)
	if err != nil {
		writeMatchingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportDistributionCSV(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("round_id")
	includeTotal := false
	if raw := r.URL.Query().Get("include_total"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeMatchingError(w, http.StatusBadRequest, "invalid_include_total", "include_total must be a boolean")
			return
		}
		includeTotal = parsed
	}

	payload, err := s.matching.Handler.ExportDistributionCSVHandler(r.Context(), roundID, includeTotal)
	if err != nil {
		writeMatchingDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="distribution-`+sanitizeFilename(roundID)+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleMarginalEstimate(w http.ResponseWriter, r *http.Request) {
	var req matchinghttp.MarginalEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMatchingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	roundID := r.PathValue("round_id")
	resp, err := s.matching.Handler.MarginalEstimateHandler(r.Context(), roundID, req)
	if err != nil {
		writeMatchingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeMatchingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matchingerrors.ErrInvalidParameter):
		writeMatchingError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, matchingerrors.ErrInvalidAmount):
		writeMatchingError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, matchingerrors.ErrRoundNotFound):
		writeMatchingError(w, http.StatusNotFound, "round_not_found", err.Error())
	case errors.Is(err, matchingerrors.ErrCampaignNotFound):
		writeMatchingError(w, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, matchingerrors.ErrSnapshotIntegrity):
		writeMatchingError(w, http.StatusUnprocessableEntity, "snapshot_integrity", err.Error())
	default:
		writeMatchingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMatchingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, matchinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sanitizeFilename(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, value)
}
