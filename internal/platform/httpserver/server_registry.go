package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	registryerrors "quadfund/contexts/funding-core/round-registry-service/domain/errors"
	registryhttp "quadfund/contexts/funding-core/round-registry-service/transport/http"
)

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.CreateRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, replayed, err := s.registry.Handler.CreateRoundHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.ListRoundsHandler(r.Context())
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.GetRoundHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenRound(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.OpenRoundHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseRound(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.CloseRoundHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyCampaign(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.ApplyCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.ApplyCampaignHandler(r.Context(), r.PathValue("round_id"), req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRoundCampaigns(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.ListRoundCampaignsHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewCampaign(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.ReviewCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.ReviewCampaignHandler(
		r.Context(),
		r.PathValue("round_id"),
		r.PathValue("campaign_id"),
		req,
	)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordContribution(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.RecordContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, replayed, err := s.registry.Handler.RecordContributionHandler(
		r.Context(),
		r.Header.Get("Idempotency-Key"),
		r.PathValue("round_id"),
		req,
	)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.ListContributionsHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRegistryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registryerrors.ErrInvalidRoundInput),
		errors.Is(err, registryerrors.ErrInvalidReviewDecision),
		errors.Is(err, registryerrors.ErrInvalidContribution):
		writeRegistryError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, registryerrors.ErrIdempotencyKeyRequired):
		writeRegistryError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, registryerrors.ErrRoundNotFound):
		writeRegistryError(w, http.StatusNotFound, "round_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrRoundCampaignNotFound):
		writeRegistryError(w, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrContributionNotFound):
		writeRegistryError(w, http.StatusNotFound, "contribution_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrRoundNotOpen),
		errors.Is(err, registryerrors.ErrRoundImmutable),
		errors.Is(err, registryerrors.ErrInvalidStateTransition),
		errors.Is(err, registryerrors.ErrCampaignNotApproved):
		writeRegistryError(w, http.StatusConflict, "round_state_conflict", err.Error())
	case errors.Is(err, registryerrors.ErrCampaignAlreadyApplied),
		errors.Is(err, registryerrors.ErrIdempotencyKeyConflict),
		errors.Is(err, registryerrors.ErrConflict):
		writeRegistryError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeRegistryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRegistryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, registryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
