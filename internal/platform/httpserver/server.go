package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	matchingengine "quadfund/contexts/funding-core/matching-engine"
	roundregistry "quadfund/contexts/funding-core/round-registry-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "quadfund/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	matching matchingengine.Module
	registry roundregistry.Module
}

func New(
	matching matchingengine.Module,
	registry roundregistry.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		matching: matching,
		registry: registry,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/funding/v1/rounds", s.handleCreateRound)
	s.mux.HandleFunc("GET /api/funding/v1/rounds", s.handleListRounds)
	s.mux.HandleFunc("GET /api/funding/v1/rounds/{round_id}", s.handleGetRound)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/open", s.handleOpenRound)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/close", s.handleCloseRound)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/campaigns", s.handleApplyCampaign)
	s.mux.HandleFunc("GET /api/funding/v1/rounds/{round_id}/campaigns", s.handleListRoundCampaigns)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/campaigns/{campaign_id}/review", s.handleReviewCampaign)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/contributions", s.handleRecordContribution)
	s.mux.HandleFunc("GET /api/funding/v1/rounds/{round_id}/contributions", s.handleListContributions)

	s.mux.HandleFunc("GET /api/funding/v1/rounds/{round_id}/distribution", s.handleGetDistribution)
	s.mux.HandleFunc("GET /api/funding/v1/rounds/{round_id}/distribution/export", s.handleExportDistributionCSV)
	s.mux.HandleFunc("POST /api/funding/v1/rounds/{round_id}/estimate", s.handleMarginalEstimate)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
