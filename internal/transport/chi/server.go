// Package chi is the HTTP surface: REST queries over the catalog, semantic
// search, the streaming chat endpoint, and operational routes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chiv5 "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
	chatuc "github.com/meridian-data/datamart/internal/usecase/chat"
	healthuc "github.com/meridian-data/datamart/internal/usecase/health"
	indexeruc "github.com/meridian-data/datamart/internal/usecase/indexer"
	queryuc "github.com/meridian-data/datamart/internal/usecase/query"
	searchuc "github.com/meridian-data/datamart/internal/usecase/search"
)

// Error codes returned to clients.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeRateLimited       = "rate_limited"
	codeStoreUnavailable  = "store_unavailable"
	codeProviderError     = "embedding_provider_error"
	codeCompletionError   = "completion_unavailable"
	codeMissingCredential = "missing_credential"
	codeInternalError     = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the HTTP handlers to the services.
type Server struct {
	chat          *chatuc.Service
	search        *searchuc.Service
	query         *queryuc.Service
	indexer       *indexeruc.Service
	health        *healthuc.Service
	chatLimiter   func(http.Handler) http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. chat may be nil when no completion
// credential is configured; the chat endpoint then rejects every request.
func NewServer(
	chat *chatuc.Service,
	search *searchuc.Service,
	query *queryuc.Service,
	indexer *indexeruc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:        chat,
		search:      search,
		query:       query,
		indexer:     indexer,
		health:      health,
		chatLimiter: RateLimitMiddleware(0, 0),
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrMissingCredential, http.StatusUnauthorized, codeMissingCredential),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrCompletionUnavailable, http.StatusBadGateway, codeCompletionError),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// WithChatRateLimit caps chat endpoint throughput.
func (s *Server) WithChatRateLimit(rps float64, burst int) *Server {
	s.chatLimiter = RateLimitMiddleware(rps, burst)
	return s
}

// Router builds the route tree.
func (s *Server) Router() chiv5.Router {
	r := chiv5.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chiv5.Router) {
		r.With(s.chatLimiter).Post("/chat", s.handleChat)
		r.Post("/search", s.handleSearch)
		r.Get("/data-sources", s.handleDataSources)
		r.Get("/people", s.handlePeople)
		r.Get("/tools", s.handleTools)
		r.Get("/policies", s.handlePolicies)
		r.Get("/collections", s.handleCollections)
		r.Get("/teams", s.handleTeams)
		r.Post("/admin/reindex", s.handleReindex)
	})

	return r
}

// chatRequest is the chat endpoint request body.
type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleChat streams one chat turn as server-sent events. Precondition
// failures (bad body, missing credential) return a structured JSON error;
// once streaming has started failures are reported in-stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if s.chat == nil {
		s.handleDomainError(w, domain.ErrMissingCredential)
		return
	}

	turn := chatuc.Request{Messages: make([]chatuc.Message, 0, len(req.Messages))}
	for _, m := range req.Messages {
		turn.Messages = append(turn.Messages, chatuc.Message{Role: m.Role, Content: m.Content})
	}

	sw, err := NewStreamWriter(w)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := s.chat.Turn(r.Context(), turn, sw); err != nil {
		if !sw.Started() {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Warn("chat turn failed mid-stream", zap.Error(err))
		_ = sw.EmitError(safeDomainMessage(err))
	}
	if err := sw.End(); err != nil {
		s.logger.Debug("stream terminator failed", zap.Error(err))
	}
}

// searchRequest is the semantic search request body.
type searchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

// handleSearch handles POST /v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), domain.SearchQuery{
		Text:      req.Query,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDataSources handles GET /v1/data-sources.
func (s *Server) handleDataSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.query.DataSources(r.Context(), datasource.Params{
		Search:   q.Get("search"),
		Type:     q.Get("type"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Limit:    parseLimit(q.Get("limit")),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePeople handles GET /v1/people.
func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.query.People(r.Context(), people.Params{
		Search:     q.Get("search"),
		Department: q.Get("department"),
		Expertise:  q.Get("expertise"),
		Limit:      parseLimit(q.Get("limit")),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// handleTools handles GET /v1/tools.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.query.Tools(r.Context(), q.Get("search"), q.Get("category"), parseLimit(q.Get("limit")))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// handlePolicies handles GET /v1/policies.
func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.query.Policies(r.Context(), q.Get("search"), q.Get("category"), parseLimit(q.Get("limit")))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// handleCollections handles GET /v1/collections.
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.query.Collections(r.Context(), q.Get("search"), parseLimit(q.Get("limit")))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// handleTeams handles GET /v1/teams.
func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.query.Teams(r.Context(), q.Get("search"), parseLimit(q.Get("limit")))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// handleReindex handles POST /v1/admin/reindex.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidQuery,
		domain.ErrMissingCredential,
		domain.ErrRateLimited,
		domain.ErrStoreUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
