// Package chi exposes the matching engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/cache/aside"
	"github.com/casavia/matchengine/internal/domain"
	backfilluc "github.com/casavia/matchengine/internal/usecase/backfill"
	healthuc "github.com/casavia/matchengine/internal/usecase/health"
	"github.com/casavia/matchengine/internal/usecase/hooks"
)

// Error response codes.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeUnavailable  = "unavailable"
	codeInternal     = "internal_error"
)

// Matcher computes and refreshes matches.
type Matcher interface {
	ComputeMatches(ctx context.Context, demandID string) (domain.MatchResult, error)
	RefreshMatches(ctx context.Context, demandID string) (domain.MatchResult, error)
}

// MatchHistory reads persisted match records.
type MatchHistory interface {
	ListForDemand(ctx context.Context, demandID string, limit int) ([]domain.Match, error)
}

// PropertyReader serves cached property reads.
type PropertyReader interface {
	GetByID(ctx context.Context, id string) (domain.Property, error)
	ListActive(ctx context.Context, c domain.Constraints, limit int) ([]domain.Property, error)
}

// Backfiller runs the embedding backfill.
type Backfiller interface {
	Run(ctx context.Context) (backfilluc.Result, error)
}

// HookNotifier accepts mutation events.
type HookNotifier interface {
	Notify(e hooks.Event) error
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server wires use cases to HTTP routes.
type Server struct {
	matcher    Matcher
	history    MatchHistory
	props      PropertyReader
	backfill   Backfiller
	notifier   HookNotifier
	cache      *aside.Cache
	health     *healthuc.Service
	listLimit  int
	logger     *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(
	matcher Matcher,
	history MatchHistory,
	props PropertyReader,
	backfill Backfiller,
	notifier HookNotifier,
	cache *aside.Cache,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		matcher:   matcher,
		history:   history,
		props:     props,
		backfill:  backfill,
		notifier:  notifier,
		cache:     cache,
		health:    health,
		listLimit: 50,
		logger:    logger,
	}
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/demands/{id}/match", s.computeMatches)
	r.Post("/demands/{id}/match/refresh", s.refreshMatches)
	r.Get("/demands/{id}/matches", s.matchHistory)

	r.Get("/properties/{id}", s.getProperty)
	r.Get("/properties", s.searchProperties)

	r.Post("/internal/hooks/property/{id}", s.propertyMutated)
	r.Post("/internal/hooks/demand/{id}", s.demandMutated)
	r.Post("/internal/hooks/deleted/{owner}/{id}", s.entityDeleted)
	r.Post("/internal/backfill", s.runBackfill)

	r.Get("/health", s.healthCheck)
}

// computeMatches handles POST /demands/{id}/match.
func (s *Server) computeMatches(w http.ResponseWriter, r *http.Request) {
	result, err := s.matcher.ComputeMatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// refreshMatches handles POST /demands/{id}/match/refresh.
func (s *Server) refreshMatches(w http.ResponseWriter, r *http.Request) {
	result, err := s.matcher.RefreshMatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// matchHistory handles GET /demands/{id}/matches.
func (s *Server) matchHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.listLimit)
	records, err := s.history.ListForDemand(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}

// getProperty handles GET /properties/{id} through the cache-aside layer
// with the short TTL class: single-entity reads change often.
func (s *Server) getProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := s.cache.Key(hooks.NSProperty, id)

	p, err := aside.GetOrSet(r.Context(), s.cache, key, aside.TTLShort,
		func(ctx context.Context) (domain.Property, error) {
			return s.props.GetByID(ctx, id)
		})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// searchProperties handles GET /properties through the cache-aside layer
// with the medium TTL class. The cache key is derived canonically from the
// filter set, so equivalent queries share one entry.
func (s *Server) searchProperties(w http.ResponseWriter, r *http.Request) {
	constraints, limit, err := parseSearchQuery(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	key := s.cache.StableKey(hooks.NSPropertySearch, map[string]any{
		"type":       string(constraints.Type),
		"intent":     string(constraints.Intent),
		"budget_min": constraints.BudgetMin,
		"budget_max": constraints.BudgetMax,
		"city":       constraints.City,
		"district":   constraints.District,
		"limit":      limit,
	})

	items, err := aside.GetOrSet(r.Context(), s.cache, key, aside.TTLMedium,
		func(ctx context.Context) ([]domain.Property, error) {
			return s.props.ListActive(ctx, constraints, limit)
		})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// propertyMutated handles POST /internal/hooks/property/{id}.
func (s *Server) propertyMutated(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, hooks.Event{
		Kind:  hooks.PropertyMutated,
		Owner: domain.OwnerProperty,
		ID:    chi.URLParam(r, "id"),
	})
}

// demandMutated handles POST /internal/hooks/demand/{id}.
func (s *Server) demandMutated(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, hooks.Event{
		Kind:  hooks.DemandMutated,
		Owner: domain.OwnerDemand,
		ID:    chi.URLParam(r, "id"),
	})
}

// entityDeleted handles POST /internal/hooks/deleted/{owner}/{id}.
func (s *Server) entityDeleted(w http.ResponseWriter, r *http.Request) {
	owner := domain.OwnerType(chi.URLParam(r, "owner"))
	if owner != domain.OwnerProperty && owner != domain.OwnerDemand {
		writeError(w, http.StatusBadRequest, codeBadRequest, "owner must be property or demand")
		return
	}
	s.enqueue(w, hooks.Event{
		Kind:  hooks.EntityDeleted,
		Owner: owner,
		ID:    chi.URLParam(r, "id"),
	})
}

func (s *Server) enqueue(w http.ResponseWriter, e hooks.Event) {
	if err := s.notifier.Notify(e); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// runBackfill handles POST /internal/backfill.
func (s *Server) runBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := s.backfill.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func parseSearchQuery(r *http.Request) (domain.Constraints, int, error) {
	q := r.URL.Query()

	c := domain.Constraints{
		Type:     domain.PropertyType(q.Get("type")),
		Intent:   domain.Intent(q.Get("intent")).ListingIntent(),
		City:     q.Get("city"),
		District: q.Get("district"),
	}

	var err error
	if c.BudgetMin, err = parseFloatParam(q.Get("budget_min")); err != nil {
		return domain.Constraints{}, 0, domain.NewConstraintError("budget_min", "must be a number")
	}
	if c.BudgetMax, err = parseFloatParam(q.Get("budget_max")); err != nil {
		return domain.Constraints{}, 0, domain.NewConstraintError("budget_max", "must be a number")
	}

	if err := c.Validate(); err != nil {
		return domain.Constraints{}, 0, err
	}

	return c, parseIntParam(r, "limit", 50), nil
}

func parseFloatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// statusMappings maps domain sentinels to HTTP responses, checked in order.
var statusMappings = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrDemandNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrPropertyNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrBadRequest, http.StatusBadRequest, codeBadRequest},
	{domain.ErrBackfillRunning, http.StatusConflict, codeConflict},
	{domain.ErrQueueFull, http.StatusServiceUnavailable, codeUnavailable},
	{domain.ErrProviderUnavailable, http.StatusBadGateway, codeUnavailable},
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range statusMappings {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	s.logger.Error("Unhandled request error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
