package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appconsensus "github.com/halcyonlabs/sentinel/internal/application/consensus"
	appresearch "github.com/halcyonlabs/sentinel/internal/application/research"
	domain "github.com/halcyonlabs/sentinel/internal/domain/consensus"
	"github.com/halcyonlabs/sentinel/internal/domain/research"
	"github.com/halcyonlabs/sentinel/internal/middleware"
	"github.com/halcyonlabs/sentinel/internal/notification"
)

var errNotFound = errors.New("not found")

type Router struct {
	consensusSvc   *appconsensus.Service
	researchSvc    *appresearch.Service
	guard          *middleware.RateGuard
	hub            *notification.Hub
	probe          *middleware.HealthProbe
	roster         []string
	allowedOrigins []string
}

func NewRouter(consensusSvc *appconsensus.Service, researchSvc *appresearch.Service, guard *middleware.RateGuard, hub *notification.Hub, probe *middleware.HealthProbe, roster, allowedOrigins []string) http.Handler {
	r := &Router{
		consensusSvc:   consensusSvc,
		researchSvc:    researchSvc,
		guard:          guard,
		hub:            hub,
		probe:          probe,
		roster:         roster,
		allowedOrigins: allowedOrigins,
	}
	mux := chi.NewRouter()

	mux.Get("/health", r.handleHealth)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze-threat", r.wrap(r.handleAnalyzeThreat))
		rt.Post("/evaluate-policy", r.wrap(r.handleEvaluatePolicy))
		rt.Post("/consensus-research", r.wrap(r.handleSubmitResearch))
		rt.Get("/research/{id}", r.wrap(r.handleResearchStatus))
		rt.Get("/immune-memory/{seed}", r.wrap(r.handleMemoryLookup))
		rt.Get("/channel", r.handleChannel)
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, errNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domain.ErrInvalidRequest) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if errors.Is(err, domain.ErrRateLimited) {
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/analyze-threat
// Body: {"content": "...", "severity": "low|medium|high|critical", "source": "..."}
func (r *Router) handleAnalyzeThreat(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Content  string `json:"content"`
		Severity string `json:"severity"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errInvalid(err.Error())
	}
	if err := middleware.ValidateContent(body.Content); err != nil {
		return errInvalid(err.Error())
	}
	severity, err := middleware.ValidateSeverity(body.Severity)
	if err != nil {
		return errInvalid(err.Error())
	}

	report, err := r.consensusSvc.Analyze(req.Context(), body.Content, severity, middleware.SanitizeString(body.Source))
	if err != nil {
		return err
	}
	countAnalysis(report)

	// Push the verdict to channel subscribers as well as the caller.
	r.hub.Publish(notification.Message{Type: "threat_analysis", Data: report})

	return writeJSON(w, report)
}

// POST /v1/evaluate-policy
// Body: {"policy": "...", "context": "..."}
func (r *Router) handleEvaluatePolicy(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Policy  string `json:"policy"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errInvalid(err.Error())
	}
	if err := middleware.ValidateContent(body.Policy); err != nil {
		return errInvalid(err.Error())
	}

	evaluation, err := r.consensusSvc.EvaluatePolicy(req.Context(), body.Policy, middleware.SanitizeString(body.Context))
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()

	return writeJSON(w, evaluation)
}

// POST /v1/consensus-research
// Body: {"topic": "...", "priority": "low|normal|high"}
// The investigation runs detached; the response only confirms submission.
func (r *Router) handleSubmitResearch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Topic    string `json:"topic"`
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errInvalid(err.Error())
	}
	if err := middleware.ValidateTopic(body.Topic); err != nil {
		return errInvalid(err.Error())
	}
	priority, err := middleware.ValidatePriority(body.Priority)
	if err != nil {
		return errInvalid(err.Error())
	}

	id := r.researchSvc.Submit(middleware.SanitizeString(body.Topic), priority)
	middleware.IncrementResearchSubmitted()

	return writeJSON(w, map[string]any{
		"research_id":        id,
		"status":             "initiated",
		"topic":              body.Topic,
		"estimated_duration": estimatedDuration(priority),
	})
}

// GET /v1/research/{id}
func (r *Router) handleResearchStatus(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	task, ok := r.researchSvc.Get(id)
	if !ok {
		return errNotFound
	}
	return writeJSON(w, task)
}

// GET /v1/immune-memory/{seed}
func (r *Router) handleMemoryLookup(w http.ResponseWriter, req *http.Request) error {
	seed := chi.URLParam(req, "seed")
	entry, found := r.consensusSvc.QueryMemory(req.Context(), seed)
	if !found {
		return writeJSON(w, map[string]any{"found": false})
	}
	return writeJSON(w, map[string]any{
		"found":          true,
		"entry":          entry,
		"recommendation": domain.Recommendation(entry.Consensus.Action),
	})
}

// GET /health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status, checks := r.probe.Snapshot()
	_ = writeJSON(w, map[string]any{
		"status":                status,
		"engine_roster":         r.roster,
		"active_research_tasks": r.researchSvc.ActiveCount(),
		"checks":                checks,
		"timestamp":             time.Now(),
	})
}

func countAnalysis(report *appconsensus.Report) {
	middleware.IncrementAnalyses()
	if report.FromMemory {
		middleware.IncrementAnalysesFromMemory()
	}
	if report.Consensus.Action == domain.ActionQuarantine && report.Consensus.Confidence == 0 {
		middleware.IncrementAnalysesFailClosed()
	}
}

func estimatedDuration(priority research.Priority) string {
	switch priority {
	case research.PriorityHigh:
		return "2m"
	case research.PriorityLow:
		return "10m"
	}
	return "5m"
}

func errInvalid(msg string) error {
	return &invalidRequestError{msg: msg}
}

type invalidRequestError struct{ msg string }

func (e *invalidRequestError) Error() string { return e.msg }
func (e *invalidRequestError) Unwrap() error { return domain.ErrInvalidRequest }

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
