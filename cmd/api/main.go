package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/halcyonlabs/sentinel/internal/application"
	appconsensus "github.com/halcyonlabs/sentinel/internal/application/consensus"
	"github.com/halcyonlabs/sentinel/internal/application/jobs"
	appresearch "github.com/halcyonlabs/sentinel/internal/application/research"
	"github.com/halcyonlabs/sentinel/internal/config"
	"github.com/halcyonlabs/sentinel/internal/domain/research"
	"github.com/halcyonlabs/sentinel/internal/infra/engine"
	openaiclient "github.com/halcyonlabs/sentinel/internal/infra/engine/openai"
	"github.com/halcyonlabs/sentinel/internal/infra/engine/prompt"
	"github.com/halcyonlabs/sentinel/internal/infra/httpserver"
	memstore "github.com/halcyonlabs/sentinel/internal/infra/memory"
	"github.com/halcyonlabs/sentinel/internal/middleware"
	"github.com/halcyonlabs/sentinel/internal/notification"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	apiKey := cfg.Engines.APIKey
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		apiKey = v
	}

	clock := application.SystemClock{}

	// engine roster
	client := openaiclient.NewClient(apiKey, cfg.Engines.DefaultModel, cfg.Models())
	gateway := engine.NewGateway(client)

	reviewers := make([]appconsensus.Reviewer, 0, len(cfg.Engines.Roster))
	roster := make([]string, 0, len(cfg.Engines.Roster)+1)
	for _, spec := range cfg.Engines.Roster {
		reviewers = append(reviewers, appconsensus.Reviewer{EngineID: spec.ID, Role: spec.Role})
		roster = append(roster, spec.ID)
	}
	roster = append(roster, cfg.Engines.Arbiter.ID)

	evaluator := &appconsensus.Evaluator{
		Dispatcher:  gateway,
		Reviewers:   reviewers,
		ArbiterID:   cfg.Engines.Arbiter.ID,
		CallTimeout: cfg.CallTimeout(),
		Clock:       clock,
	}

	// immune memory
	store := memstore.NewStore(clock)

	consensusSvc := &appconsensus.Service{
		Evaluator: evaluator,
		Store:     store,
		Clock:     clock,
	}

	// research scheduler: the three research phases map onto the roster
	// roles in order, the final phase always runs through the arbiter
	hub := notification.NewHub()
	researchSvc := appresearch.NewService(gateway, evaluator, clock, cfg.PhaseTimeout(), phaseEngines(reviewers))
	researchSvc.Notify = func(task research.Task) {
		hub.Publish(notification.Message{Type: "research_update", Data: task})
		if task.Status == research.StatusCompleted {
			middleware.IncrementResearchCompleted()
		}
		if task.Status == research.StatusFailed {
			middleware.IncrementResearchFailed()
		}
	}

	// ingress guard
	guard := middleware.NewRateGuard(
		cfg.RateGuard.Capacity,
		cfg.RateWindow(),
		cfg.RateGuard.BreakerThreshold,
		cfg.BreakerWindow(),
		cfg.BreakerCooldown(),
	)

	// engine health probe
	checkers := make(map[string]middleware.HealthChecker, len(roster))
	for _, engineID := range roster {
		checkers[engineID] = &middleware.EngineHealthChecker{Client: client, EngineID: engineID}
	}
	probe := middleware.NewHealthProbe(checkers)

	// maintenance jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	runner := jobs.NewRunner()
	runner.Register("research-task-cleanup", time.Hour, func(context.Context) {
		if evicted := researchSvc.Sweep(cfg.ResearchRetention()); evicted > 0 {
			log.Printf("job=research-task-cleanup evicted=%d", evicted)
		}
	})
	runner.Register("immune-memory-sweep", 6*time.Hour, func(ctx context.Context) {
		horizon := clock.Now().Add(-cfg.MemoryRetention())
		if evicted := store.Sweep(ctx, horizon); evicted > 0 {
			log.Printf("job=immune-memory-sweep evicted=%d remaining=%d", evicted, store.Len())
		}
	})
	runner.Register("engine-health-probe", 15*time.Minute, probe.Run)
	runner.Start(jobsCtx)

	// first probe at startup so /health is meaningful immediately
	go probe.Run(jobsCtx)

	// router and middleware chain
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if cfg.Auth.Enabled {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Use(middleware.RateGuardMiddleware(guard))
	mux.Mount("/", httpserver.NewRouter(consensusSvc, researchSvc, guard, hub, probe, roster, cfg.Server.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")
	stopJobs()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// phaseEngines assigns the three gateway phases to the roster in role
// order, falling back to the first reviewer when a role is missing.
func phaseEngines(reviewers []appconsensus.Reviewer) map[research.Phase]string {
	byRole := make(map[string]string, len(reviewers))
	for _, r := range reviewers {
		byRole[r.Role] = r.EngineID
	}
	pick := func(role string) string {
		if id, ok := byRole[role]; ok {
			return id
		}
		return reviewers[0].EngineID
	}
	return map[research.Phase]string{
		research.PhaseInitialResearch:  pick(prompt.RolePrimaryResearcher),
		research.PhaseCriticalAnalysis: pick(prompt.RoleCriticalReviewer),
		research.PhaseSecurityReview:   pick(prompt.RoleDomainSpecialist),
	}
}
