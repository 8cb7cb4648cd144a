package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/puzzle-health/tracker/internal/adapters/adt"
	"github.com/puzzle-health/tracker/internal/alert"
	"github.com/puzzle-health/tracker/internal/network"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/puzzle-health/tracker/internal/shared/database"
	"github.com/puzzle-health/tracker/internal/shared/events"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	secmiddleware "github.com/puzzle-health/tracker/internal/shared/middleware"
	"github.com/puzzle-health/tracker/internal/view"
	"github.com/rs/zerolog"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	DB     *database.DB
	Bus    *events.Bus
	Feed   adt.Feed
}

func main() {
	ctx := context.Background()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Server.Env != "production" {
		log = log.Level(zerolog.DebugLevel)
	}

	app := &App{Config: cfg, Log: log}

	// Database is optional: without it the tracker runs on seeded in-memory
	// stores, which is enough for demos and local development
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("database not available, using in-memory stores")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}

	// Event bus is optional: alert lifecycle events are best effort
	bus, err := events.NewBus(ctx, cfg.EventStore, log)
	if err != nil {
		log.Warn().Err(err).Msg("event store not available, running without event streaming")
	} else {
		app.Bus = bus
		defer bus.Close()
		log.Info().Msg("event bus initialized")
	}

	// Repositories
	var networkRepo network.Repository
	var patientRepo patient.Repository
	if app.DB != nil {
		networkRepo = network.NewPostgresRepository(app.DB.Pool)
		patientRepo = patient.NewPostgresRepository(app.DB.Pool)
	} else {
		networkRepo = network.NewMemoryRepository()
		patientRepo = patient.NewMemoryRepository()
	}

	if cfg.Server.Env != "production" {
		if err := network.SeedDemo(ctx, networkRepo); err != nil {
			log.Fatal().Err(err).Msg("failed to seed network")
		}
		if err := patient.SeedDemo(ctx, patientRepo, time.Now().UTC()); err != nil {
			log.Fatal().Err(err).Msg("failed to seed patients")
		}
		log.Info().Msg("demo cohort seeded")
	}

	// Services
	generator := alert.NewGenerator(cfg.Alerts)
	alertSvc := alert.NewService(patientRepo, generator, app.Bus, log)
	resolver := view.NewResolver(alertSvc, networkRepo, log)

	// Durable audit trail of alert transitions
	if app.Bus != nil {
		auditLog := log.With().Str("component", "alert-audit").Logger()
		err := app.Bus.Subscribe(ctx, "alert.*", func(ctx context.Context, event events.Event) error {
			auditLog.Info().
				Str("event_id", event.ID).
				Str("type", event.Type).
				Time("at", event.Timestamp).
				Msg("alert event")
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Msg("alert audit subscription failed")
		}
	}

	// ADT feed (optional): tails a hospital interface engine's event table
	if cfg.ADT.Enabled {
		feed := adt.NewSQLServerFeed(cfg.ADT, log)
		if err := feed.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("adt feed not available")
		} else {
			app.Feed = feed
			ingestor := adt.NewIngestor(patientRepo, app.Bus, log)
			go ingestor.Run(ctx, feed)
			log.Info().Str("host", cfg.ADT.Host).Msg("adt feed started")
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(500, 1000))
	r.Use(secmiddleware.NewIPRateLimiter(50, 100).Middleware)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.Enforce {
			r.Use(auth.Middleware(cfg.Auth))
		} else {
			r.Use(devIdentity)
		}

		networkHandler := network.NewHandler(networkRepo, alertSvc)
		r.Mount("/", networkHandler.Routes())

		patientHandler := alert.NewHandler(alertSvc, patientRepo, networkRepo, cfg.PHI)
		r.Mount("/care", patientHandler.Routes())

		viewHandler := view.NewHandler(resolver, cfg.PHI)
		r.Mount("/tracker", viewHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.Feed != nil {
			if err := app.Feed.Stop(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("adt feed shutdown error")
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("auth", cfg.Auth.Enforce).
		Bool("adt", app.Feed != nil).
		Msg("post-discharge tracker listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Puzzle Post-Discharge Tracker",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Feed != nil {
			if err := app.Feed.Health(r.Context()); err != nil {
				checks["adt"] = "not ready: " + err.Error()
			} else {
				checks["adt"] = "ready"
			}
		} else {
			checks["adt"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// devIdentity injects an unscoped care-team identity when auth enforcement is
// off, so local development does not need tokens. Never active in production:
// config validation requires Enforce there.
func devIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := &auth.User{ID: "dev", Role: auth.RoleCareTeam}
		ctx := context.WithValue(r.Context(), auth.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
