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
	"github.com/joho/godotenv"

	"github.com/defensoria-civil/divorcios/internal/audit"
	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/backend"
	"github.com/defensoria-civil/divorcios/internal/handlers"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/config"
	"github.com/defensoria-civil/divorcios/internal/shared/database"
	"github.com/defensoria-civil/divorcios/internal/shared/metrics"
	secmiddleware "github.com/defensoria-civil/divorcios/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database for the audit trail (optional - skip if not available)
	var recorder audit.Recorder = audit.NopRecorder{}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without audit trail...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.EnsureSchema(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: audit schema bootstrap failed: %v\n", err)
		}

		auditRepo := audit.NewRepository(db.Pool)
		if err := auditRepo.Initialize(ctx); err != nil {
			fmt.Printf("Warning: Audit initialization failed: %v\n", err)
		} else {
			recorder = auditRepo
			fmt.Println("Audit trail initialized (PostgreSQL)")
		}
	}

	store := session.NewStore()
	client := backend.NewClient(cfg.Backend, store)
	mgr := session.NewManager(store, client)
	registry := handlers.NewRegistry()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	sessionHandler := handlers.NewSessionHandler(store, mgr, recorder)
	r.Mount("/session", sessionHandler.Routes())

	r.Route("/api", func(r chi.Router) {
		r.Use(handlers.RequireAuth(store))

		workflowHandler := handlers.NewWorkflowHandler(registry, client, store, mgr, recorder)
		r.With(handlers.RequireCapability(store, auth.CapEditCases)).
			Mount("/workflows", workflowHandler.Routes())

		// Case visibility is scoped by the backend per role, so the
		// list and detail proxies are open to every authenticated role.
		caseHandler := handlers.NewCaseHandler(client, store)
		r.Mount("/cases", caseHandler.Routes())

		userHandler := handlers.NewUserHandler(client, store, recorder)
		r.Mount("/users", userHandler.Routes())
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
		fmt.Println("\nShutting down server...")

		registry.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Consola de Patrocinio - Divorcios")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Backend:        %s\n", cfg.Backend.BaseURL)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Consola de Patrocinio - Divorcios",
		"version": "0.1.0",
		"docs":    "/api",
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
