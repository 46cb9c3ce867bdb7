package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/dbkeeper/internal/config"
	"github.com/crucial707/dbkeeper/internal/handlers"
	"github.com/crucial707/dbkeeper/internal/middleware"
	"github.com/crucial707/dbkeeper/internal/repo"
)

// newRouter wires the full HTTP surface. The scheduler is passed in as the
// narrow handlers.JobScheduler interface so tests can substitute a fake
// without a database-backed scheduler behind it.
func newRouter(database *sql.DB, cfg config.Config, sched handlers.JobScheduler) http.Handler {
	jobs := &handlers.JobHandler{Repo: repo.NewJobRepo(database), Sched: sched}
	files := &handlers.FileHandler{Dir: cfg.BackupDir}
	auth := &handlers.AuthHandler{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		Secret:        []byte(cfg.JWTSecret),
		ExpireHours:   cfg.JWTExpireHours,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.Env == "prod"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.AuthRateLimiter()
	r.With(authLimiter.Middleware).Post("/auth/login", auth.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobs.ListJobs)
			r.Post("/", jobs.CreateJob)
			r.Get("/{id}", jobs.GetJob)
			r.Put("/{id}", jobs.UpdateJob)
			r.Delete("/{id}", jobs.DeleteJob)
			r.Post("/{id}/run", jobs.RunJob)
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", files.ListFiles)
			r.Get("/{name}", files.DownloadFile)
			r.Delete("/{name}", files.DeleteFile)
		})
	})

	return r
}
