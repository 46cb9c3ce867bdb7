package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/dbkeeper/internal/archive"
	"github.com/crucial707/dbkeeper/internal/backup"
	"github.com/crucial707/dbkeeper/internal/config"
	"github.com/crucial707/dbkeeper/internal/db"
	"github.com/crucial707/dbkeeper/internal/dump"
	"github.com/crucial707/dbkeeper/internal/mail"
	"github.com/crucial707/dbkeeper/internal/models"
	"github.com/crucial707/dbkeeper/internal/repo"
	"github.com/crucial707/dbkeeper/internal/schedule"
)

func main() {
	cfg := config.Load()

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	log := slog.New(handler)
	slog.SetDefault(log)

	database, err := db.Connect(
		cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass,
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns,
	)
	if err != nil {
		log.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer database.Close()
	log.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if err := db.Run(cfg.DatabaseURL()); err != nil {
		log.Error("run migrations", "err", err)
		os.Exit(1)
	}

	jobs := repo.NewJobRepo(database)
	pruner := &backup.Pruner{Dir: cfg.BackupDir, Log: log}
	exec := &backup.Executor{
		Dump:    dump.NewPostgres(database),
		Archive: archive.Archiver{},
		Pruner:  pruner,
		Dir:     cfg.BackupDir,
		Now:     time.Now,
		Log:     log,
	}
	// Assign only a non-nil *Sender: a typed nil inside the interface would
	// dodge the executor's Mail == nil check.
	if sender := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom); sender != nil {
		exec.Mail = sender
	}

	clock := schedule.NewClock(cfg.Timezone, log)
	sched := schedule.New(jobs, exec, clock, log)
	defer sched.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Rebuild(ctx); err != nil {
		log.Error("rebuild timers", "err", err)
		os.Exit(1)
	}

	// Maintenance: re-arm any job whose timer was lost, and sweep retention
	// for server-side jobs once a day to catch files deleted out of band.
	maint := cron.New()
	maint.AddFunc("@every 1h", func() { sched.EnsureArmed(ctx) })
	maint.AddFunc("@daily", func() {
		all, err := jobs.ListAll(ctx)
		if err != nil {
			log.Warn("retention sweep: list jobs", "err", err)
			return
		}
		for _, job := range all {
			if job.Storage != models.StorageServer {
				continue
			}
			if err := pruner.Prune(job); err != nil {
				log.Warn("retention sweep", "job_id", job.ID, "err", err)
			}
		}
	})
	maint.Start()
	defer maint.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(database, cfg, sched),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
