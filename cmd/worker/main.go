package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/config"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
	"github.com/Haole1945/drl-platform-sub001/internal/storage"
	"github.com/Haole1945/drl-platform-sub001/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	host, _ := os.Hostname()
	logger := logging.NewRollbarLogger(log.New(os.Stderr, "worker ", log.LstdFlags), logging.Options{
		Token:       cfg.Rollbar,
		Environment: cfg.Env,
		Host:        host,
	})
	defer logger.Close()

	ctx := context.Background()
	dbase := db.MustOpen(cfg.DatabaseURL)
	defer dbase.Close()
	s3c, err := storage.New(ctx, cfg.MinIO)
	if err != nil {
		logger.Fatal("connecting object storage", err)
	}
	gemini, err := advisor.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, &worker.EvidenceLoader{
		Files: &db.Files{DB: dbase},
		Blobs: s3c,
		Limit: cfg.UploadMaxBytes,
	})
	if err != nil {
		logger.Fatal("initializing advisor", err)
	}
	defer gemini.Close()

	srv := &worker.Server{
		Advisor:       gemini,
		Suggestions:   &db.Suggestions{DB: dbase},
		Notifications: &db.Notifications{DB: dbase},
		Reminders: &worker.Reminders{
			Periods:  &db.Periods{DB: dbase},
			Students: &db.Evaluations{DB: dbase},
			Store:    &db.Notifications{DB: dbase},
			Location: cfg.ReminderLocation,
			Now:      time.Now,
		},
		Log: logger,
	}
	logger.Info("worker starting", map[string]interface{}{"concurrency": cfg.WorkerConcurrency, "reminder_cron": cfg.ReminderCron})
	if err := worker.Run(*cfg, srv); err != nil {
		logger.Fatal("worker stopped", err)
	}
}
