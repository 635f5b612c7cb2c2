package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/config"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/draft"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	httpSrv "github.com/Haole1945/drl-platform-sub001/internal/http"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
	"github.com/Haole1945/drl-platform-sub001/internal/migrations"
	"github.com/Haole1945/drl-platform-sub001/internal/policy"
	"github.com/Haole1945/drl-platform-sub001/internal/storage"
	"github.com/Haole1945/drl-platform-sub001/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	host, _ := os.Hostname()
	logger := logging.NewRollbarLogger(log.New(os.Stderr, "api ", log.LstdFlags), logging.Options{
		Token:       cfg.Rollbar,
		Environment: cfg.Env,
		Host:        host,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run embedded migrations (idempotent)
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		logger.Fatal("running migrations", err)
	}

	dbase := db.MustOpen(cfg.DatabaseURL)
	defer dbase.Close()
	s3c, err := storage.New(ctx, cfg.MinIO)
	if err != nil {
		logger.Fatal("connecting object storage", err)
	}
	if err := s3c.EnsureBucket(ctx); err != nil {
		logger.Fatal("preparing evidence bucket", err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asq.Close()
	drafts := draft.NewRedisStore(cfg.RedisAddr)
	defer drafts.Close()

	queue := worker.NewEnqueuer(asq)
	pol := policy.Policy{}
	evaluations := evaluation.NewService(evaluation.Deps{
		Repo:     &db.Evaluations{DB: dbase},
		Rubrics:  &db.Rubrics{DB: dbase},
		Machine:  evaluation.NewMachine(evaluation.Chain{AdvisorStep: cfg.AdvisorStep}, pol),
		Drafts:   draft.New(drafts, cfg.DraftTTL),
		Notifier: queue,
		Policy:   pol,
		Log:      logger,
	})
	appeals := appeal.NewService(appeal.Deps{
		Repo:        &db.Appeals{DB: dbase},
		Evaluations: evaluations,
		Deadlines:   &db.Periods{DB: dbase},
		Machine:     appeal.NewMachine(pol),
		Notifier:    queue,
		Log:         logger,
	})

	srv := httpSrv.NewServer(httpSrv.Deps{
		Addr:           cfg.HTTPAddr,
		APIToken:       cfg.APIToken,
		UploadMaxBytes: cfg.UploadMaxBytes,
		Evaluations:    evaluations,
		Appeals:        appeals,
		Criteria:       &db.Rubrics{DB: dbase},
		Files:          &db.Files{DB: dbase},
		Blobs:          s3c,
		Suggestions:    &db.Suggestions{DB: dbase},
		Queue:          queue,
		Notifications:  &db.Notifications{DB: dbase},
		Health:         dbase,
		Log:            logger,
	})

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("listening", map[string]interface{}{"addr": cfg.HTTPAddr, "advisor_step": cfg.AdvisorStep})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("serving", err)
	}
}
