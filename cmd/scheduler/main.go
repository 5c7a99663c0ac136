package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/app"
	"github.com/noah-isme/escola-backoffice/pkg/cache"
	"github.com/noah-isme/escola-backoffice/pkg/config"
	"github.com/noah-isme/escola-backoffice/pkg/database"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	"github.com/noah-isme/escola-backoffice/pkg/logger"
)

const jobTimeout = 30 * time.Minute

type batchJob struct {
	name string
	spec string
	run  func(ctx context.Context, today time.Time) error
}

func main() {
	runOnce := flag.String("run", "", "run one job immediately and exit: charges, absences, overdue or all")
	dateFlag := flag.String("date", "", "reference date for -run (YYYY-MM-DD), defaults to today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logr.Sugar().Warnw("unknown scheduler timezone, using UTC", "timezone", cfg.Scheduler.Timezone, "error", err)
		loc = time.UTC
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache will not be invalidated", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	services := app.New(cfg, db, redisClient, logr)
	jobs := []batchJob{
		{name: "charges", spec: cfg.Scheduler.ChargesSpec, run: func(ctx context.Context, today time.Time) error {
			result, err := services.Invoices.GenerateCharges(ctx, today)
			if err != nil {
				return err
			}
			logr.Info("charges generated",
				zap.Int("contracts", result.Contracts),
				zap.Int("created", result.CreatedCount()),
				zap.Strings("failed", result.Failed))
			return nil
		}},
		{name: "absences", spec: cfg.Scheduler.AbsencesSpec, run: func(ctx context.Context, today time.Time) error {
			summary, err := services.Alerts.DetectAll(ctx, today)
			if err != nil {
				return err
			}
			logr.Info("absences detected",
				zap.Int("students", summary.Students),
				zap.Int("created", summary.Created),
				zap.Int("updated", summary.Updated),
				zap.Int("resolved", summary.Resolved))
			return nil
		}},
		{name: "overdue", spec: cfg.Scheduler.OverdueSpec, run: func(ctx context.Context, today time.Time) error {
			n, err := services.Charges.MarkOverdue(ctx, today)
			if err != nil {
				return err
			}
			logr.Info("charges marked overdue", zap.Int("updated", n))
			return nil
		}},
	}

	if *runOnce != "" {
		today := dates.Day(time.Now().In(loc))
		if *dateFlag != "" {
			if today, err = dates.Parse(*dateFlag); err != nil {
				logr.Sugar().Fatalw("invalid -date", "value", *dateFlag, "error", err)
			}
		}
		if err := runNow(jobs, *runOnce, today); err != nil {
			logr.Sugar().Fatalw("job failed", "job", *runOnce, "error", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			today := dates.Day(time.Now().In(loc))
			if err := job.run(runCtx, today); err != nil {
				logr.Error("scheduled job failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			logr.Sugar().Fatalw("invalid cron spec", "job", job.name, "spec", job.spec, "error", err)
		}
		logr.Info("job scheduled", zap.String("job", job.name), zap.String("spec", job.spec), zap.String("timezone", loc.String()))
	}

	c.Start()
	<-ctx.Done()
	logr.Info("scheduler stopping")
	<-c.Stop().Done()
}

func runNow(jobs []batchJob, name string, today time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	name = strings.ToLower(strings.TrimSpace(name))
	matched := false
	for _, job := range jobs {
		if name != "all" && name != job.name {
			continue
		}
		matched = true
		if err := job.run(ctx, today); err != nil {
			return fmt.Errorf("%s: %w", job.name, err)
		}
	}
	if !matched {
		return fmt.Errorf("unknown job %q", name)
	}
	return nil
}
