package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/escola-backoffice/api/swagger"
	"github.com/noah-isme/escola-backoffice/internal/app"
	"github.com/noah-isme/escola-backoffice/internal/handler"
	"github.com/noah-isme/escola-backoffice/internal/middleware"
	"github.com/noah-isme/escola-backoffice/pkg/cache"
	"github.com/noah-isme/escola-backoffice/pkg/config"
	"github.com/noah-isme/escola-backoffice/pkg/database"
	"github.com/noah-isme/escola-backoffice/pkg/logger"
	corsmiddleware "github.com/noah-isme/escola-backoffice/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/escola-backoffice/pkg/middleware/requestid"
)

// @title Escola Back Office API
// @version 1.0.0
// @description Billing, attendance, enrollment and exams for a language school.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services := app.New(cfg, db, redisClient, logr)
	services.Start(ctx)
	defer services.Stop()

	var dashboard *handler.DashboardHandler
	if cfg.Dashboard.Enabled {
		dashboard = handler.NewDashboardHandler(services.Dashboard)
	} else {
		dashboard = handler.NewDashboardHandler(nil)
	}
	metricsHandler := handler.NewMetricsHandler(services.Metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(services.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Audit(logr))
	handler.RegisterRoutes(api, services.Auth, handler.Handlers{
		Auth:        handler.NewAuthHandler(services.Auth),
		Users:       handler.NewUserHandler(services.Users),
		Students:    handler.NewStudentHandler(services.Students, services.Attendance, services.Exams),
		Teachers:    handler.NewTeacherHandler(services.Teachers),
		Classes:     handler.NewClassHandler(services.Classes),
		Enrollments: handler.NewEnrollmentHandler(services.Enrollments),
		Contracts:   handler.NewContractHandler(services.Contracts, cfg.Billing.ExpiringWindowDays),
		Charges:     handler.NewChargeHandler(services.Charges),
		Jobs:        handler.NewJobHandler(services.Invoices, services.Alerts, services.Charges),
		Attendance:  handler.NewAttendanceHandler(services.Attendance),
		Alerts:      handler.NewAlertHandler(services.Alerts),
		Exams:       handler.NewExamHandler(services.Exams),
		Dashboard:   dashboard,
		Reports:     handler.NewReportHandler(services.Reports),
		Metrics:     metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
