package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gemmy/internal/auth"
	"gemmy/internal/budget"
	"gemmy/internal/config"
	"gemmy/internal/database"
	"gemmy/internal/export"
	"gemmy/internal/handlers"
	"gemmy/internal/logger"
	"gemmy/internal/metrics"
	"gemmy/internal/middleware"
	"gemmy/internal/notify"
	"gemmy/internal/orders"
	"gemmy/internal/photos"
	"gemmy/internal/store"
	"gemmy/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI, zl)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(cfg.DBName)
	zl.Info("mongo database selected", zap.String("db", db.Name()))
	if err := database.EnsureIndexes(db, zl); err != nil {
		zl.Warn("index warning", zap.Error(err))
	}

	st := store.NewMongo(db, cfg.MongoTransactions)

	policy, err := workflow.ParsePolicy(cfg.WorkflowPolicy)
	if err != nil {
		return err
	}
	catalog, err := workflow.NewCatalog(cfg.Phases, policy)
	if err != nil {
		return err
	}

	var blobs photos.BlobStore
	switch cfg.BlobBackend {
	case "gridfs":
		blobs, err = photos.NewGridFSStore(db, cfg.PublicBaseURL)
	default:
		blobs, err = photos.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	}
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	var rdb *redis.Client
	if cfg.BudgetBackend == "redis" || cfg.NotifyBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		zl.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}

	var counter budget.Counter = budget.NewMemory(cfg.BudgetWindow)
	if cfg.BudgetBackend == "redis" {
		counter = budget.NewRedis(rdb, cfg.BudgetWindow)
	}
	refreshBudget := budget.New(counter,
		budget.Limit{MaxChecks: cfg.CustomerMaxChecks, Interval: cfg.CustomerCheckInterval},
		budget.Limit{MaxChecks: cfg.VendorMaxChecks, Interval: cfg.VendorCheckInterval},
	)

	var notifier notify.Notifier = notify.NewMemory()
	if cfg.NotifyBackend == "redis" {
		notifier = notify.NewRedis(rdb, zl)
	}

	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, zl)
	orderSvc := orders.NewService(orders.Config{
		Store:                st,
		Blobs:                blobs,
		Catalog:              catalog,
		Notifier:             notifier,
		Logger:               zl,
		PublicBaseURL:        cfg.PublicBaseURL,
		MirrorCustomerWrites: cfg.MirrorCustomerWrites,
	})
	exporter := export.New(st, blobs, nil, cfg.PublicBaseURL, zl)

	metrics.Register(prometheus.DefaultRegisterer)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(zl), gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.Register(r, handlers.Deps{
		Orders:   orderSvc,
		Auth:     authSvc,
		Budget:   refreshBudget,
		Notifier: notifier,
		Blobs:    blobs,
		Exporter: exporter,
		Store:    st,
		Logger:   zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zl.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
