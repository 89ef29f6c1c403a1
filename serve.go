package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urfave/cli/v2"

	"github.com/beheryahmed1991/watch-metering.git/docs"
	"github.com/beheryahmed1991/watch-metering.git/internal/config"
	"github.com/beheryahmed1991/watch-metering.git/internal/metrics"
	"github.com/beheryahmed1991/watch-metering.git/internal/middleware"
	"github.com/beheryahmed1991/watch-metering.git/internal/quota"
	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

const shutdownTimeout = 10 * time.Second

type routerDeps struct {
	cfg      config.Config
	log      *slog.Logger
	tx       subscription.Transactor
	db       *sql.DB
	registry *prometheus.Registry
}

func serve(c *cli.Context) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer b.Close()

	if !cfg.App.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(routerDeps{
		cfg:      cfg,
		log:      appLogger,
		tx:       b.tx,
		db:       b.db,
		registry: metrics.NewRegistry(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", "addr", srv.Addr, "storage", cfg.Storage.Driver, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(deps routerDeps) *gin.Engine {
	m := metrics.New(deps.registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.log))
	router.Use(cors.New(corsConfig(deps.cfg.CORS)))

	router.GET("/healthz", func(c *gin.Context) {
		if deps.db != nil {
			if err := deps.db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(deps.registry)))

	docs.SwaggerInfo.Host = deps.cfg.Swagger.Host
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ledger := subscription.NewLedger(deps.tx, deps.log, subscription.WithMetrics(m))
	gate := quota.NewGate(deps.tx, deps.log, m)

	subscription.NewHandler(ledger, deps.log).RegisterRoutes(router)
	quota.NewHandler(gate, deps.log, deps.cfg.Metering.IdempotencyTTL, m).RegisterRoutes(router)
	watch.NewHandler(ledger, deps.log).RegisterRoutes(router)

	return router
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.UserHeader, quota.IdempotencyHeader},
		ExposeHeaders: []string{"Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cc
}
