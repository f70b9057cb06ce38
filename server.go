package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/middlewares"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/notification"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
	"github.com/mmdatafocus/shop_inventory/workflow"
)

const (
	defaultPort     = "8080"
	sessionTTL      = 12 * time.Hour
	sessionSweep    = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
)

// newAPI wires the domain components over one store.
func newAPI(store tabular.Store, cache tabular.Cache, gens tabular.Generations, sink notification.Sink, locker models.StockLocker,
	reg *prometheus.Registry, metrics *workflow.Metrics, logger *logrus.Logger) *api {
	reader := tabular.NewCachedReader(store, cache, logger)
	workflow.RegisterCacheMetrics(reg, reader)

	catalog := models.NewCatalog(reader, logger)
	purchases := models.NewPurchaseLedger(reader, logger)
	movements := models.NewMovementLedger(reader, catalog, logger)
	subscriptions := models.NewSubscriptionRegistry(reader, logger)
	stock := models.NewStockReconciler(reader, locker, logger)

	alerts := workflow.NewAlertDispatcher(catalog, subscriptions, sink, logger, metrics)
	sales := workflow.NewSaleProcessor(catalog, purchases, movements, stock, logger,
		workflow.WithAlertTrigger(alerts),
		workflow.WithOversellCheck(config.RejectOversell()),
		workflow.WithMetrics(metrics),
	)

	return &api{
		logger:        logger,
		registry:      reg,
		httpMetrics:   middlewares.NewHTTPMetrics(reg),
		sessions:      models.NewSessionStore(sessionTTL, gens),
		migrate:       schemaMigrator(store, logger),
		catalog:       catalog,
		purchases:     purchases,
		movements:     movements,
		subscriptions: subscriptions,
		sales:         sales,
		stock:         workflow.NewStockMovementService(stock, movements, alerts, logger, metrics),
		alerts:        alerts,
	}
}

func schemaMigrator(store tabular.Store, logger *logrus.Logger) middlewares.SchemaMigrator {
	return func(ctx context.Context) error {
		_, err := models.EnsureSchema(ctx, store, logger)
		return err
	}
}

func newRouter(a *api, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(a.httpMetrics.Middleware())

	corsConfig := cors.DefaultConfig()
	// In production only CORS_ALLOWED_ORIGINS may call; elsewhere any origin.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders(middlewares.SessionHeader, middlewares.CorrelationHeader, "Origin", "Content-Type")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.SessionHeader)
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	a.routes(r)
	return r
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"method":         c.Request.Method,
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Redis is optional: without it reads cache in process and stock locks are local.
	config.ConnectRedisWithRetry(sigCtx)
	defer config.CloseRedis()

	store, err := tabular.Open(sigCtx, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "store"}).Fatal("could not open store: " + err.Error())
	}
	defer config.CloseDB()

	if report, err := models.EnsureSchema(sigCtx, store, logger); err != nil {
		// Sessions retry the migration on their first request.
		config.LogError(logger, "server.go", "main", "ensure schema", nil, err)
	} else {
		logger.WithFields(logrus.Fields{
			"created": report.CreatedSheets,
			"added":   report.AddedColumns,
		}).Info("schema verified")
	}

	sink, err := notification.FromConfig(sigCtx, logger)
	if err != nil {
		config.LogError(logger, "server.go", "main", "notification sink", config.NotifyDriver(), err)
		sink = notification.NewLogSink(logger)
	}
	defer config.ClosePubSub()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := workflow.NewMetrics(reg)
	locker := workflow.NewStockLocker(config.GetDB(), logger, metrics)

	a := newAPI(store, tabular.OpenCache(), tabular.OpenGenerations(), sink, locker, reg, metrics, logger)

	var scheduler *workflow.LowStockScheduler
	if spec := config.LowStockCron(); spec != "" {
		scheduler, err = workflow.NewLowStockScheduler(spec, a.alerts, logger, metrics)
		if err != nil {
			config.LogError(logger, "server.go", "main", "low stock schedule", spec, err)
		} else {
			scheduler.Start()
		}
	}

	go func() {
		ticker := time.NewTicker(sessionSweep)
		defer ticker.Stop()
		for {
			select {
			case <-sigCtx.Done():
				return
			case now := <-ticker.C:
				if n := a.sessions.Sweep(now); n > 0 {
					logger.WithFields(logrus.Fields{"removed": n}).Debug("idle sessions swept")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(a, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{
		"port":   port,
		"store":  config.StoreDriver(),
		"notify": sink.Name(),
	}).Info("server started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	if scheduler != nil {
		scheduler.Stop(shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	// Alerts triggered by the last checkouts finish before connections close.
	a.alerts.Wait()
}
