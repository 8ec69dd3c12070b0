package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/capecart/ms-go-checkout/app/cache"
	"github.com/capecart/ms-go-checkout/app/controller"
	"github.com/capecart/ms-go-checkout/app/observ"
	"github.com/capecart/ms-go-checkout/app/provider"
	"github.com/capecart/ms-go-checkout/app/repository"
	"github.com/capecart/ms-go-checkout/app/service"
	"github.com/capecart/ms-go-checkout/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the Echo HTTP server for checkout, verification, and webhook endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	e := setupHTTPServer(checkoutController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(checkoutController *controller.CheckoutController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(observ.MetricsMiddleware())

	e.GET("/health", checkoutController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	orders := e.Group("/orders")
	orders.POST("", checkoutController.CreateOrder)
	orders.GET("/:id", checkoutController.GetOrder)
	orders.GET("/:id/payments", checkoutController.ListOrderPayments)

	checkout := e.Group("/checkout")
	checkout.POST("", checkoutController.CreateCheckout)
	checkout.POST("/verify", checkoutController.VerifyCheckout)
	checkout.GET("/return", checkoutController.CheckoutReturn)

	e.GET("/payments/:id", checkoutController.GetPayment)
	e.GET("/payments/:id/events", checkoutController.ListPaymentEvents)

	e.POST("/webhooks/:provider", checkoutController.HandleWebhook)

	return e
}

func mustCreateCheckoutService() (*config.Config, *service.CheckoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	yocoProvider := provider.NewYocoProvider(provider.YocoConfig{
		SecretKey:     cfg.Yoco.SecretKey,
		WebhookSecret: cfg.Yoco.WebhookSecret,
		BaseURLs:      cfg.Yoco.BaseURLs,
		HTTPTimeout:   cfg.Yoco.HTTPTimeout,
	})
	providerRegistry := provider.NewRegistry(yocoProvider)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var checkoutService *service.CheckoutService
	if rdb != nil {
		idempotencyStore := cache.NewRedisIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		checkoutService = service.NewCheckoutService(paymentRepo, orderRepo, eventRepo, providerRegistry, idempotencyStore, cfg.Checkout)
	} else {
		checkoutService = service.NewCheckoutService(paymentRepo, orderRepo, eventRepo, providerRegistry, nil, cfg.Checkout)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
	}

	return cfg, checkoutService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
