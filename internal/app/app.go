package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App is the assembled storefront: storage, services and the HTTP server.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Fiber    *fiber.App
	Registry *prometheus.Registry

	Store    repositories.Store
	Products *services.ProductService
	Carts    *services.CartService
	Orders   *services.OrderService
	Auth     *services.AuthService

	db *gorm.DB
	mq *rabbitmq.Client
}

// NewLogger builds the root logger from the logging config.
func NewLogger(cfg config.LogConfig) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// New wires every component described by cfg. logger may be nil.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg.Log)
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	users, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	var publisher services.OrderEventPublisher
	if cfg.RabbitMQ.URL != "" {
		a.connectBroker()
		if a.mq != nil {
			publisher = a.mq
		}
	} else {
		logger.Info("RABBITMQ_URL not set, order events are not published")
	}

	shopMetrics := metrics.NewShopMetrics(a.Registry)
	stock := services.NewStockKeeper(services.StockPolicy{
		MaxRetries: cfg.Stock.MaxRetries,
		Backoff:    cfg.Stock.RetryBackoff,
	}, shopMetrics, a.component("stock"))

	a.Products = services.NewProductService(a.Store.Products(), stock, a.component("catalog"))
	a.Carts = services.NewCartService(a.Store, a.component("cart"))
	a.Orders = services.NewOrderService(a.Store, stock, services.UUIDOrderNumbers{}, publisher, shopMetrics,
		services.OrderServiceConfig{RestockUnpaid: cfg.Order.RestockUnpaid}, a.component("orders"))
	a.Auth = services.NewAuthService(users, cfg.JWT.Secret, cfg.JWT.TTL, a.component("auth"))

	if cfg.Seed {
		bootstrap.SeedCatalog(ctx, a.Store.Products(), a.component("seed"))
	}

	a.Fiber = a.routes()
	return a, nil
}

func (a *App) component(name string) *log.Entry {
	return a.Logger.WithField("component", name)
}

func (a *App) openStorage() (repositories.UserRepository, error) {
	if a.Config.Database.Driver == "memory" {
		a.Store = repositories.NewMemoryStore()
		a.Logger.Warn("using in-memory storage, data is lost on restart")
		return repositories.NewMemoryUserRepository(), nil
	}

	db, err := database.Open(a.Config.Database, a.component("database"))
	if err != nil {
		return nil, err
	}
	a.db = db
	a.Store = repositories.NewGORMStoreWithTimeout(db, a.Config.Database.QueryTimeout)
	return repositories.NewGORMUserRepository(db), nil
}

// connectBroker attaches the event publisher and the audit consumer. The storefront
// keeps working without a broker.
func (a *App) connectBroker() {
	cfg := a.Config.RabbitMQ
	client, err := rabbitmq.NewClient(rabbitmq.Config{
		URL:      cfg.URL,
		Exchange: cfg.Exchange,
		Queue:    cfg.Queue,
	}, a.component("rabbitmq"))
	if err != nil {
		a.Logger.WithError(err).Warn("RabbitMQ unavailable, order events are not published")
		return
	}
	if err := client.ConsumeOrderEvents(rabbitmq.NewAuditHandler(a.component("audit"))); err != nil {
		a.Logger.WithError(err).Warn("failed to start order event consumer")
	}
	a.mq = client
}

func (a *App) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storefront",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	if a.Config.Metrics {
		app.Use(middleware.Prometheus(metrics.NewHTTPMetrics(a.Registry)))
	}

	app.Get("/health", a.handleHealth)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/health", a.handleHealth)
	if a.Config.Metrics {
		metricsHandler := adaptor.HTTPHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
		app.Get("/metrics", metricsHandler)
		apiV1.Get("/metrics", metricsHandler)
	}

	auth := middleware.AuthRequired(a.Auth, a.component("http"))
	handlers.NewAuthHandler(a.Auth, a.component("http")).RegisterRoutes(apiV1)
	handlers.NewProductHandler(a.Products, a.component("http")).RegisterRoutes(apiV1, auth)
	handlers.NewCartHandler(a.Carts, a.component("http")).RegisterRoutes(apiV1)
	handlers.NewOrderHandler(a.Orders, a.component("http")).RegisterRoutes(apiV1, auth)

	return app
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"database": a.Config.Database.Driver,
		"rabbitmq": "disabled",
	}
	if a.mq != nil {
		body["rabbitmq"] = "connected"
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			status = fiber.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = err.Error()
		}
	}
	return c.Status(status).JSON(body)
}

// Listen serves HTTP until Shutdown is called.
func (a *App) Listen() error {
	a.Logger.WithField("addr", a.Config.App.Port).Info("starting HTTP server")
	return a.Fiber.Listen(a.Config.App.Port)
}

// Shutdown stops the HTTP server and releases the broker and database connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database close: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
