package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"subscriptions-go/internal/cache"
	"subscriptions-go/internal/handlers"
	"subscriptions-go/internal/logging"
	"subscriptions-go/internal/mailer"
	"subscriptions-go/internal/metrics"
	"subscriptions-go/internal/repository"
	"subscriptions-go/internal/service"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	Logger         *logging.ContextLogger
	GinMode        string
	AllowedOrigins []string
	Repository     repository.SubscriberRepository // in-memory when nil
	Mailer         mailer.Mailer
	Cooldown       cache.Cooldown // in-memory when nil
	ResendCooldown time.Duration
	Registry       *prometheus.Registry // fresh per app when nil; collectors are reused when shared
}

type Application struct {
	server        *http.Server
	config        *Config
	router        *gin.Engine
	repo          repository.SubscriberRepository
	service       *service.SubscriberService
	registry      *prometheus.Registry
	ownedCooldown *cache.InMemoryCooldown
}

func Build(config *Config) (*Application, error) {
	if config.Mailer == nil {
		return nil, errors.New("app: mailer is required")
	}
	if config.Logger == nil {
		config.Logger = logging.NewLogger()
	}
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	repo := config.Repository
	if repo == nil {
		repo = repository.NewInMemorySubscriberRepository()
	}

	var ownedCooldown *cache.InMemoryCooldown
	cooldown := config.Cooldown
	if cooldown == nil {
		ownedCooldown = cache.NewInMemoryCooldown()
		cooldown = ownedCooldown
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	subscriberService := service.NewSubscriberService(repo, config.Mailer, config.Logger,
		service.WithCooldown(cooldown, config.ResendCooldown),
		service.WithMetrics(metrics.New(registry)),
	)
	subscriberHandler := handlers.NewSubscriberHandler(subscriberService, config.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(config.AllowedOrigins))
	router.Use(otelgin.Middleware(config.ServiceName))

	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		config.Logger.WithTracing(c.Request.Context()).WithFields(map[string]interface{}{
			"method":     method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	})

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.GET("", subscriberHandler.ListSubscribers)
		subscriptions.POST("", subscriberHandler.CreateSubscriber)
		subscriptions.POST("/confirmation", subscriberHandler.ResendConfirmation)
	}
	router.GET("/confirm/:token", subscriberHandler.ConfirmSubscriber)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   config.ServiceName,
		})
	})
	router.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is running.")
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:        server,
		config:        config,
		router:        router,
		repo:          repo,
		service:       subscriberService,
		registry:      registry,
		ownedCooldown: ownedCooldown,
	}, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (app *Application) Run() error {
	app.config.Logger.Info("Starting server on :" + app.config.Port)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")
	if app.ownedCooldown != nil {
		app.ownedCooldown.Close()
	}
	return app.server.Shutdown(ctx)
}

func (app *Application) GetRepo() repository.SubscriberRepository {
	return app.repo
}

func (app *Application) GetService() *service.SubscriberService {
	return app.service
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}

func (app *Application) GetRegistry() *prometheus.Registry {
	return app.registry
}
