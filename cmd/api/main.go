package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/activity"
	"github.com/Marga-Ghale/ora-project-integrity/internal/api/handlers"
	"github.com/Marga-Ghale/ora-project-integrity/internal/api/middleware"
	"github.com/Marga-Ghale/ora-project-integrity/internal/config"
	"github.com/Marga-Ghale/ora-project-integrity/internal/cron"
	"github.com/Marga-Ghale/ora-project-integrity/internal/db"
	"github.com/Marga-Ghale/ora-project-integrity/internal/logger"
	"github.com/Marga-Ghale/ora-project-integrity/internal/models"
	"github.com/Marga-Ghale/ora-project-integrity/internal/repository"
	"github.com/Marga-Ghale/ora-project-integrity/internal/seed"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/Marga-Ghale/ora-project-integrity/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Entity store
	// ============================================
	var base store.Store
	ping := func(context.Context) error { return nil }

	switch cfg.StoreDriver {
	case config.StorePostgres:
		zl.Info("Running database migrations", zap.String("path", cfg.MigrationsPath))
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, zl); err != nil {
			zl.Fatal("Migration failed", zap.Error(err))
		}
		pg, err := db.NewPostgresDB(cfg.DatabaseURL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		base = store.NewPostgresStore(pg.Pool)
		ping = pg.Ping
	case config.StoreMongo:
		mdb, err := db.NewMongoDB(cfg.MongoURL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mdb.Close()
		base = store.NewMongoStore(mdb.Client, cfg.MongoDatabase)
		ping = func(ctx context.Context) error { return mdb.Client.Ping(ctx, nil) }
	default:
		zl.Warn("Using the in-memory store, data is lost on restart")
		base = store.NewMemoryStore()
	}

	var entityStore store.Store = store.NewInstrumentedStore(base)

	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL, zl)
		if err != nil {
			zl.Warn("Failed to connect to Redis, continuing without cache", zap.Error(err))
		} else {
			defer redisDB.Close()
			// Entries written by a previous process may be stale.
			if err := redisDB.InvalidateCache(context.Background(), "doc:*"); err != nil {
				zl.Warn("Failed to clear document cache", zap.Error(err))
			}
			ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
			entityStore = store.NewCachedStore(entityStore, redisDB, ttl, zl, store.Projects, store.Teams)
			zl.Info("Redis cache enabled", zap.Duration("ttl", ttl))
		}
	}

	repos := repository.NewRepositories(entityStore)

	if !cfg.IsProduction() && cfg.StoreDriver == config.StoreMemory {
		if err := seed.SeedData(context.Background(), repos, zl); err != nil {
			zl.Warn("Failed to seed development data", zap.Error(err))
		}
	}

	// ============================================
	// Activity
	// ============================================
	sinks := activity.MultiSink{activity.NewStoreSink(repos.ActivityRepo)}

	var (
		publisher  *activity.Publisher
		brokerSink *activity.BrokerSink
	)
	if cfg.AMQPURL != "" {
		publisher, err = activity.NewPublisher(cfg.AMQPURL)
		if err != nil {
			zl.Warn("Failed to connect to the broker, activity stays local", zap.Error(err))
		} else {
			defer publisher.Close()
			brokerSink = activity.NewBrokerSink(publisher, zl)
			sinks = append(sinks, brokerSink)
			zl.Info("Activity broker enabled", zap.String("exchange", activity.ExchangeName))
		}
	}

	recorder := activity.NewRecorder(sinks, zl)

	services := service.NewServices(&service.ServiceDeps{
		Repos:    repos,
		Recorder: recorder,
		Logger:   zl,
	})
	zl.Info("Services initialized")

	scheduler := cron.NewScheduler(services, zl)
	if err := scheduler.Register(cfg.CascadeRetrySchedule, cfg.AuditSweepSchedule); err != nil {
		zl.Fatal("Failed to register scheduled jobs", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// ============================================
	// Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zl))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := models.HealthResponse{Status: "healthy", Store: cfg.StoreDriver}
		status := http.StatusOK
		if err := ping(ctx); err != nil {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		if brokerSink != nil {
			resp.Broker = "disconnected"
			if publisher.IsConnected() {
				resp.Broker = "connected"
			}
			resp.Breaker = brokerSink.State().String()
		}
		c.JSON(status, resp)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	validator := middleware.NewTokenValidator(cfg.JWTSecret)
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(validator, zl))
	handlers.NewHandlers(services, zl).Register(protected)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}

	zl.Info("Server exited")
}
