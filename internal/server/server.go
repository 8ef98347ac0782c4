package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"schemakit/internal/config"
	"schemakit/internal/database"
	"schemakit/internal/handlers"
	"schemakit/internal/middlewares"
	"schemakit/internal/repositories"
	"schemakit/internal/routes"
	"schemakit/internal/services"
)

type Server struct {
	cfg     *config.Config
	closers []func()
}

// NewServer wires the catalog, the optional redis cache and the router. The
// returned func releases the database and redis connections.
func NewServer() (*http.Server, func()) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	s := &Server{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dependency injection
	catalog := s.newCatalog(ctx)
	schemaService := services.NewSchemaService(catalog, s.newCache(ctx))
	schemaHandler := handlers.NewSchemaHandler(schemaService)

	// Initialize Gin router
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	router.Use(middlewares.RequestID, middlewares.Metrics)
	if cfg.RateLimitRPM > 0 {
		router.Use(middlewares.NewRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst).Handler())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.RegisterRoutes(router, schemaHandler)

	// Create and configure the HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server, s.close
}

// newCatalog uses pgx against Postgres and gorm's migrator against MySQL.
func (s *Server) newCatalog(ctx context.Context) services.ColumnCatalog {
	if s.cfg.DBDriver == "postgres" {
		pool, err := database.Connect(ctx, s.cfg)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		s.closers = append(s.closers, pool.Close)
		log.Println("Connected to Postgres successfully")
		return repositories.NewSchemaRepository(pool, s.cfg)
	}

	db, err := database.OpenGorm(s.cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		s.closers = append(s.closers, func() { _ = sqlDB.Close() })
	}
	log.Printf("Connected to %s successfully", s.cfg.DBDriver)
	return repositories.NewGormColumnRepository(db)
}

// newCache returns nil when REDIS_ADDR is unset.
func (s *Server) newCache(ctx context.Context) services.ColumnCache {
	if s.cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, column cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: s.cfg.RedisAddr,
	})

	// Fail fast with a clear message
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", s.cfg.RedisAddr, err)
	}
	log.Println("Connected to Redis successfully")

	s.closers = append(s.closers, func() { _ = rdb.Close() })
	return repositories.NewColumnCacheRepository(rdb, s.cfg.SchemaCacheTTL)
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", middlewares.RequestIDHeader},
		ExposeHeaders: []string{middlewares.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
