package database

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schemakit/internal/config"
)

// PostgresDSN builds a postgres:// URL; user and password are escaped.
func PostgresDSN(cfg *config.Config) string {
	userInfo := url.UserPassword(cfg.DBUser, cfg.DBPassword)
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=disable",
		userInfo.String(),
		cfg.DBHost,
		cfg.DBPort,
		url.PathEscape(cfg.DBName),
	)
}

func MySQLDSN(cfg *config.Config) string {
	c := mysqldriver.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	c.DBName = cfg.DBName
	c.ParseTime = true
	return c.FormatDSN()
}

// Connect opens the pgx pool used for catalog introspection.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	log.Printf("Connecting to database: postgres://%s:***@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)

	poolCfg, err := pgxpool.ParseConfig(PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string (check your .env file): %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return pool, nil
}

// OpenGorm opens a gorm handle for the configured driver. It backs the
// engine-neutral column introspection.
func OpenGorm(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(MySQLDSN(cfg))
	case "postgres":
		dialector = postgres.Open(PostgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}

	log.Printf("Connected to %s database %s via gorm", cfg.DBDriver, cfg.DBName)
	return db, nil
}
