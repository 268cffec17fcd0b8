package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/aryankhatri/food-ordering-platform/internal/config"
	"github.com/redis/go-redis/v9"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	_ "github.com/lib/pq"
)

// Repositories bundles every durable-store adapter behind one connection.
// Constructed once in main and injected; nothing in this package is global.
type Repositories struct {
	DB         *sql.DB
	Cart       CartRepository
	Catalog    CatalogRepository
	Order      OrderRepository
	Payment    PaymentRepository
	Settlement SettlementRepository
}

func New(cfg *config.Config) (*Repositories, error) {

	db, err := otelsql.Open("postgres", cfg.Database.GetDSN(),
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	// Test the connection to make sure DB is reachable
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Repositories{
		DB:         db,
		Cart:       NewCartRepo(db),
		Catalog:    NewCatalogRepo(db),
		Order:      NewOrderRepo(db),
		Payment:    NewPaymentRepo(db),
		Settlement: NewSettlementRepo(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {

	redisURL := cfg.RedisConnect.GetDSN()
	slog.Info("Connecting to Redis", slog.String("host", cfg.RedisConnect.Host), slog.String("port", cfg.RedisConnect.Port))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
