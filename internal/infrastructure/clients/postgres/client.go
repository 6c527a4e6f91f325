package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/pkg/config"
	"github.com/zatekoja/clinicalcore/pkg/retry"
)

const pingTimeout = 5 * time.Second

// Client owns the connection pool shared by the patient store and the
// pgvector index
type Client struct {
	db *sql.DB
}

// NewClient opens the pool and waits for the server with exponential
// backoff. The wait stops early when ctx is cancelled.
func NewClient(ctx context.Context, cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	onRetry := func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", nextDelay).
			Str("host", cfg.Host).
			Msg("Patient database not reachable yet")
	}
	if err := retry.DoWithLog(ctx, retry.DefaultConfig(), "PostgreSQL", ping, onRetry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("patient database %s/%s unreachable: %w", cfg.Host, cfg.Database, err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to patient database")
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an existing pool, e.g. a sqlmock connection
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks the pool can still reach the server
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
