package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ppiankov/herbia/internal/logger"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS daily_quota (day DATE PRIMARY KEY, count INTEGER NOT NULL DEFAULT 0)`
	incrementSQL   = `INSERT INTO daily_quota (day, count) VALUES ($1, 1) ON CONFLICT (day) DO UPDATE SET count = daily_quota.count + 1 RETURNING count`
	countSQL       = `SELECT count FROM daily_quota WHERE day = $1`
)

// PostgresCounter stores counters in the daily_quota table
type PostgresCounter struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenPostgresCounter opens the database, pings it and ensures the schema
func OpenPostgresCounter(ctx context.Context, dsn string, log *logger.Logger) (*PostgresCounter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	c := NewPostgresCounter(db, log)
	if err := c.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewPostgresCounter wraps an open database handle
func NewPostgresCounter(db *sql.DB, log *logger.Logger) *PostgresCounter {
	if log == nil {
		log = logger.Nop()
	}
	return &PostgresCounter{db: db, log: log.With("component", "quota", "backend", "postgres")}
}

// EnsureSchema creates the daily_quota table if missing
func (p *PostgresCounter) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create daily_quota: %w", err)
	}
	return nil
}

func (p *PostgresCounter) Increment(ctx context.Context, day string) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, incrementSQL, day).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment daily_quota %s: %w", day, err)
	}
	return n, nil
}

func (p *PostgresCounter) Count(ctx context.Context, day string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, countSQL, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily_quota %s: %w", day, err)
	}
	return n, nil
}

func (p *PostgresCounter) Close() error {
	return p.db.Close()
}
