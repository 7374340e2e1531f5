package counter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS job_executions (
	job_name    TEXT PRIMARY KEY,
	last_number BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const nextQuery = `
INSERT INTO job_executions (job_name, last_number, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (job_name)
DO UPDATE SET last_number = job_executions.last_number + 1, updated_at = NOW()
RETURNING last_number`

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string
func (c *PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		sslMode,
	)
}

// Postgres is a Store backed by an upserted row per job
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres wraps an existing connection
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// ConnectPostgres opens and pings a connection pool
func ConnectPostgres(ctx context.Context, cfg *PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	logger.Info("Connecting to PostgreSQL",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database),
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
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

	return NewPostgres(db, logger), nil
}

// EnsureSchema creates the counter table if it does not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create job_executions table: %w", err)
	}
	return nil
}

// Next atomically increments and returns the job's execution number
func (p *Postgres) Next(ctx context.Context, job string) (int64, error) {
	if job == "" {
		return 0, fmt.Errorf("job name is required")
	}

	var n int64
	if err := p.db.GetContext(ctx, &n, nextQuery, job); err != nil {
		p.logger.Error("Failed to allocate execution number",
			slog.String("job", job),
			slog.Any("error", err),
		)
		return 0, fmt.Errorf("failed to allocate execution number for %s: %w", job, err)
	}

	p.logger.Debug("Allocated execution number",
		slog.String("job", job),
		slog.Int64("number", n),
	)
	return n, nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}
