package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains audit trail configuration. The trail is disabled by
// default; when enabled every engine operation served over HTTP is recorded.
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Event is one recorded engine operation. It carries metadata only, never
// token values.
type Event struct {
	ID         int64     `db:"id" json:"id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	RequestID  string    `db:"request_id" json:"request_id"`
	Operation  string    `db:"operation" json:"operation"`
	MapID      string    `db:"map_id" json:"map_id"`
	TokenCount int       `db:"token_count" json:"token_count"`
	Strategy   string    `db:"strategy" json:"strategy"`
	DurationMS float64   `db:"duration_ms" json:"duration_ms"`
}

const schema = `
CREATE TABLE IF NOT EXISTS anonproxy_audit_events (
	id          BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	request_id  TEXT NOT NULL,
	operation   TEXT NOT NULL,
	map_id      TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	strategy    TEXT NOT NULL,
	duration_ms DOUBLE PRECISION NOT NULL
)`

// Store persists audit events in PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to the database and ensures the audit table exists.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &Store{db: db, logger: logger}, nil
}

// Record inserts one audit event. Callers treat failures as best-effort:
// auditing never blocks the request path.
func (s *Store) Record(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO anonproxy_audit_events
			(occurred_at, request_id, operation, map_id, token_count, strategy, duration_ms)
		VALUES
			(:occurred_at, :request_id, :operation, :map_id, :token_count, :strategy, :duration_ms)`

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if _, err := s.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []Event
	const query = `
		SELECT id, occurred_at, request_id, operation, map_id, token_count, strategy, duration_ms
		FROM anonproxy_audit_events
		ORDER BY occurred_at DESC
		LIMIT $1`
	if err := s.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return events, nil
}

// All returns every recorded event in insertion order.
func (s *Store) All(ctx context.Context) ([]Event, error) {
	var events []Event
	const query = `
		SELECT id, occurred_at, request_id, operation, map_id, token_count, strategy, duration_ms
		FROM anonproxy_audit_events
		ORDER BY id`
	if err := s.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return events, nil
}

// Close closes the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in a database URL for logging.
func maskDatabaseURL(url string) string {
	if at := strings.Index(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 && scheme+3 < at {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
