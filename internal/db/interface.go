package db

import (
	"context"
	"database/sql"
	"time"
)

// Database is the main interface for database operations. Both the
// PostgreSQL and SQLite implementations satisfy it.
type Database interface {
	// Connection management
	Ping(ctx context.Context) error
	Close() error
	DB() *sql.DB

	// Transaction support
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// Raw query execution
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	// Repository accessors
	Entities() EntityRepository
	AuditLog() AuditLogRepository

	// Migration support
	RunMigrations() error
	Version() (int, error)
}

// EntityRepository defines the data access operations the example SQL
// fetcher uses to load entities out of a relational system of record.
type EntityRepository interface {
	Get(ctx context.Context, entityType, id string) (*EntityRow, error)
	GetBatch(ctx context.Context, entityType string, ids []string) ([]EntityRow, error)
	Upsert(ctx context.Context, row EntityRow) error
}

// AuditLogRepository defines audit log data access operations.
type AuditLogRepository interface {
	// Log inserts a new audit event row.
	Log(ctx context.Context, row AuditEventRow) error

	// Query retrieves audit events matching the filter.
	Query(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]AuditEventRow, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter map[string]interface{}) (int64, error)

	// PurgeOldEvents deletes events older than retentionDays and returns
	// the number of rows removed.
	PurgeOldEvents(ctx context.Context, retentionDays int) (int64, error)
}

// Config configures a database connection.
type Config struct {
	Driver          string // "postgres" or "sqlite"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
