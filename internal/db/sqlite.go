package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var sqliteMigrationsFS embed.FS

// SQLiteDB implements Database for SQLite, the default driver for local
// development and the fallback target when PostgreSQL is unreachable.
type SQLiteDB struct {
	db     *sql.DB
	config Config
	repos  *sqliteRepositories
}

type sqliteRepositories struct {
	entities *sqliteEntityRepo
	auditLog *sqliteAuditLogRepo
}

// NewSQLite opens a SQLite database at config.DSN (a file path, or
// ":memory:").
func NewSQLite(config Config) (*SQLiteDB, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = "cedarguard.db"
	}

	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite has no real connection pool; one writer at a time avoids
	// "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	s := &SQLiteDB{db: db, config: config}
	s.repos = &sqliteRepositories{
		entities: &sqliteEntityRepo{db: db},
		auditLog: &sqliteAuditLogRepo{db: db},
	}
	return s, nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteDB) Close() error                    { return s.db.Close() }

func (s *SQLiteDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

func (s *SQLiteDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLiteDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *SQLiteDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *SQLiteDB) Entities() EntityRepository   { return s.repos.entities }
func (s *SQLiteDB) AuditLog() AuditLogRepository { return s.repos.auditLog }
func (s *SQLiteDB) DB() *sql.DB                  { return s.db }

func (s *SQLiteDB) RunMigrations() error {
	content, err := sqliteMigrationsFS.ReadFile("migrations/001_initial_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	for _, stmt := range strings.Split(string(content), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration statement: %w", err)
		}
	}

	_, err = s.db.Exec(`INSERT OR IGNORE INTO schema_migrations (version) VALUES (1)`)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Version() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

type sqliteEntityRepo struct{ db *sql.DB }

func (r *sqliteEntityRepo) Get(ctx context.Context, entityType, id string) (*EntityRow, error) {
	var row EntityRow
	err := r.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, attributes, parents, updated_at FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, id,
	).Scan(&row.EntityType, &row.EntityID, &row.Attributes, &row.Parents, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sqliteEntityRepo) GetBatch(ctx context.Context, entityType string, ids []string) ([]EntityRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, entityType)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT entity_type, entity_id, attributes, parents, updated_at FROM entities WHERE entity_type = ? AND entity_id IN (%s)`,
		strings.Join(placeholders, ","),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var row EntityRow
		if err := rows.Scan(&row.EntityType, &row.EntityID, &row.Attributes, &row.Parents, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *sqliteEntityRepo) Upsert(ctx context.Context, row EntityRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entities (entity_type, entity_id, attributes, parents, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(entity_type, entity_id)
		 DO UPDATE SET attributes = excluded.attributes, parents = excluded.parents, updated_at = CURRENT_TIMESTAMP`,
		row.EntityType, row.EntityID, row.Attributes, row.Parents,
	)
	return err
}

type sqliteAuditLogRepo struct{ db *sql.DB }

func (r *sqliteAuditLogRepo) Log(ctx context.Context, row AuditEventRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log
			(id, timestamp, type, severity, actor_type, actor_id, actor_name,
			 resource_type, resource_id, action, result, details, request_id, trace_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		row.ID, row.Timestamp, row.Type, row.Severity, row.ActorType, row.ActorID, row.ActorName,
		row.ResourceType, row.ResourceID, row.Action, row.Result, row.Details, row.RequestID, row.TraceID,
	)
	return err
}

func (r *sqliteAuditLogRepo) Query(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]AuditEventRow, error) {
	where, args := buildSQLiteAuditFilter(filter)
	query := fmt.Sprintf(
		`SELECT id, timestamp, type, severity, actor_type, actor_id, actor_name,
		        resource_type, resource_id, action, result, details, request_id, trace_id
		 FROM audit_log %s ORDER BY timestamp DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEventRow
	for rows.Next() {
		var e AuditEventRow
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Severity, &e.ActorType, &e.ActorID, &e.ActorName,
			&e.ResourceType, &e.ResourceID, &e.Action, &e.Result, &e.Details, &e.RequestID, &e.TraceID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *sqliteAuditLogRepo) Count(ctx context.Context, filter map[string]interface{}) (int64, error) {
	where, args := buildSQLiteAuditFilter(filter)
	var count int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM audit_log %s`, where), args...).Scan(&count)
	return count, err
}

func (r *sqliteAuditLogRepo) PurgeOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE timestamp < ?`,
		time.Now().AddDate(0, 0, -retentionDays),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func buildSQLiteAuditFilter(filter map[string]interface{}) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if v, ok := filter["type"]; ok {
		clauses = append(clauses, "type = ?")
		args = append(args, v)
	}
	if v, ok := filter["actor_id"]; ok {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, v)
	}
	if v, ok := filter["resource_id"]; ok {
		clauses = append(clauses, "resource_id = ?")
		args = append(args, v)
	}
	if v, ok := filter["since"]; ok {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, v)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
