package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var postgresMigrationsFS embed.FS

// PostgresDB implements Database for PostgreSQL.
type PostgresDB struct {
	db     *sql.DB
	config Config
	repos  *pgRepositories
}

type pgRepositories struct {
	entities *pgEntityRepo
	auditLog *pgAuditLogRepo
}

// NewPostgres creates a new PostgreSQL database connection with retry logic.
func NewPostgres(config Config) (*PostgresDB, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	maxOpenConns := config.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	maxIdleConns := config.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	connMaxLifetime := config.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 15 * time.Minute
	}
	connMaxIdleTime := config.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 5 * time.Minute
	}

	var db *sql.DB
	var err error
	maxRetries := 3
	retryDelay := 1 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", config.DSN)
		if err != nil {
			if attempt < maxRetries {
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return nil, fmt.Errorf("failed to open postgres database after %d attempts: %w", maxRetries, err)
		}

		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		log.Printf("[db] pool configured: max_open=%d max_idle=%d lifetime=%v idle_time=%v",
			maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()

		if err == nil {
			break
		}

		db.Close()

		if attempt < maxRetries {
			log.Printf("[db] postgres connection attempt %d/%d failed: %v, retrying in %v", attempt, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2
		} else {
			return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, err)
		}
	}

	database := &PostgresDB{db: db, config: config}
	database.repos = &pgRepositories{
		entities: &pgEntityRepo{db: db},
		auditLog: &pgAuditLogRepo{db: db},
	}
	return database, nil
}

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresDB) Close() error                    { return p.db.Close() }

func (p *PostgresDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, opts)
}

func (p *PostgresDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

func (p *PostgresDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

func (p *PostgresDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *PostgresDB) Entities() EntityRepository   { return p.repos.entities }
func (p *PostgresDB) AuditLog() AuditLogRepository { return p.repos.auditLog }
func (p *PostgresDB) DB() *sql.DB                  { return p.db }

// RunMigrations executes all pending migrations.
func (p *PostgresDB) RunMigrations() error {
	content, err := postgresMigrationsFS.ReadFile("migrations/001_initial_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	pgSQL := convertToPostgres(string(content))
	statements := splitStatements(pgSQL)

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := p.db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("failed to execute migration statement: %w", err)
		}
	}

	_, err = p.db.Exec(`INSERT INTO schema_migrations (version) VALUES (1) ON CONFLICT (version) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

func (p *PostgresDB) Version() (int, error) {
	var version int
	err := p.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}

// convertToPostgres rewrites the one SQLite-ism the shared migration
// file uses (TIMESTAMP columns defaulting to CURRENT_TIMESTAMP) into its
// PostgreSQL equivalent (TIMESTAMPTZ defaulting to now()).
func convertToPostgres(sqliteSQL string) string {
	out := sqliteSQL
	out = strings.ReplaceAll(out, "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP", "TIMESTAMPTZ NOT NULL DEFAULT now()")
	return out
}

func splitStatements(sql string) []string {
	return strings.Split(sql, ";")
}

type pgEntityRepo struct{ db *sql.DB }

func (r *pgEntityRepo) Get(ctx context.Context, entityType, id string) (*EntityRow, error) {
	var row EntityRow
	err := r.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, attributes, parents, updated_at FROM entities WHERE entity_type = $1 AND entity_id = $2`,
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

func (r *pgEntityRepo) GetBatch(ctx context.Context, entityType string, ids []string) ([]EntityRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, attributes, parents, updated_at FROM entities WHERE entity_type = $1 AND entity_id = ANY($2)`,
		entityType, pq.Array(ids),
	)
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

func (r *pgEntityRepo) Upsert(ctx context.Context, row EntityRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entities (entity_type, entity_id, attributes, parents, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (entity_type, entity_id)
		 DO UPDATE SET attributes = EXCLUDED.attributes, parents = EXCLUDED.parents, updated_at = now()`,
		row.EntityType, row.EntityID, row.Attributes, row.Parents,
	)
	return err
}

type pgAuditLogRepo struct{ db *sql.DB }

func (r *pgAuditLogRepo) Log(ctx context.Context, row AuditEventRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log
			(id, timestamp, type, severity, actor_type, actor_id, actor_name,
			 resource_type, resource_id, action, result, details, request_id, trace_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		row.ID, row.Timestamp, row.Type, row.Severity, row.ActorType, row.ActorID, row.ActorName,
		row.ResourceType, row.ResourceID, row.Action, row.Result, row.Details, row.RequestID, row.TraceID,
	)
	return err
}

func (r *pgAuditLogRepo) Query(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]AuditEventRow, error) {
	where, args := buildAuditFilter(filter)
	query := fmt.Sprintf(
		`SELECT id, timestamp, type, severity, actor_type, actor_id, actor_name,
		        resource_type, resource_id, action, result, details, request_id, trace_id
		 FROM audit_log %s ORDER BY timestamp DESC LIMIT %s OFFSET %s`,
		where, placeholder(len(args)+1), placeholder(len(args)+2),
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

func (r *pgAuditLogRepo) Count(ctx context.Context, filter map[string]interface{}) (int64, error) {
	where, args := buildAuditFilter(filter)
	var count int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM audit_log %s`, where), args...).Scan(&count)
	return count, err
}

func (r *pgAuditLogRepo) PurgeOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE timestamp < $1`,
		time.Now().AddDate(0, 0, -retentionDays),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildAuditFilter turns a generic filter map into a parameterized WHERE
// clause shared by Query and Count. Supported keys: type, actor_id,
// resource_id, since (time.Time).
func buildAuditFilter(filter map[string]interface{}) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	n := 1
	add := func(col string, v interface{}) {
		clauses = append(clauses, fmt.Sprintf("%s = %s", col, placeholder(n)))
		args = append(args, v)
		n++
	}
	if v, ok := filter["type"]; ok {
		add("type", v)
	}
	if v, ok := filter["actor_id"]; ok {
		add("actor_id", v)
	}
	if v, ok := filter["resource_id"]; ok {
		add("resource_id", v)
	}
	if v, ok := filter["since"]; ok {
		clauses = append(clauses, fmt.Sprintf("timestamp >= %s", placeholder(n)))
		args = append(args, v)
		n++
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

