package db

import "time"

// EntityRow is the row shape backing the generic entities table used by
// the example SQL fetcher. attributes and parents are stored as JSON text
// so the same schema works unmodified on both PostgreSQL and SQLite.
type EntityRow struct {
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Attributes string    `db:"attributes"`
	Parents    string    `db:"parents"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// AuditEventRow is the row shape backing the audit_log table.
type AuditEventRow struct {
	ID           string    `db:"id"`
	Timestamp    time.Time `db:"timestamp"`
	Type         string    `db:"type"`
	Severity     string    `db:"severity"`
	ActorType    string    `db:"actor_type"`
	ActorID      string    `db:"actor_id"`
	ActorName    string    `db:"actor_name"`
	ResourceType string    `db:"resource_type"`
	ResourceID   string    `db:"resource_id"`
	Action       string    `db:"action"`
	Result       string    `db:"result"`
	Details      string    `db:"details"`
	RequestID    string    `db:"request_id"`
	TraceID      string    `db:"trace_id"`
}
