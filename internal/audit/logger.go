package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cedarguard/internal/db"
)

// Logger persists audit events through a db.AuditLogRepository, keeping
// the Postgres/SQLite SQL itself inside the db package rather than
// duplicated here.
type Logger struct {
	repo   db.AuditLogRepository
	config Config
}

// Config configures the audit logger.
type Config struct {
	BufferSize     int
	FlushInterval  time.Duration
	MaxRetries     int
	AsyncLogging   bool
	LogAllRequests bool
}

// DefaultConfig returns default audit configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:     1000,
		FlushInterval:  5 * time.Second,
		MaxRetries:     3,
		AsyncLogging:   true,
		LogAllRequests: false,
	}
}

// NewLogger creates a new audit logger backed by repo.
func NewLogger(repo db.AuditLogRepository, config Config) *Logger {
	return &Logger{repo: repo, config: config}
}

// Log records a single audit event.
func (l *Logger) Log(ctx context.Context, eventType EventType, actor Actor, resource Resource, action, result string, details map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Severity:  SeverityForEventType(eventType),
		Actor:     actor,
		Resource:  resource,
		Action:    action,
		Result:    result,
		Details:   details,
	}
	return l.Store(ctx, event)
}

// LogWithRequest is Log, attaching request/trace correlation ids.
func (l *Logger) LogWithRequest(ctx context.Context, eventType EventType, actor Actor, resource Resource, action, result string, details map[string]interface{}, requestID, traceID string) error {
	event := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Severity:  SeverityForEventType(eventType),
		Actor:     actor,
		Resource:  resource,
		Action:    action,
		Result:    result,
		Details:   details,
		RequestID: requestID,
		TraceID:   traceID,
	}
	return l.Store(ctx, event)
}

// Store persists event through the repository.
func (l *Logger) Store(ctx context.Context, event Event) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return l.repo.Log(ctx, db.AuditEventRow{
		ID:           event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Severity:     string(event.Severity),
		ActorType:    event.Actor.Type,
		ActorID:      event.Actor.ID,
		ResourceType: event.Resource.Type,
		ResourceID:   event.Resource.ID,
		Action:       event.Action,
		Result:       event.Result,
		Details:      string(detailsJSON),
		RequestID:    event.RequestID,
		TraceID:      event.TraceID,
	})
}

// Query retrieves audit events matching the filter.
func (l *Logger) Query(ctx context.Context, filter EventFilter) ([]Event, error) {
	rows, err := l.repo.Query(ctx, toQueryFilter(filter), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(rows))
	for i, row := range rows {
		events[i] = fromRow(row)
	}
	return events, nil
}

// GetRecentEvents retrieves recent events of a specific type.
func (l *Logger) GetRecentEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	return l.Query(ctx, EventFilter{Types: []EventType{eventType}, Limit: limit})
}

// CountEvents returns the count of events matching the filter.
func (l *Logger) CountEvents(ctx context.Context, filter EventFilter) (int64, error) {
	return l.repo.Count(ctx, toQueryFilter(filter))
}

// PurgeOldEvents removes events older than retentionDays.
func (l *Logger) PurgeOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	return l.repo.PurgeOldEvents(ctx, retentionDays)
}

// toQueryFilter narrows EventFilter to the keys the db package's
// buildAuditFilter/buildSQLiteAuditFilter helpers support: type (single
// value), actor_id, resource_id, since. Multi-value Types/Severities
// filtering and EndTime are left to the caller to apply post-query.
func toQueryFilter(filter EventFilter) map[string]interface{} {
	out := make(map[string]interface{})
	if len(filter.Types) == 1 {
		out["type"] = string(filter.Types[0])
	}
	if filter.ActorID != "" {
		out["actor_id"] = filter.ActorID
	}
	if filter.ResourceID != "" {
		out["resource_id"] = filter.ResourceID
	}
	if filter.StartTime != nil {
		out["since"] = *filter.StartTime
	}
	return out
}

func fromRow(row db.AuditEventRow) Event {
	var details map[string]interface{}
	_ = json.Unmarshal([]byte(row.Details), &details)

	return Event{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		Type:      EventType(row.Type),
		Severity:  EventSeverity(row.Severity),
		Actor:     Actor{Type: row.ActorType, ID: row.ActorID},
		Resource:  Resource{Type: row.ResourceType, ID: row.ResourceID},
		Action:    row.Action,
		Result:    row.Result,
		Details:   details,
		RequestID: row.RequestID,
		TraceID:   row.TraceID,
	}
}
