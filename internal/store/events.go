package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// EventType classifies monitor-level events in the audit index.
type EventType string

const (
	// EventMonitorStarted indicates the monitor loop started
	EventMonitorStarted EventType = "monitor_started"
	// EventMonitorStopped indicates the monitor loop stopped
	EventMonitorStopped EventType = "monitor_stopped"
	// EventCycleCompleted indicates a monitoring cycle finished cleanly
	EventCycleCompleted EventType = "cycle_completed"
	// EventCycleFailed indicates a whole-cycle crash was recovered
	EventCycleFailed EventType = "cycle_failed"
	// EventRecoverySleep indicates the bounded-retry recovery sleep ran
	EventRecoverySleep EventType = "recovery_sleep"
	// EventExceptionRecorded indicates a sampler crash was documented
	EventExceptionRecorded EventType = "exception_recorded"
	// EventDispatched indicates an agent process was launched
	EventDispatched EventType = "dispatched"
)

// EventSeverity mirrors record severities for the audit index.
type EventSeverity string

const (
	EventInfo    EventSeverity = "info"
	EventWarning EventSeverity = "warning"
	EventError   EventSeverity = "error"
)

// Event is one row in the monitor_events audit index. The index is a
// queryable convenience; the JSON artifacts remain the record of truth.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the event classification
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Cycle is the monitor cycle during which the event occurred
	Cycle int `json:"cycle"`
	// Severity is the severity level
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description
	Message string `json:"message"`
	// Data contains structured, type-specific details
	Data map[string]interface{} `json:"data"`
}

// NewEvent creates an audit event with a fresh identifier.
func NewEvent(eventType EventType, cycle int, severity EventSeverity, message string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Cycle:     cycle,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

const eventSchema = `
CREATE TABLE IF NOT EXISTS monitor_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    cycle INTEGER NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(type);
CREATE INDEX IF NOT EXISTS idx_monitor_events_timestamp ON monitor_events(timestamp);
`

// EventIndex is the SQLite-backed audit index.
type EventIndex struct {
	db *sql.DB
}

// OpenEventIndex opens (creating if necessary) the audit index at path.
func OpenEventIndex(path string) (*EventIndex, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening event index: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging event index: %w", err)
	}

	if _, err := db.Exec(eventSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing event schema: %w", err)
	}

	return &EventIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *EventIndex) Close() error {
	return ix.db.Close()
}

// RecordEvent inserts one event into the index.
func (ix *EventIndex) RecordEvent(ctx context.Context, event *Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}

	_, err = ix.db.ExecContext(ctx, `
		INSERT INTO monitor_events (id, type, timestamp, cycle, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Type, event.Timestamp, event.Cycle, event.Severity, event.Message, string(dataJSON))
	if err != nil {
		return fmt.Errorf("storing event (type=%s, cycle=%d): %w", event.Type, event.Cycle, err)
	}
	return nil
}

// RecentEvents returns the most recent events, newest first.
func (ix *EventIndex) RecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, type, timestamp, cycle, severity, message, data
		FROM monitor_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		var dataJSON string
		if err := rows.Scan(&event.ID, &event.Type, &event.Timestamp, &event.Cycle,
			&event.Severity, &event.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
			return nil, fmt.Errorf("parsing event data for %s: %w", event.ID, err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// EventCounts returns the number of indexed events per type.
func (ix *EventIndex) EventCounts(ctx context.Context) (map[EventType]int, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM monitor_events GROUP BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[EventType]int)
	for rows.Next() {
		var eventType EventType
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}
