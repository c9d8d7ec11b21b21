package atomicstore

import (
	"encoding/json"
	"time"
)

// LogEvent is one line of the global append-only event log
// (spec §6 "sessions.jsonl"): {type, ts, session_id?, ...}.
type LogEvent struct {
	Type      string                 `json:"type"`
	Ts        time.Time              `json:"ts"`
	SessionID string                 `json:"session_id,omitempty"`
	Fields    map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Fields alongside the named fields so the on-disk
// shape is a single flat object, matching spec's `{type, ts, session_id?, …}`.
func (e LogEvent) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"type": e.Type,
		"ts":   e.Ts,
	}
	if e.SessionID != "" {
		m["session_id"] = e.SessionID
	}
	for k, v := range e.Fields {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat object back, splitting out the named fields.
func (e *LogEvent) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if t, ok := m["type"].(string); ok {
		e.Type = t
		delete(m, "type")
	}
	if ts, ok := m["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Ts = parsed
		}
		delete(m, "ts")
	}
	if sid, ok := m["session_id"].(string); ok {
		e.SessionID = sid
		delete(m, "session_id")
	}
	e.Fields = m
	return nil
}

// EventLog is the append-only global event log writer/reader
// (spec §6 "sessions.jsonl").
type EventLog struct {
	path string
}

// NewEventLog opens (lazily — no file is created until the first Append)
// the event log at path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Append writes one event line.
func (l *EventLog) Append(eventType, sessionID string, fields map[string]interface{}) error {
	return AppendJSONL(l.path, LogEvent{
		Type:      eventType,
		Ts:        time.Now(),
		SessionID: sessionID,
		Fields:    fields,
	})
}

// Tail returns up to the last `limit` events (0 = all), tolerating torn
// trailing lines the same way ReadJSONL does.
func (l *EventLog) Tail(limit int) ([]LogEvent, error) {
	events, err := UnmarshalJSONL[LogEvent](l.path)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(events) <= limit {
		return events, nil
	}
	return events[len(events)-limit:], nil
}
