// Package memory implements the shared memory channel layer (spec §4.C):
// versioned single-publisher envelopes with schema validation, plus
// per-agent append-only logs.
package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// Envelope is a versioned channel entry (spec §3).
type Envelope struct {
	Channel     string          `json:"channel"`
	Version     int             `json:"version"`
	PublishedBy string          `json:"published_by"`
	PublishedAt time.Time       `json:"published_at"`
	Summary     string          `json:"summary,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// SummaryEnvelope is the token-efficient projection readSummary returns:
// envelope metadata without the payload.
type SummaryEnvelope struct {
	Channel     string    `json:"channel"`
	Version     int       `json:"version"`
	PublishedBy string    `json:"published_by"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
}

// IndexEntry records one declared channel in memory/index.json (spec §6),
// including its sole declared publisher.
type IndexEntry struct {
	Channel     string `json:"channel"`
	Publisher   string `json:"publisher"`
	HasSchema   bool   `json:"has_schema"`
	LastVersion int    `json:"last_version"`
}

// Store manages channels, their schemas, and the declared-publisher index
// rooted at a project's memory/ directory.
type Store struct {
	memDir string
	events *atomicstore.EventLog
	mu     sync.Mutex
}

// New creates a Store. eventLog receives a "memory_published" event on
// every successful publish (spec §4.C); pass nil to skip event logging.
func New(memDir string, eventLog *atomicstore.EventLog) *Store {
	return &Store{memDir: memDir, events: eventLog}
}

func (s *Store) channelPath(channel string) string {
	return filepath.Join(s.memDir, "channels", channel+".json")
}

func (s *Store) schemaPath(channel string) string {
	return filepath.Join(s.memDir, "schemas", channel+".schema.json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.memDir, "index.json")
}

func (s *Store) archivePath(channel string) string {
	return filepath.Join(s.memDir, "archive", channel, "entries.jsonl")
}

// loadSchema reads a channel's declared schema, if any.
func (s *Store) loadSchema(channel string) (*Schema, error) {
	var sch Schema
	ok, err := atomicstore.ReadJSON(s.schemaPath(channel), &sch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &sch, nil
}

// DeclareSchema writes a channel's schema document.
func (s *Store) DeclareSchema(channel string, schema *Schema) error {
	return atomicstore.WriteJSON(s.schemaPath(channel), schema)
}

// Publish validates data against the channel's schema (if declared), then
// writes a new envelope with version = previous + 1. Publishers must match
// the channel's first publisher (spec: "channels have a single declared
// publisher"); a mismatched publisher is rejected as SchemaInvalid along
// with any payload that fails schema validation — a failed publish leaves
// the channel state and version untouched.
func (s *Store) Publish(channel string, publishedBy string, data interface{}, summary string) (*Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, pilotlerr.New(pilotlerr.IO, "memory.Publish marshal", err)
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, pilotlerr.New(pilotlerr.IO, "memory.Publish parse", err)
	}

	schema, err := s.loadSchema(channel)
	if err != nil {
		return nil, err
	}
	if err := Validate(schema, parsed); err != nil {
		return nil, pilotlerr.New(pilotlerr.SchemaInvalid, "memory.Publish", err)
	}

	existing, _ := s.readLocked(channel)
	nextVersion := 1
	if existing != nil {
		if existing.PublishedBy != "" && existing.PublishedBy != publishedBy {
			return nil, pilotlerr.New(pilotlerr.SchemaInvalid, "memory.Publish",
				fmt.Errorf("channel %q already has publisher %q", channel, existing.PublishedBy))
		}
		nextVersion = existing.Version + 1
	}

	env := &Envelope{
		Channel:     channel,
		Version:     nextVersion,
		PublishedBy: publishedBy,
		PublishedAt: time.Now(),
		Summary:     summary,
		Data:        raw,
	}
	if err := atomicstore.WriteJSON(s.channelPath(channel), env); err != nil {
		return nil, err
	}
	s.updateIndex(channel, publishedBy, schema != nil, nextVersion)

	if s.events != nil {
		s.events.Append("memory_published", "", map[string]interface{}{
			"channel": channel,
			"version": nextVersion,
			"by":      publishedBy,
		})
	}
	log.Printf("[MEMORY] published channel=%s version=%d by=%s", channel, nextVersion, publishedBy)
	return env, nil
}

func (s *Store) updateIndex(channel, publisher string, hasSchema bool, version int) {
	var idx []IndexEntry
	atomicstore.ReadJSON(s.indexPath(), &idx)
	found := false
	for i := range idx {
		if idx[i].Channel == channel {
			idx[i].LastVersion = version
			idx[i].HasSchema = hasSchema
			found = true
			break
		}
	}
	if !found {
		idx = append(idx, IndexEntry{Channel: channel, Publisher: publisher, HasSchema: hasSchema, LastVersion: version})
	}
	atomicstore.WriteJSON(s.indexPath(), idx)
}

// Read returns the current envelope for channel, or nil if it has never
// been published.
func (s *Store) Read(channel string) (*Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(channel)
}

func (s *Store) readLocked(channel string) (*Envelope, error) {
	var env Envelope
	ok, err := atomicstore.ReadJSON(s.channelPath(channel), &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &env, nil
}

// ReadSummary returns only the envelope metadata, for token-efficient
// consumers that don't need the payload.
func (s *Store) ReadSummary(channel string) (*SummaryEnvelope, error) {
	env, err := s.Read(channel)
	if err != nil || env == nil {
		return nil, err
	}
	return &SummaryEnvelope{
		Channel:     env.Channel,
		Version:     env.Version,
		PublishedBy: env.PublishedBy,
		PublishedAt: env.PublishedAt,
		Summary:     env.Summary,
	}, nil
}

// DataAsSequence normalizes an envelope's data field the way spec §9
// demands: object payloads become a one-element sequence, arrays pass
// through.
func DataAsSequence(raw json.RawMessage) []interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if arr, ok := v.([]interface{}); ok {
		return arr
	}
	return []interface{}{v}
}

// Archive appends the envelope's data to the channel's archive log, for
// relevance-engine eviction of channel-backed entries.
func (s *Store) Archive(channel string, entry interface{}) error {
	if err := os.MkdirAll(filepath.Dir(s.archivePath(channel)), 0o755); err != nil {
		return pilotlerr.New(pilotlerr.IO, "memory.Archive mkdir", err)
	}
	return atomicstore.AppendJSONL(s.archivePath(channel), entry)
}

// Channels lists every declared channel.
func (s *Store) Channels() ([]IndexEntry, error) {
	var idx []IndexEntry
	if _, err := atomicstore.ReadJSON(s.indexPath(), &idx); err != nil {
		return nil, err
	}
	return idx, nil
}
