package memory

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
)

// LogRecord is one line of a per-agent JSONL log (decisions, errors,
// discoveries). Category/Tags mirror the teacher's AgentLearning shape for
// discoveries; Decision/Error records leave them empty.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Files     []string  `json:"files,omitempty"`
}

// Preferences is the one mutable JSON (not JSONL) file per agent; entries
// here are never pruned by TTL.
type Preferences struct {
	Values map[string]string `json:"values"`
}

func (s *Store) agentDir(role string) string {
	return filepath.Join(s.memDir, "agents", role)
}

func (s *Store) decisionsPath(role string) string { return filepath.Join(s.agentDir(role), "decisions.jsonl") }
func (s *Store) errorsPath(role string) string     { return filepath.Join(s.agentDir(role), "errors.jsonl") }
func (s *Store) discoveriesPath(role string) string {
	return filepath.Join(s.agentDir(role), "discoveries.jsonl")
}
func (s *Store) preferencesPath(role string) string {
	return filepath.Join(s.agentDir(role), "preferences.json")
}

// RecordDecision appends one decision record for role.
func (s *Store) RecordDecision(role, text string) error {
	return atomicstore.AppendJSONL(s.decisionsPath(role), LogRecord{Timestamp: time.Now(), Text: text})
}

// RecordError appends one error record for role.
func (s *Store) RecordError(role, text string) error {
	return atomicstore.AppendJSONL(s.errorsPath(role), LogRecord{Timestamp: time.Now(), Text: text})
}

// RecordDiscovery appends one discovery record for role, with the teacher's
// category/tags shape preserved.
func (s *Store) RecordDiscovery(role, text, category string, tags, files []string) error {
	return atomicstore.AppendJSONL(s.discoveriesPath(role), LogRecord{
		Timestamp: time.Now(), Text: text, Category: category, Tags: tags, Files: files,
	})
}

// GetPreferences loads role's preferences, or an empty set.
func (s *Store) GetPreferences(role string) (Preferences, error) {
	var p Preferences
	ok, err := atomicstore.ReadJSON(s.preferencesPath(role), &p)
	if err != nil {
		return Preferences{}, err
	}
	if !ok {
		p.Values = map[string]string{}
	}
	if p.Values == nil {
		p.Values = map[string]string{}
	}
	return p, nil
}

// SetPreference writes a single preference key for role.
func (s *Store) SetPreference(role, key, value string) error {
	p, err := s.GetPreferences(role)
	if err != nil {
		return err
	}
	p.Values[key] = value
	return atomicstore.WriteJSON(s.preferencesPath(role), p)
}

// CrossAgentQuery is the result of querying a log kind across one agent
// (spec §4.C "cross-agent query returns {preferences|decisions|discoveries|errors}").
type CrossAgentQuery struct {
	Role    string      `json:"role"`
	Kind    string      `json:"kind"`
	Records []LogRecord `json:"records,omitempty"`
}

// Query reads up to `tailLimit` records (0 = all) of the named kind for
// role. kind is one of "decisions", "errors", "discoveries".
func (s *Store) Query(role, kind string, tailLimit int) (CrossAgentQuery, error) {
	var path string
	switch kind {
	case "decisions":
		path = s.decisionsPath(role)
	case "errors":
		path = s.errorsPath(role)
	case "discoveries":
		path = s.discoveriesPath(role)
	default:
		return CrossAgentQuery{}, os.ErrInvalid
	}

	records, err := atomicstore.UnmarshalJSONL[LogRecord](path)
	if err != nil {
		return CrossAgentQuery{}, err
	}
	if tailLimit > 0 && len(records) > tailLimit {
		records = records[len(records)-tailLimit:]
	}
	return CrossAgentQuery{Role: role, Kind: kind, Records: records}, nil
}

// Prune rewrites role's kind log atomically, dropping records older than
// ttl. Preferences are never pruned (they are not JSONL and have no
// timestamp-per-entry).
func (s *Store) Prune(role, kind string, ttl time.Duration) error {
	var path string
	switch kind {
	case "decisions":
		path = s.decisionsPath(role)
	case "errors":
		path = s.errorsPath(role)
	case "discoveries":
		path = s.discoveriesPath(role)
	default:
		return os.ErrInvalid
	}

	records, err := atomicstore.UnmarshalJSONL[LogRecord](path)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-ttl)
	kept := make([]interface{}, 0, len(records))
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return atomicstore.RewriteJSONL(path, kept)
}
