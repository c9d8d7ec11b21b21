package projectregistry

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// Store is the file-backed registry of Pages/Components/APIs/Database
// entries, one JSON document per domain (spec §6:
// registry/{pages,components,apis,database}.json). Grounded on the
// teacher's internal/supervisor/scanner.go hashContent "hash for identity,
// lowercase-compare for near-duplicate" idiom, generalized from exact-hash
// content dedup to the spec's I5 name-similarity invariant.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a Store rooted at stateDir/registry.
func NewStore(stateDir string) *Store {
	return &Store{dir: filepath.Join(stateDir, "registry")}
}

func (s *Store) path(domain Domain) string {
	return filepath.Join(s.dir, string(domain)+".json")
}

type domainFile struct {
	Entries []Entry `json:"entries"`
}

func (s *Store) load(domain Domain) (domainFile, error) {
	var df domainFile
	if _, err := atomicstore.ReadJSON(s.path(domain), &df); err != nil {
		return domainFile{}, err
	}
	return df, nil
}

func (s *Store) save(domain Domain, df domainFile) error {
	return atomicstore.WriteJSON(s.path(domain), df)
}

// List returns every entry in a domain, in insertion order.
func (s *Store) List(domain Domain) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	df, err := s.load(domain)
	if err != nil {
		return nil, err
	}
	return df.Entries, nil
}

// InsertResult reports what Insert did: the stored entry, plus any
// near-duplicate entries (similarity >= DuplicateThreshold, but not an
// exact-lowercase match) that must be surfaced to the caller per I5.
type InsertResult struct {
	Entry      Entry
	Duplicates []Entry
}

// Insert adds a new entry to domain, enforcing I5: an exact-lowercase name
// collision within the domain is rejected outright (SchemaInvalid); a
// near-duplicate (similarity >= DuplicateThreshold but not exact) is
// allowed through but returned in Duplicates so the caller can warn.
func (s *Store) Insert(domain Domain, e Entry) (InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	df, err := s.load(domain)
	if err != nil {
		return InsertResult{}, err
	}

	lowered := strings.ToLower(strings.TrimSpace(e.Name))
	var duplicates []Entry
	for _, existing := range df.Entries {
		if strings.ToLower(strings.TrimSpace(existing.Name)) == lowered {
			return InsertResult{}, pilotlerr.New(pilotlerr.SchemaInvalid, "projectregistry.Insert",
				fmt.Errorf("entry %q already exists in domain %s (exact-name collision, I5)", e.Name, domain))
		}
		if Similarity(e.Name, existing.Name) >= DuplicateThreshold {
			duplicates = append(duplicates, existing)
		}
	}

	if e.ID == "" {
		e.ID = generateID(domain, e.Name, e.FilePath)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	df.Entries = append(df.Entries, e)
	if err := s.save(domain, df); err != nil {
		return InsertResult{}, err
	}

	return InsertResult{Entry: e, Duplicates: duplicates}, nil
}

// FindSimilar scores name against every entry in domain and returns those
// at or above DuplicateThreshold, most-similar first.
func (s *Store) FindSimilar(domain Domain, name string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	df, err := s.load(domain)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry Entry
		score float64
	}
	var hits []scored
	for _, existing := range df.Entries {
		if score := Similarity(name, existing.Name); score >= DuplicateThreshold {
			hits = append(hits, scored{existing, score})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out, nil
}

// ByCreator returns every entry across all domains created by role, used by
// the router's affinity bonus (spec §4.F).
func (s *Store) ByCreator(role string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, domain := range Domains {
		df, err := s.load(domain)
		if err != nil {
			return nil, err
		}
		for _, e := range df.Entries {
			if e.CreatedBy == role {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// generateID mirrors the teacher's hashContent idiom: a truncated sha256
// hex digest over the entry's identity fields, so re-registering the same
// file-path/name pair is stable and reproducible across runs.
func generateID(domain Domain, name, filePath string) string {
	h := sha256.New()
	h.Write([]byte(string(domain) + "|" + strings.ToLower(name) + "|" + filePath))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
