package projectregistry

import (
	"testing"

	"github.com/agentfleet/pilot/internal/router"
)

func TestAffinityScoresFractionOfFilesUnderOwnedEntries(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Insert(DomainComponents, Entry{
		Name: "UserCard", FilePath: "src/components/UserCard.tsx", CreatedBy: "frontend",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	fn := Affinity(s)
	task := router.Task{Files: []string{"src/components/UserCard.tsx", "src/server/handlers.go"}}

	if got := fn("frontend", task); got != 0.5 {
		t.Fatalf("expected 0.5 affinity, got %v", got)
	}
	if got := fn("backend", task); got != 0 {
		t.Fatalf("expected 0 affinity for a role with no owned entries, got %v", got)
	}
}

func TestAffinityMatchesNestedDirectoryOwnership(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Insert(DomainAPIs, Entry{
		Name: "InventoryAPI", FilePath: "internal/inventory", CreatedBy: "backend",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	fn := Affinity(s)
	task := router.Task{Files: []string{"internal/inventory/handler.go"}}
	if got := fn("backend", task); got != 1 {
		t.Fatalf("expected full affinity for a file nested under the owned entry, got %v", got)
	}
}
