package agents

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateProjectPathRequiresAbsolute(t *testing.T) {
	if err := ValidateProjectPath("relative/path", ""); err == nil {
		t.Fatal("expected error for relative path")
	}
}

func TestValidateProjectPathRequiresMarker(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateProjectPath(dir, ""); err == nil {
		t.Fatal("expected error for directory without .git or CLAUDE.md")
	}
	if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("# notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateProjectPath(dir, ""); err != nil {
		t.Fatalf("expected valid project, got %v", err)
	}
}

func TestGetAllProjectsMergesExplicitAndDiscovered(t *testing.T) {
	scanDir := t.TempDir()
	discoveredDir := filepath.Join(scanDir, "auto")
	os.Mkdir(discoveredDir, 0o755)
	os.WriteFile(filepath.Join(discoveredDir, "CLAUDE.md"), []byte("# notes"), 0o644)

	explicitDir := t.TempDir()
	os.WriteFile(filepath.Join(explicitDir, "CLAUDE.md"), []byte("# notes"), 0o644)

	cfg := &ProjectsConfig{
		Projects: []Project{{Name: "explicit", Path: explicitDir}},
		ScanPath: scanDir,
	}

	projects, err := GetAllProjects(cfg)
	if err != nil {
		t.Fatalf("GetAllProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects (1 explicit + 1 discovered), got %d", len(projects))
	}

	explicit := GetProjectByName(projects, "explicit")
	if explicit == nil || !explicit.HasClaudeMD {
		t.Fatalf("expected explicit project to be found with HasClaudeMD set, got %+v", explicit)
	}

	auto := GetProjectByPath(projects, discoveredDir)
	if auto == nil || auto.Name != "auto" {
		t.Fatalf("expected discovered project by path, got %+v", auto)
	}
}
