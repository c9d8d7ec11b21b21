package agents

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Project describes a worktree-rooted codebase sessions can be spawned
// into.
type Project struct {
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
	HasClaudeMD bool   `yaml:"-"`
}

// ProjectsConfig is the YAML document listing explicit projects plus an
// optional directory to auto-discover more from.
type ProjectsConfig struct {
	Projects []Project `yaml:"projects"`
	ScanPath string    `yaml:"scan_path"`
}

// LoadProjectsConfig loads project configuration from YAML.
func LoadProjectsConfig(configPath string) (*ProjectsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg ProjectsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DiscoverProjects scans a directory for subdirectories containing
// CLAUDE.md.
func DiscoverProjects(scanPath string) ([]Project, error) {
	var discovered []Project

	entries, err := os.ReadDir(scanPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		projectPath := filepath.Join(scanPath, entry.Name())
		claudeMDPath := filepath.Join(projectPath, "CLAUDE.md")

		if _, err := os.Stat(claudeMDPath); err == nil {
			discovered = append(discovered, Project{
				Name:        entry.Name(),
				Path:        projectPath,
				Description: "auto-discovered project",
				HasClaudeMD: true,
			})
		}
	}

	return discovered, nil
}

// GetAllProjects returns the merged list of explicit and discovered
// projects. Explicit projects take precedence over auto-discovered ones.
func GetAllProjects(cfg *ProjectsConfig) ([]Project, error) {
	projects := make([]Project, 0, len(cfg.Projects))
	explicitPaths := make(map[string]bool)

	for _, p := range cfg.Projects {
		proj := p
		claudeMDPath := filepath.Join(proj.Path, "CLAUDE.md")
		if _, err := os.Stat(claudeMDPath); err == nil {
			proj.HasClaudeMD = true
		}
		projects = append(projects, proj)
		explicitPaths[proj.Path] = true
	}

	if cfg.ScanPath != "" {
		discovered, err := DiscoverProjects(cfg.ScanPath)
		if err != nil {
			return projects, nil
		}

		for _, d := range discovered {
			if !explicitPaths[d.Path] {
				projects = append(projects, d)
			}
		}
	}

	return projects, nil
}

// GetProjectByName finds a project by name.
func GetProjectByName(projects []Project, name string) *Project {
	for i := range projects {
		if projects[i].Name == name {
			return &projects[i]
		}
	}
	return nil
}

// GetProjectByPath finds a project by path.
func GetProjectByPath(projects []Project, path string) *Project {
	for i := range projects {
		if projects[i].Path == path {
			return &projects[i]
		}
	}
	return nil
}

// ValidateProjectPath checks if path is a valid project directory: must be
// absolute, must exist, must be a directory, must be under scanPath (if
// given), and must contain .git or CLAUDE.md.
func ValidateProjectPath(path string, scanPath string) error {
	if !filepath.IsAbs(path) {
		return &ProjectValidationError{Path: path, Reason: "path must be absolute"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ProjectValidationError{Path: path, Reason: "path does not exist"}
	}

	if !info.IsDir() {
		return &ProjectValidationError{Path: path, Reason: "path is not a directory"}
	}

	if scanPath != "" {
		relPath, err := filepath.Rel(scanPath, path)
		if err != nil || filepath.HasPrefix(relPath, "..") {
			return &ProjectValidationError{Path: path, Reason: "path is not within allowed directory"}
		}
	}

	gitPath := filepath.Join(path, ".git")
	claudeMDPath := filepath.Join(path, "CLAUDE.md")
	if _, err := os.Stat(gitPath); err != nil {
		if _, err := os.Stat(claudeMDPath); err != nil {
			return &ProjectValidationError{Path: path, Reason: "path is not a valid project (no .git or CLAUDE.md)"}
		}
	}

	return nil
}

// ReadClaudeMD reads the CLAUDE.md capsule file from a project.
func ReadClaudeMD(projectPath string) (string, error) {
	claudeMDPath := filepath.Join(projectPath, "CLAUDE.md")
	data, err := os.ReadFile(claudeMDPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ProjectValidationError reports why a candidate project path was
// rejected.
type ProjectValidationError struct {
	Path   string
	Reason string
}

func (e *ProjectValidationError) Error() string {
	return "invalid project path " + e.Path + ": " + e.Reason
}
