package pressure

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentfleet/pilot/internal/atomicstore"
	"github.com/agentfleet/pilot/internal/git"
)

// Checkpoint is a session's resumable progress snapshot (spec §3).
type Checkpoint struct {
	Version           int       `json:"version"`
	SessionID         string    `json:"session_id"`
	TaskID            string    `json:"task_id"`
	TaskTitle         string    `json:"task_title"`
	PlanStep          int       `json:"plan_step"`
	TotalSteps        int       `json:"total_steps"`
	CompletedSteps    int       `json:"completed_steps"`
	FilesModified     []string  `json:"files_modified"`
	CurrentContext    string    `json:"current_context"`
	KeyDecisions      []string  `json:"key_decisions"`
	ImportantFindings []string  `json:"important_findings"`
	SavedAt           time.Time `json:"saved_at"`
}

// PMSentinelTaskID is the fixed task id the PM's own orchestrator-state
// checkpoint is keyed under (spec §4.E: "The PM itself checkpoints its own
// orchestrator state ... under a fixed sentinel task id").
const PMSentinelTaskID = "__pm_orchestrator__"

const maxChangedFiles = 20

func (s *Store) checkpointPath(sid string, version int) string {
	return filepath.Join(s.stateDir, "checkpoints", fmt.Sprintf("%s.v%d.json", sid, version))
}

// LatestVersion returns the highest checkpoint version on disk for sid, or
// 0 if none exists.
func (s *Store) LatestVersion(sid string) int {
	dir := filepath.Join(s.stateDir, "checkpoints")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	prefix := sid + ".v"
	max := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		if n, err := strconv.Atoi(numStr); err == nil && n > max {
			max = n
		}
	}
	return max
}

// Save writes a new checkpoint version for cp.SessionID, incrementing the
// version monotonically.
func (s *Store) Save(cp Checkpoint) (Checkpoint, error) {
	cp.Version = s.LatestVersion(cp.SessionID) + 1
	cp.SavedAt = time.Now()
	if err := atomicstore.WriteJSON(s.checkpointPath(cp.SessionID, cp.Version), &cp); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// Load returns the highest-version checkpoint for sid, or ok=false if none
// exists (P4: load(save(D)) == D on the restorable fields).
func (s *Store) Load(sid string) (Checkpoint, bool, error) {
	v := s.LatestVersion(sid)
	if v == 0 {
		return Checkpoint{}, false, nil
	}
	var cp Checkpoint
	ok, err := atomicstore.ReadJSON(s.checkpointPath(sid, v), &cp)
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, ok, nil
}

// planProgressStepOf matches "Step X of Y" (case-insensitive).
var planProgressStepOf = regexp.MustCompile(`(?i)step\s+(\d+)\s+of\s+(\d+)`)

// checkboxDone / checkboxAny match markdown checkboxes "- [x]" / "- [ ]".
var checkboxDone = regexp.MustCompile(`(?i)-\s*\[x\]`)
var checkboxAny = regexp.MustCompile(`-\s*\[[ xX]\]`)

// ParsePlanProgress extracts completed/total step counts from a capsule's
// free text (spec §4.E: regex "Step X of Y" or checkbox "- [x]"). found is
// false if neither pattern appears.
func ParsePlanProgress(capsule string) (completed, total int, found bool) {
	if m := planProgressStepOf.FindStringSubmatch(capsule); m != nil {
		c, _ := strconv.Atoi(m[1])
		t, _ := strconv.Atoi(m[2])
		return c, t, true
	}
	totalBoxes := len(checkboxAny.FindAllString(capsule, -1))
	if totalBoxes == 0 {
		return 0, 0, false
	}
	doneBoxes := len(checkboxDone.FindAllString(capsule, -1))
	return doneBoxes, totalBoxes, true
}

// GatherContext assembles checkpoint context without the agent's help
// (spec §4.E): changed files capped at maxChangedFiles, recent git log for
// key decisions, and plan progress parsed from the day's capsule text.
func GatherContext(repo *git.Git, taskID, taskTitle string, counter Counter, logCount int, capsule string) Checkpoint {
	cp := Checkpoint{
		TaskID:    taskID,
		TaskTitle: taskTitle,
	}

	if repo != nil {
		if changed, err := repo.ChangedFiles(); err == nil {
			if len(changed) > maxChangedFiles {
				changed = changed[:maxChangedFiles]
			}
			cp.FilesModified = changed
		}
		if logText, err := repo.GetLog(logCount); err == nil && logText != "" {
			cp.KeyDecisions = strings.Split(logText, "\n")
		}
	}

	cp.CurrentContext = fmt.Sprintf("tool calls so far: %d, output bytes: %d", counter.ToolCallCount, counter.OutputBytes)

	if completed, total, found := ParsePlanProgress(capsule); found {
		cp.CompletedSteps = completed
		cp.TotalSteps = total
		cp.PlanStep = completed
	}

	return cp
}

// ResumePrompt builds the textual resume prompt delivered to an agent on
// session-start when PILOT_IS_RESUME=1 (spec §4.E).
func ResumePrompt(cp Checkpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resuming task %s (%s)\n", cp.TaskID, cp.TaskTitle)
	if cp.TotalSteps > 0 {
		fmt.Fprintf(&b, "Step %d of %d\n", cp.PlanStep, cp.TotalSteps)
	}
	if len(cp.FilesModified) > 0 {
		fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(cp.FilesModified, ", "))
	}
	if len(cp.KeyDecisions) > 0 {
		fmt.Fprintf(&b, "Recent decisions:\n")
		for _, d := range cp.KeyDecisions {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	if len(cp.ImportantFindings) > 0 {
		fmt.Fprintf(&b, "Important findings:\n")
		for _, f := range cp.ImportantFindings {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	return b.String()
}

// ShouldAutoCheckpoint reports whether pct has crossed the auto-checkpoint
// threshold.
func ShouldAutoCheckpoint(pct float64) bool { return pct >= AutoCheckpointThresholdPct }

// ShouldNudge reports whether pct has crossed the nudge threshold and the
// session was not already nudged at or above this percentage.
func ShouldNudge(pct float64, lastNudgePct float64) bool {
	return pct >= NudgeThresholdPct && pct > lastNudgePct
}
