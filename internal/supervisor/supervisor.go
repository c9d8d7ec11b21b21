// Package supervisor spawns agent processes through an adapter (§6),
// attaches a rotating log, tails it, and detects death via a zero-signal
// liveness probe (spec §4.H). It is itself registered as the "local"
// adapter.ExecutionProvider.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentfleet/pilot/internal/adapter"
	"github.com/agentfleet/pilot/internal/instance"
	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// defaultSpawnInterval is the minimum spacing between successive process
// spawns, keeping a burst of task assignments from forking the host.
const defaultSpawnInterval = 250 * time.Millisecond

// RunInfo is what the supervisor tracks for one in-flight agent run.
type RunInfo struct {
	TaskID    string
	Role      string
	PID       int
	LogPath   string
	StartedAt time.Time
}

// Supervisor tracks running agent processes, one per task, each with its
// own rotating log and tailer.
type Supervisor struct {
	logDir   string
	adapters *adapter.Registry

	spawnMu  sync.Mutex // serializes spawn decisions, mirrors the teacher's spawnMu
	spawnLim *rate.Limiter

	mu       sync.RWMutex
	runs     map[string]*RunInfo // taskID -> run
	logs     map[string]*RotatingLog
	stops    map[string]chan struct{}
	counters map[string]int // role -> sequence counter
}

// New creates a Supervisor that writes agent logs under logDir and selects
// the agent-CLI command via adapters.
func New(logDir string, adapters *adapter.Registry) *Supervisor {
	return &Supervisor{
		logDir:   logDir,
		adapters: adapters,
		spawnLim: rate.NewLimiter(rate.Every(defaultSpawnInterval), 1),
		runs:     make(map[string]*RunInfo),
		logs:     make(map[string]*RotatingLog),
		stops:    make(map[string]chan struct{}),
		counters: make(map[string]int),
	}
}

// WithSpawnRateLimit overrides the throttle applied to external-command
// invocation (spec §4.H), e.g. a tighter limit on a resource-constrained host.
func (s *Supervisor) WithSpawnRateLimit(interval time.Duration, burst int) *Supervisor {
	s.spawnLim = rate.NewLimiter(rate.Every(interval), burst)
	return s
}

// Name identifies this ExecutionProvider as the local host.
func (s *Supervisor) Name() string { return "local" }

// IsAvailable reports whether this provider can spawn processes, which it
// always can on a host with a shell.
func (s *Supervisor) IsAvailable() bool { return true }

// NextSequence returns the next sequence number for role, for generating
// team-compatible agent/session ids (e.g. "team-backend003").
func (s *Supervisor) NextSequence(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[role]++
	return s.counters[role]
}

// LogPath returns the canonical rotating-log path for a task.
func (s *Supervisor) LogPath(taskID string) string {
	return filepath.Join(s.logDir, fmt.Sprintf("agent-%s.log", taskID))
}

// Spawn builds the agent-CLI command via the adapter claiming
// opts.ModelID, execs it, and attaches a rotating, tailable log fed by
// both stdout and stderr (spec §4.H).
func (s *Supervisor) Spawn(opts adapter.SpawnOptions) (adapter.SpawnResult, error) {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	if err := s.spawnLim.Wait(context.Background()); err != nil {
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.IO, "supervisor.Spawn", err)
	}

	agentImpl := s.adapters.GetAdapterForModel(opts.ModelID)
	if agentImpl == nil {
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.AdapterUnavailable, "supervisor.Spawn",
			fmt.Errorf("no adapter registered for model %q", opts.ModelID))
	}

	logPath := opts.LogPath
	if logPath == "" {
		logPath = s.LogPath(opts.TaskID)
	}
	rlog, err := OpenRotatingLog(logPath)
	if err != nil {
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.IO, "supervisor.Spawn", err)
	}

	commandLine := agentImpl.BuildCommand(opts)
	cmd := exec.Command("sh", "-c", commandLine)
	cmd.Dir = opts.WorkDir
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		rlog.Close()
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.IO, "supervisor.Spawn", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		rlog.Close()
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.IO, "supervisor.Spawn", err)
	}

	if err := cmd.Start(); err != nil {
		rlog.Close()
		return adapter.SpawnResult{}, pilotlerr.New(pilotlerr.IO, "supervisor.Spawn", err)
	}

	rlog.WriteHeader(cmd.Process.Pid, opts.TaskID)
	pumpToLog(rlog, "stdout", stdout)
	pumpToLog(rlog, "stderr", stderr)

	run := &RunInfo{
		TaskID:    opts.TaskID,
		Role:      opts.Role,
		PID:       cmd.Process.Pid,
		LogPath:   logPath,
		StartedAt: time.Now(),
	}

	stop := make(chan struct{})
	s.mu.Lock()
	s.runs[opts.TaskID] = run
	s.logs[opts.TaskID] = rlog
	s.stops[opts.TaskID] = stop
	s.mu.Unlock()

	go func() {
		exitCode, signal := waitForExit(cmd)
		rlog.WriteFooter(exitCode, signal)
	}()

	return adapter.SpawnResult{PID: run.PID, SessionID: opts.TaskID}, nil
}

func pumpToLog(rlog *RotatingLog, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	go func() {
		for scanner.Scan() {
			rlog.WriteLine(stream, scanner.Text())
		}
	}()
}

func waitForExit(cmd *exec.Cmd) (exitCode int, signal string) {
	err := cmd.Wait()
	if err == nil {
		return 0, ""
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), exitErr.String()
	}
	return -1, err.Error()
}

// GetStatus reports whether the task's process is alive (adapter.ExecutionProvider).
func (s *Supervisor) GetStatus(taskID string) (adapter.ExecutionStatus, error) {
	alive, err := s.IsAlive(taskID)
	if err != nil {
		return adapter.ExecutionStatus{}, err
	}
	return adapter.ExecutionStatus{Running: alive}, nil
}

// GetLogs returns the last n lines written to the task's rotating log.
func (s *Supervisor) GetLogs(taskID string, n int) ([]string, error) {
	s.mu.RLock()
	run, ok := s.runs[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, pilotlerr.New(pilotlerr.UnknownTask, "supervisor.GetLogs", fmt.Errorf("no run for task %s", taskID))
	}
	return readLastLines(run.LogPath, n)
}

// Kill stops the task's process (adapter.ExecutionProvider).
func (s *Supervisor) Kill(taskID string) error {
	return s.Stop(taskID, -1, "SIGKILL")
}

// IsAlive probes a task's agent process with a zero-signal liveness check.
func (s *Supervisor) IsAlive(taskID string) (bool, error) {
	s.mu.RLock()
	run, ok := s.runs[taskID]
	s.mu.RUnlock()
	if !ok {
		return false, pilotlerr.New(pilotlerr.UnknownTask, "supervisor.IsAlive", fmt.Errorf("no run for task %s", taskID))
	}
	return instance.IsProcessRunning(run.PID)
}

// Stop terminates the agent process for taskID if it is still alive
// (instance.KillProcess), closes its log and stops the tailer. exitCode and
// signal are not used; the run's footer is written only by the exit
// watcher Spawn starts.
func (s *Supervisor) Stop(taskID string, exitCode int, signal string) error {
	s.mu.Lock()
	run, ok := s.runs[taskID]
	rlog := s.logs[taskID]
	stop := s.stops[taskID]
	delete(s.runs, taskID)
	delete(s.logs, taskID)
	delete(s.stops, taskID)
	s.mu.Unlock()

	if !ok {
		return pilotlerr.New(pilotlerr.UnknownTask, "supervisor.Stop", fmt.Errorf("no run for task %s", taskID))
	}

	if stop != nil {
		close(stop)
	}

	alive, _ := instance.IsProcessRunning(run.PID)
	if alive {
		if err := instance.KillProcess(run.PID); err != nil {
			return err
		}
	}
	if rlog != nil {
		rlog.Close()
	}
	return nil
}

// WatchTail starts a background tailer for taskID's log, invoking onLine
// for every line until the run is stopped.
func (s *Supervisor) WatchTail(taskID string, onLine func(line string)) error {
	s.mu.RLock()
	run, ok := s.runs[taskID]
	stop := s.stops[taskID]
	s.mu.RUnlock()
	if !ok {
		return pilotlerr.New(pilotlerr.UnknownTask, "supervisor.WatchTail", fmt.Errorf("no run for task %s", taskID))
	}

	go TailLog(run.LogPath, onLine, stop, func() bool {
		alive, _ := instance.IsProcessRunning(run.PID)
		return !alive
	})
	return nil
}

// RunningTasks returns the task ids with a tracked in-flight run.
func (s *Supervisor) RunningTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.runs))
	for id := range s.runs {
		out = append(out, id)
	}
	return out
}

// Run returns the tracked RunInfo for taskID.
func (s *Supervisor) Run(taskID string) (RunInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[taskID]
	if !ok {
		return RunInfo{}, false
	}
	return *run, true
}
