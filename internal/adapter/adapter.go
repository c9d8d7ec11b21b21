// Package adapter declares the pluggable agent-CLI, execution-provider,
// and notification contracts (spec §6) and the registries that select an
// implementation by declared identifier, keeping the orchestrator
// CLI-agnostic.
package adapter

// DetectResult is what Detect reports about an adapter's availability on
// the current host.
type DetectResult struct {
	Available bool
	Version   string
	Path      string
}

// SpawnOptions carries everything an adapter needs to start an agent
// process for one task.
type SpawnOptions struct {
	TaskID   string
	Role     string
	ModelID  string
	WorkDir  string
	Prompt   string
	Env      map[string]string
	IsResume bool
	// LogPath, if set, is where the adapter should redirect the spawned
	// process's stdout/stderr (the supervisor's rotating log for this
	// task, spec §4.H). Adapters that manage their own output capture
	// (e.g. a CLI with its own session transcript) may ignore it.
	LogPath string
}

// SpawnResult is what Spawn returns on success.
type SpawnResult struct {
	PID       int
	SessionID string
}

// AliveResult is what IsAlive reports.
type AliveResult struct {
	Alive    bool
	ExitCode *int
}

// EnforcementStrategy describes how an adapter enforces guardrails/tool
// interception.
type EnforcementStrategy struct {
	Type    string // hooks, git-hooks, wrapper, file-watcher
	Details string
}

// Agent is the agent-CLI adapter contract (spec §6).
type Agent interface {
	Name() string
	DisplayName() string
	Detect() (DetectResult, error)
	ListModels() ([]string, error)
	Spawn(opts SpawnOptions) (SpawnResult, error)
	Inject(sessionID, content string) (bool, error)
	ReadOutput(sessionID string, lines int) ([]string, error)
	IsAlive(sessionID string) (AliveResult, error)
	Stop(sessionID string) error
	GetEnforcementStrategy() EnforcementStrategy
	BuildCommand(opts SpawnOptions) string
}

// Registry detects all registered agent adapters on startup and selects
// one by declared model id. Duplicate model claims are resolved by
// registered-insertion order (spec's Open Question decision, first wins).
type Registry struct {
	adapters     []Agent
	modelClaims  map[string]int // model id -> index into adapters, first registrant wins
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{modelClaims: map[string]int{}}
}

// Register adds an adapter that claims the given model ids. If a model id
// was already claimed by an earlier registration, that claim is kept.
func (r *Registry) Register(a Agent, modelIDs []string) {
	idx := len(r.adapters)
	r.adapters = append(r.adapters, a)
	for _, id := range modelIDs {
		if _, claimed := r.modelClaims[id]; !claimed {
			r.modelClaims[id] = idx
		}
	}
}

// DetectAll probes every registered adapter and returns their results
// keyed by adapter name.
func (r *Registry) DetectAll() map[string]DetectResult {
	results := make(map[string]DetectResult, len(r.adapters))
	for _, a := range r.adapters {
		res, err := a.Detect()
		if err != nil {
			res = DetectResult{Available: false}
		}
		results[a.Name()] = res
	}
	return results
}

// GetAdapterForModel selects the adapter registered first for modelID, or
// nil if none claims it.
func (r *Registry) GetAdapterForModel(modelID string) Agent {
	idx, ok := r.modelClaims[modelID]
	if !ok {
		return nil
	}
	return r.adapters[idx]
}

// Adapters returns every registered adapter in registration order.
func (r *Registry) Adapters() []Agent {
	out := make([]Agent, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// ExecutionStatus is what GetStatus reports for an execution provider.
type ExecutionStatus struct {
	Running  bool
	ExitCode *int
}

// ExecutionProvider is the local/Docker/SSH execution contract (spec §6).
// The PM treats every provider interchangeably.
type ExecutionProvider interface {
	Name() string
	Spawn(opts SpawnOptions) (SpawnResult, error)
	Kill(sessionID string) error
	GetStatus(sessionID string) (ExecutionStatus, error)
	GetLogs(sessionID string, lines int) ([]string, error)
	IsAvailable() bool
}

// ExecutionRegistry selects an execution provider by declared name.
type ExecutionRegistry struct {
	providers map[string]ExecutionProvider
	order     []string
}

// NewExecutionRegistry creates an empty execution-provider registry.
func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{providers: map[string]ExecutionProvider{}}
}

// Register adds a provider under its declared name.
func (r *ExecutionRegistry) Register(p ExecutionProvider) {
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name, or nil.
func (r *ExecutionRegistry) Get(name string) ExecutionProvider {
	return r.providers[name]
}

// Available returns the names of every provider currently reporting
// available, in registration order.
func (r *ExecutionRegistry) Available() []string {
	var names []string
	for _, name := range r.order {
		if r.providers[name].IsAvailable() {
			names = append(names, name)
		}
	}
	return names
}
