// Command pilotd is the orchestrator daemon: it loads the policy
// document, wires the registry/pressure/drift/router/queue/memory
// components together, drives the PM control loop on a fixed interval,
// and serves the HTTP control API (spec §8).
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentfleet/pilot/internal/actionqueue"
	"github.com/agentfleet/pilot/internal/adapter"
	"github.com/agentfleet/pilot/internal/atomicstore"
	"github.com/agentfleet/pilot/internal/bus"
	"github.com/agentfleet/pilot/internal/config"
	"github.com/agentfleet/pilot/internal/drift"
	"github.com/agentfleet/pilot/internal/events"
	"github.com/agentfleet/pilot/internal/instance"
	"github.com/agentfleet/pilot/internal/memory"
	"github.com/agentfleet/pilot/internal/notifications"
	"github.com/agentfleet/pilot/internal/pm"
	"github.com/agentfleet/pilot/internal/pressure"
	"github.com/agentfleet/pilot/internal/projectregistry"
	"github.com/agentfleet/pilot/internal/registry"
	"github.com/agentfleet/pilot/internal/router"
	"github.com/agentfleet/pilot/internal/server"
	"github.com/agentfleet/pilot/internal/supervisor"
	"github.com/agentfleet/pilot/internal/taskcache"
)

func main() {
	port := flag.Int("port", 7630, "HTTP control API port")
	projectPath := flag.String("project", ".", "project root; state/, logs/, and registry/ live under here")
	policyPath := flag.String("policy", "configs/policy.yaml", "policy YAML document (relative to -project unless absolute)")
	tickInterval := flag.Duration("tick", 5*time.Second, "PM control-loop tick interval")
	busPort := flag.Int("bus-port", 0, "embedded NATS port for live event mirroring (0 disables the bus)")
	status := flag.Bool("status", false, "show status of a running instance and exit")
	stop := flag.Bool("stop", false, "stop a running instance gracefully and exit")
	forceStop := flag.Bool("force-stop", false, "force-kill a running instance and exit")
	flag.Parse()

	projectRoot, err := filepath.Abs(*projectPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: resolve project path: %v\n", err)
		os.Exit(1)
	}
	statePath := filepath.Join(projectRoot, "state", "instance.json")
	pidPath := filepath.Join(projectRoot, "state", "pilotd.pid")

	if *status {
		showStatus(pidPath, statePath, *port)
		return
	}
	if *stop || *forceStop {
		stopRunning(pidPath, statePath, *port, *forceStop)
		return
	}

	if err := run(projectRoot, statePath, pidPath, *policyPath, *port, *busPort, *tickInterval); err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: %v\n", err)
		os.Exit(1)
	}
}

func run(projectRoot, statePath, pidPath, policyRelPath string, port, busPort int, tick time.Duration) error {
	stateDir := filepath.Join(projectRoot, "state")
	logDir := filepath.Join(projectRoot, "logs")
	registryDir := filepath.Join(projectRoot, "registry")
	for _, dir := range []string{stateDir, logDir, registryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	instanceMgr := instance.NewManager(pidPath, statePath, port)
	existing, err := instanceMgr.CheckExistingInstance()
	if err != nil {
		return fmt.Errorf("check existing instance: %w", err)
	}
	if existing != nil && existing.IsRunning {
		resolver := instance.NewConflictResolver(instanceMgr, instance.IsInteractive())
		if err := resolver.Resolve(existing); err != nil {
			return fmt.Errorf("resolve instance conflict: %w", err)
		}
		port = instanceMgr.GetPort()
	}
	if err := instanceMgr.AcquireLock(); err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	defer instanceMgr.ReleaseLock()

	policyPath := policyRelPath
	if !filepath.IsAbs(policyPath) {
		policyPath = filepath.Join(projectRoot, policyPath)
	}
	policy, err := config.Load(policyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	eventsDB, err := sql.Open("sqlite3", filepath.Join(stateDir, "events.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open events db: %w", err)
	}
	defer eventsDB.Close()
	eventStore, err := events.NewSQLiteStore(eventsDB)
	if err != nil {
		return fmt.Errorf("init events schema: %w", err)
	}
	eventBus := events.NewBus(eventStore)

	eventLog := atomicstore.NewEventLog(filepath.Join(stateDir, "events.jsonl"))

	reg := registry.New(stateDir)
	pressureStore := pressure.New(stateDir)
	driftStore := drift.New(stateDir)
	queue := actionqueue.New(filepath.Join(stateDir, "orchestrator"))
	tasks := taskcache.NewStore(stateDir)
	memStore := memory.New(filepath.Join(stateDir, "memory"), eventLog)
	projectStore := projectregistry.NewStore(registryDir)

	skills := make([]router.Skill, 0, len(policy.Roles))
	for _, role := range policy.Roles {
		skills = append(skills, router.Skill{Role: role.Name, Keywords: role.Keywords, Patterns: role.FilePatterns, Areas: role.Areas})
	}

	dispatcher := buildDispatcher(policy)

	loop := pm.NewLoop(reg, pressureStore, driftStore, queue, tasks, dispatcher, policy, skills)
	loop.Affinity = projectregistry.Affinity(projectStore)
	loop.WorktreeRoot = func(sessionID string) string {
		return filepath.Join(projectRoot, "worktrees", sessionID)
	}

	adapters := adapter.NewRegistry()
	claude := adapter.NewClaudeCLI("claude")
	adapters.Register(claude, []string{"claude-opus", "claude-sonnet", "claude-haiku"})

	sup := supervisor.New(logDir, adapters)
	execProviders := adapter.NewExecutionRegistry()
	execProviders.Register(sup)

	srv := server.New(reg, queue, memStore, driftStore, pressureStore, eventBus)

	var embeddedBus *bus.EmbeddedServer
	if busPort > 0 {
		embeddedBus, err = startBus(busPort, eventBus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pilotd: bus disabled: %v\n", err)
		} else {
			defer embeddedBus.Shutdown()
		}
	}

	stop := make(chan struct{})
	go pm.Run(loop, tick, stop)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(fmt.Sprintf(":%d", port))
	}()

	if err := waitForHealthy(port); err != nil {
		close(stop)
		return err
	}
	if err := instanceMgr.WritePIDFile(os.Getpid(), port, projectRoot); err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: warning: write PID file: %v\n", err)
	}
	fmt.Printf("pilotd listening on :%d (project %s)\n", port, projectRoot)

	select {
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "pilotd: server error: %v\n", err)
		}
	case <-shutdown:
		fmt.Println("pilotd: shutting down (signal received)")
	case <-srv.ShutdownChan:
		fmt.Println("pilotd: shutting down (API request)")
	}

	close(stop)
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: warning: server close: %v\n", err)
	}
	instanceMgr.RemovePIDFile()
	return nil
}

// buildDispatcher wires the configured notification channels into a
// Dispatcher, per policy.Notifications (spec §6's priority-routing
// contract: critical to all, warning to primary, info to the digest).
func buildDispatcher(policy config.Policy) *notifications.Dispatcher {
	var channels []notifications.NotificationChannel
	var primary notifications.NotificationChannel
	for _, name := range policy.Notifications.Channels {
		var ch notifications.NotificationChannel
		switch name {
		case "terminal":
			ch = notifications.NewTerminalChannel()
		case "toast":
			ch = notifications.NewToastChannel("pilotd")
		case "banner":
			ch = notifications.NewBannerChannel()
		}
		if ch == nil {
			continue
		}
		channels = append(channels, ch)
		if name == policy.Notifications.PrimaryChannel {
			primary = ch
		}
	}
	return notifications.NewDispatcher(notifications.NewRouter(channels), primary)
}

// startBus starts the embedded NATS server and a relay goroutine that
// mirrors every in-process event onto its typed subject (spec §8's
// "optional transport over the file-backed source of truth").
func startBus(port int, eventBus *events.Bus) (*bus.EmbeddedServer, error) {
	srv, err := bus.NewEmbeddedServer(bus.EmbeddedServerConfig{Port: port})
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	client, err := bus.NewClient(srv.URL())
	if err != nil {
		srv.Shutdown()
		return nil, err
	}
	go relayEventsToBus(eventBus, client)
	return srv, nil
}

func relayEventsToBus(eventBus *events.Bus, client *bus.Client) {
	ch := eventBus.Subscribe("all", nil)
	for ev := range ch {
		switch ev.Type {
		case events.EventDrift:
			client.PublishJSON(bus.SubjectDriftPrediction, bus.DriftPredictionEvent{
				SessionID: stringField(ev.Payload, "session_id"),
				ActionID:  stringField(ev.Payload, "action_id"),
				Score:     floatField(ev.Payload, "score"),
				Label:     stringField(ev.Payload, "label"),
				Timestamp: ev.CreatedAt,
			})
		case events.EventChannel:
			client.PublishJSON(bus.SubjectMemoryPublished, bus.MemoryPublishedEvent{
				Channel:     stringField(ev.Payload, "channel"),
				PublishedBy: stringField(ev.Payload, "published_by"),
				Timestamp:   ev.CreatedAt,
			})
		case events.EventSession:
			subject := fmt.Sprintf(bus.SubjectSessionHeartbeat, stringField(ev.Payload, "session_id"))
			client.PublishJSON(subject, bus.SessionHeartbeatEvent{
				SessionID: stringField(ev.Payload, "session_id"),
				Role:      stringField(ev.Payload, "role"),
				Timestamp: ev.CreatedAt,
			})
		case events.EventPM:
			client.PublishJSON(bus.SubjectPMTick, bus.PMTickEvent{Timestamp: ev.CreatedAt})
		}
	}
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func floatField(payload map[string]interface{}, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}

func waitForHealthy(port int) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if instance.HealthCheck(port) == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server failed to become healthy within timeout")
}

func showStatus(pidPath, statePath string, port int) {
	mgr := instance.NewManager(pidPath, statePath, port)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: %v\n", err)
		os.Exit(1)
	}
	if info == nil || !info.IsRunning {
		fmt.Println("pilotd: no instance running")
		return
	}
	fmt.Printf("pilotd: running (pid %d, port %d)\n", info.PID, info.Port)
}

func stopRunning(pidPath, statePath string, port int, force bool) {
	mgr := instance.NewManager(pidPath, statePath, port)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: %v\n", err)
		os.Exit(1)
	}
	if info == nil || !info.IsRunning {
		fmt.Println("pilotd: no instance running")
		return
	}
	if force {
		if err := instance.KillProcess(info.PID); err != nil {
			fmt.Fprintf(os.Stderr, "pilotd: force-stop failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("pilotd: force-stopped")
		return
	}
	if err := instance.SendShutdownRequest(port); err != nil {
		fmt.Fprintf(os.Stderr, "pilotd: graceful stop failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("pilotd: shutdown requested")
}
