// Command pilotctl is a lightweight client for pilotd's HTTP control API
// (spec §8), plus a couple of filesystem-level inspection subcommands for
// when the daemon isn't running to ask.
package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentfleet/pilot/internal/supervisor"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	addr := envOr("PILOTCTL_ADDR", "http://localhost:7630")
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "sessions":
		err = getJSON(addr + "/sessions")
	case "session":
		err = requireArg(args, "session", func(id string) error { return getJSON(addr + "/sessions/" + id) })
	case "release":
		err = requireArg(args, "release", func(id string) error { return postJSON(addr+"/sessions/"+id+"/release", nil) })
	case "actions":
		err = getJSON(addr + "/actions")
	case "requeue":
		err = requireArg(args, "requeue", func(id string) error { return postJSON(addr+"/actions/"+id+"/requeue", nil) })
	case "memory":
		err = requireArg(args, "memory", func(ch string) error { return getJSON(addr + "/memory/" + ch) })
	case "drift":
		err = requireArg(args, "drift", func(sid string) error { return getJSON(addr + "/drift/" + sid) })
	case "checkpoint":
		err = requireArg(args, "checkpoint", func(sid string) error { return getJSON(addr + "/checkpoints/" + sid) })
	case "health":
		err = getJSON(addr + "/api/health")
	case "logs":
		err = runLogs(args)
	case "events":
		err = runEvents(args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "pilotctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pilotctl <command> [args]

  sessions                       list active sessions
  session <id>                   show one session
  release <id>                   release a session's claims
  actions                        list queued actions
  requeue <id>                   requeue a dropped/failed action
  memory <channel>                read a memory channel
  drift <session>                show a session's drift state
  checkpoint <session>            show a session's last checkpoint
  health                          ping the daemon
  logs <task-id> [-role=R] [-f]   tail a spawned agent's log file
  events <db-path> [-pending]     inspect the events.db store directly

set PILOTCTL_ADDR to point at a non-default daemon (default http://localhost:7630)`)
}

func requireArg(args []string, name string, fn func(string) error) error {
	if len(args) < 1 {
		return fmt.Errorf("%s requires an argument", name)
	}
	return fn(args[0])
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getJSON(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printPretty(resp.Body)
}

func postJSON(url string, body io.Reader) error {
	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printPretty(resp.Body)
}

func printPretty(r io.Reader) error {
	var v interface{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runLogs tails a supervisor-managed agent log file directly off disk,
// following the canonical agent-<task-id>.log naming from
// internal/supervisor.Supervisor.LogPath. -role colorizes each line the
// same way the daemon's own terminal output would.
func runLogs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("logs requires a task id")
	}
	taskID := args[0]
	role := ""
	follow := false
	logDir := envOr("PILOTCTL_LOG_DIR", "logs")
	for _, a := range args[1:] {
		switch {
		case a == "-f" || a == "--follow":
			follow = true
		case strings.HasPrefix(a, "-role="):
			role = strings.TrimPrefix(a, "-role=")
		}
	}

	path := filepath.Join(logDir, fmt.Sprintf("agent-%s.log", taskID))
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	print := func(line string) {
		if role != "" {
			line = supervisor.ColorizeLine(role, line)
		}
		fmt.Println(line)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		print(scanner.Text())
	}
	if !follow {
		return scanner.Err()
	}

	for {
		for scanner.Scan() {
			print(scanner.Text())
		}
		time.Sleep(300 * time.Millisecond)
	}
}

// runEvents opens events.db directly with the pure-Go SQLite driver and
// dumps rows, for diagnosing the event store when the daemon (and its
// cgo-backed mattn/go-sqlite3 store) isn't running to ask over HTTP —
// the same "reach straight into the SQLite file" idiom as the teacher's
// set-shutdown-flag.go script, here read-only rather than mutating.
func runEvents(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("events requires a path to events.db")
	}
	dbPath := args[0]
	pendingOnly := false
	for _, a := range args[1:] {
		if a == "-pending" {
			pendingOnly = true
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return err
	}
	defer db.Close()

	query := `SELECT id, type, source, target, priority, created_at, delivered_at FROM events ORDER BY created_at DESC LIMIT 50`
	if pendingOnly {
		query = `SELECT id, type, source, target, priority, created_at, delivered_at FROM events WHERE delivered_at IS NULL ORDER BY priority ASC, created_at ASC`
	}

	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, typ, source, target string
		var priority int
		var createdAt time.Time
		var deliveredAt sql.NullTime
		if err := rows.Scan(&id, &typ, &source, &target, &priority, &createdAt, &deliveredAt); err != nil {
			return err
		}
		status := "pending"
		if deliveredAt.Valid {
			status = "delivered " + deliveredAt.Time.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-12s  %-10s -> %-10s  p%d  %s  [%s]\n", id, typ, source, target, priority, createdAt.Format(time.RFC3339), status)
	}
	return rows.Err()
}
