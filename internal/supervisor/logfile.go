package supervisor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// maxLogSize is the rotation threshold for an agent's run log (spec §4.H).
const maxLogSize = 10 * 1024 * 1024

// maxGenerations is how many rotated generations are kept (.1 through .3).
const maxGenerations = 3

// RotatingLog is a single-writer append log that rotates at maxLogSize,
// keeping up to maxGenerations older copies. Every line is stamped with a
// wall-clock timestamp and a stdout/stderr tag.
type RotatingLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
	size int64
}

// OpenRotatingLog opens (creating if needed) the log file at path for
// appending.
func OpenRotatingLog(path string) (*RotatingLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &RotatingLog{path: path, f: f, size: info.Size()}, nil
}

// WriteHeader frames the start of a run with PID and task id.
func (r *RotatingLog) WriteHeader(pid int, taskID string) error {
	return r.writeRaw(fmt.Sprintf("===== run start pid=%d task=%s at=%s =====\n",
		pid, taskID, time.Now().Format(time.RFC3339)))
}

// WriteFooter frames the end of a run with its exit code and signal.
func (r *RotatingLog) WriteFooter(exitCode int, signal string) error {
	return r.writeRaw(fmt.Sprintf("===== run end exit=%d signal=%s at=%s =====\n",
		exitCode, signal, time.Now().Format(time.RFC3339)))
}

// WriteLine timestamps and appends one stdout/stderr line, rotating first
// if the current file has grown past maxLogSize.
func (r *RotatingLog) WriteLine(stream string, line string) error {
	return r.writeRaw(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), stream, line))
}

func (r *RotatingLog) writeRaw(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size >= maxLogSize {
		log.Printf("[SUPERVISOR] rotating %s at %s (limit %s)", r.path, humanize.Bytes(uint64(r.size)), humanize.Bytes(uint64(maxLogSize)))
		if err := r.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := r.f.WriteString(s)
	r.size += int64(n)
	return err
}

// rotateLocked shifts .2->.3, .1->.2, current->.1, then reopens a fresh
// file. Caller must hold r.mu.
func (r *RotatingLog) rotateLocked() error {
	if err := r.f.Close(); err != nil {
		return err
	}

	for gen := maxGenerations - 1; gen >= 1; gen-- {
		src := fmt.Sprintf("%s.%d", r.path, gen)
		dst := fmt.Sprintf("%s.%d", r.path, gen+1)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}

	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

// Close closes the underlying file.
func (r *RotatingLog) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Size reports the current file size tracked by the writer.
func (r *RotatingLog) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// readLastLines returns up to n trailing lines of the file at path.
func readLastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
