// Package atomicstore implements the write-tmp-then-rename JSON/JSONL
// primitive that every piece of shared state in the orchestrator goes
// through (spec §4.A). It is the only package allowed to call os.Rename on
// state files directly.
package atomicstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// WriteJSON marshals v and atomically replaces path with the result: it
// writes to a sibling temp file in the same directory, fsyncs it, then
// renames over the target so concurrent readers never observe a torn write.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteJSON marshal", err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to path via a tmp-file-then-rename sequence.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic tempfile", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic close", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.WriteFileAtomic rename", err)
	}
	return nil
}

// ReadJSON reads path and unmarshals it into v. A missing file is treated as
// "no data" (returns false, nil error) rather than a failure — callers start
// from zero value state, matching the PM loop's "reloads on every tick" rule.
func ReadJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, pilotlerr.New(pilotlerr.IO, "atomicstore.ReadJSON read", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, pilotlerr.New(pilotlerr.Corrupt, "atomicstore.ReadJSON unmarshal", err)
	}
	return true, nil
}

// QuarantineCorrupt moves a corrupt file aside instead of ever overwriting it
// blind, per spec §7's IO/Corrupt recovery policy.
func QuarantineCorrupt(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	dst := path + ".corrupt"
	return os.Rename(path, dst)
}

// AppendJSONL appends one JSON-encoded line to path, creating it if needed.
// Writers use O_APPEND so concurrent single-writer-per-file appends are
// atomic at the OS level for lines below the pipe buffer size.
func AppendJSONL(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.AppendJSONL marshal", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.AppendJSONL mkdir", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.AppendJSONL open", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return pilotlerr.New(pilotlerr.IO, "atomicstore.AppendJSONL write", err)
	}
	return nil
}

// ReadJSONL reads every well-formed line of path into raw JSON messages,
// silently discarding a partially-written trailing line (the append was
// interrupted mid-write) rather than failing the whole read.
func ReadJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pilotlerr.New(pilotlerr.IO, "atomicstore.ReadJSONL open", err)
	}
	defer f.Close()

	var out []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			// Either a torn trailing write or genuine corruption mid-file;
			// either way spec §4.A says readers tolerate it by discarding.
			continue
		}
		cp := make(json.RawMessage, len(line))
		copy(cp, line)
		out = append(out, cp)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return out, pilotlerr.New(pilotlerr.IO, "atomicstore.ReadJSONL scan", err)
	}
	return out, nil
}

// UnmarshalJSONL is a convenience wrapper that decodes each ReadJSONL line
// into T, skipping lines that don't match the shape.
func UnmarshalJSONL[T any](path string) ([]T, error) {
	raws, err := ReadJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// RewriteJSONL atomically replaces path's contents with the JSON-encoded
// entries, used by prune/compaction operations that must rewrite a log file
// as a whole (spec §4.C prune, §4.I history trim).
func RewriteJSONL(path string, entries []interface{}) error {
	var buf []byte
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return pilotlerr.New(pilotlerr.IO, "atomicstore.RewriteJSONL marshal", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return WriteFileAtomic(path, buf)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatPath is a small helper kept for consistent error-message shape
// across callers building per-entity paths.
func FormatPath(dir, name, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s", name, ext))
}
