// Package daemon tracks a background server through its PID file.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record is what a running server leaves in its PID file.
type Record struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Uptime is the time since the server started, truncated to seconds.
func (r Record) Uptime(now time.Time) time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(r.StartedAt).Truncate(time.Second)
}

// PIDFile manages the PID file of a background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process listening on addr.
func (p *PIDFile) Write(addr string) error {
	return p.WriteRecord(Record{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// WriteRecord writes rec, creating the parent directory if needed.
func (p *PIDFile) WriteRecord(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode PID record: %w", err)
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Read reads the record. A file holding only a bare PID is accepted.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	content := strings.TrimSpace(string(data))

	var rec Record
	if err := json.Unmarshal([]byte(content), &rec); err == nil && rec.PID > 0 {
		return rec, nil
	}
	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return Record{}, fmt.Errorf("invalid PID file content: %q", content)
	}
	return Record{PID: pid}, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// WaitStopped polls until the recorded process has exited or timeout
// elapses. It reports whether the process is gone.
func (p *PIDFile) WaitStopped(timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
