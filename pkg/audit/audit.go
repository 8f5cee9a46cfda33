// Package audit records executed administration commands as JSON lines.
//
// Every mutating command produces one event, success or failure. Passwords
// never reach this package: the command text is the redacted rendering
// attached to the plan, not the original query.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Principal string    `json:"principal"`
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
}

// Logger appends events to a writer, one JSON object per line.
//
// Thread-safe: concurrent Record calls serialize on an internal mutex so
// lines never interleave.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLogger creates a logger writing to out. A nil out discards events.
func NewLogger(out io.Writer) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{out: out}
}

// Record writes one event. The event ID and timestamp are assigned here.
func (l *Logger) Record(principal, command string, success bool, reason string) error {
	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Principal: principal,
		Command:   command,
		Success:   success,
		Reason:    reason,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(line); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}
