// Package audit writes an append-only JSONL trail of memory operations.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcp-project-memory/internal/logging"
)

// EventType classifies audit entries.
type EventType string

const (
	EventTypeMemoryStore    EventType = "memory_store"
	EventTypeMemorySearch   EventType = "memory_search"
	EventTypeMemoryUpdate   EventType = "memory_update"
	EventTypeMemoryDelete   EventType = "memory_delete"
	EventTypeSystemStart    EventType = "system_start"
	EventTypeSystemShutdown EventType = "system_shutdown"
	EventTypeError          EventType = "error"
)

// Event is a single audit trail entry.
type Event struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	EventType  EventType              `json:"event_type"`
	Project    string                 `json:"project,omitempty"`
	Action     string                 `json:"action"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
}

// Trail records events. The nop implementation is used when auditing is
// disabled so callers never need nil checks.
type Trail interface {
	LogEvent(ctx context.Context, eventType EventType, project, action, resourceID string, details map[string]interface{})
	LogError(ctx context.Context, eventType EventType, project, action string, err error)
	Close() error
}

// NopTrail discards all events.
type NopTrail struct{}

func (NopTrail) LogEvent(context.Context, EventType, string, string, string, map[string]interface{}) {
}
func (NopTrail) LogError(context.Context, EventType, string, string, error) {}
func (NopTrail) Close() error                                               { return nil }

// FileTrail appends events to a per-day JSONL file.
type FileTrail struct {
	mu     sync.Mutex
	dir    string
	day    string
	file   *os.File
	writer *bufio.Writer
	logger logging.Logger
}

// NewFileTrail opens (creating if needed) the audit directory and starts a
// trail. A system_start event is recorded immediately.
func NewFileTrail(dir string) (*FileTrail, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	t := &FileTrail{
		dir:    dir,
		logger: logging.WithComponent("audit"),
	}
	if err := t.rotate(time.Now().UTC()); err != nil {
		return nil, err
	}

	t.LogEvent(context.Background(), EventTypeSystemStart, "", "startup", "", nil)
	return t, nil
}

// rotate switches to the file for the given day. Caller must hold mu or be
// the constructor.
func (t *FileTrail) rotate(now time.Time) error {
	day := now.Format("2006-01-02")
	if t.file != nil && day == t.day {
		return nil
	}
	if t.writer != nil {
		_ = t.writer.Flush()
		_ = t.file.Close()
	}

	path := filepath.Join(t.dir, "audit-"+day+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open audit file %s: %w", path, err)
	}
	t.day = day
	t.file = file
	t.writer = bufio.NewWriter(file)
	return nil
}

func (t *FileTrail) LogEvent(_ context.Context, eventType EventType, project, action, resourceID string, details map[string]interface{}) {
	t.append(Event{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		Project:    project,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
		Success:    true,
	})
}

func (t *FileTrail) LogError(_ context.Context, eventType EventType, project, action string, err error) {
	t.append(Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Project:   project,
		Action:    action,
		Success:   false,
		Error:     err.Error(),
	})
}

func (t *FileTrail) append(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.rotate(event.Timestamp); err != nil {
		t.logger.Error("Audit rotation failed", "error", err.Error())
		return
	}

	line, err := json.Marshal(event)
	if err != nil {
		t.logger.Error("Failed to encode audit event", "error", err.Error())
		return
	}
	line = append(line, '\n')
	if _, err := t.writer.Write(line); err != nil {
		t.logger.Error("Failed to write audit event", "error", err.Error())
		return
	}
	// Flush per event. Audit entries must survive a crash.
	if err := t.writer.Flush(); err != nil {
		t.logger.Error("Failed to flush audit event", "error", err.Error())
	}
}

func (t *FileTrail) Close() error {
	t.LogEvent(context.Background(), EventTypeSystemShutdown, "", "shutdown", "", nil)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer != nil {
		_ = t.writer.Flush()
	}
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}
