// Package events persists engine events and activity records as JSON Lines.
package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/amonks/taskgraph/schedule"
)

const (
	// EventsFile is the default event log name inside a data directory.
	EventsFile = "events.jsonl"

	// ActivityFile is the default activity log name inside a data directory.
	ActivityFile = "activity.jsonl"
)

// appendLog appends JSON records to a file.
type appendLog[T any] struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

func openAppendLog[T any](path string) (*appendLog[T], error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &appendLog[T]{path: path, file: file, encoder: json.NewEncoder(file)}, nil
}

func (log *appendLog[T]) append(ctx context.Context, record T) error {
	if log == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.encoder == nil {
		return fmt.Errorf("%s is closed", filepath.Base(log.path))
	}
	return log.encoder.Encode(record)
}

func (log *appendLog[T]) close() error {
	if log == nil {
		return nil
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.file == nil {
		return nil
	}
	err := log.file.Close()
	log.file = nil
	log.encoder = nil
	return err
}

// EventLog is a schedule.EventSink that appends to a JSONL file.
type EventLog struct {
	log *appendLog[schedule.Event]
}

var _ schedule.EventSink = (*EventLog)(nil)

// OpenEventLog opens (creating if needed) the event log at path.
func OpenEventLog(path string) (*EventLog, error) {
	log, err := openAppendLog[schedule.Event](path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &EventLog{log: log}, nil
}

// Emit appends event to the log.
func (l *EventLog) Emit(ctx context.Context, event schedule.Event) error {
	if l == nil {
		return nil
	}
	return l.log.append(ctx, event)
}

// Path returns the log file path.
func (l *EventLog) Path() string {
	return l.log.path
}

// Close closes the log file.
func (l *EventLog) Close() error {
	if l == nil {
		return nil
	}
	return l.log.close()
}

// ActivityLog is a schedule.ActivityLogger that appends to a JSONL file.
type ActivityLog struct {
	log *appendLog[schedule.Activity]
}

var _ schedule.ActivityLogger = (*ActivityLog)(nil)

// OpenActivityLog opens (creating if needed) the activity log at path.
func OpenActivityLog(path string) (*ActivityLog, error) {
	log, err := openAppendLog[schedule.Activity](path)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return &ActivityLog{log: log}, nil
}

// Record appends activity to the log.
func (l *ActivityLog) Record(ctx context.Context, activity schedule.Activity) error {
	if l == nil {
		return nil
	}
	return l.log.append(ctx, activity)
}

// Path returns the log file path.
func (l *ActivityLog) Path() string {
	return l.log.path
}

// Close closes the log file.
func (l *ActivityLog) Close() error {
	if l == nil {
		return nil
	}
	return l.log.close()
}

// ReadEvents reads events from a JSONL reader. Payloads decode as generic
// JSON values.
func ReadEvents(reader io.Reader) ([]schedule.Event, error) {
	return readRecords[schedule.Event](reader, "event")
}

// ReadActivity reads activity records from a JSONL reader.
func ReadActivity(reader io.Reader) ([]schedule.Activity, error) {
	return readRecords[schedule.Activity](reader, "activity")
}

// EventSnapshot returns the events stored at path. A missing file has none.
func EventSnapshot(path string) ([]schedule.Event, error) {
	return snapshot(path, ReadEvents)
}

// ActivitySnapshot returns the activity records stored at path.
func ActivitySnapshot(path string) ([]schedule.Activity, error) {
	return snapshot(path, ReadActivity)
}

// ForWorkspace returns the activity recorded in workspace, oldest first.
func ForWorkspace(records []schedule.Activity, workspace string) []schedule.Activity {
	result := make([]schedule.Activity, 0)
	for _, record := range records {
		if record.Workspace == workspace {
			result = append(result, record)
		}
	}
	return result
}

// ForTask returns the events about taskID, oldest first.
func ForTask(events []schedule.Event, taskID string) []schedule.Event {
	result := make([]schedule.Event, 0)
	for _, event := range events {
		if event.TaskID == taskID {
			result = append(result, event)
		}
	}
	return result
}

func snapshot[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	return read(file)
}

func readRecords[T any](reader io.Reader, kind string) ([]T, error) {
	records := make([]T, 0)
	if reader == nil {
		return records, nil
	}
	buffer := bufio.NewReader(reader)
	for {
		line, err := buffer.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			var record T
			if unmarshalErr := json.Unmarshal([]byte(line), &record); unmarshalErr != nil {
				return nil, fmt.Errorf("decode %s: %w", kind, unmarshalErr)
			}
			records = append(records, record)
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return records, nil
}
