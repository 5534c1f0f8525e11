package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/natefinch/atomic"
)

const maxJSONLineBytes = 1024 * 1024

// withFileLock executes fn while holding a lock on the file at path.
// Creates the file if it doesn't exist.
func withFileLock(path string, how int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open file for locking: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// readJSONL reads all JSON objects from a JSONL file into a slice.
// A missing file reads as empty.
func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return readJSONLFromReader[T](f)
}

func readJSONLFromReader[T any](reader io.Reader) ([]T, error) {
	var items []T
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNum, err)
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}

// writeJSONL replaces the file at path with one JSON object per line.
func writeJSONL[T any](path string, items []T) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i, item := range items {
		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
