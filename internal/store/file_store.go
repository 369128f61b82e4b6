package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// ErrInvalidPathComponent is returned when a key component contains unsafe
// characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path
// component. It rejects empty strings, path separators, and traversal
// sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileStore implements Store on local JSON files. It backs the offline
// terminal session and tests. Storage layout:
//
//	~/.reflectd/data/
//	  └── <user-id>/
//	      ├── profile.json
//	      ├── summaries.jsonl
//	      └── reflections/
//	          └── <date>.json
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a file-based store.
// If baseDir is empty, uses ~/.reflectd/data.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".reflectd", "data")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) userDir(userID string) string {
	return filepath.Join(f.baseDir, userID)
}

func (f *FileStore) reflectionPath(userID, date string) string {
	return filepath.Join(f.userDir(userID), "reflections", date+".json")
}

func (f *FileStore) profilePath(userID string) string {
	return filepath.Join(f.userDir(userID), "profile.json")
}

func (f *FileStore) summariesPath(userID string) string {
	return filepath.Join(f.userDir(userID), "summaries.jsonl")
}

func (f *FileStore) validateKey(userID, date string) error {
	if err := validatePathComponent(userID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if date != "" {
		if err := validatePathComponent(date); err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
	}
	return nil
}

// SaveReflection replaces the record file for (rec.UserID, rec.Date).
// The write goes through a temp file and rename so a crash never leaves a
// half-written record.
func (f *FileStore) SaveReflection(ctx context.Context, rec *reflection.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := f.validateKey(rec.UserID, rec.Date); err != nil {
		return err
	}

	path := f.reflectionPath(rec.UserID, rec.Date)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return storageErr("mkdir", path, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return storageErr("marshal", path, err)
	}

	return writeAtomic(path, data)
}

// LoadReflection retrieves the record for (userID, date).
func (f *FileStore) LoadReflection(ctx context.Context, userID, date string) (*reflection.Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := f.validateKey(userID, date); err != nil {
		return nil, err
	}

	path := f.reflectionPath(userID, date)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("read", path, err)
	}

	var rec reflection.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storageErr("unmarshal", path, err)
	}
	return &rec, nil
}

// ListReflectionDates returns all dates with a record for the user, ascending.
func (f *FileStore) ListReflectionDates(ctx context.Context, userID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := f.validateKey(userID, ""); err != nil {
		return nil, err
	}

	dir := filepath.Join(f.userDir(userID), "reflections")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, storageErr("list", dir, err)
	}

	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(dates)
	return dates, nil
}

// SaveProfile replaces the user's profile file.
func (f *FileStore) SaveProfile(ctx context.Context, profile *reflection.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := f.validateKey(profile.UserID, ""); err != nil {
		return err
	}

	path := f.profilePath(profile.UserID)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return storageErr("mkdir", path, err)
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return storageErr("marshal", path, err)
	}
	return writeAtomic(path, data)
}

// LoadProfile retrieves the user's profile.
func (f *FileStore) LoadProfile(ctx context.Context, userID string) (*reflection.Profile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := f.validateKey(userID, ""); err != nil {
		return nil, err
	}

	path := f.profilePath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("read", path, err)
	}

	var profile reflection.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, storageErr("unmarshal", path, err)
	}
	return &profile, nil
}

// AppendSummary appends a weekly summary line to the user's JSONL collection.
func (f *FileStore) AppendSummary(ctx context.Context, summary *reflection.WeeklySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := f.validateKey(summary.UserID, ""); err != nil {
		return err
	}

	path := f.summariesPath(summary.UserID)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return storageErr("mkdir", path, err)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return storageErr("marshal", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return storageErr("open", path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return storageErr("append", path, err)
	}
	return nil
}

// ListSummaries returns the user's weekly summaries in insertion order.
func (f *FileStore) ListSummaries(ctx context.Context, userID string) ([]*reflection.WeeklySummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := f.validateKey(userID, ""); err != nil {
		return nil, err
	}

	path := f.summariesPath(userID)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*reflection.WeeklySummary{}, nil
		}
		return nil, storageErr("open", path, err)
	}
	defer file.Close()

	var summaries []*reflection.WeeklySummary
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var summary reflection.WeeklySummary
		if err := json.Unmarshal([]byte(line), &summary); err != nil {
			return nil, storageErr("unmarshal", path, err)
		}
		summaries = append(summaries, &summary)
	}
	if err := scanner.Err(); err != nil {
		return nil, storageErr("scan", path, err)
	}
	return summaries, nil
}

// ListUsers returns every user id with a data directory.
func (f *FileStore) ListUsers(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, storageErr("list", f.baseDir, err)
	}

	users := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			users = append(users, entry.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// Close marks the store closed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return storageErr("write", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return storageErr("rename", path, err)
	}
	return nil
}
