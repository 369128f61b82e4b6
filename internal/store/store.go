// Package store provides durable keyed persistence for reflection records,
// founder profiles, and weekly summaries. Records are whole-document
// read/replace under a composite (user, date) key; there are no transactions
// and no queries beyond the per-user date index.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

// Common errors for storage operations.
var (
	// ErrNotFound is returned when no record exists under the key.
	ErrNotFound = errors.New("record not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// StorageError wraps a persistence failure, including serialization failures
// of corrupted records. Callers log it and continue; it is never fatal.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

// Store abstracts persistence for the reflection service.
// Implementations must be safe for concurrent use. Concurrent writers to the
// same key are not coordinated: last write wins.
type Store interface {
	// SaveReflection replaces the record for (rec.UserID, rec.Date).
	SaveReflection(ctx context.Context, rec *reflection.Record) error

	// LoadReflection retrieves the record for (userID, date).
	// Returns ErrNotFound if no record exists.
	LoadReflection(ctx context.Context, userID, date string) (*reflection.Record, error)

	// ListReflectionDates returns all dates with a record for the user,
	// ascending.
	ListReflectionDates(ctx context.Context, userID string) ([]string, error)

	// SaveProfile replaces the user's profile.
	SaveProfile(ctx context.Context, profile *reflection.Profile) error

	// LoadProfile retrieves the user's profile.
	// Returns ErrNotFound if none exists.
	LoadProfile(ctx context.Context, userID string) (*reflection.Profile, error)

	// AppendSummary adds a weekly summary to the user's collection.
	AppendSummary(ctx context.Context, summary *reflection.WeeklySummary) error

	// ListSummaries returns the user's weekly summaries in insertion order.
	ListSummaries(ctx context.Context, userID string) ([]*reflection.WeeklySummary, error)

	// ListUsers returns every user id that has stored at least one record.
	ListUsers(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
