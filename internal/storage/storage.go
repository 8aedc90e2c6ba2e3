// Package storage persists the decision audit trail written by the hooks.
//
// Auditing is optional and strictly best effort: a hook records its decision
// after making it, and a storage failure never changes that decision.
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rlmlabs/rlm/internal/policy"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Component names recorded in the audit trail.
const (
	ComponentPrePush    = "pre-push"
	ComponentPreToolUse = "pre-tool-use"
)

// Record is one audited decision.
type Record struct {
	// ID is a random UUID.
	ID string `json:"id" yaml:"id"`

	// Time is when the decision was made, in UTC.
	Time time.Time `json:"time" yaml:"time"`

	// Component is the hook that decided (pre-push, pre-tool-use).
	Component string `json:"component" yaml:"component"`

	// Outcome is allowed or blocked.
	Outcome policy.Outcome `json:"outcome" yaml:"outcome"`

	// Subject is what was evaluated: a branch list or a command.
	Subject string `json:"subject" yaml:"subject"`

	// Actor is the agent identity or the permission level.
	Actor string `json:"actor" yaml:"actor"`

	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// NewRecord stamps a decision with a fresh ID and the current time.
func NewRecord(component, subject, actor string, d policy.Decision) Record {
	return Record{
		ID:        uuid.New().String(),
		Time:      time.Now().UTC(),
		Component: component,
		Outcome:   d.Outcome,
		Subject:   subject,
		Actor:     actor,
		Reason:    d.Reason,
		Pattern:   d.Pattern,
	}
}

// Storage is the interface for persisting audit records.
type Storage interface {
	// Append records a single decision.
	Append(rec Record) error

	// List returns up to limit records, newest first. limit <= 0 means all.
	List(limit int) ([]Record, error)

	// Close releases any resources.
	Close() error
}

// Open returns the store for backend at path. The "none" backend, and an
// empty backend name, return a store that discards everything.
func Open(backend, path string) (Storage, error) {
	switch backend {
	case "", BackendNone:
		return NopStorage{}, nil
	case BackendJSONL:
		if path == "" {
			return nil, ErrPathRequired
		}
		return NewFileStorage(path), nil
	case BackendSQLite:
		if path == "" {
			return nil, ErrPathRequired
		}
		s, err := NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q (use none, jsonl or sqlite)", ErrUnknownBackend, backend)
	}
}

// DefaultPath returns the audit file for backend under dir.
func DefaultPath(backend, dir string) string {
	switch backend {
	case BackendJSONL:
		return filepath.Join(dir, "audit.jsonl")
	case BackendSQLite:
		return filepath.Join(dir, "audit.db")
	default:
		return ""
	}
}

// NopStorage discards records.
type NopStorage struct{}

func (NopStorage) Append(Record) error        { return nil }
func (NopStorage) List(int) ([]Record, error) { return nil, nil }
func (NopStorage) Close() error               { return nil }
