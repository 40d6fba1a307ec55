// Package store implements the typed entity store over database/sql:
// users, roles, groups, directories, files, proposals, proposal
// permissions, tokens, and the relationship edges between them.
//
// Queries use $1-style placeholders, which both lib/pq (production) and
// go-sqlite3 (tests) accept. Mutations are atomic per call; the only
// multi-row transaction is the cascade directory delete.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// Store provides typed access to the entity tables.
type Store struct {
	db *sql.DB
}

// New creates a store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Status is a user lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus validates a user status value.
func ParseStatus(v string) (Status, bool) {
	switch Status(v) {
	case StatusPending, StatusActive, StatusInactive:
		return Status(v), true
	}
	return "", false
}

// ProposalStatus is a proposal lifecycle state.
type ProposalStatus string

const (
	ProposalDraft   ProposalStatus = "draft"
	ProposalActive  ProposalStatus = "active"
	ProposalExpired ProposalStatus = "expired"
	ProposalClosed  ProposalStatus = "closed"
)

// ParseProposalStatus validates a proposal status value.
func ParseProposalStatus(v string) (ProposalStatus, bool) {
	switch ProposalStatus(v) {
	case ProposalDraft, ProposalActive, ProposalExpired, ProposalClosed:
		return ProposalStatus(v), true
	}
	return "", false
}

// isUniqueViolation detects a uniqueness-constraint failure without tying
// the package to a specific driver. lib/pq reports "duplicate key value
// violates unique constraint"; go-sqlite3 reports "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// conflictOr maps a uniqueness failure to a Conflict error, otherwise wraps.
func conflictOr(err error, conflictMsg, wrapMsg string) error {
	if isUniqueViolation(err) {
		return apperrors.Conflict(conflictMsg)
	}
	return fmt.Errorf("%s: %w", wrapMsg, err)
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nullableTime converts a *time.Time for sql binding.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// nullableInt64 converts a *int64 for sql binding.
func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func scanNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func scanNullableInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
