package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// Proposal groups time-bounded elevated grants under a title.
type Proposal struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	CreatedBy   int64                 `json:"created_by"`
	Status      ProposalStatus        `json:"status"`
	Permissions []*ProposalPermission `json:"permissions,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ProposalPermission grants a user upload rights into one directory until
// ExpiresAt. Expiry is evaluated lazily at use time; there is no sweeper,
// so consumers must never trust a cached "is granted" answer.
type ProposalPermission struct {
	ID          int64      `json:"id"`
	ProposalID  int64      `json:"proposal_id"`
	UserID      int64      `json:"user_id"`
	DirectoryID int64      `json:"directory_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CanUpload   bool       `json:"can_upload"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the grant is past its expiry at time now.
func (p *ProposalPermission) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// CreateProposal inserts a proposal and any initial permission grants.
func (s *Store) CreateProposal(ctx context.Context, p *Proposal) error {
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO proposals (title, description, created_by, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, p.Title, p.Description, p.CreatedBy, p.Status, now, now).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("create proposal: %w", err)
		}
		for _, perm := range p.Permissions {
			perm.ProposalID = p.ID
			if err := insertProposalPermission(ctx, tx, perm, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProposal retrieves a proposal with its permission grants.
func (s *Store) GetProposal(ctx context.Context, id int64) (*Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, created_by, status, created_at, updated_at
		FROM proposals WHERE id = $1
	`, id)
	var p Proposal
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.CreatedBy, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("proposal not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}

	perms, err := s.ListProposalPermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Permissions = perms
	return &p, nil
}

// ListProposals returns all proposals, newest first, without permission
// hydration.
func (s *Store) ListProposals(ctx context.Context) ([]*Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_by, status, created_at, updated_at
		FROM proposals ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*Proposal
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CreatedBy, &p.Status,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, &p)
	}
	return proposals, rows.Err()
}

// UpdateProposal updates title, description and status.
func (s *Store) UpdateProposal(ctx context.Context, p *Proposal) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE proposals SET title = $1, description = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, p.Title, p.Description, p.Status, now, p.ID)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("proposal not found")
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProposal removes a proposal and cascades its permission grants.
func (s *Store) DeleteProposal(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM proposal_permissions WHERE proposal_id = $1", id); err != nil {
			return fmt.Errorf("delete proposal permissions: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM proposals WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("delete proposal: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound("proposal not found")
		}
		return nil
	})
}

// AddProposalPermission attaches a time-bounded upload grant to a proposal.
func (s *Store) AddProposalPermission(ctx context.Context, perm *ProposalPermission) error {
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertProposalPermission(ctx, tx, perm, now)
	})
}

func insertProposalPermission(ctx context.Context, tx *sql.Tx, perm *ProposalPermission, now time.Time) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO proposal_permissions (proposal_id, user_id, directory_id, expires_at, can_upload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, perm.ProposalID, perm.UserID, perm.DirectoryID,
		nullableTime(perm.ExpiresAt), perm.CanUpload, now).Scan(&perm.ID)
	if err != nil {
		return fmt.Errorf("add proposal permission: %w", err)
	}
	perm.CreatedAt = now
	return nil
}

// ListProposalPermissions returns the grants attached to a proposal.
func (s *Store) ListProposalPermissions(ctx context.Context, proposalID int64) ([]*ProposalPermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, user_id, directory_id, expires_at, can_upload, created_at
		FROM proposal_permissions WHERE proposal_id = $1 ORDER BY id
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list proposal permissions: %w", err)
	}
	defer rows.Close()
	return scanProposalPermissions(rows)
}

// UploadGrantsFor returns every upload grant a user holds on a directory,
// regardless of expiry. The resolver applies the lazy expiry check.
func (s *Store) UploadGrantsFor(ctx context.Context, userID, directoryID int64) ([]*ProposalPermission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, user_id, directory_id, expires_at, can_upload, created_at
		FROM proposal_permissions
		WHERE user_id = $1 AND directory_id = $2 AND can_upload
		ORDER BY id
	`, userID, directoryID)
	if err != nil {
		return nil, fmt.Errorf("query upload grants: %w", err)
	}
	defer rows.Close()
	return scanProposalPermissions(rows)
}

func scanProposalPermissions(rows *sql.Rows) ([]*ProposalPermission, error) {
	var perms []*ProposalPermission
	for rows.Next() {
		var perm ProposalPermission
		var expiresAt sql.NullTime
		if err := rows.Scan(&perm.ID, &perm.ProposalID, &perm.UserID, &perm.DirectoryID,
			&expiresAt, &perm.CanUpload, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal permission: %w", err)
		}
		perm.ExpiresAt = scanNullableTime(expiresAt)
		perms = append(perms, &perm)
	}
	return perms, rows.Err()
}
