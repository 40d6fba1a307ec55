package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// DefaultGroupName is the reserved group every user belongs to. It is
// provisioned at startup, never deletable, and members are never
// detachable from it.
const DefaultGroupName = "default_group"

// Group is a work-group of users.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateGroup inserts a group. Name uniqueness maps to Conflict.
func (s *Store) CreateGroup(ctx context.Context, g *Group) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO groups (name, display_name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, g.Name, g.DisplayName, g.Description, now, now).Scan(&g.ID)
	if err != nil {
		return conflictOr(err, "group name already exists", "create group")
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

// GetGroup retrieves a group by id.
func (s *Store) GetGroup(ctx context.Context, id int64) (*Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, description, created_at, updated_at
		FROM groups WHERE id = $1
	`, id)
	return scanGroup(row)
}

// GetGroupByName retrieves a group by its unique name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, description, created_at, updated_at
		FROM groups WHERE name = $1
	`, name)
	return scanGroup(row)
}

func scanGroup(row *sql.Row) (*Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.DisplayName, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// ListGroups returns all groups with member counts.
func (s *Store) ListGroups(ctx context.Context) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.display_name, g.description, g.created_at, g.updated_at,
		       COUNT(ug.user_id)
		FROM groups g
		LEFT JOIN user_groups ug ON ug.group_id = g.id
		GROUP BY g.id, g.name, g.display_name, g.description, g.created_at, g.updated_at
		ORDER BY g.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.DisplayName, &g.Description,
			&g.CreatedAt, &g.UpdatedAt, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// UpdateGroup updates a group's name, display name and description.
func (s *Store) UpdateGroup(ctx context.Context, g *Group) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE groups SET name = $1, display_name = $2, description = $3, updated_at = $4
		WHERE id = $5
	`, g.Name, g.DisplayName, g.Description, now, g.ID)
	if err != nil {
		return conflictOr(err, "group name already exists", "update group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("group not found")
	}
	g.UpdatedAt = now
	return nil
}

// DeleteGroup removes a group and its membership edges. The reserved
// default group is never deletable.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if g.Name == DefaultGroupName {
		return apperrors.Conflict("cannot delete the default group")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM user_groups WHERE group_id = $1", id); err != nil {
			return fmt.Errorf("delete group memberships: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM groups WHERE id = $1", id); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
}

// AddUserToGroup attaches a user to a group. Duplicate membership maps to
// Conflict so the caller can report "already a member".
func (s *Store) AddUserToGroup(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_groups (user_id, group_id, created_at)
		VALUES ($1, $2, $3)
	`, userID, groupID, time.Now().UTC())
	if err != nil {
		return conflictOr(err, "user is already in this group", "add user to group")
	}
	return nil
}

// RemoveUserFromGroup detaches a user from a group. Detaching from the
// default group is always a Conflict.
func (s *Store) RemoveUserFromGroup(ctx context.Context, groupID, userID int64) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.Name == DefaultGroupName {
		return apperrors.Conflict("cannot remove users from the default group")
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2", userID, groupID)
	if err != nil {
		return fmt.Errorf("remove user from group: %w", err)
	}
	return nil
}

// SetUserGroups replaces the user's memberships with the given set while
// always preserving default-group membership.
func (s *Store) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	def, err := s.GetGroupByName(ctx, DefaultGroupName)
	if err != nil {
		return err
	}
	want := map[int64]struct{}{def.ID: {}}
	for _, id := range groupIDs {
		want[id] = struct{}{}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM user_groups WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("clear group memberships: %w", err)
		}
		now := time.Now().UTC()
		for id := range want {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_groups (user_id, group_id, created_at)
				VALUES ($1, $2, $3)
			`, userID, id, now); err != nil {
				return fmt.Errorf("add group %d: %w", id, err)
			}
		}
		return nil
	})
}

// GroupMemberIDs returns the ids of a group's members.
func (s *Store) GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		"SELECT user_id FROM user_groups WHERE group_id = $1 ORDER BY user_id", groupID)
}

// EnsureDefaultGroup provisions the reserved default group if missing.
func (s *Store) EnsureDefaultGroup(ctx context.Context) (*Group, error) {
	g, err := s.GetGroupByName(ctx, DefaultGroupName)
	if err == nil {
		return g, nil
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}
	g = &Group{
		Name:        DefaultGroupName,
		DisplayName: "Default Group",
		Description: "All registered users are members of this group.",
	}
	if err := s.CreateGroup(ctx, g); err != nil {
		// Lost a provisioning race; re-read the winner's row.
		if apperrors.Is(err, apperrors.KindConflict) {
			return s.GetGroupByName(ctx, DefaultGroupName)
		}
		return nil, err
	}
	return g, nil
}
