package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/rbac"
)

// User is a principal record. PasswordHash is owned by the auth package
// and never serialized.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       Status    `json:"status"`
	Role         rbac.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const userColumns = "id, name, email, password_hash, status, role, created_at, updated_at"

func scanUser(scanner interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Status, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. Email uniqueness maps to Conflict.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, status, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Name, u.Email, u.PasswordHash, u.Status, u.Role, now, now).Scan(&u.ID)
	if err != nil {
		return conflictOr(err, "email already registered", "create user")
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
}

// ListNonAdminUsers returns users whose role is neither admin nor
// super_admin, newest first. Used for the admin-scoped user listing.
func (s *Store) ListNonAdminUsers(ctx context.Context) ([]*User, error) {
	return s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role NOT IN ($1, $2)
		ORDER BY created_at DESC, id DESC
	`, rbac.RoleSuperAdmin, rbac.RoleAdmin)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser updates name, email, status and role. Email uniqueness maps
// to Conflict.
func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = $1, email = $2, status = $3, role = $4, updated_at = $5
		WHERE id = $6
	`, u.Name, u.Email, u.Status, u.Role, now, u.ID)
	if err != nil {
		return conflictOr(err, "email already registered", "update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("user not found")
	}
	u.UpdatedAt = now
	return nil
}

// UpdateUserStatus transitions a user's lifecycle state.
func (s *Store) UpdateUserStatus(ctx context.Context, id int64, status Status) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3",
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// DeleteUser removes a user and cascades its grant edges, proposal
// permissions and tokens in one transaction.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM user_groups WHERE user_id = $1",
			"DELETE FROM user_directory_permissions WHERE user_id = $1",
			"DELETE FROM proposal_permissions WHERE user_id = $1",
			"DELETE FROM tokens WHERE user_id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete user edges: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound("user not found")
		}
		return nil
	})
}

// GroupIDsOf returns the ids of the groups the user belongs to.
func (s *Store) GroupIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		"SELECT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id", userID)
}

// DirectoryIDsOf returns the ids of the directories directly granted to
// the user.
func (s *Store) DirectoryIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		"SELECT directory_id FROM user_directory_permissions WHERE user_id = $1 ORDER BY directory_id", userID)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GrantDirectory attaches a direct directory grant to a user. Attaching an
// existing grant is a no-op.
func (s *Store) GrantDirectory(ctx context.Context, userID, directoryID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_directory_permissions (user_id, directory_id, created_at)
		VALUES ($1, $2, $3)
	`, userID, directoryID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("grant directory: %w", err)
	}
	return nil
}

// RevokeDirectory removes a direct directory grant from a user.
func (s *Store) RevokeDirectory(ctx context.Context, userID, directoryID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_directory_permissions WHERE user_id = $1 AND directory_id = $2",
		userID, directoryID)
	if err != nil {
		return fmt.Errorf("revoke directory: %w", err)
	}
	return nil
}

// SetUserDirectories replaces the user's direct directory grants with the
// given set, atomically.
func (s *Store) SetUserDirectories(ctx context.Context, userID int64, directoryIDs []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM user_directory_permissions WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("clear directory grants: %w", err)
		}
		now := time.Now().UTC()
		for _, dirID := range directoryIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_directory_permissions (user_id, directory_id, created_at)
				VALUES ($1, $2, $3)
			`, userID, dirID, now); err != nil {
				return fmt.Errorf("grant directory %d: %w", dirID, err)
			}
		}
		return nil
	})
}
