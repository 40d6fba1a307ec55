package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/dirtree"
)

// Directory is one node of the document tree. Path is a cached derived
// field computed from the parent chain at creation time; it is not
// recomputed on rename.
type Directory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Path      string    `json:"path"`
	IsPublic  bool      `json:"is_public"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const directoryColumns = "id, name, parent_id, path, is_public, created_by, created_at, updated_at"

func scanDirectory(scanner interface{ Scan(...interface{}) error }) (*Directory, error) {
	var d Directory
	var parentID sql.NullInt64
	err := scanner.Scan(&d.ID, &d.Name, &parentID, &d.Path, &d.IsPublic,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ParentID = scanNullableInt64(parentID)
	return &d, nil
}

// CreateDirectory inserts a new directory under the given parent (nil for
// root), computing the materialized path from the parent's cached path.
// A non-nil unresolvable parent maps to NotFound.
func (s *Store) CreateDirectory(ctx context.Context, name string, parentID *int64, isPublic bool, createdBy int64) (*Directory, error) {
	path := name
	if parentID != nil {
		parent, err := s.GetDirectory(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		path = dirtree.ChildPath(parent.Path, name)
	}

	d := &Directory{
		Name:      name,
		ParentID:  parentID,
		Path:      path,
		IsPublic:  isPublic,
		CreatedBy: createdBy,
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO directories (name, parent_id, path, is_public, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, d.Name, nullableInt64(d.ParentID), d.Path, d.IsPublic, d.CreatedBy, now, now).Scan(&d.ID)
	if err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

// GetDirectory retrieves a directory by id.
func (s *Store) GetDirectory(ctx context.Context, id int64) (*Directory, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+directoryColumns+" FROM directories WHERE id = $1", id)
	d, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("directory not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get directory: %w", err)
	}
	return d, nil
}

// ListDirectories returns every directory row. The caller builds a
// dirtree.Index from the result; the snapshot is re-read per request.
func (s *Store) ListDirectories(ctx context.Context) ([]*Directory, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+directoryColumns+" FROM directories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list directories: %w", err)
	}
	defer rows.Close()

	var dirs []*Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// ListChildDirectories returns the direct children of parentID, or the
// roots when parentID is nil.
func (s *Store) ListChildDirectories(ctx context.Context, parentID *int64) ([]*Directory, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+directoryColumns+" FROM directories WHERE parent_id IS NULL ORDER BY name")
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT "+directoryColumns+" FROM directories WHERE parent_id = $1 ORDER BY name", *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list child directories: %w", err)
	}
	defer rows.Close()

	var dirs []*Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// TreeNodes loads the directory snapshot in the shape the tree index wants.
func (s *Store) TreeNodes(ctx context.Context) ([]dirtree.Node, error) {
	dirs, err := s.ListDirectories(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]dirtree.Node, len(dirs))
	for i, d := range dirs {
		nodes[i] = dirtree.Node{
			ID:       d.ID,
			ParentID: d.ParentID,
			Name:     d.Name,
			Path:     d.Path,
			IsPublic: d.IsPublic,
		}
	}
	return nodes, nil
}

// RenameDirectory updates a directory's name and public flag. The cached
// path of the directory and its descendants is intentionally left stale.
func (s *Store) RenameDirectory(ctx context.Context, id int64, name string, isPublic bool) (*Directory, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE directories SET name = $1, is_public = $2, updated_at = $3 WHERE id = $4
	`, name, isPublic, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("rename directory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("directory not found")
	}
	return s.GetDirectory(ctx, id)
}

// DeleteDirectoryCascade removes the directory, every descendant
// directory, all contained files, and the grant edges pointing at them,
// in one transaction. descendantIDs comes from the tree index; rows are
// deleted bottom-up. It returns the blob keys of the deleted files so the
// caller can clean up the blob store after commit.
func (s *Store) DeleteDirectoryCascade(ctx context.Context, id int64, descendantIDs []int64) ([]string, error) {
	// Target first, descendants after; the directory rows are deleted in
	// reverse so children go before their parents.
	all := append([]int64{id}, descendantIDs...)

	var blobKeys []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, dirID := range all {
			rows, err := tx.QueryContext(ctx,
				"SELECT blob_key FROM files WHERE directory_id = $1", dirID)
			if err != nil {
				return fmt.Errorf("list files for cascade: %w", err)
			}
			for rows.Next() {
				var key string
				if err := rows.Scan(&key); err != nil {
					rows.Close()
					return fmt.Errorf("scan blob key: %w", err)
				}
				blobKeys = append(blobKeys, key)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()

			for _, q := range []string{
				"DELETE FROM files WHERE directory_id = $1",
				"DELETE FROM user_directory_permissions WHERE directory_id = $1",
				"DELETE FROM proposal_permissions WHERE directory_id = $1",
			} {
				if _, err := tx.ExecContext(ctx, q, dirID); err != nil {
					return fmt.Errorf("cascade delete directory %d: %w", dirID, err)
				}
			}
		}

		// Children before parents: reverse of the target-last ordering.
		for i := len(all) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM directories WHERE id = $1", all[i]); err != nil {
				return fmt.Errorf("delete directory %d: %w", all[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobKeys, nil
}

// GrantedUserIDs returns the users holding a direct grant on a directory.
func (s *Store) GrantedUserIDs(ctx context.Context, directoryID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		"SELECT user_id FROM user_directory_permissions WHERE directory_id = $1 ORDER BY user_id",
		directoryID)
}
