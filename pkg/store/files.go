package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// File is the metadata row for an uploaded document. The binary lives in
// the blob store under BlobKey; Name is the collision-avoided stored name
// and OriginalName the display name chosen by the uploader.
type File struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	DirectoryID  int64     `json:"directory_id"`
	UploadedBy   int64     `json:"uploaded_by"`
	BlobKey      string    `json:"-"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const fileColumns = "id, name, original_name, directory_id, uploaded_by, blob_key, mime_type, size, created_at, updated_at"

func scanFile(scanner interface{ Scan(...interface{}) error }) (*File, error) {
	var f File
	err := scanner.Scan(&f.ID, &f.Name, &f.OriginalName, &f.DirectoryID, &f.UploadedBy,
		&f.BlobKey, &f.MimeType, &f.Size, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFile inserts a file metadata row. The blob must already be
// written; a failure here leaves an orphaned blob, which is accepted.
func (s *Store) CreateFile(ctx context.Context, f *File) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO files (name, original_name, directory_id, uploaded_by, blob_key, mime_type, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, f.Name, f.OriginalName, f.DirectoryID, f.UploadedBy, f.BlobKey,
		f.MimeType, f.Size, now, now).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// GetFile retrieves file metadata by id.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = $1", id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// ListFilesByDirectory returns the files stored in a directory.
func (s *Store) ListFilesByDirectory(ctx context.Context, directoryID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE directory_id = $1 ORDER BY id", directoryID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// RenameFile updates the display name of a file.
func (s *Store) RenameFile(ctx context.Context, id int64, originalName string) (*File, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE files SET original_name = $1, updated_at = $2 WHERE id = $3",
		originalName, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("file not found")
	}
	return s.GetFile(ctx, id)
}

// DeleteFile removes a file metadata row. The caller deletes the blob
// first and only calls this once the blob is gone, so a blob-store failure
// never leaves metadata pointing at nothing.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("file not found")
	}
	return nil
}
