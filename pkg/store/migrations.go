package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema history for PostgreSQL. Tests build
// an equivalent SQLite schema in testhelpers.go.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					role VARCHAR(50) NOT NULL DEFAULT 'member',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
				CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
			`,
		},
		{
			Version:     2,
			Description: "Create groups and user_groups tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_groups (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id),
					group_id BIGINT NOT NULL REFERENCES groups(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, group_id)
				);
				CREATE INDEX IF NOT EXISTS idx_user_groups_user ON user_groups(user_id);
				CREATE INDEX IF NOT EXISTS idx_user_groups_group ON user_groups(group_id);
			`,
		},
		{
			Version:     3,
			Description: "Create directories and user_directory_permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS directories (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					parent_id BIGINT REFERENCES directories(id),
					path TEXT NOT NULL,
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_directories_parent ON directories(parent_id);

				CREATE TABLE IF NOT EXISTS user_directory_permissions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id),
					directory_id BIGINT NOT NULL REFERENCES directories(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, directory_id)
				);
				CREATE INDEX IF NOT EXISTS idx_udp_user ON user_directory_permissions(user_id);
				CREATE INDEX IF NOT EXISTS idx_udp_directory ON user_directory_permissions(directory_id);
			`,
		},
		{
			Version:     4,
			Description: "Create files table",
			SQL: `
				CREATE TABLE IF NOT EXISTS files (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					original_name VARCHAR(255) NOT NULL,
					directory_id BIGINT NOT NULL REFERENCES directories(id),
					uploaded_by BIGINT NOT NULL REFERENCES users(id),
					blob_key VARCHAR(512) NOT NULL,
					mime_type VARCHAR(255) NOT NULL DEFAULT 'application/octet-stream',
					size BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_files_directory ON files(directory_id);
			`,
		},
		{
			Version:     5,
			Description: "Create proposals and proposal_permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS proposals (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_by BIGINT NOT NULL REFERENCES users(id),
					status VARCHAR(20) NOT NULL DEFAULT 'draft',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS proposal_permissions (
					id BIGSERIAL PRIMARY KEY,
					proposal_id BIGINT NOT NULL REFERENCES proposals(id),
					user_id BIGINT NOT NULL REFERENCES users(id),
					directory_id BIGINT NOT NULL REFERENCES directories(id),
					expires_at TIMESTAMP,
					can_upload BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_pp_user_directory ON proposal_permissions(user_id, directory_id);
				CREATE INDEX IF NOT EXISTS idx_pp_proposal ON proposal_permissions(proposal_id);
			`,
		},
		{
			Version:     6,
			Description: "Create tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id),
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(20) NOT NULL,
					expires_at TIMESTAMP,
					last_used_at TIMESTAMP,
					revoked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(token_hash);
				CREATE INDEX IF NOT EXISTS idx_tokens_user ON tokens(user_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations in order, each in its own
// transaction, recording applied versions in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
