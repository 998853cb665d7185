// ABOUTME: Database schema definitions for principals, sessions and contact-source tokens
// ABOUTME: Handles SQLite and PostgreSQL table creation
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	crm_client_id TEXT NOT NULL,
	crm_client_secret TEXT NOT NULL,
	crm_redirect_uri TEXT NOT NULL,
	crm_base_url TEXT NOT NULL,
	crm_auth_token TEXT NOT NULL,
	crm_refresh_token TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

CREATE TABLE IF NOT EXISTS google_tokens (
	user_id TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	crm_client_id TEXT NOT NULL,
	crm_client_secret TEXT NOT NULL,
	crm_redirect_uri TEXT NOT NULL,
	crm_base_url TEXT NOT NULL,
	crm_auth_token TEXT NOT NULL,
	crm_refresh_token TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

CREATE TABLE IF NOT EXISTS google_tokens (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	token JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
