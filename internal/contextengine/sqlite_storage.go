// Copyright 2024 Infra Advisor Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package contextengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage persists conversation contexts as JSON rows in a local
// SQLite database, surviving process restarts. last_updated is duplicated
// into its own column so the inactivity scan needs no JSON decoding.
type SQLiteStorage struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversation_contexts (
	session_id   TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	last_updated TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contexts_last_updated
	ON conversation_contexts (last_updated);
`

// NewSQLiteStorage opens (and if needed creates) the context database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite context storage requires a database path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open context database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize context schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Get retrieves a context by session ID.
func (s *SQLiteStorage) Get(ctx context.Context, sessionID string) (*ConversationContext, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM conversation_contexts WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context %s: %w", sessionID, err)
	}

	var conversation ConversationContext
	if err := json.Unmarshal([]byte(data), &conversation); err != nil {
		return nil, fmt.Errorf("failed to decode context %s: %w", sessionID, err)
	}
	return &conversation, nil
}

// Set stores or replaces a context.
func (s *SQLiteStorage) Set(ctx context.Context, conversation *ConversationContext) error {
	data, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to encode context %s: %w", conversation.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_contexts (session_id, data, last_updated)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated`,
		conversation.SessionID, string(data), conversation.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("failed to store context %s: %w", conversation.SessionID, err)
	}
	return nil
}

// Delete removes a context; absent sessions are a no-op.
func (s *SQLiteStorage) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_contexts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete context %s: %w", sessionID, err)
	}
	return nil
}

// ListInactive returns session IDs last updated before the cutoff.
func (s *SQLiteStorage) ListInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM conversation_contexts WHERE last_updated < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to scan inactive contexts: %w", err)
	}
	defer rows.Close()

	var inactive []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session ID: %w", err)
		}
		inactive = append(inactive, sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inactive contexts: %w", err)
	}
	return inactive, nil
}

// Count returns the number of stored contexts.
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_contexts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contexts: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
