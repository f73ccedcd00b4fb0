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

// Package audit records security-relevant pipeline events, such as blocked
// requests and sanitized inputs. It supports both file-based and SQLite
// storage.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	StorageTypeFile   = "file"
	StorageTypeSQLite = "sqlite"
)

// EventType identifies what happened to a request.
type EventType string

const (
	// EventBlocked means the request was rejected before reaching the model.
	EventBlocked EventType = "blocked"
	// EventSanitized means the input was modified before processing.
	EventSanitized EventType = "sanitized"
	// EventConfigRejected means a submitted configuration artifact failed validation.
	EventConfigRejected EventType = "config_rejected"
)

// Event is a single audit record.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Category  string    `json:"category"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds configuration for audit logging.
type Config struct {
	StorageType string `json:"storage_type"` // StorageTypeFile or StorageTypeSQLite
	FilePath    string `json:"file_path"`    // Path for file storage
	DBPath      string `json:"db_path"`      // Path for SQLite database
}

// Logger persists audit events to the configured backend.
type Logger struct {
	config Config
	logger *zap.Logger
	db     *sql.DB
	mu     sync.RWMutex
}

// NewLogger creates an audit logger for the configured backend.
func NewLogger(config Config, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	al := &Logger{
		config: config,
		logger: logger,
	}

	switch config.StorageType {
	case StorageTypeFile:
		if err := al.initFileStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
	case StorageTypeSQLite:
		if err := al.initSQLiteStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	return al, nil
}

func (al *Logger) initFileStorage() error {
	dir := filepath.Dir(al.config.FilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	if _, err := os.Stat(al.config.FilePath); os.IsNotExist(err) {
		file, err := os.Create(al.config.FilePath)
		if err != nil {
			return fmt.Errorf("failed to create audit file: %w", err)
		}
		_ = file.Close()
	}

	return nil
}

func (al *Logger) initSQLiteStorage() error {
	dir := filepath.Dir(al.config.DBPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", al.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			session_id TEXT,
			category TEXT NOT NULL,
			detail TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_session ON audit_events(session_id);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	al.db = db
	return nil
}

// Record persists one audit event.
func (al *Logger) Record(eventType EventType, sessionID, category, detail string) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Category:  category,
		Detail:    detail,
		Timestamp: time.Now(),
	}

	switch al.config.StorageType {
	case StorageTypeFile:
		return al.recordToFile(event)
	case StorageTypeSQLite:
		return al.recordToSQLite(event)
	default:
		return fmt.Errorf("unsupported storage type: %s", al.config.StorageType)
	}
}

func (al *Logger) recordToFile(event Event) error {
	file, err := os.OpenFile(al.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer func() { _ = file.Close() }()

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := file.WriteString(string(jsonData) + "\n"); err != nil {
		return fmt.Errorf("failed to write audit event to file: %w", err)
	}

	al.logger.Info("Audit event logged to file",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("category", event.Category))

	return nil
}

func (al *Logger) recordToSQLite(event Event) error {
	if al.db == nil {
		return fmt.Errorf("SQLite database not initialized")
	}

	insertSQL := `
		INSERT INTO audit_events (id, event_type, session_id, category, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := al.db.Exec(insertSQL,
		event.ID,
		string(event.Type),
		event.SessionID,
		event.Category,
		event.Detail,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event into SQLite: %w", err)
	}

	al.logger.Info("Audit event logged to SQLite",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("category", event.Category))

	return nil
}

// RecentEvents retrieves the most recent audit events (SQLite only).
func (al *Logger) RecentEvents(limit int) ([]Event, error) {
	if al.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("RecentEvents only supported for SQLite storage")
	}
	if al.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	al.mu.RLock()
	defer al.mu.RUnlock()

	query := `
		SELECT id, event_type, session_id, category, detail, timestamp
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := al.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var event Event
		var eventType string
		var sessionID, detail sql.NullString

		err := rows.Scan(
			&event.ID,
			&eventType,
			&sessionID,
			&event.Category,
			&detail,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event row: %w", err)
		}

		event.Type = EventType(eventType)
		if sessionID.Valid {
			event.SessionID = sessionID.String
		}
		if detail.Valid {
			event.Detail = detail.String
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit event rows: %w", err)
	}

	return events, nil
}

// EventStats returns counts per event type (SQLite only).
func (al *Logger) EventStats() (map[string]int, error) {
	if al.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("EventStats only supported for SQLite storage")
	}
	if al.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	al.mu.RLock()
	defer al.mu.RUnlock()

	query := `
		SELECT event_type, COUNT(*) as count
		FROM audit_events
		GROUP BY event_type
	`

	rows, err := al.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int

		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan audit stats row: %w", err)
		}

		stats[eventType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit stats rows: %w", err)
	}

	return stats, nil
}

// Close releases any open resources.
func (al *Logger) Close() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.db != nil {
		return al.db.Close()
	}

	return nil
}
