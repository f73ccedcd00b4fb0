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

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewLogger_SQLiteStorage(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tempDir := t.TempDir()

	config := Config{
		StorageType: StorageTypeSQLite,
		DBPath:      filepath.Join(tempDir, "test_audit.db"),
	}

	auditLogger, err := NewLogger(config, logger)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer func() { _ = auditLogger.Close() }()

	if _, err := os.Stat(config.DBPath); os.IsNotExist(err) {
		t.Fatalf("Audit database was not created: %v", err)
	}
}

func TestNewLogger_UnsupportedStorage(t *testing.T) {
	logger := zaptest.NewLogger(t)

	config := Config{
		StorageType: "unsupported",
	}

	if _, err := NewLogger(config, logger); err == nil {
		t.Fatalf("Expected error for unsupported storage type")
	}
}

func TestRecordAndRetrieveEvents(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tempDir := t.TempDir()

	auditLogger, err := NewLogger(Config{
		StorageType: StorageTypeSQLite,
		DBPath:      filepath.Join(tempDir, "test_audit.db"),
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer func() { _ = auditLogger.Close() }()

	if err := auditLogger.Record(EventBlocked, "session-1", "command_injection", "rm after semicolon"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := auditLogger.Record(EventSanitized, "session-1", "encoding", "invalid UTF-8 replaced"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := auditLogger.Record(EventBlocked, "session-2", "sql_injection", "drop table"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := auditLogger.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	seen := make(map[string]bool)
	for _, event := range events {
		if event.ID == "" {
			t.Error("event missing ID")
		}
		if seen[event.ID] {
			t.Errorf("duplicate event ID %s", event.ID)
		}
		seen[event.ID] = true
		if event.Timestamp.IsZero() {
			t.Error("event missing timestamp")
		}
	}

	stats, err := auditLogger.EventStats()
	if err != nil {
		t.Fatalf("EventStats: %v", err)
	}
	if stats[string(EventBlocked)] != 2 {
		t.Errorf("blocked count = %d, want 2", stats[string(EventBlocked)])
	}
	if stats[string(EventSanitized)] != 1 {
		t.Errorf("sanitized count = %d, want 1", stats[string(EventSanitized)])
	}
}

func TestFileStorageAppendsJSONLines(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tempDir := t.TempDir()

	config := Config{
		StorageType: StorageTypeFile,
		FilePath:    filepath.Join(tempDir, "audit.jsonl"),
	}

	auditLogger, err := NewLogger(config, logger)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer func() { _ = auditLogger.Close() }()

	if err := auditLogger.Record(EventConfigRejected, "session-3", "structure", "vm memory below minimum"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := auditLogger.Record(EventBlocked, "session-3", "path_traversal", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	file, err := os.Open(config.FilePath)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer func() { _ = file.Close() }()

	var lines int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if event.Type == "" || event.Category == "" {
			t.Errorf("line %d missing fields: %+v", lines+1, event)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("got %d lines, want 2", lines)
	}

	if _, err := auditLogger.RecentEvents(10); err == nil {
		t.Error("RecentEvents should fail for file storage")
	}
}
