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
	"errors"
	"fmt"
	"time"
)

// ErrContextNotFound is returned by Storage.Get for unknown sessions. The
// engine treats it as the signal to lazily create the context.
var ErrContextNotFound = errors.New("conversation context not found")

// StorageType selects the context storage backend.
type StorageType string

const (
	// MemoryStorageType keeps contexts in process memory.
	MemoryStorageType StorageType = "memory"
	// SQLiteStorageType persists contexts in a local SQLite database.
	SQLiteStorageType StorageType = "sqlite"
)

// Storage is the pluggable persistence boundary for conversation contexts.
// Implementations must be safe for concurrent use; the engine already
// serializes operations per session but different sessions call in parallel.
type Storage interface {
	// Get retrieves a context by session ID, ErrContextNotFound when absent.
	Get(ctx context.Context, sessionID string) (*ConversationContext, error)
	// Set stores or replaces a context.
	Set(ctx context.Context, conversation *ConversationContext) error
	// Delete removes a context. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
	// ListInactive returns session IDs whose last update is before the cutoff.
	ListInactive(ctx context.Context, cutoff time.Time) ([]string, error)
	// Count returns the number of stored contexts.
	Count(ctx context.Context) (int, error)
	// Close releases backend resources.
	Close() error
}

// NewStorage constructs the configured backend.
func NewStorage(storageType StorageType, sqlitePath string) (Storage, error) {
	switch storageType {
	case MemoryStorageType:
		return NewMemoryStorage(), nil
	case SQLiteStorageType:
		return NewSQLiteStorage(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported context storage type: %s", storageType)
	}
}
