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
	"sync"
	"time"
)

// MemoryStorage keeps conversation contexts in process memory. Copies cross
// the boundary in both directions so callers can never alias stored state.
type MemoryStorage struct {
	contexts map[string]*ConversationContext
	mutex    sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory context store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		contexts: make(map[string]*ConversationContext),
	}
}

// Get retrieves a context copy by session ID.
func (m *MemoryStorage) Get(_ context.Context, sessionID string) (*ConversationContext, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	conversation, exists := m.contexts[sessionID]
	if !exists {
		return nil, ErrContextNotFound
	}
	return conversation.Clone(), nil
}

// Set stores a copy of the context.
func (m *MemoryStorage) Set(_ context.Context, conversation *ConversationContext) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.contexts[conversation.SessionID] = conversation.Clone()
	return nil
}

// Delete removes a context; absent sessions are a no-op.
func (m *MemoryStorage) Delete(_ context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.contexts, sessionID)
	return nil
}

// ListInactive returns session IDs last updated before the cutoff.
func (m *MemoryStorage) ListInactive(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var inactive []string
	for sessionID, conversation := range m.contexts {
		if conversation.LastUpdated.Before(cutoff) {
			inactive = append(inactive, sessionID)
		}
	}
	return inactive, nil
}

// Count returns the number of stored contexts.
func (m *MemoryStorage) Count(_ context.Context) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.contexts), nil
}

// Close clears all stored contexts.
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.contexts = make(map[string]*ConversationContext)
	return nil
}
