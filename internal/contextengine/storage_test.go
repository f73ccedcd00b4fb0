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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/infra-advisor/internal/knowledge"
)

func sampleContext(sessionID string, updated time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID:          sessionID,
		CurrentDomain:      knowledge.DomainContainers,
		ExpertiseLevel:     knowledge.LevelIntermediate,
		ActiveTechnologies: []string{"kubernetes", "helm"},
		SecurityLevel:      SecurityMedium,
		ConversationHistory: []Turn{
			{Timestamp: updated, Text: "how do I fix a crashloop?"},
		},
		LastUpdated:         updated,
		PerformanceCounters: map[string]int{"turns": 1},
	}
}

func runStorageSuite(t *testing.T, storage Storage) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	_, err := storage.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrContextNotFound)

	original := sampleContext("s1", now)
	require.NoError(t, storage.Set(ctx, original))

	loaded, err := storage.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, original.SessionID, loaded.SessionID)
	assert.Equal(t, original.CurrentDomain, loaded.CurrentDomain)
	assert.Equal(t, original.ActiveTechnologies, loaded.ActiveTechnologies)
	assert.Equal(t, original.SecurityLevel, loaded.SecurityLevel)
	assert.Len(t, loaded.ConversationHistory, 1)
	assert.Equal(t, 1, loaded.PerformanceCounters["turns"])

	// Replacement, not duplication.
	original.CurrentDomain = knowledge.DomainSecurity
	require.NoError(t, storage.Set(ctx, original))
	count, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err = storage.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, knowledge.DomainSecurity, loaded.CurrentDomain)

	// Inactivity scan compares last_updated to the cutoff.
	stale := sampleContext("s2", now.Add(-48*time.Hour))
	require.NoError(t, storage.Set(ctx, stale))

	inactive, err := storage.ListInactive(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, inactive)

	require.NoError(t, storage.Delete(ctx, "s2"))
	require.NoError(t, storage.Delete(ctx, "s2"), "deleting an absent session is not an error")

	count, err = storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	defer storage.Close()
	runStorageSuite(t, storage)
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	storage := NewMemoryStorage()
	defer storage.Close()
	ctx := context.Background()

	original := sampleContext("iso", time.Now())
	require.NoError(t, storage.Set(ctx, original))

	// Mutating the stored-in copy must not affect the store.
	original.ActiveTechnologies[0] = "mutated"

	loaded, err := storage.Get(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "kubernetes", loaded.ActiveTechnologies[0])

	// Mutating a retrieved copy must not affect later reads.
	loaded.ActiveTechnologies[0] = "mutated"
	again, err := storage.Get(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "kubernetes", again.ActiveTechnologies[0])
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.db")
	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()

	runStorageSuite(t, storage)
}

func TestSQLiteStorageRequiresPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}

func TestNewStorageSelection(t *testing.T) {
	storage, err := NewStorage(MemoryStorageType, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, storage)
	storage.Close()

	_, err = NewStorage("etcd", "")
	assert.Error(t, err)
}
