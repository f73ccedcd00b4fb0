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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/nlp"
)

// Config holds context engine configuration.
type Config struct {
	StorageType     StorageType   `json:"storage_type"`
	SQLitePath      string        `json:"sqlite_path,omitempty"`
	SessionTTL      time.Duration `json:"session_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		StorageType:     MemoryStorageType,
		SessionTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Engine owns every ConversationContext. Mutations for one session are
// serialized through a per-session lock; sessions never share mutable state
// so different sessions proceed fully in parallel.
type Engine struct {
	storage Storage
	config  Config
	logger  *zap.Logger

	// sessionLocks maps session ID to *sync.Mutex. Entries are removed on
	// session cleanup.
	sessionLocks sync.Mutex
	locks        map[string]*sync.Mutex

	// Prompt caches, one namespace per invalidation trigger so a context
	// switch clears exactly the entries it stales.
	domainPrompts    *namespaceCache
	expertisePrompts *namespaceCache
	techGuidance     *namespaceCache

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEngine creates a context engine with the configured storage backend and
// starts the periodic session sweep when CleanupInterval is positive.
func NewEngine(config Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	storage, err := NewStorage(config.StorageType, config.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize context storage: %w", err)
	}

	engine := &Engine{
		storage:          storage,
		config:           config,
		logger:           logger,
		locks:            make(map[string]*sync.Mutex),
		domainPrompts:    newNamespaceCache(),
		expertisePrompts: newNamespaceCache(),
		techGuidance:     newNamespaceCache(),
		stopCh:           make(chan struct{}),
	}

	if config.CleanupInterval > 0 && config.SessionTTL > 0 {
		engine.wg.Add(1)
		go engine.cleanupLoop()
	}

	return engine, nil
}

// NewEngineWithStorage creates an engine over an existing storage backend.
// No cleanup loop is started; callers drive cleanup themselves.
func NewEngineWithStorage(storage Storage, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		storage:          storage,
		config:           Config{StorageType: MemoryStorageType},
		logger:           logger,
		locks:            make(map[string]*sync.Mutex),
		domainPrompts:    newNamespaceCache(),
		expertisePrompts: newNamespaceCache(),
		techGuidance:     newNamespaceCache(),
		stopCh:           make(chan struct{}),
	}
}

// sessionLock returns the mutex serializing one session's turns.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.sessionLocks.Lock()
	defer e.sessionLocks.Unlock()

	lock, exists := e.locks[sessionID]
	if !exists {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	return lock
}

// ProcessTurn ingests one user turn for a session: it lazily creates the
// ConversationContext on first sight, re-runs domain/expertise/technology
// detection on the new text alone, applies at most one context switch in
// priority order domain > expertise > technology, and commits the updated
// context. The returned context is a copy; the returned event is nil when no
// switch fired.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, text string, parsed *nlp.ParsedIntent) (*ConversationContext, *SwitchEvent, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	detectedDomain, domainConfidence := DetectDomain(text)
	detectedExpertise := expertiseFromSkill(skillOf(parsed))
	detectedSecurity := detectSecurityLevel(text)
	technologies := mentionedTechnologies(parsed)

	conversation, err := e.storage.Get(ctx, sessionID)
	if errors.Is(err, ErrContextNotFound) {
		conversation = e.initializeContext(sessionID, text, parsed, now,
			detectedDomain, detectedExpertise, detectedSecurity, technologies)
		if err := e.storage.Set(ctx, conversation); err != nil {
			return nil, nil, fmt.Errorf("failed to store new context: %w", err)
		}
		e.logger.Info("Created conversation context",
			zap.String("session_id", sessionID),
			zap.String("domain", string(conversation.CurrentDomain)),
			zap.String("expertise", string(conversation.ExpertiseLevel)))
		return conversation.Clone(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load context: %w", err)
	}

	// The consistency window is read before the current detection is
	// recorded: a shift needs a confirming turn after two deviating ones.
	var event *SwitchEvent
	switch {
	case detectedDomain != conversation.CurrentDomain && domainConfidence > DomainSwitchThreshold:
		event = e.applyDomainSwitch(conversation, detectedDomain, domainConfidence, now)
	case detectedExpertise != conversation.ExpertiseLevel && conversation.expertiseConsistent(detectedExpertise):
		event = e.applyExpertiseSwitch(conversation, detectedExpertise, now)
	case e.countNewTechnologies(conversation, technologies) >= technologySwitchMinimum:
		event = e.applyTechnologySwitch(conversation, technologies, now)
	}
	conversation.recordExpertiseDetection(detectedExpertise)

	// Technology focus accumulates even without a switch event.
	if event == nil || event.Trigger != TriggerTechnologyFocus {
		conversation.mergeTechnologies(technologies)
	}

	// Security posture only escalates automatically; de-escalation is a
	// user request. An escalation is recorded as the turn's event only when
	// no higher-priority switch fired.
	if securityRank(detectedSecurity) > securityRank(conversation.SecurityLevel) {
		previous := conversation.stateSnapshot()
		conversation.SecurityLevel = detectedSecurity
		conversation.bump("security_escalations")
		if event == nil {
			event = &SwitchEvent{
				Timestamp:     now,
				Trigger:       TriggerSecurityEscalation,
				PreviousState: previous,
				NewState:      conversation.stateSnapshot(),
				Confidence:    1.0,
				Reason:        fmt.Sprintf("security posture raised to %s", detectedSecurity),
			}
			conversation.appendSwitch(*event)
		}
	}

	conversation.appendTurn(Turn{
		Timestamp:         now,
		Text:              text,
		Intent:            intentOf(parsed),
		DetectedDomain:    detectedDomain,
		DetectedExpertise: detectedExpertise,
	})
	conversation.bump("turns")
	conversation.LastUpdated = now

	if err := e.storage.Set(ctx, conversation); err != nil {
		return nil, nil, fmt.Errorf("failed to store updated context: %w", err)
	}

	return conversation.Clone(), event, nil
}

// initializeContext derives the initial session state from the first turn.
func (e *Engine) initializeContext(sessionID, text string, parsed *nlp.ParsedIntent, now time.Time,
	domain knowledge.Domain, expertise knowledge.ExpertiseLevel, security SecurityLevel, technologies []string) *ConversationContext {

	conversation := &ConversationContext{
		SessionID:           sessionID,
		CurrentDomain:       domain,
		ExpertiseLevel:      expertise,
		SecurityLevel:       security,
		PerformanceCounters: make(map[string]int),
		LastUpdated:         now,
	}
	conversation.mergeTechnologies(technologies)
	conversation.recordExpertiseDetection(expertise)
	conversation.appendTurn(Turn{
		Timestamp:         now,
		Text:              text,
		Intent:            intentOf(parsed),
		DetectedDomain:    domain,
		DetectedExpertise: expertise,
	})
	conversation.bump("turns")
	return conversation
}

func (e *Engine) applyDomainSwitch(conversation *ConversationContext, domain knowledge.Domain, confidence float64, now time.Time) *SwitchEvent {
	previous := conversation.stateSnapshot()
	from := conversation.CurrentDomain
	conversation.CurrentDomain = domain
	conversation.bump("domain_switches")

	event := SwitchEvent{
		Timestamp:     now,
		Trigger:       TriggerDomainChange,
		PreviousState: previous,
		NewState:      conversation.stateSnapshot(),
		Confidence:    confidence,
		Reason:        fmt.Sprintf("domain changed from %s to %s", from, domain),
	}
	conversation.appendSwitch(event)

	// Domain-derived prompts and knowledge summaries are stale now.
	e.domainPrompts.clearSession(conversation.SessionID)
	conversation.bump("cache_invalidations")

	e.logger.Info("Domain switch",
		zap.String("session_id", conversation.SessionID),
		zap.String("from", string(from)),
		zap.String("to", string(domain)),
		zap.Float64("confidence", confidence))
	return &event
}

func (e *Engine) applyExpertiseSwitch(conversation *ConversationContext, level knowledge.ExpertiseLevel, now time.Time) *SwitchEvent {
	previous := conversation.stateSnapshot()
	from := conversation.ExpertiseLevel
	conversation.ExpertiseLevel = level
	conversation.bump("expertise_switches")

	event := SwitchEvent{
		Timestamp:     now,
		Trigger:       TriggerExpertiseShift,
		PreviousState: previous,
		NewState:      conversation.stateSnapshot(),
		Confidence:    1.0,
		Reason:        fmt.Sprintf("expertise shifted from %s to %s", from, level),
	}
	conversation.appendSwitch(event)

	e.expertisePrompts.clearSession(conversation.SessionID)
	conversation.bump("cache_invalidations")

	e.logger.Info("Expertise switch",
		zap.String("session_id", conversation.SessionID),
		zap.String("from", string(from)),
		zap.String("to", string(level)))
	return &event
}

func (e *Engine) applyTechnologySwitch(conversation *ConversationContext, technologies []string, now time.Time) *SwitchEvent {
	previous := conversation.stateSnapshot()
	added := conversation.mergeTechnologies(technologies)
	conversation.bump("technology_switches")

	event := SwitchEvent{
		Timestamp:     now,
		Trigger:       TriggerTechnologyFocus,
		PreviousState: previous,
		NewState:      conversation.stateSnapshot(),
		Confidence:    1.0,
		Reason:        fmt.Sprintf("%d new technologies in focus", added),
	}
	conversation.appendSwitch(event)

	e.techGuidance.clearSession(conversation.SessionID)
	conversation.bump("cache_invalidations")

	e.logger.Info("Technology focus switch",
		zap.String("session_id", conversation.SessionID),
		zap.Int("new_technologies", added))
	return &event
}

// countNewTechnologies reports how many mentions are absent from the active
// set, without mutating it.
func (e *Engine) countNewTechnologies(conversation *ConversationContext, mentioned []string) int {
	active := make(map[string]bool, len(conversation.ActiveTechnologies))
	for _, tech := range conversation.ActiveTechnologies {
		active[tech] = true
	}
	count := 0
	seen := make(map[string]bool, len(mentioned))
	for _, tech := range mentioned {
		if !active[tech] && !seen[tech] {
			seen[tech] = true
			count++
		}
	}
	return count
}

// GetContext returns a copy of a session's context.
func (e *Engine) GetContext(ctx context.Context, sessionID string) (*ConversationContext, error) {
	return e.storage.Get(ctx, sessionID)
}

// SessionCount returns the number of live conversation contexts.
func (e *Engine) SessionCount(ctx context.Context) (int, error) {
	return e.storage.Count(ctx)
}

// CleanupInactiveSessions deletes contexts idle longer than maxAge and drops
// their locks and cached prompts. This is the only deletion path; there is
// no implicit eviction on memory pressure.
func (e *Engine) CleanupInactiveSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	inactive, err := e.storage.ListInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list inactive sessions: %w", err)
	}

	removed := 0
	for _, sessionID := range inactive {
		lock := e.sessionLock(sessionID)
		lock.Lock()
		if err := e.storage.Delete(ctx, sessionID); err != nil {
			lock.Unlock()
			e.logger.Warn("Failed to delete inactive session",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		e.domainPrompts.clearSession(sessionID)
		e.expertisePrompts.clearSession(sessionID)
		e.techGuidance.clearSession(sessionID)
		lock.Unlock()

		e.sessionLocks.Lock()
		delete(e.locks, sessionID)
		e.sessionLocks.Unlock()
		removed++
	}

	if removed > 0 {
		e.logger.Info("Cleaned up inactive sessions", zap.Int("removed", removed))
	}
	return removed, nil
}

// GetStats returns engine statistics.
func (e *Engine) GetStats(ctx context.Context) (map[string]interface{}, error) {
	count, err := e.storage.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	return map[string]interface{}{
		"active_sessions": count,
		"storage_type":    string(e.config.StorageType),
		"session_ttl":     e.config.SessionTTL.String(),
	}, nil
}

// cleanupLoop periodically sweeps inactive sessions.
func (e *Engine) cleanupLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := e.CleanupInactiveSessions(ctx, e.config.SessionTTL); err != nil {
				e.logger.Error("Session cleanup failed", zap.Error(err))
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// Close stops the cleanup loop and closes storage.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		err = e.storage.Close()
	})
	return err
}

func intentOf(parsed *nlp.ParsedIntent) nlp.IntentType {
	if parsed == nil {
		return nlp.IntentGeneralQuestion
	}
	return parsed.Intent
}

func skillOf(parsed *nlp.ParsedIntent) nlp.SkillLevel {
	if parsed == nil {
		return nlp.SkillIntermediate
	}
	return parsed.SkillLevel
}
