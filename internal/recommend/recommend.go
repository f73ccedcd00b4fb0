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

// Package recommend evaluates infrastructure state snapshots against a rule
// registry and produces prioritized recommendations. Rule conditions are
// isolated: one failing rule never aborts the batch.
package recommend

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheTTL is how long an evaluation result stays valid for an identical
// context. Stale entries are purged lazily on the next write.
const CacheTTL = 300 * time.Second

// Priority orders recommendations, most urgent first.
type Priority string

// Priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityInfo     Priority = "info"
)

// priorityRank maps priorities to sort order, lower first.
func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Recommendation is one actionable suggestion. Generated transiently per
// request and only retained inside the TTL cache.
type Recommendation struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Type                Category  `json:"type"`
	Priority            Priority  `json:"priority"`
	Confidence          float64   `json:"confidence"`
	ImplementationSteps []string  `json:"implementation_steps"`
	Rationale           string    `json:"rationale"`
	CreatedAt           time.Time `json:"created_at"`
}

// InfrastructureContext is the state snapshot rules evaluate against.
// Utilization fields are fractions in [0,1].
type InfrastructureContext struct {
	VMCount            int      `json:"vm_count"`
	TotalCores         int      `json:"total_cores"`
	CPUUtilization     float64  `json:"cpu_utilization"`
	MemoryUtilization  float64  `json:"memory_utilization"`
	StorageUtilization float64  `json:"storage_utilization"`
	NetworkUtilization float64  `json:"network_utilization"`
	EnvironmentType    string   `json:"environment_type"`
	Technologies       []string `json:"technologies"`
	SecurityFeatures   []string `json:"security_features"`
	BackupConfigured   bool     `json:"backup_configured"`
	MonitoringConfigured bool   `json:"monitoring_configured"`

	// Per-period utilization history for trend analysis, oldest first.
	CPUHistory    []float64 `json:"cpu_history,omitempty"`
	MemoryHistory []float64 `json:"memory_history,omitempty"`
}

// HasSecurityFeature reports whether a named security control is present.
func (c InfrastructureContext) HasSecurityFeature(name string) bool {
	for _, feature := range c.SecurityFeatures {
		if strings.EqualFold(feature, name) {
			return true
		}
	}
	return false
}

// UsesTechnology reports whether a technology is in use.
func (c InfrastructureContext) UsesTechnology(name string) bool {
	for _, tech := range c.Technologies {
		if strings.EqualFold(tech, name) {
			return true
		}
	}
	return false
}

type cacheEntry struct {
	recommendations []Recommendation
	expiresAt       time.Time
}

// Engine evaluates the rule registry plus trend and anomaly analysis against
// infrastructure snapshots.
type Engine struct {
	rules      []Rule
	thresholds Thresholds
	logger     *zap.Logger

	cacheMu sync.Mutex
	cache   map[uint64]cacheEntry
	now     func() time.Time
}

// NewEngine creates a recommendation engine with the built-in rule registry.
func NewEngine(thresholds Thresholds, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rules:      defaultRules(),
		thresholds: thresholds,
		logger:     logger,
		cache:      make(map[uint64]cacheEntry),
		now:        time.Now,
	}
}

// RegisterRule adds a rule to the registry. Intended for composition and
// tests; duplicate IDs are rejected.
func (e *Engine) RegisterRule(rule Rule) error {
	for _, existing := range e.rules {
		if existing.ID == rule.ID {
			return fmt.Errorf("duplicate rule ID: %s", rule.ID)
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Evaluate runs every registered rule plus trend and anomaly analysis
// against the snapshot, filters by the optional focus-area allowlist, and
// returns recommendations sorted by priority rank ascending then confidence
// descending. When a SECURITY recommendation is present without any
// MONITORING one, a single monitoring suggestion is injected. Results are
// cached per context hash for CacheTTL.
func (e *Engine) Evaluate(infra InfrastructureContext, focusAreas []string) []Recommendation {
	key := e.cacheKey(infra, focusAreas)
	if cached, ok := e.cacheGet(key); ok {
		return cached
	}

	var recommendations []Recommendation
	for _, rule := range e.rules {
		if e.ruleMatches(rule, infra) {
			recommendations = append(recommendations, e.fromRule(rule))
		}
	}
	recommendations = append(recommendations, e.analyzeTrends(infra)...)
	recommendations = append(recommendations, e.detectAnomalies(infra)...)

	recommendations = filterByFocus(recommendations, focusAreas)
	recommendations = e.injectRelated(recommendations)

	sort.SliceStable(recommendations, func(i, j int) bool {
		ri, rj := priorityRank(recommendations[i].Priority), priorityRank(recommendations[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return recommendations[i].Confidence > recommendations[j].Confidence
	})

	e.cachePut(key, recommendations)
	return recommendations
}

// ruleMatches runs one rule condition with panic isolation.
func (e *Engine) ruleMatches(rule Rule, infra InfrastructureContext) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			e.logger.Error("Recommendation rule panicked, skipping",
				zap.String("rule_id", rule.ID),
				zap.Any("panic", r))
		}
	}()
	if rule.Condition == nil {
		return false
	}
	return rule.Condition(infra)
}

func (e *Engine) fromRule(rule Rule) Recommendation {
	return Recommendation{
		ID:                  uuid.NewString(),
		Title:               rule.Title,
		Description:         rule.Description,
		Type:                rule.Category,
		Priority:            rule.Priority,
		Confidence:          rule.Confidence,
		ImplementationSteps: append([]string(nil), rule.ImplementationSteps...),
		Rationale:           rule.Rationale,
		CreatedAt:           e.now(),
	}
}

func (e *Engine) newRecommendation(category Category, title, description string, priority Priority, confidence float64, steps []string, rationale string) Recommendation {
	return Recommendation{
		ID:                  uuid.NewString(),
		Title:               title,
		Description:         description,
		Type:                category,
		Priority:            priority,
		Confidence:          confidence,
		ImplementationSteps: steps,
		Rationale:           rationale,
		CreatedAt:           e.now(),
	}
}

// injectRelated adds cross-category follow-ups, exactly once and never
// recursively: security findings without monitoring coverage get a
// monitoring suggestion appended.
func (e *Engine) injectRelated(recommendations []Recommendation) []Recommendation {
	hasSecurity := false
	hasMonitoring := false
	for _, rec := range recommendations {
		switch rec.Type {
		case CategorySecurity:
			hasSecurity = true
		case CategoryMonitoring:
			hasMonitoring = true
		}
	}
	if hasSecurity && !hasMonitoring {
		recommendations = append(recommendations, e.newRecommendation(
			CategoryMonitoring,
			"Monitor for the flagged security gaps",
			"Security findings were raised; monitoring should alert if the same gaps are exploited before remediation lands.",
			PriorityMedium, 0.6,
			[]string{
				"Alert on authentication failures and new listening ports",
				"Forward security-relevant logs off-host",
			},
			"Remediation takes time; detection covers the window.",
		))
	}
	return recommendations
}

func filterByFocus(recommendations []Recommendation, focusAreas []string) []Recommendation {
	if len(focusAreas) == 0 {
		return recommendations
	}
	allowed := make(map[string]bool, len(focusAreas))
	for _, area := range focusAreas {
		allowed[strings.ToLower(area)] = true
	}
	filtered := recommendations[:0]
	for _, rec := range recommendations {
		if allowed[string(rec.Type)] {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// cacheKey hashes the evaluation-relevant snapshot fields plus focus areas.
func (e *Engine) cacheKey(infra InfrastructureContext, focusAreas []string) uint64 {
	hasher := fnv.New64a()
	fmt.Fprintf(hasher, "%d|%d|%.4f|%.4f|%.4f|%.4f|%s|%v|%v|%t|%t|%v|%v|%v",
		infra.VMCount, infra.TotalCores,
		infra.CPUUtilization, infra.MemoryUtilization,
		infra.StorageUtilization, infra.NetworkUtilization,
		infra.EnvironmentType, infra.Technologies, infra.SecurityFeatures,
		infra.BackupConfigured, infra.MonitoringConfigured,
		infra.CPUHistory, infra.MemoryHistory, focusAreas)
	return hasher.Sum64()
}

func (e *Engine) cacheGet(key uint64) ([]Recommendation, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	entry, exists := e.cache[key]
	if !exists || e.now().After(entry.expiresAt) {
		return nil, false
	}
	result := make([]Recommendation, len(entry.recommendations))
	copy(result, entry.recommendations)
	return result, true
}

// cachePut stores a result and lazily purges entries past their TTL.
func (e *Engine) cachePut(key uint64, recommendations []Recommendation) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	now := e.now()
	for existing, entry := range e.cache {
		if now.After(entry.expiresAt) {
			delete(e.cache, existing)
		}
	}

	stored := make([]Recommendation, len(recommendations))
	copy(stored, recommendations)
	e.cache[key] = cacheEntry{recommendations: stored, expiresAt: now.Add(CacheTTL)}
}
