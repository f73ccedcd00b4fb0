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

// Package knowledge provides the static technical knowledge base consulted by
// the chat pipeline: domain/topic entries, technology reverse lookup, and
// expertise-level adaptation.
package knowledge

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Domain is a technical subject area.
type Domain string

// Knowledge domains.
const (
	DomainVirtualization    Domain = "virtualization"
	DomainIaC               Domain = "iac"
	DomainContainers        Domain = "containers"
	DomainCloud             Domain = "cloud"
	DomainSecurity          Domain = "security"
	DomainNetworking        Domain = "networking"
	DomainMonitoring        Domain = "monitoring"
	DomainSystemEngineering Domain = "system_engineering"
)

// ExpertiseLevel selects how much of an entry is surfaced to the user.
type ExpertiseLevel string

// Expertise levels.
const (
	LevelBeginner     ExpertiseLevel = "beginner"
	LevelIntermediate ExpertiseLevel = "intermediate"
	LevelExpert       ExpertiseLevel = "expert"
)

// Truncation limits per expertise level. Entries are authored with the most
// important items first, so truncation keeps the essentials.
const (
	beginnerBestPractices = 5
	beginnerSecurity      = 3
	beginnerPatterns      = 2
	beginnerRelated       = 3

	intermediateTroubleshooting = 3

	// MaxSecurityRecommendations caps the merged security recommendation list.
	MaxSecurityRecommendations = 10
	// generalSecurityTop is how many general SECURITY-domain considerations
	// are merged into technology-specific recommendations.
	generalSecurityTop = 3
)

// Guide is one named pattern or troubleshooting recipe. Guides are kept in
// slices, not maps, so authored order survives and expertise truncation is
// deterministic.
type Guide struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Entry is a single knowledge base record, keyed by (domain, topic).
// Read-only after the base is built.
type Entry struct {
	Domain                 Domain            `json:"domain"`
	Topic                  string            `json:"topic"`
	Technologies           []string          `json:"technologies"`
	Concepts               map[string]string `json:"concepts"`
	BestPractices          []string          `json:"best_practices"`
	SecurityConsiderations []string          `json:"security_considerations"`
	CommonPatterns         []Guide           `json:"common_patterns"`
	TroubleshootingGuides  []Guide           `json:"troubleshooting_guides"`
	ExpertTips             []string          `json:"expert_tips"`
	RelatedTopics          []string          `json:"related_topics"`
}

// AdaptedEntry is the fixed-shape projection of an Entry for one expertise
// level. Truncation happens here; the underlying Entry is never mutated.
type AdaptedEntry struct {
	Domain                 Domain            `json:"domain"`
	Topic                  string            `json:"topic"`
	Technologies           []string          `json:"technologies"`
	Concepts               map[string]string `json:"concepts"`
	BestPractices          []string          `json:"best_practices"`
	SecurityConsiderations []string          `json:"security_considerations"`
	CommonPatterns         []Guide           `json:"common_patterns"`
	TroubleshootingGuides  []Guide           `json:"troubleshooting_guides"`
	ExpertTips             []string          `json:"expert_tips"`
	RelatedTopics          []string          `json:"related_topics"`
}

// topicRef points at an entry through the reverse indices.
type topicRef struct {
	Domain Domain
	Topic  string
}

// Base is the in-process knowledge base. It is built once at startup and
// read-only afterwards, so lookups need no locking; the ready flag guards
// against serving before initialization completes.
type Base struct {
	entries      map[Domain]map[string]*Entry
	byTechnology map[string][]topicRef
	byPattern    map[string][]string

	mu     sync.RWMutex
	ready  bool
	logger *zap.Logger
}

// ErrNotInitialized is returned when the base is queried before Load.
var ErrNotInitialized = fmt.Errorf("knowledge base not initialized")

// NewBase creates an empty knowledge base. Call Load before serving queries.
func NewBase(logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		entries:      make(map[Domain]map[string]*Entry),
		byTechnology: make(map[string][]topicRef),
		byPattern:    make(map[string][]string),
		logger:       logger,
	}
}

// Load populates the base from the built-in entry set and builds the reverse
// indices. It must complete before any request is served.
func (b *Base) Load() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ready {
		return nil
	}

	for i := range builtinEntries {
		entry := &builtinEntries[i]
		domainEntries, exists := b.entries[entry.Domain]
		if !exists {
			domainEntries = make(map[string]*Entry)
			b.entries[entry.Domain] = domainEntries
		}
		if _, duplicate := domainEntries[entry.Topic]; duplicate {
			return fmt.Errorf("duplicate knowledge topic %s/%s", entry.Domain, entry.Topic)
		}
		domainEntries[entry.Topic] = entry

		ref := topicRef{Domain: entry.Domain, Topic: entry.Topic}
		for _, tech := range entry.Technologies {
			key := strings.ToLower(tech)
			b.byTechnology[key] = append(b.byTechnology[key], ref)
		}
		for _, pattern := range entry.CommonPatterns {
			b.byPattern[pattern.Name] = append(b.byPattern[pattern.Name], string(entry.Domain)+"/"+entry.Topic)
		}
	}

	b.ready = true
	b.logger.Info("Knowledge base loaded",
		zap.Int("domains", len(b.entries)),
		zap.Int("technologies", len(b.byTechnology)))
	return nil
}

// Ready reports whether Load has completed.
func (b *Base) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// GetDomainKnowledge returns every topic in the domain adapted to the
// expertise level. When technologies are provided, topics mentioning at least
// one of them sort ahead of the rest implicitly via the returned map's
// completeness; filtering stays with the caller.
func (b *Base) GetDomainKnowledge(domain Domain, level ExpertiseLevel, technologies []string) (map[string]AdaptedEntry, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}

	domainEntries, exists := b.entries[domain]
	if !exists {
		return map[string]AdaptedEntry{}, nil
	}

	result := make(map[string]AdaptedEntry, len(domainEntries))
	for topic, entry := range domainEntries {
		if len(technologies) > 0 && !entry.mentionsAny(technologies) {
			continue
		}
		result[topic] = entry.Adapt(level)
	}

	// Fall back to the whole domain when the technology filter excluded
	// everything; an empty answer for a known domain helps nobody.
	if len(result) == 0 {
		for topic, entry := range domainEntries {
			result[topic] = entry.Adapt(level)
		}
	}

	return result, nil
}

// GetTopic returns one adapted entry, or false when the topic is unknown.
func (b *Base) GetTopic(domain Domain, topic string, level ExpertiseLevel) (AdaptedEntry, bool, error) {
	if !b.Ready() {
		return AdaptedEntry{}, false, ErrNotInitialized
	}
	domainEntries, exists := b.entries[domain]
	if !exists {
		return AdaptedEntry{}, false, nil
	}
	entry, exists := domainEntries[topic]
	if !exists {
		return AdaptedEntry{}, false, nil
	}
	return entry.Adapt(level), true, nil
}

// SearchByTechnology returns all entries mentioning the technology,
// case-insensitive, via the reverse index.
func (b *Base) SearchByTechnology(name string) ([]AdaptedEntry, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}

	refs := b.byTechnology[strings.ToLower(name)]
	results := make([]AdaptedEntry, 0, len(refs))
	for _, ref := range refs {
		if entry, exists := b.entries[ref.Domain][ref.Topic]; exists {
			results = append(results, entry.Adapt(LevelExpert))
		}
	}
	return results, nil
}

// SearchByPattern returns "domain/topic" keys of entries carrying the named
// common pattern.
func (b *Base) SearchByPattern(pattern string) ([]string, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}
	refs := b.byPattern[pattern]
	out := make([]string, len(refs))
	copy(out, refs)
	return out, nil
}

// GetSecurityRecommendations unions the security considerations of domain
// entries whose technologies intersect the requested set with the top general
// SECURITY-domain considerations. Order is first-seen, duplicates dropped,
// capped at MaxSecurityRecommendations.
func (b *Base) GetSecurityRecommendations(domain Domain, technologies []string) ([]string, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}

	seen := make(map[string]bool)
	var recommendations []string
	add := func(item string) {
		if len(recommendations) >= MaxSecurityRecommendations || seen[item] {
			return
		}
		seen[item] = true
		recommendations = append(recommendations, item)
	}

	if domainEntries, exists := b.entries[domain]; exists {
		for _, entry := range domainEntries {
			if len(technologies) > 0 && !entry.mentionsAny(technologies) {
				continue
			}
			for _, item := range entry.SecurityConsiderations {
				add(item)
			}
		}
	}

	if securityEntries, exists := b.entries[DomainSecurity]; exists {
		for _, entry := range securityEntries {
			limit := generalSecurityTop
			if limit > len(entry.SecurityConsiderations) {
				limit = len(entry.SecurityConsiderations)
			}
			for _, item := range entry.SecurityConsiderations[:limit] {
				add(item)
			}
		}
	}

	if recommendations == nil {
		recommendations = []string{}
	}
	return recommendations, nil
}

// RelatedTopics answers "what else should I look at" for a topic.
func (b *Base) RelatedTopics(domain Domain, topic string) ([]string, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}
	domainEntries, exists := b.entries[domain]
	if !exists {
		return []string{}, nil
	}
	entry, exists := domainEntries[topic]
	if !exists {
		return []string{}, nil
	}
	related := make([]string, len(entry.RelatedTopics))
	copy(related, entry.RelatedTopics)
	return related, nil
}

// Adapt projects the entry for one expertise level. Beginner output is
// heavily truncated, intermediate is mostly full, expert gets everything.
func (e *Entry) Adapt(level ExpertiseLevel) AdaptedEntry {
	adapted := AdaptedEntry{
		Domain:       e.Domain,
		Topic:        e.Topic,
		Technologies: append([]string(nil), e.Technologies...),
		Concepts:     copyStringMap(e.Concepts),
	}

	switch level {
	case LevelBeginner:
		adapted.BestPractices = headOf(e.BestPractices, beginnerBestPractices)
		adapted.SecurityConsiderations = headOf(e.SecurityConsiderations, beginnerSecurity)
		adapted.CommonPatterns = headOfGuides(e.CommonPatterns, beginnerPatterns)
		adapted.TroubleshootingGuides = []Guide{}
		adapted.ExpertTips = []string{}
		adapted.RelatedTopics = headOf(e.RelatedTopics, beginnerRelated)
	case LevelExpert:
		adapted.BestPractices = append([]string(nil), e.BestPractices...)
		adapted.SecurityConsiderations = append([]string(nil), e.SecurityConsiderations...)
		adapted.CommonPatterns = append([]Guide(nil), e.CommonPatterns...)
		adapted.TroubleshootingGuides = append([]Guide(nil), e.TroubleshootingGuides...)
		adapted.ExpertTips = append([]string(nil), e.ExpertTips...)
		adapted.RelatedTopics = append([]string(nil), e.RelatedTopics...)
	default: // intermediate
		adapted.BestPractices = append([]string(nil), e.BestPractices...)
		adapted.SecurityConsiderations = append([]string(nil), e.SecurityConsiderations...)
		adapted.CommonPatterns = append([]Guide(nil), e.CommonPatterns...)
		adapted.TroubleshootingGuides = headOfGuides(e.TroubleshootingGuides, intermediateTroubleshooting)
		adapted.ExpertTips = []string{}
		adapted.RelatedTopics = append([]string(nil), e.RelatedTopics...)
	}

	if adapted.BestPractices == nil {
		adapted.BestPractices = []string{}
	}
	if adapted.CommonPatterns == nil {
		adapted.CommonPatterns = []Guide{}
	}
	if adapted.TroubleshootingGuides == nil {
		adapted.TroubleshootingGuides = []Guide{}
	}
	if adapted.SecurityConsiderations == nil {
		adapted.SecurityConsiderations = []string{}
	}
	if adapted.ExpertTips == nil {
		adapted.ExpertTips = []string{}
	}
	if adapted.RelatedTopics == nil {
		adapted.RelatedTopics = []string{}
	}

	return adapted
}

func (e *Entry) mentionsAny(technologies []string) bool {
	for _, requested := range technologies {
		lowered := strings.ToLower(requested)
		for _, tech := range e.Technologies {
			if strings.ToLower(tech) == lowered {
				return true
			}
		}
	}
	return false
}

func headOf(items []string, n int) []string {
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, n)
	copy(out, items[:n])
	return out
}

// headOfGuides keeps the first n guides in authored order.
func headOfGuides(items []Guide, n int) []Guide {
	if n > len(items) {
		n = len(items)
	}
	out := make([]Guide, n)
	copy(out, items[:n])
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
