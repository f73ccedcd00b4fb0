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
	"fmt"
	"strings"
	"sync"

	"github.com/your-org/infra-advisor/internal/knowledge"
)

// namespaceCache is a per-session string cache. Each cache instance is one
// invalidation namespace: a context switch clears the whole namespace for a
// session instead of scanning keys for matching prefixes.
type namespaceCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func newNamespaceCache() *namespaceCache {
	return &namespaceCache{entries: make(map[string]map[string]string)}
}

func (nc *namespaceCache) get(sessionID, key string) (string, bool) {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	session, exists := nc.entries[sessionID]
	if !exists {
		return "", false
	}
	value, exists := session[key]
	return value, exists
}

func (nc *namespaceCache) put(sessionID, key, value string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	session, exists := nc.entries[sessionID]
	if !exists {
		session = make(map[string]string)
		nc.entries[sessionID] = session
	}
	session[key] = value
}

func (nc *namespaceCache) clearSession(sessionID string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	delete(nc.entries, sessionID)
}

func (nc *namespaceCache) sessionSize(sessionID string) int {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return len(nc.entries[sessionID])
}

// PromptType selects the base system prompt flavor.
type PromptType string

// Prompt types.
const (
	PromptSystem          PromptType = "system"
	PromptTroubleshooting PromptType = "troubleshooting"
	PromptReview          PromptType = "review"
)

// GenerateContextualPrompt builds the model system prompt for a session's
// current state. The domain base prompt and the expertise addendum are cached
// per session in their own namespaces, keyed only by what they derive from;
// the technology focus set changes without a domain switch, so it is composed
// fresh on every call rather than baked into the cached base.
func (e *Engine) GenerateContextualPrompt(conversation *ConversationContext, promptType PromptType, turnAddendum string) string {
	baseKey := string(promptType) + "|" + string(conversation.CurrentDomain)
	base, hit := e.domainPrompts.get(conversation.SessionID, baseKey)
	if !hit {
		base = buildBasePrompt(promptType, conversation.CurrentDomain)
		e.domainPrompts.put(conversation.SessionID, baseKey, base)
	}

	levelKey := string(conversation.ExpertiseLevel)
	levelText, hit := e.expertisePrompts.get(conversation.SessionID, levelKey)
	if !hit {
		levelText = buildExpertiseAddendum(conversation.ExpertiseLevel)
		e.expertisePrompts.put(conversation.SessionID, levelKey, levelText)
	}

	var builder strings.Builder
	builder.WriteString(base)
	if len(conversation.ActiveTechnologies) > 0 {
		builder.WriteString(fmt.Sprintf(" Technologies in scope: %s.",
			strings.Join(conversation.ActiveTechnologies, ", ")))
	}
	builder.WriteString("\n\n")
	builder.WriteString(levelText)
	if turnAddendum != "" {
		builder.WriteString("\n\n")
		builder.WriteString(turnAddendum)
	}
	return builder.String()
}

// TechnologyGuidance returns a cached per-session guidance line for a
// technology, derived from the knowledge base reverse index.
func (e *Engine) TechnologyGuidance(conversation *ConversationContext, kb *knowledge.Base, technology string) (string, error) {
	key := strings.ToLower(technology)
	if cached, hit := e.techGuidance.get(conversation.SessionID, key); hit {
		return cached, nil
	}

	entries, err := kb.SearchByTechnology(technology)
	if err != nil {
		return "", fmt.Errorf("failed to look up technology guidance: %w", err)
	}

	var guidance string
	if len(entries) == 0 {
		guidance = fmt.Sprintf("No specific guidance available for %s.", technology)
	} else {
		topics := make([]string, 0, len(entries))
		for _, entry := range entries {
			topics = append(topics, string(entry.Domain)+"/"+entry.Topic)
		}
		guidance = fmt.Sprintf("Relevant guidance for %s: %s.", technology, strings.Join(topics, ", "))
	}

	e.techGuidance.put(conversation.SessionID, key, guidance)
	return guidance, nil
}

func buildBasePrompt(promptType PromptType, domain knowledge.Domain) string {
	var builder strings.Builder
	builder.WriteString("You are an infrastructure automation advisor. ")
	builder.WriteString(fmt.Sprintf("The current conversation focuses on %s.", domainDescription(domain)))

	switch promptType {
	case PromptTroubleshooting:
		builder.WriteString(" Diagnose the reported problem step by step,")
		builder.WriteString(" asking for specific command output where it narrows the cause,")
		builder.WriteString(" and state the most likely cause before listing alternatives.")
	case PromptReview:
		builder.WriteString(" Review the provided configuration or design for correctness,")
		builder.WriteString(" security weaknesses, and operational risk, most severe first.")
	default:
		builder.WriteString(" Give concrete, actionable answers grounded in operational practice.")
		builder.WriteString(" Prefer specific commands and configuration over general advice.")
	}

	return builder.String()
}

func buildExpertiseAddendum(level knowledge.ExpertiseLevel) string {
	switch level {
	case knowledge.LevelBeginner:
		return "The user is new to this area. Explain terminology on first use, " +
			"give complete commands rather than fragments, and warn about " +
			"destructive operations explicitly."
	case knowledge.LevelExpert:
		return "The user is an expert. Skip basics, be terse, include tuning " +
			"parameters and edge cases, and reference the underlying mechanisms."
	default:
		return "The user has working knowledge. Keep explanations brief, focus on " +
			"the recommended approach, and mention notable alternatives in passing."
	}
}

func domainDescription(domain knowledge.Domain) string {
	switch domain {
	case knowledge.DomainVirtualization:
		return "virtualization and hypervisor management"
	case knowledge.DomainIaC:
		return "infrastructure as code and configuration management"
	case knowledge.DomainContainers:
		return "containers and orchestration"
	case knowledge.DomainCloud:
		return "cloud and hybrid infrastructure"
	case knowledge.DomainSecurity:
		return "infrastructure security"
	case knowledge.DomainNetworking:
		return "networking"
	case knowledge.DomainMonitoring:
		return "monitoring and observability"
	default:
		return "general system engineering"
	}
}
