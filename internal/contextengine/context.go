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

// Package contextengine tracks per-session conversation state: the active
// technical domain, the user's expertise level, the technologies in focus,
// and the switch events that moved any of them. One ConversationContext
// exists per session; the engine serializes mutations per session while
// different sessions proceed in parallel.
package contextengine

import (
	"time"

	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/nlp"
)

// Bounds on per-session state. History and the switch log are ring buffers
// with FIFO eviction; the expertise window feeds the flap-suppression check.
const (
	// HistoryLimit caps conversation_history entries per session.
	HistoryLimit = 50
	// SwitchLogLimit caps recorded switch events per session.
	SwitchLogLimit = 50
	// expertiseWindow is how many recent per-turn expertise detections are
	// retained for the consistency check.
	expertiseWindow = 5
	// maxActiveTechnologies bounds the technology focus set, most recent kept.
	maxActiveTechnologies = 10
)

// Switch decision thresholds.
const (
	// DomainSwitchThreshold is the minimum detection confidence for a domain
	// switch. At or below it the current domain is kept.
	DomainSwitchThreshold = 0.7
	// expertiseConsistencyWindow and expertiseConsistencyRequired encode the
	// 2-of-last-3 rule: a new expertise level must dominate at least 2 of the
	// 3 detections preceding the current turn before a switch is applied.
	expertiseConsistencyWindow   = 3
	expertiseConsistencyRequired = 2
	// technologySwitchMinimum is how many previously-unseen technologies a
	// turn must mention to count as a technology focus change.
	technologySwitchMinimum = 2
)

// SecurityLevel is the session's current security posture sensitivity.
type SecurityLevel string

// Security levels.
const (
	SecurityLow    SecurityLevel = "low"
	SecurityMedium SecurityLevel = "medium"
	SecurityHigh   SecurityLevel = "high"
)

// SwitchTrigger identifies what caused a context switch.
type SwitchTrigger string

// Switch triggers.
const (
	TriggerDomainChange       SwitchTrigger = "domain_change"
	TriggerExpertiseShift     SwitchTrigger = "expertise_shift"
	TriggerSecurityEscalation SwitchTrigger = "security_escalation"
	TriggerTechnologyFocus    SwitchTrigger = "technology_focus"
	TriggerUserRequest        SwitchTrigger = "user_request"
)

// SwitchEvent records one context transition. Append-only; never mutated
// after creation.
type SwitchEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	Trigger       SwitchTrigger     `json:"trigger"`
	PreviousState map[string]string `json:"previous_state"`
	NewState      map[string]string `json:"new_state"`
	Confidence    float64           `json:"confidence"`
	Reason        string            `json:"reason"`
}

// Turn is one conversation history entry.
type Turn struct {
	Timestamp         time.Time                `json:"timestamp"`
	Text              string                   `json:"text"`
	Intent            nlp.IntentType           `json:"intent"`
	DetectedDomain    knowledge.Domain         `json:"detected_domain"`
	DetectedExpertise knowledge.ExpertiseLevel `json:"detected_expertise"`
}

// ConversationContext is the mutable per-session state. It is owned by the
// Engine; callers receive defensive copies and must not expect writes to
// them to take effect.
type ConversationContext struct {
	SessionID           string                     `json:"session_id"`
	CurrentDomain       knowledge.Domain           `json:"current_domain"`
	ExpertiseLevel      knowledge.ExpertiseLevel   `json:"expertise_level"`
	ActiveTechnologies  []string                   `json:"active_technologies"`
	SecurityLevel       SecurityLevel              `json:"security_level"`
	ConversationHistory []Turn                     `json:"conversation_history"`
	ContextSwitches     []SwitchEvent              `json:"context_switches"`
	RecentExpertise     []knowledge.ExpertiseLevel `json:"recent_expertise"`
	LastUpdated         time.Time                  `json:"last_updated"`
	PerformanceCounters map[string]int             `json:"performance_counters"`
}

// Clone returns a deep copy safe to hand outside the engine.
func (c *ConversationContext) Clone() *ConversationContext {
	clone := *c
	clone.ActiveTechnologies = append([]string(nil), c.ActiveTechnologies...)
	clone.ConversationHistory = append([]Turn(nil), c.ConversationHistory...)
	clone.ContextSwitches = append([]SwitchEvent(nil), c.ContextSwitches...)
	clone.RecentExpertise = append([]knowledge.ExpertiseLevel(nil), c.RecentExpertise...)
	clone.PerformanceCounters = make(map[string]int, len(c.PerformanceCounters))
	for key, value := range c.PerformanceCounters {
		clone.PerformanceCounters[key] = value
	}
	return &clone
}

// appendTurn records a history entry, evicting the oldest past HistoryLimit.
func (c *ConversationContext) appendTurn(turn Turn) {
	c.ConversationHistory = append(c.ConversationHistory, turn)
	if len(c.ConversationHistory) > HistoryLimit {
		c.ConversationHistory = c.ConversationHistory[len(c.ConversationHistory)-HistoryLimit:]
	}
}

// appendSwitch records a switch event, evicting the oldest past SwitchLogLimit.
func (c *ConversationContext) appendSwitch(event SwitchEvent) {
	c.ContextSwitches = append(c.ContextSwitches, event)
	if len(c.ContextSwitches) > SwitchLogLimit {
		c.ContextSwitches = c.ContextSwitches[len(c.ContextSwitches)-SwitchLogLimit:]
	}
}

// recordExpertiseDetection appends a per-turn detection to the sliding window.
func (c *ConversationContext) recordExpertiseDetection(level knowledge.ExpertiseLevel) {
	c.RecentExpertise = append(c.RecentExpertise, level)
	if len(c.RecentExpertise) > expertiseWindow {
		c.RecentExpertise = c.RecentExpertise[len(c.RecentExpertise)-expertiseWindow:]
	}
}

// expertiseConsistent reports whether the level dominated at least
// expertiseConsistencyRequired of the last expertiseConsistencyWindow
// recorded detections. The engine consults it before recording the
// current turn's detection, so the window holds preceding turns only.
func (c *ConversationContext) expertiseConsistent(level knowledge.ExpertiseLevel) bool {
	window := c.RecentExpertise
	if len(window) > expertiseConsistencyWindow {
		window = window[len(window)-expertiseConsistencyWindow:]
	}
	count := 0
	for _, detected := range window {
		if detected == level {
			count++
		}
	}
	return count >= expertiseConsistencyRequired
}

// mergeTechnologies adds newly mentioned technologies to the focus set,
// keeping the most recent maxActiveTechnologies. Returns how many of the
// mentions were not already active.
func (c *ConversationContext) mergeTechnologies(mentioned []string) int {
	active := make(map[string]bool, len(c.ActiveTechnologies))
	for _, tech := range c.ActiveTechnologies {
		active[tech] = true
	}

	added := 0
	for _, tech := range mentioned {
		if active[tech] {
			continue
		}
		active[tech] = true
		c.ActiveTechnologies = append(c.ActiveTechnologies, tech)
		added++
	}
	if len(c.ActiveTechnologies) > maxActiveTechnologies {
		c.ActiveTechnologies = c.ActiveTechnologies[len(c.ActiveTechnologies)-maxActiveTechnologies:]
	}
	return added
}

// bump increments a performance counter.
func (c *ConversationContext) bump(counter string) {
	if c.PerformanceCounters == nil {
		c.PerformanceCounters = make(map[string]int)
	}
	c.PerformanceCounters[counter]++
}

// stateSnapshot captures the switchable state fields for SwitchEvent logs.
func (c *ConversationContext) stateSnapshot() map[string]string {
	techs := ""
	for i, tech := range c.ActiveTechnologies {
		if i > 0 {
			techs += ","
		}
		techs += tech
	}
	return map[string]string{
		"domain":       string(c.CurrentDomain),
		"expertise":    string(c.ExpertiseLevel),
		"technologies": techs,
		"security":     string(c.SecurityLevel),
	}
}
