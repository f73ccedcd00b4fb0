// Package nlp provides natural-language intent classification and entity
// extraction for infrastructure-automation requests.
package nlp

import (
	"sort"
	"strings"
)

const (
	// PatternConfidence is the fixed confidence assigned to regex matches.
	PatternConfidence = 0.8
	// DefaultMaxInputLength bounds the text length processed by the extractor.
	DefaultMaxInputLength = 10000
	// snippetRadius is the number of characters of surrounding context kept
	// with each extracted entity.
	snippetRadius = 30
)

// EntityType identifies the kind of value an entity carries.
type EntityType string

// Entity types recognized by the extractor.
const (
	EntityMemory         EntityType = "memory"
	EntityCPUCores       EntityType = "cpu_cores"
	EntityStorage        EntityType = "storage"
	EntityVMCount        EntityType = "vm_count"
	EntityPort           EntityType = "port"
	EntityIPAddress      EntityType = "ip_address"
	EntityNetworkSegment EntityType = "network_segment"
	EntityVersion        EntityType = "version"
	EntityTechnology     EntityType = "technology"
)

// Entity is a single structured value extracted from free text.
type Entity struct {
	Type       EntityType `json:"entity_type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Context    string     `json:"context_snippet"`
}

// Extractor performs regex-driven entity extraction. It is stateless after
// construction and safe for concurrent use.
type Extractor struct {
	patterns  []entityPattern
	maxLength int
}

// NewExtractor creates an extractor with the default pattern table.
func NewExtractor() *Extractor {
	return &Extractor{
		patterns:  buildEntityPatterns(),
		maxLength: DefaultMaxInputLength,
	}
}

// NewExtractorWithLimit creates an extractor with a custom input length bound.
func NewExtractorWithLimit(maxLength int) *Extractor {
	e := NewExtractor()
	if maxLength > 0 {
		e.maxLength = maxLength
	}
	return e
}

// Extract returns all entities found in text, deduplicated by overlapping
// span with the higher-confidence entity winning. It never fails: empty or
// oversized input degrades to truncation and an empty result, not an error.
func (e *Extractor) Extract(text string) []Entity {
	if text == "" {
		return []Entity{}
	}
	if len(text) > e.maxLength {
		text = text[:e.maxLength]
	}

	var entities []Entity
	for _, ep := range e.patterns {
		matches := ep.Pattern.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			start, end := m[0], m[1]
			value := text[start:end]
			// Prefer the first capture group when the pattern has one.
			if len(m) >= 4 && m[2] >= 0 {
				value = text[m[2]:m[3]]
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if ep.Keywords {
				value = strings.ToLower(value)
			}
			entities = append(entities, Entity{
				Type:       ep.Type,
				Value:      value,
				Confidence: PatternConfidence,
				Start:      start,
				End:        end,
				Context:    snippet(text, start, end),
			})
		}
	}

	return dedupeOverlapping(entities)
}

// dedupeOverlapping resolves overlapping spans, keeping the entity with the
// higher confidence. Sorting is (start asc, confidence desc) so that on ties
// the earlier-declared pattern wins deterministically.
func dedupeOverlapping(entities []Entity) []Entity {
	if len(entities) == 0 {
		return []Entity{}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].Confidence > entities[j].Confidence
	})

	result := []Entity{entities[0]}
	for _, candidate := range entities[1:] {
		last := &result[len(result)-1]
		if candidate.Start < last.End {
			// Overlap: replace only if strictly more confident.
			if candidate.Confidence > last.Confidence {
				*last = candidate
			}
			continue
		}
		result = append(result, candidate)
	}

	return result
}

// snippet returns the text surrounding a match, clipped to the input bounds.
func snippet(text string, start, end int) string {
	from := start - snippetRadius
	if from < 0 {
		from = 0
	}
	to := end + snippetRadius
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}

// GroupByType collects entity values keyed by their entity type, preserving
// extraction order within each type.
func GroupByType(entities []Entity) map[EntityType][]string {
	grouped := make(map[EntityType][]string)
	for _, entity := range entities {
		grouped[entity.Type] = append(grouped[entity.Type], entity.Value)
	}
	return grouped
}
