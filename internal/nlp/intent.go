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

package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// KeywordWeight is the score contributed by each matched keyword.
	KeywordWeight = 0.1
	// FallbackConfidence is assigned when no intent scores above zero.
	FallbackConfidence = 0.1
	// MaxConfidence caps the reported classification confidence.
	MaxConfidence = 1.0
)

// IntentType identifies the classified purpose of a request.
type IntentType string

// Intent taxonomy.
const (
	IntentCreateVM             IntentType = "create_vm"
	IntentDeployInfrastructure IntentType = "deploy_infrastructure"
	IntentGenerateIaC          IntentType = "generate_iac"
	IntentSecurityReview       IntentType = "security_review"
	IntentTroubleshoot         IntentType = "troubleshoot"
	IntentOptimize             IntentType = "optimize"
	IntentMigrate              IntentType = "migrate"
	IntentGeneralQuestion      IntentType = "general_question"
)

// SkillLevel is the inferred user expertise tier.
type SkillLevel string

// Skill levels.
const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillExpert       SkillLevel = "expert"
)

// Urgency is the inferred request urgency.
type Urgency string

// Urgency levels.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ComplexityLevel is the inferred scope of the requested work.
type ComplexityLevel string

// Complexity levels.
const (
	ComplexitySimple     ComplexityLevel = "simple"
	ComplexityModerate   ComplexityLevel = "moderate"
	ComplexityComplex    ComplexityLevel = "complex"
	ComplexityEnterprise ComplexityLevel = "enterprise"
)

// InfrastructureType tags the technical area a request concerns.
type InfrastructureType string

// Infrastructure types.
const (
	InfraVirtualization InfrastructureType = "virtualization"
	InfraContainers     InfrastructureType = "containers"
	InfraIaC            InfrastructureType = "iac"
	InfraCloud          InfrastructureType = "cloud"
	InfraNetworking     InfrastructureType = "networking"
	InfraStorage        InfrastructureType = "storage"
	InfraMonitoring     InfrastructureType = "monitoring"
	InfraUnknown        InfrastructureType = ""
)

// Sentiment is a coarse positive/negative/neutral reading of the request.
type Sentiment string

// Sentiment values.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IntentScore is the per-intent scoring breakdown.
type IntentScore struct {
	PatternScore float64 `json:"pattern_score"`
	KeywordScore float64 `json:"keyword_score"`
	TotalScore   float64 `json:"total_score"`
}

// ClassificationResult is the output of Classify, including the full
// per-intent score breakdown for debugging and tests.
type ClassificationResult struct {
	Intent     IntentType             `json:"intent"`
	Confidence float64                `json:"confidence"`
	Breakdown  map[string]IntentScore `json:"breakdown"`
}

// ParsedIntent is the full per-turn analysis of a user request. It is
// immutable once produced.
type ParsedIntent struct {
	Intent                 IntentType              `json:"intent_type"`
	Confidence             float64                 `json:"confidence"`
	InfrastructureType     InfrastructureType      `json:"infrastructure_type,omitempty"`
	Parameters             map[string]any          `json:"parameters"`
	SkillLevel             SkillLevel              `json:"skill_level"`
	Urgency                Urgency                 `json:"urgency"`
	Entities               map[EntityType][]string `json:"entities"`
	ComplexityLevel        ComplexityLevel         `json:"complexity_level"`
	TechnicalTerms         []string                `json:"technical_terms"`
	Sentiment              Sentiment               `json:"sentiment"`
	RequiresClarification  bool                    `json:"requires_clarification"`
	ClarificationQuestions []string                `json:"clarification_questions"`
}

// Parser combines intent classification and entity extraction into a single
// per-turn analysis. Safe for concurrent use.
type Parser struct {
	extractor   *Extractor
	definitions []intentDefinition
}

// NewParser creates a parser with the default taxonomy and pattern tables.
func NewParser() *Parser {
	return &Parser{
		extractor:   NewExtractor(),
		definitions: buildIntentDefinitions(),
	}
}

// Extractor exposes the parser's entity extractor.
func (p *Parser) Extractor() *Extractor {
	return p.extractor
}

// Classify scores the intent taxonomy against the text. It never fails:
// unmatched input falls back to general_question at low confidence.
func (p *Parser) Classify(text string) ClassificationResult {
	lower := strings.ToLower(text)
	breakdown := make(map[string]IntentScore, len(p.definitions))

	best := IntentGeneralQuestion
	bestScore := 0.0

	for _, def := range p.definitions {
		var patternScore float64
		matched := 0
		for _, rule := range def.Rules {
			if rule.Pattern.MatchString(text) {
				patternScore += rule.Weight
				matched++
			}
		}

		var keywordScore float64
		for _, keyword := range def.Keywords {
			if strings.Contains(lower, keyword) {
				keywordScore += KeywordWeight
			}
		}

		total := patternScore + keywordScore
		if matched > 0 {
			total /= float64(matched)
		}

		breakdown[string(def.Intent)] = IntentScore{
			PatternScore: patternScore,
			KeywordScore: keywordScore,
			TotalScore:   total,
		}

		if total > bestScore {
			bestScore = total
			best = def.Intent
		}
	}

	if bestScore <= 0 {
		return ClassificationResult{
			Intent:     IntentGeneralQuestion,
			Confidence: FallbackConfidence,
			Breakdown:  breakdown,
		}
	}

	confidence := bestScore
	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}

	return ClassificationResult{Intent: best, Confidence: confidence, Breakdown: breakdown}
}

// Parse produces the full per-turn analysis for a request.
func (p *Parser) Parse(text string) ParsedIntent {
	classification := p.Classify(text)
	entities := p.extractor.Extract(text)
	grouped := GroupByType(entities)
	lower := strings.ToLower(text)

	parsed := ParsedIntent{
		Intent:             classification.Intent,
		Confidence:         classification.Confidence,
		InfrastructureType: detectInfrastructureType(lower),
		Parameters:         inferParameters(lower, grouped),
		SkillLevel:         detectSkillLevel(lower),
		Urgency:            detectUrgency(lower),
		Entities:           grouped,
		ComplexityLevel:    detectComplexity(lower),
		TechnicalTerms:     collectTechnicalTerms(grouped),
		Sentiment:          detectSentiment(lower),
	}

	parsed.ClarificationQuestions = missingParameterQuestions(parsed.Intent, parsed.Parameters)
	parsed.RequiresClarification = len(parsed.ClarificationQuestions) > 0

	return parsed
}

// sizeValuePattern splits a size entity like "8GB" into number and unit.
var sizeValuePattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

// inferParameters maps extracted entities and context keywords onto typed
// parameters. Malformed numeric values are silently skipped so one bad entity
// never fails the whole parse.
func inferParameters(lower string, entities map[EntityType][]string) map[string]any {
	params := make(map[string]any)

	if values := entities[EntityMemory]; len(values) > 0 {
		if sized, ok := parseSize(values[0]); ok {
			params["memory"] = sized
		}
	}
	if values := entities[EntityStorage]; len(values) > 0 {
		if sized, ok := parseSize(values[0]); ok {
			params["storage"] = sized
		}
	}
	if values := entities[EntityCPUCores]; len(values) > 0 {
		if cores, err := strconv.Atoi(values[0]); err == nil {
			params["cpu_cores"] = cores
		}
	}
	if values := entities[EntityVMCount]; len(values) > 0 {
		if count, err := strconv.Atoi(values[0]); err == nil {
			params["vm_count"] = count
		}
	}
	if values := entities[EntityTechnology]; len(values) > 0 {
		params["technologies"] = values
		for _, tech := range values {
			if isIaCTool(tech) {
				params["tool"] = tech
				break
			}
		}
	}

	for _, env := range []string{"production", "staging", "development", "test"} {
		if strings.Contains(lower, env) {
			params["environment"] = env
			break
		}
	}

	if strings.Contains(lower, " from ") && strings.Contains(lower, " to ") {
		if source, target, ok := extractMigrationEndpoints(lower); ok {
			params["source"] = source
			params["target"] = target
		}
	}

	return params
}

// SizedValue is a number with its unit, e.g. {Value: 8, Unit: "GB"}.
type SizedValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

func parseSize(raw string) (SizedValue, bool) {
	m := sizeValuePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return SizedValue{}, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return SizedValue{}, false
	}
	return SizedValue{Value: value, Unit: strings.ToUpper(m[2])}, true
}

func isIaCTool(tech string) bool {
	switch tech {
	case "terraform", "ansible", "puppet", "chef", "saltstack", "pulumi", "cloudformation":
		return true
	}
	return false
}

// extractMigrationEndpoints finds "from X to Y" technology pairs.
func extractMigrationEndpoints(lower string) (string, string, bool) {
	for _, source := range technologyNames {
		for _, target := range technologyNames {
			if source == target {
				continue
			}
			if strings.Contains(lower, "from "+source) && strings.Contains(lower, "to "+target) {
				return source, target, true
			}
		}
	}
	return "", "", false
}

func detectSkillLevel(lower string) SkillLevel {
	expert := countContained(lower, expertTerms)
	beginner := countContained(lower, beginnerTerms)

	switch {
	case expert > beginner && expert > 0:
		return SkillExpert
	case beginner > expert && beginner > 0:
		return SkillBeginner
	default:
		return SkillIntermediate
	}
}

func detectUrgency(lower string) Urgency {
	if countContained(lower, urgentTerms) > 0 {
		return UrgencyHigh
	}
	if countContained(lower, elevatedTerms) > 0 {
		return UrgencyMedium
	}
	return UrgencyLow
}

func detectComplexity(lower string) ComplexityLevel {
	best := ComplexityModerate
	bestCount := 0
	for _, bucket := range complexityBuckets {
		count := countContained(lower, bucket.Keywords)
		if count > bestCount {
			bestCount = count
			best = bucket.Level
		}
	}
	return best
}

// detectInfrastructureType walks the keyword table in declaration order and
// returns the first matching type. The declaration-order tie-break is
// deliberate and documented in the table definition.
func detectInfrastructureType(lower string) InfrastructureType {
	for _, row := range infrastructureTypeTable {
		for _, keyword := range row.Keywords {
			if strings.Contains(lower, keyword) {
				return row.Type
			}
		}
	}
	return InfraUnknown
}

func detectSentiment(lower string) Sentiment {
	positive := countContained(lower, positiveTerms)
	negative := countContained(lower, negativeTerms)
	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func collectTechnicalTerms(entities map[EntityType][]string) []string {
	terms := entities[EntityTechnology]
	if len(terms) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(terms))
	unique := make([]string, 0, len(terms))
	for _, term := range terms {
		if !seen[term] {
			seen[term] = true
			unique = append(unique, term)
		}
	}
	return unique
}

// missingParameterQuestions returns one clarification question per missing
// required parameter for the intent.
func missingParameterQuestions(intent IntentType, params map[string]any) []string {
	required, exists := requiredParameters[intent]
	if !exists {
		return []string{}
	}

	var questions []string
	for _, name := range required {
		if _, present := params[name]; present {
			continue
		}
		question, known := clarificationQuestions[name]
		if !known {
			question = fmt.Sprintf("Could you provide a value for %s?", name)
		}
		questions = append(questions, question)
	}
	if questions == nil {
		return []string{}
	}
	return questions
}

func countContained(lower string, terms []string) int {
	count := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			count++
		}
	}
	return count
}
