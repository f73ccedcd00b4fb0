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

// Package pipeline composes input validation, intent parsing, conversation
// context tracking, knowledge retrieval, recommendation evaluation and the
// model call into a single per-request chat flow.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/infra-advisor/internal/audit"
	"github.com/your-org/infra-advisor/internal/contextengine"
	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/model"
	"github.com/your-org/infra-advisor/internal/nlp"
	"github.com/your-org/infra-advisor/internal/recommend"
	"github.com/your-org/infra-advisor/internal/validation"
)

const (
	// MaxPromptTopics bounds how many knowledge topics are folded into the
	// turn addendum.
	MaxPromptTopics = 3
	// MaxPromptRecommendations bounds how many recommendations are folded
	// into the turn addendum.
	MaxPromptRecommendations = 5

	blockedResponseText = "This request was blocked by input validation. " +
		"It contains patterns associated with injection or traversal attacks " +
		"and was not processed. Remove the flagged content and try again."

	modelFailureText = "The advisor could not generate a response right now. " +
		"Your request was understood and your session context has been kept; " +
		"please try again shortly."
)

// Request is a single chat turn submitted to the pipeline.
type Request struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`

	// Infrastructure is an optional state snapshot; when present the
	// recommendation engine is consulted.
	Infrastructure *recommend.InfrastructureContext `json:"infrastructure,omitempty"`
	FocusAreas     []string                         `json:"focus_areas,omitempty"`

	// ConfigArtifact is an optional configuration payload to validate
	// alongside the chat turn.
	ConfigArtifact string `json:"config_artifact,omitempty"`
	ConfigType     string `json:"config_type,omitempty"`
}

// Response is the assembled result of one chat turn.
type Response struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`

	Blocked     bool   `json:"blocked"`
	BlockReason string `json:"block_reason,omitempty"`
	Sanitized   bool   `json:"sanitized"`

	Intent         *nlp.ParsedIntent             `json:"intent,omitempty"`
	Domain         knowledge.Domain              `json:"domain,omitempty"`
	ExpertiseLevel knowledge.ExpertiseLevel      `json:"expertise_level,omitempty"`
	SwitchEvent    *contextengine.SwitchEvent    `json:"switch_event,omitempty"`
	Clarifications []string                      `json:"clarifications,omitempty"`

	Recommendations []recommend.Recommendation `json:"recommendations,omitempty"`
	InputFindings   []validation.Result        `json:"input_findings,omitempty"`
	ConfigFindings  []validation.Result        `json:"config_findings,omitempty"`
	ConfigAssessment *validation.SecurityAssessment `json:"config_assessment,omitempty"`

	TokensGenerated int           `json:"tokens_generated"`
	ModelUsed       string        `json:"model_used,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// Pipeline wires the advisor components together. All dependencies are
// injected; none are package-level singletons.
type Pipeline struct {
	parser          *nlp.Parser
	contextEngine   *contextengine.Engine
	kb              *knowledge.Base
	recommender     *recommend.Engine
	inputValidator  *validation.InputValidator
	configValidator *validation.ConfigValidator
	generator       model.Generator
	auditLog        *audit.Logger
	logger          *zap.Logger
	modelOptions    model.GenerateOptions
}

// Options configures optional pipeline behavior.
type Options struct {
	// MaxInputLength overrides the input validator limit when > 0.
	MaxInputLength int
	// ModelOptions are passed to every generation call.
	ModelOptions model.GenerateOptions
	// AuditLog, when non-nil, receives blocked and sanitized events.
	AuditLog *audit.Logger
}

// New creates a pipeline. The knowledge base must already be loaded;
// serving requests against an uninitialized base fails fast rather than
// returning partial knowledge.
func New(
	parser *nlp.Parser,
	contextEngine *contextengine.Engine,
	kb *knowledge.Base,
	recommender *recommend.Engine,
	generator model.Generator,
	opts Options,
	logger *zap.Logger,
) (*Pipeline, error) {
	if parser == nil || contextEngine == nil || kb == nil || recommender == nil || generator == nil {
		return nil, fmt.Errorf("all pipeline components are required")
	}
	if !kb.Ready() {
		return nil, fmt.Errorf("knowledge base is not initialized")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		parser:          parser,
		contextEngine:   contextEngine,
		kb:              kb,
		recommender:     recommender,
		inputValidator:  validation.NewInputValidator(opts.MaxInputLength),
		configValidator: validation.NewConfigValidator(),
		generator:       generator,
		auditLog:        opts.AuditLog,
		logger:          logger,
		modelOptions:    opts.ModelOptions,
	}, nil
}

// Process runs one chat turn end to end. Security-critical input findings
// reject the request before any model invocation. Model failures return a
// typed failure response, never an opaque error; the session context
// committed for the turn is retained either way.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	findings := p.inputValidator.ValidateUserInput(req.Message)
	if validation.HasCritical(findings) {
		p.recordAudit(audit.EventBlocked, req.SessionID, findings)
		p.logger.Warn("Request blocked by input validation",
			zap.String("session_id", req.SessionID),
			zap.Int("finding_count", len(findings)),
		)
		return &Response{
			Success:        false,
			Blocked:        true,
			BlockReason:    blockReason(findings),
			Text:           blockedResponseText,
			InputFindings:  findings,
			ProcessingTime: time.Since(start),
		}, nil
	}

	text, sanitized := p.inputValidator.Sanitize(req.Message, findings)
	if sanitized {
		p.recordAudit(audit.EventSanitized, req.SessionID, findings)
	}

	parsed := p.parser.Parse(text)

	conversation, switchEvent, err := p.contextEngine.ProcessTurn(ctx, req.SessionID, text, &parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation context: %w", err)
	}

	resp := &Response{
		Intent:         &parsed,
		Domain:         conversation.CurrentDomain,
		ExpertiseLevel: conversation.ExpertiseLevel,
		SwitchEvent:    switchEvent,
		Sanitized:      sanitized,
		InputFindings:  findings,
		Clarifications: parsed.ClarificationQuestions,
	}

	// Knowledge and recommendation lookups are pure reads of the settled
	// context snapshot.
	adapted, err := p.kb.GetDomainKnowledge(conversation.CurrentDomain, conversation.ExpertiseLevel, conversation.ActiveTechnologies)
	if err != nil {
		return nil, fmt.Errorf("knowledge lookup failed: %w", err)
	}

	if req.Infrastructure != nil {
		resp.Recommendations = p.recommender.Evaluate(*req.Infrastructure, req.FocusAreas)
	}

	if req.ConfigArtifact != "" {
		resp.ConfigFindings = p.configValidator.ValidateInfrastructureConfig(
			req.ConfigArtifact, req.ConfigType, string(conversation.CurrentDomain))
		assessment := validation.AssessSecurity(resp.ConfigFindings)
		resp.ConfigAssessment = &assessment
		if validation.HasCritical(resp.ConfigFindings) {
			p.recordAudit(audit.EventConfigRejected, req.SessionID, resp.ConfigFindings)
		}
	}

	prompt := p.contextEngine.GenerateContextualPrompt(
		conversation,
		promptTypeFor(parsed, req),
		p.buildTurnAddendum(adapted, resp.Recommendations, resp.ConfigAssessment),
	)

	result, genErr := p.generator.Generate(ctx, prompt, text, p.modelOptions)
	if genErr != nil || result == nil || !result.Success {
		p.logger.Error("Model generation failed, returning typed failure",
			zap.String("session_id", req.SessionID),
			zap.Error(genErr),
		)
		resp.Success = false
		resp.Text = modelFailureText
		if result != nil {
			resp.ModelUsed = result.ModelUsed
		}
		resp.ProcessingTime = time.Since(start)
		return resp, nil
	}

	resp.Success = true
	resp.Text = p.sanitizeOutput(req.SessionID, result.Text, resp)
	resp.TokensGenerated = result.TokensGenerated
	resp.ModelUsed = result.ModelUsed
	resp.ProcessingTime = time.Since(start)

	p.logger.Info("Chat turn processed",
		zap.String("session_id", req.SessionID),
		zap.String("intent", string(parsed.Intent)),
		zap.String("domain", string(conversation.CurrentDomain)),
		zap.Bool("switched", switchEvent != nil),
		zap.Int("tokens_generated", resp.TokensGenerated),
		zap.Duration("processing_time", resp.ProcessingTime),
	)

	return resp, nil
}

// sanitizeOutput scans the generated text with the same validator used for
// input. Critical findings in model output are redacted rather than served.
func (p *Pipeline) sanitizeOutput(sessionID, output string, resp *Response) string {
	findings := p.inputValidator.ValidateUserInput(output)
	if validation.HasCritical(findings) {
		p.recordAudit(audit.EventSanitized, sessionID, findings)
		resp.Sanitized = true
		return "The generated response contained content that failed the security review and was withheld."
	}
	cleaned, changed := p.inputValidator.Sanitize(output, findings)
	if changed {
		p.recordAudit(audit.EventSanitized, sessionID, findings)
		resp.Sanitized = true
	}
	return cleaned
}

func (p *Pipeline) recordAudit(eventType audit.EventType, sessionID string, findings []validation.Result) {
	if p.auditLog == nil {
		return
	}
	for _, finding := range findings {
		if err := p.auditLog.Record(eventType, sessionID, string(finding.Category), finding.Message); err != nil {
			p.logger.Warn("Failed to record audit event", zap.Error(err))
			return
		}
	}
}

// blockReason summarizes the critical findings for the caller.
func blockReason(findings []validation.Result) string {
	categories := make([]string, 0, len(findings))
	seen := make(map[string]bool)
	for _, finding := range findings {
		if finding.Level != validation.LevelCritical {
			continue
		}
		name := string(finding.Category)
		if len(finding.AffectedComponents) > 0 {
			name = finding.AffectedComponents[0]
		}
		if !seen[name] {
			seen[name] = true
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)
	return "critical findings: " + strings.Join(categories, ", ")
}

func promptTypeFor(parsed nlp.ParsedIntent, req Request) contextengine.PromptType {
	if req.ConfigArtifact != "" || parsed.Intent == nlp.IntentSecurityReview {
		return contextengine.PromptReview
	}
	if parsed.Intent == nlp.IntentTroubleshoot {
		return contextengine.PromptTroubleshooting
	}
	return contextengine.PromptSystem
}

// buildTurnAddendum folds the retrieved knowledge and any recommendations
// into a bounded per-turn prompt section.
func (p *Pipeline) buildTurnAddendum(
	adapted map[string]knowledge.AdaptedEntry,
	recommendations []recommend.Recommendation,
	assessment *validation.SecurityAssessment,
) string {
	var builder strings.Builder

	if len(adapted) > 0 {
		topics := make([]string, 0, len(adapted))
		for topic := range adapted {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		if len(topics) > MaxPromptTopics {
			topics = topics[:MaxPromptTopics]
		}

		builder.WriteString("Relevant reference material:\n")
		for _, topic := range topics {
			entry := adapted[topic]
			builder.WriteString("- ")
			builder.WriteString(topic)
			if len(entry.BestPractices) > 0 {
				builder.WriteString(": ")
				builder.WriteString(entry.BestPractices[0])
			}
			builder.WriteString("\n")
		}
	}

	if len(recommendations) > 0 {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("Current infrastructure recommendations to weave in:\n")
		limit := len(recommendations)
		if limit > MaxPromptRecommendations {
			limit = MaxPromptRecommendations
		}
		for _, rec := range recommendations[:limit] {
			builder.WriteString(fmt.Sprintf("- [%s] %s\n", rec.Priority, rec.Title))
		}
	}

	if assessment != nil {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf(
			"A submitted configuration scored %.0f/100 (risk: %s); address its findings in the answer.\n",
			assessment.OverallScore, assessment.RiskLevel))
	}

	return strings.TrimRight(builder.String(), "\n")
}
