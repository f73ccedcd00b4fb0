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

package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/infra-advisor/internal/contextengine"
	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/model"
	"github.com/your-org/infra-advisor/internal/nlp"
	"github.com/your-org/infra-advisor/internal/recommend"
)

// mockGenerator counts invocations and returns a canned completion.
type mockGenerator struct {
	calls    int32
	fail     bool
	response string
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ string, _ model.GenerateOptions) (*model.GenerateResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.fail {
		return &model.GenerateResult{Success: false, ModelUsed: "mock"}, fmt.Errorf("generation failed")
	}
	text := m.response
	if text == "" {
		text = "Provision the VM from a hardened template and size it for the stated workload."
	}
	return &model.GenerateResult{
		Text:            text,
		Success:         true,
		TokensGenerated: 20,
		ModelUsed:       "mock",
	}, nil
}

func (m *mockGenerator) callCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

func newTestPipeline(t *testing.T, generator model.Generator) (*Pipeline, *contextengine.Engine) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	kb := knowledge.NewBase(logger)
	require.NoError(t, kb.Load())

	engine := contextengine.NewEngineWithStorage(contextengine.NewMemoryStorage(), logger)
	t.Cleanup(func() { _ = engine.Close() })

	recommender := recommend.NewEngine(recommend.DefaultThresholds(), logger)

	p, err := New(nlp.NewParser(), engine, kb, recommender, generator, Options{}, logger)
	require.NoError(t, err)
	return p, engine
}

func TestNewRequiresLoadedKnowledgeBase(t *testing.T) {
	logger := zaptest.NewLogger(t)
	engine := contextengine.NewEngineWithStorage(contextengine.NewMemoryStorage(), logger)
	defer func() { _ = engine.Close() }()

	_, err := New(nlp.NewParser(), engine, knowledge.NewBase(logger),
		recommend.NewEngine(recommend.DefaultThresholds(), logger), &mockGenerator{}, Options{}, logger)
	assert.Error(t, err)
}

func TestProcessHappyPath(t *testing.T) {
	generator := &mockGenerator{}
	p, _ := newTestPipeline(t, generator)

	resp, err := p.Process(context.Background(), Request{
		SessionID: "session-1",
		Message:   "Create a VM with 4 cores and 8GB RAM for production",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Blocked)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, 1, generator.callCount())
	require.NotNil(t, resp.Intent)
	assert.Equal(t, nlp.IntentCreateVM, resp.Intent.Intent)
	assert.Equal(t, 20, resp.TokensGenerated)
	assert.Equal(t, "mock", resp.ModelUsed)
	assert.Greater(t, resp.ProcessingTime.Nanoseconds(), int64(0))
}

func TestProcessBlocksInjectionWithoutModelCall(t *testing.T) {
	generator := &mockGenerator{}
	p, _ := newTestPipeline(t, generator)

	inputs := []string{
		"'; DROP TABLE users; --",
		"run this; rm -rf /tmp/data",
		"read ../../etc/passwd please",
		"eval(atob(payload))",
	}

	for _, input := range inputs {
		resp, err := p.Process(context.Background(), Request{
			SessionID: "session-block",
			Message:   input,
		})
		require.NoError(t, err, input)
		assert.True(t, resp.Blocked, input)
		assert.False(t, resp.Success, input)
		assert.NotEmpty(t, resp.BlockReason, input)
		assert.NotEmpty(t, resp.InputFindings, input)
	}

	assert.Equal(t, 0, generator.callCount(), "blocked requests must never reach the model")
}

func TestProcessModelFailureRetainsContext(t *testing.T) {
	generator := &mockGenerator{fail: true}
	p, engine := newTestPipeline(t, generator)

	resp, err := p.Process(context.Background(), Request{
		SessionID: "session-fail",
		Message:   "How should I configure a hypervisor cluster?",
	})
	require.NoError(t, err, "model failure must surface as a typed response, not an error")

	assert.False(t, resp.Success)
	assert.False(t, resp.Blocked)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, "mock", resp.ModelUsed)

	// Context bookkeeping from the turn is kept.
	conversation, err := engine.GetContext(context.Background(), "session-fail")
	require.NoError(t, err)
	assert.Len(t, conversation.ConversationHistory, 1)
}

func TestProcessValidatesRequest(t *testing.T) {
	p, _ := newTestPipeline(t, &mockGenerator{})

	_, err := p.Process(context.Background(), Request{Message: "hello"})
	assert.Error(t, err)

	_, err = p.Process(context.Background(), Request{SessionID: "s", Message: "   "})
	assert.Error(t, err)
}

func TestProcessIncludesRecommendations(t *testing.T) {
	p, _ := newTestPipeline(t, &mockGenerator{})

	resp, err := p.Process(context.Background(), Request{
		SessionID: "session-rec",
		Message:   "What should I improve in this environment?",
		Infrastructure: &recommend.InfrastructureContext{
			VMCount:    10,
			TotalCores: 40,
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Recommendations, "bare environment should trigger baseline rules")
}

func TestProcessValidatesConfigArtifact(t *testing.T) {
	p, _ := newTestPipeline(t, &mockGenerator{})

	resp, err := p.Process(context.Background(), Request{
		SessionID:      "session-config",
		Message:        "Review this VM definition",
		ConfigArtifact: `{"name": "web01", "memory_mb": 256, "cores": 2}`,
		ConfigType:     "vm",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConfigFindings, "undersized memory should be flagged")
	require.NotNil(t, resp.ConfigAssessment)
	assert.Less(t, resp.ConfigAssessment.OverallScore, 100.0)
}

func TestProcessDisclosesSanitization(t *testing.T) {
	p, _ := newTestPipeline(t, &mockGenerator{})

	// A warning-level URL finding is non-blocking; the pipeline proceeds
	// and marks that findings were present.
	resp, err := p.Process(context.Background(), Request{
		SessionID: "session-warn",
		Message:   "Can I expose gopher://example.com from the gateway?",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.InputFindings)
}

func TestProcessSessionLifecycle(t *testing.T) {
	p, engine := newTestPipeline(t, &mockGenerator{})

	for i := 0; i < 2; i++ {
		_, err := p.Process(context.Background(), Request{
			SessionID: "session-once",
			Message:   "Tell me about kubernetes upgrades",
		})
		require.NoError(t, err)
	}

	count, err := engine.SessionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
