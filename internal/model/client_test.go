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

package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const mockChatResponse = `{
	"id": "chatcmpl-test",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "llama3.1:8b-instruct",
	"choices": [
		{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "Use cloud-init templates for repeatable provisioning."
			},
			"finish_reason": "stop"
		}
	],
	"usage": {
		"prompt_tokens": 42,
		"completion_tokens": 17,
		"total_tokens": 59
	}
}`

// mockModelServer serves an OpenAI-compatible chat completion endpoint.
func mockModelServer(_ testing.TB, handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" && r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not found"}`))
			return
		}
		handler(w, r)
	}))
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL: baseURL,
		Model:   "llama3.1:8b-instruct",
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewClient(Config{}, logger); err == nil {
		t.Error("expected error for missing base URL")
	}

	client, err := NewClient(Config{BaseURL: "http://localhost:11434/v1"}, logger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.model != DefaultModel {
		t.Errorf("model = %q, want %q", client.model, DefaultModel)
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.timeout, DefaultTimeout)
	}
}

func TestGenerate(t *testing.T) {
	server := mockModelServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mockChatResponse))
	})
	defer server.Close()

	client := testClient(t, server.URL+"/v1")

	result, err := client.Generate(context.Background(), "You are an infrastructure advisor.", "How do I provision a VM?", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Error("expected successful result")
	}
	if result.Text == "" {
		t.Error("expected non-empty completion text")
	}
	if result.TokensGenerated != 17 {
		t.Errorf("TokensGenerated = %d, want 17", result.TokensGenerated)
	}
	if result.ModelUsed != "llama3.1:8b-instruct" {
		t.Errorf("ModelUsed = %q", result.ModelUsed)
	}
	if result.ProcessingTime <= 0 {
		t.Error("expected positive processing time")
	}
}

func TestGenerateRequiresMessage(t *testing.T) {
	server := mockModelServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mockChatResponse))
	})
	defer server.Close()

	client := testClient(t, server.URL+"/v1")
	if _, err := client.Generate(context.Background(), "system", "", GenerateOptions{}); err == nil {
		t.Error("expected error for empty user message")
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := mockModelServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": "loading model"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mockChatResponse))
	})
	defer server.Close()

	client := testClient(t, server.URL+"/v1")
	client.backoff.BaseDelay = time.Millisecond
	client.backoff.Jitter = false

	result, err := client.Generate(context.Background(), "system", "question", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success {
		t.Error("expected success after retry")
	}
	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Errorf("calls = %d, want at least 2", got)
	}
}

func TestGenerateFailureReturnsMetadata(t *testing.T) {
	server := mockModelServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "exploded"}`))
	})
	defer server.Close()

	client := testClient(t, server.URL+"/v1")
	client.backoff.BaseDelay = time.Millisecond
	client.backoff.MaxRetries = 1
	client.backoff.Jitter = false

	result, err := client.Generate(context.Background(), "system", "question", GenerateOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if result == nil {
		t.Fatal("expected result metadata alongside error")
	}
	if result.Success {
		t.Error("Success should be false on failure")
	}
	if result.ModelUsed != "llama3.1:8b-instruct" {
		t.Errorf("ModelUsed = %q", result.ModelUsed)
	}
}

func TestPing(t *testing.T) {
	server := mockModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object": "list", "data": [{"id": "llama3.1:8b-instruct", "object": "model"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	client := testClient(t, server.URL+"/v1")
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	server.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected ping failure after server shutdown")
	}
}
