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

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWrapErrorClassification(t *testing.T) {
	eh := NewErrorHandler(zaptest.NewLogger(t))

	cases := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"deadline sentinel", fmt.Errorf("call failed: %w", context.DeadlineExceeded), ErrorCodeTimeout, http.StatusRequestTimeout},
		{"breaker sentinel", fmt.Errorf("generate: %w", ErrCircuitBreakerOpen), ErrorCodeModelUnavailable, http.StatusServiceUnavailable},
		{"timed out string", errors.New("operation timed out"), ErrorCodeTimeout, http.StatusRequestTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCodeModelUnavailable, http.StatusBadGateway},
		{"sqlite failure", errors.New("sqlite: database is locked"), ErrorCodeStorageFailure, http.StatusInternalServerError},
		{"missing session", errors.New("session not found"), ErrorCodeNotFound, http.StatusNotFound},
		{"missing field", errors.New("session_id is required"), ErrorCodeBadRequest, http.StatusBadRequest},
		{"unknown", errors.New("something odd"), ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			serviceErr := eh.WrapError(tc.err, "testing")
			if serviceErr.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, serviceErr.Code)
			}
			if serviceErr.StatusCode != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, serviceErr.StatusCode)
			}
			if !errors.Is(serviceErr, tc.err) {
				t.Error("wrapped error should unwrap to the cause")
			}
		})
	}
}

func TestWrapErrorPassesThroughServiceError(t *testing.T) {
	eh := NewErrorHandler(zaptest.NewLogger(t))

	original := NewBadRequestError("message is required", nil)
	wrapped := eh.WrapError(fmt.Errorf("processing turn: %w", original), "testing")

	if wrapped != original {
		t.Error("an existing ServiceError should be returned unchanged")
	}
}

func TestWrapErrorNil(t *testing.T) {
	eh := NewErrorHandler(zaptest.NewLogger(t))
	if eh.WrapError(nil, "testing") != nil {
		t.Error("nil error should wrap to nil")
	}
}

func TestToErrorResponse(t *testing.T) {
	serviceErr := NewTimeoutError("operation timed out", context.DeadlineExceeded)

	resp := serviceErr.ToErrorResponse("req-123")
	if resp.Error != "operation timed out" {
		t.Errorf("unexpected message %q", resp.Error)
	}
	if resp.Code != string(ErrorCodeTimeout) {
		t.Errorf("unexpected code %q", resp.Code)
	}
	if resp.RequestID != "req-123" {
		t.Errorf("unexpected request id %q", resp.RequestID)
	}
	if time.Since(resp.Timestamp) > time.Minute {
		t.Error("timestamp should be recent")
	}
}
