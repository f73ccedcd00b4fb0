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
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWithTimeoutCompletes(t *testing.T) {
	logger := zaptest.NewLogger(t)

	err := WithTimeout(context.Background(), time.Second, logger, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithTimeoutPropagatesError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sentinel := errors.New("call failed")

	err := WithTimeout(context.Background(), time.Second, logger, func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the function's error, got %v", err)
	}
}

func TestWithTimeoutDeadline(t *testing.T) {
	logger := zaptest.NewLogger(t)

	err := WithTimeout(context.Background(), 10*time.Millisecond, logger, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected a ServiceError, got %v", err)
	}
	if serviceErr.Code != ErrorCodeTimeout {
		t.Errorf("expected code %s, got %s", ErrorCodeTimeout, serviceErr.Code)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout error should unwrap to context.DeadlineExceeded")
	}
}
