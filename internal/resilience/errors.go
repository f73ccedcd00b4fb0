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
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorCode identifies a failure class in API responses.
type ErrorCode string

const (
	ErrorCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeTimeout          ErrorCode = "TIMEOUT"
	ErrorCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrorCodeStorageFailure   ErrorCode = "STORAGE_FAILURE"
	ErrorCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON error body every endpoint returns.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceError carries the HTTP mapping alongside the wrapped cause.
// The Message is safe to show a user; Internal is for logs only.
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Internal }

// ToErrorResponse renders the error for an API response.
func (e *ServiceError) ToErrorResponse(requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     e.Message,
		Code:      string(e.Code),
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// NewTimeoutError marks an operation that outran its deadline.
func NewTimeoutError(message string, cause error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeTimeout,
		StatusCode: http.StatusRequestTimeout,
		Internal:   cause,
	}
}

// NewBadRequestError marks invalid caller input.
func NewBadRequestError(message string, cause error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       ErrorCodeBadRequest,
		StatusCode: http.StatusBadRequest,
		Internal:   cause,
	}
}

// ErrorHandler converts internal failures into ServiceErrors with
// user-presentable messages, logging the original cause.
type ErrorHandler struct {
	logger *zap.Logger
}

func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// WrapError classifies err and returns a ServiceError describing the
// failure in terms of the operation, never the raw cause.
func (eh *ErrorHandler) WrapError(err error, operation string) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	code, status, message := classify(err, operation)

	eh.logger.Error("Operation failed",
		zap.String("operation", operation),
		zap.String("error_code", string(code)),
		zap.Error(err))

	return &ServiceError{
		Message:    message,
		Code:       code,
		StatusCode: status,
		Internal:   err,
	}
}

// classify maps a raw error to a code, HTTP status and user message.
// Sentinels first, then a few substring heuristics for errors that
// cross package boundaries as plain strings.
func classify(err error, operation string) (ErrorCode, int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout, http.StatusRequestTimeout,
			"The request took too long. Please try again."
	case errors.Is(err, ErrCircuitBreakerOpen):
		return ErrorCodeModelUnavailable, http.StatusServiceUnavailable,
			"The model endpoint is temporarily unavailable. Please try again in a few minutes."
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return ErrorCodeTimeout, http.StatusRequestTimeout,
			"The request took too long. Please try again."
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset"):
		return ErrorCodeModelUnavailable, http.StatusBadGateway,
			"Unable to reach the model endpoint. Please try again later."
	case strings.Contains(msg, "database") || strings.Contains(msg, "sqlite"):
		return ErrorCodeStorageFailure, http.StatusInternalServerError,
			"A storage error occurred. Please try again."
	case strings.Contains(msg, "not found"):
		return ErrorCodeNotFound, http.StatusNotFound,
			"The requested resource was not found."
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "required"):
		return ErrorCodeBadRequest, http.StatusBadRequest,
			"The request is invalid. Please check your input."
	default:
		return ErrorCodeInternal, http.StatusInternalServerError,
			fmt.Sprintf("An error occurred while %s. Please try again.", operation)
	}
}
