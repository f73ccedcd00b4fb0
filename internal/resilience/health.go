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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthStatus is the reported condition of a component or the service.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckFunc probes one component. It must return within the
// context deadline the monitor sets.
type HealthCheckFunc func(ctx context.Context) HealthCheckResult

// HealthCheckResult is a single probe outcome.
type HealthCheckResult struct {
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status          HealthStatus                   `json:"status"`
	ServiceName     string                         `json:"service_name"`
	Version         string                         `json:"version,omitempty"`
	Timestamp       time.Time                      `json:"timestamp"`
	Uptime          time.Duration                  `json:"uptime"`
	Checks          map[string]HealthCheckResult   `json:"checks"`
	Dependencies    map[string]HealthCheckResult   `json:"dependencies"`
	CircuitBreakers map[string]CircuitBreakerStats `json:"circuit_breakers,omitempty"`
	Errors          []string                       `json:"errors,omitempty"`
}

type probe struct {
	name    string
	timeout time.Duration
	check   HealthCheckFunc
}

// HealthMonitor runs registered probes on demand and aggregates them
// into one report. Internal checks gate readiness; dependency checks
// and open breakers only degrade the report.
type HealthMonitor struct {
	serviceName string
	version     string
	startTime   time.Time
	logger      *zap.Logger

	mu           sync.RWMutex
	checks       []probe
	dependencies []probe
	breakers     map[string]*CircuitBreaker
}

func NewHealthMonitor(serviceName, version string, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		logger:      logger,
		breakers:    make(map[string]*CircuitBreaker),
	}
}

// AddCheck registers an internal component probe.
func (hm *HealthMonitor) AddCheck(name string, timeout time.Duration, check HealthCheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks = append(hm.checks, probe{name: name, timeout: timeout, check: check})
}

// AddDependency registers a probe for an external collaborator.
func (hm *HealthMonitor) AddDependency(name string, timeout time.Duration, check HealthCheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.dependencies = append(hm.dependencies, probe{name: name, timeout: timeout, check: check})
}

// AddCircuitBreaker includes a breaker's stats in the health report.
func (hm *HealthMonitor) AddCircuitBreaker(name string, cb *CircuitBreaker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.breakers[name] = cb
}

func runProbe(ctx context.Context, p probe) HealthCheckResult {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.check(probeCtx)
	result.Duration = time.Since(start)
	result.Timestamp = time.Now()
	if result.Status == "" {
		result.Status = HealthStatusHealthy
	}
	return result
}

// GetHealthReport runs every probe and aggregates the results.
func (hm *HealthMonitor) GetHealthReport(ctx context.Context) HealthReport {
	hm.mu.RLock()
	checks := append([]probe(nil), hm.checks...)
	dependencies := append([]probe(nil), hm.dependencies...)
	breakers := make(map[string]*CircuitBreaker, len(hm.breakers))
	for name, cb := range hm.breakers {
		breakers[name] = cb
	}
	hm.mu.RUnlock()

	report := HealthReport{
		ServiceName:  hm.serviceName,
		Version:      hm.version,
		Timestamp:    time.Now(),
		Uptime:       time.Since(hm.startTime),
		Checks:       make(map[string]HealthCheckResult, len(checks)),
		Dependencies: make(map[string]HealthCheckResult, len(dependencies)),
	}

	status := HealthStatusHealthy
	for _, p := range checks {
		result := runProbe(ctx, p)
		report.Checks[p.name] = result
		if result.Status == HealthStatusUnhealthy {
			status = HealthStatusUnhealthy
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", p.name, result.Message))
		}
	}
	for _, p := range dependencies {
		result := runProbe(ctx, p)
		report.Dependencies[p.name] = result
		if result.Status == HealthStatusUnhealthy {
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
			report.Errors = append(report.Errors, fmt.Sprintf("dependency %s: %s", p.name, result.Message))
		}
	}
	if len(breakers) > 0 {
		report.CircuitBreakers = make(map[string]CircuitBreakerStats, len(breakers))
		for name, cb := range breakers {
			stats := cb.GetStats()
			report.CircuitBreakers[name] = stats
			if stats.State == CircuitOpen && status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}
	}

	report.Status = status
	return report
}

// CreateHealthCheckHandler serves the full report. Degraded still
// returns 200 so load balancers keep routing while the model recovers.
func (hm *HealthMonitor) CreateHealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.GetHealthReport(r.Context())

		statusCode := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			hm.logger.Error("Failed to encode health report", zap.Error(err))
		}
	}
}

// CreateReadinessHandler fails only when an internal check fails.
func (hm *HealthMonitor) CreateReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.GetHealthReport(r.Context())
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready: %v", report.Errors)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ready")
	}
}
