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

package recommend

import (
	"math"
	"testing"
	"time"
)

// bareContext has every safeguard missing, so most rules fire.
func bareContext() InfrastructureContext {
	return InfrastructureContext{
		VMCount:            10,
		TotalCores:         40,
		CPUUtilization:     0.5,
		MemoryUtilization:  0.5,
		StorageUtilization: 0.5,
		EnvironmentType:    "production",
	}
}

// hardenedContext fires no rules at all.
func hardenedContext() InfrastructureContext {
	return InfrastructureContext{
		VMCount:              10,
		TotalCores:           40,
		CPUUtilization:       0.5,
		MemoryUtilization:    0.5,
		StorageUtilization:   0.5,
		NetworkUtilization:   0.3,
		EnvironmentType:      "production",
		SecurityFeatures:     []string{"firewall", "ssh_keys", "network_segmentation"},
		BackupConfigured:     true,
		MonitoringConfigured: true,
	}
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   float64
	}{
		{"zero start is safe", []float64{0, 5, 10}, 0.0},
		{"single element", []float64{42}, 0.0},
		{"empty series", nil, 0.0},
		{"two elements below minimum", []float64{10, 20}, 0.0},
		{"flat series", []float64{10, 10, 10}, 0.0},
		{"doubling over two periods", []float64{10, 15, 40}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := growthRate(tt.series)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("growthRate(%v) = %v, want %v", tt.series, got, tt.want)
			}
		})
	}
}

func TestEvaluatePriorityOrdering(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	recs := engine.Evaluate(bareContext(), nil)

	if len(recs) == 0 {
		t.Fatal("bare context should produce recommendations")
	}
	for i := 1; i < len(recs); i++ {
		prev, curr := recs[i-1], recs[i]
		prevRank, currRank := priorityRank(prev.Priority), priorityRank(curr.Priority)
		if prevRank > currRank {
			t.Errorf("position %d: priority %s after %s", i, curr.Priority, prev.Priority)
		}
		if prevRank == currRank && prev.Confidence < curr.Confidence {
			t.Errorf("position %d: confidence %v after %v within priority %s",
				i, curr.Confidence, prev.Confidence, curr.Priority)
		}
	}
}

func TestEvaluateUniqueIDs(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	recs := engine.Evaluate(bareContext(), nil)

	seen := make(map[string]bool)
	for _, rec := range recs {
		if rec.ID == "" {
			t.Error("recommendation with empty ID")
		}
		if seen[rec.ID] {
			t.Errorf("duplicate recommendation ID %s", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestRuleIsolation(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	if err := engine.RegisterRule(Rule{
		ID:       "test-panics",
		Category: CategoryBestPractices,
		Title:    "always panics",
		Priority: PriorityInfo,
		Condition: func(InfrastructureContext) bool {
			panic("deliberate rule failure")
		},
	}); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	recs := engine.Evaluate(bareContext(), nil)
	if len(recs) == 0 {
		t.Fatal("panicking rule must not abort the evaluation batch")
	}
	for _, rec := range recs {
		if rec.Title == "always panics" {
			t.Error("panicking rule leaked a recommendation")
		}
	}
}

func TestRegisterRuleRejectsDuplicateID(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	if err := engine.RegisterRule(Rule{ID: "sec-no-firewall"}); err == nil {
		t.Error("duplicate rule ID accepted")
	}
}

func TestMonitoringInjection(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)

	// Security findings with monitoring already configured: the monitoring
	// rule does not fire, so the injected suggestion must appear once.
	infra := bareContext()
	infra.MonitoringConfigured = true
	recs := engine.Evaluate(infra, nil)

	monitoring := 0
	security := 0
	for _, rec := range recs {
		switch rec.Type {
		case CategoryMonitoring:
			monitoring++
		case CategorySecurity:
			security++
		}
	}
	if security == 0 {
		t.Fatal("expected security recommendations from the bare context")
	}
	if monitoring != 1 {
		t.Errorf("expected exactly one injected monitoring recommendation, got %d", monitoring)
	}

	// A fully hardened context produces nothing, including no injection.
	if recs := engine.Evaluate(hardenedContext(), nil); len(recs) != 0 {
		t.Errorf("hardened context produced %d recommendations, want 0", len(recs))
	}
}

func TestFocusAreaFilter(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	recs := engine.Evaluate(bareContext(), []string{"security"})

	if len(recs) == 0 {
		t.Fatal("expected security recommendations")
	}
	for _, rec := range recs {
		// The injected monitoring follow-up survives the filter because
		// injection runs after it.
		if rec.Type != CategorySecurity && rec.Type != CategoryMonitoring {
			t.Errorf("focus filter leaked category %s", rec.Type)
		}
	}
}

func TestTrendAndAnomalyRecommendations(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)

	infra := hardenedContext()
	infra.CPUHistory = []float64{0.2, 0.3, 0.5}    // ~58% growth per period
	infra.MemoryHistory = []float64{0.3, 0.3, 0.3} // flat
	infra.NetworkUtilization = 0.95
	infra.TotalCores = 120 // 12 cores per VM

	recs := engine.Evaluate(infra, nil)

	titles := make(map[string]bool)
	for _, rec := range recs {
		titles[rec.Title] = true
	}
	if !titles["Plan CPU capacity expansion"] {
		t.Error("missing CPU growth recommendation")
	}
	if titles["Plan memory capacity expansion"] {
		t.Error("flat memory series produced a growth recommendation")
	}
	if !titles["Investigate network saturation"] {
		t.Error("missing network saturation recommendation")
	}
	if !titles["Review VM core allocations"] {
		t.Error("missing cores-per-VM recommendation")
	}
}

func TestEvaluationCache(t *testing.T) {
	engine := NewEngine(DefaultThresholds(), nil)
	current := time.Now()
	engine.now = func() time.Time { return current }

	infra := bareContext()
	first := engine.Evaluate(infra, nil)
	second := engine.Evaluate(infra, nil)

	if len(first) != len(second) {
		t.Fatalf("cache changed result size: %d vs %d", len(first), len(second))
	}
	// Cached results are returned verbatim, IDs included.
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d: cache miss produced new ID", i)
		}
	}

	// A different snapshot misses the cache.
	infra.VMCount++
	third := engine.Evaluate(infra, nil)
	if len(third) > 0 && len(first) > 0 && third[0].ID == first[0].ID {
		t.Error("different context served from cache")
	}

	// Past the TTL the entry is stale.
	current = current.Add(CacheTTL + time.Second)
	infra.VMCount--
	fourth := engine.Evaluate(infra, nil)
	if len(fourth) > 0 && fourth[0].ID == first[0].ID {
		t.Error("stale cache entry served past TTL")
	}
}
