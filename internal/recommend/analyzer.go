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
	"fmt"
	"math"
)

// Thresholds holds the tunable limits for trend and anomaly analysis.
// Utilization values are fractions in [0,1]; growth rates are per-period
// ratios.
type Thresholds struct {
	CPUGrowthPerPeriod    float64 `json:"cpu_growth_per_period"`
	MemoryGrowthPerPeriod float64 `json:"memory_growth_per_period"`
	NetworkUtilization    float64 `json:"network_utilization"`
	HighCPU               float64 `json:"high_cpu"`
	HighMemory            float64 `json:"high_memory"`
	MaxCoresPerVM         float64 `json:"max_cores_per_vm"`
}

// DefaultThresholds returns the stock analysis limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUGrowthPerPeriod:    0.10,
		MemoryGrowthPerPeriod: 0.15,
		NetworkUtilization:    0.90,
		HighCPU:               0.80,
		HighMemory:            0.80,
		MaxCoresPerVM:         8,
	}
}

// growthRate computes the per-period compound growth rate of a utilization
// series: (last/first)^(1/(n-1)) - 1. Series shorter than three points or
// starting at zero yield 0.0 rather than an error; there is no trend to
// report in either case.
func growthRate(series []float64) float64 {
	if len(series) < 3 {
		return 0.0
	}
	first := series[0]
	last := series[len(series)-1]
	if first == 0 {
		return 0.0
	}
	return math.Pow(last/first, 1.0/float64(len(series)-1)) - 1.0
}

// analyzeTrends emits capacity-planning recommendations when utilization is
// growing faster than the configured per-period limits.
func (e *Engine) analyzeTrends(infra InfrastructureContext) []Recommendation {
	var recommendations []Recommendation

	cpuRate := growthRate(infra.CPUHistory)
	if cpuRate > e.thresholds.CPUGrowthPerPeriod {
		recommendations = append(recommendations, e.newRecommendation(
			CategoryCapacityPlanning,
			"Plan CPU capacity expansion",
			fmt.Sprintf("CPU utilization is growing %.1f%% per period; at this rate current capacity will saturate.", cpuRate*100),
			PriorityHigh, 0.8,
			[]string{
				"Forecast the saturation date from the observed growth",
				"Budget additional compute before the projected date",
				"Check whether the growth traces to one workload that can be tuned",
			},
			"Compute procurement lead time usually exceeds the remaining headroom once growth is visible.",
		))
	}

	memRate := growthRate(infra.MemoryHistory)
	if memRate > e.thresholds.MemoryGrowthPerPeriod {
		recommendations = append(recommendations, e.newRecommendation(
			CategoryCapacityPlanning,
			"Plan memory capacity expansion",
			fmt.Sprintf("Memory utilization is growing %.1f%% per period.", memRate*100),
			PriorityHigh, 0.8,
			[]string{
				"Identify the guests driving memory growth",
				"Add RAM or rebalance before overcommitment starts swapping",
			},
			"Memory exhaustion degrades every guest on the host simultaneously.",
		))
	}

	return recommendations
}

// detectAnomalies applies fixed utilization thresholds. Deliberately not
// statistical; the limits come from configuration, not from the data.
func (e *Engine) detectAnomalies(infra InfrastructureContext) []Recommendation {
	var recommendations []Recommendation

	if infra.NetworkUtilization > e.thresholds.NetworkUtilization {
		recommendations = append(recommendations, e.newRecommendation(
			CategoryPerformance,
			"Investigate network saturation",
			fmt.Sprintf("Network utilization is at %.0f%%, above the %.0f%% limit.",
				infra.NetworkUtilization*100, e.thresholds.NetworkUtilization*100),
			PriorityHigh, 0.85,
			[]string{
				"Identify the top traffic sources",
				"Check for backup or replication jobs running in business hours",
				"Consider link aggregation or a faster uplink",
			},
			"Saturated links drop packets and inflate latency for every workload.",
		))
	}

	if infra.CPUUtilization > e.thresholds.HighCPU && infra.MemoryUtilization > e.thresholds.HighMemory {
		recommendations = append(recommendations, e.newRecommendation(
			CategoryCapacityPlanning,
			"Resolve combined CPU and memory saturation",
			"CPU and memory are both above their high-utilization limits at the same time; the host fleet is at capacity.",
			PriorityCritical, 0.9,
			[]string{
				"Add host capacity or migrate workloads off the saturated hosts",
				"Freeze new VM provisioning until headroom is restored",
			},
			"Simultaneous CPU and memory saturation leaves no failover headroom at all.",
		))
	}

	if infra.VMCount > 0 {
		coresPerVM := float64(infra.TotalCores) / float64(infra.VMCount)
		if coresPerVM > e.thresholds.MaxCoresPerVM {
			recommendations = append(recommendations, e.newRecommendation(
				CategoryCostOptimization,
				"Review VM core allocations",
				fmt.Sprintf("VMs average %.1f cores each, above the %.0f-core guideline; allocations look oversized.",
					coresPerVM, e.thresholds.MaxCoresPerVM),
				PriorityMedium, 0.7,
				[]string{
					"Compare per-VM CPU usage with allocation",
					"Shrink guests that never use their vCPUs; co-scheduling overhead grows with width",
				},
				"Wide idle VMs waste schedulable capacity and slow down genuinely busy guests.",
			))
		}
	}

	return recommendations
}
