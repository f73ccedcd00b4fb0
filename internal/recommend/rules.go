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

// Category groups recommendation rules.
type Category string

// Rule categories.
const (
	CategorySecurity         Category = "security"
	CategoryPerformance      Category = "performance"
	CategoryCostOptimization Category = "cost_optimization"
	CategoryScalability      Category = "scalability"
	CategoryBestPractices    Category = "best_practices"
	CategoryMonitoring       Category = "monitoring"
	CategoryCapacityPlanning Category = "capacity_planning"
)

// Rule is one condition→suggestion pair. Condition must be a pure predicate
// over the context; a panicking condition is isolated and skipped, never
// aborting the batch.
type Rule struct {
	ID                  string
	Category            Category
	Title               string
	Description         string
	Priority            Priority
	Confidence          float64
	ImplementationSteps []string
	Rationale           string
	Condition           func(InfrastructureContext) bool
}

// defaultRules returns the built-in rule registry. IDs are globally unique.
func defaultRules() []Rule {
	return []Rule{
		{
			ID:          "sec-no-firewall",
			Category:    CategorySecurity,
			Title:       "Enable a host firewall",
			Description: "No firewall is configured. Every exposed service is reachable from any network segment.",
			Priority:    PriorityCritical,
			Confidence:  0.9,
			ImplementationSteps: []string{
				"Enable the host firewall with a default-deny inbound policy",
				"Open only the ports your services require, scoped to known source ranges",
				"Document each rule with its owner",
			},
			Rationale: "Unfiltered network access is the most common initial intrusion path.",
			Condition: func(infra InfrastructureContext) bool {
				return !infra.HasSecurityFeature("firewall")
			},
		},
		{
			ID:          "sec-password-ssh",
			Category:    CategorySecurity,
			Title:       "Switch SSH to key-based authentication",
			Description: "Password SSH authentication is still enabled, exposing hosts to credential brute forcing.",
			Priority:    PriorityHigh,
			Confidence:  0.85,
			ImplementationSteps: []string{
				"Distribute SSH keys for all administrative users",
				"Set PasswordAuthentication no in sshd_config",
				"Reload sshd and verify key login before closing the session",
			},
			Rationale: "Key authentication removes the password guessing attack surface entirely.",
			Condition: func(infra InfrastructureContext) bool {
				return !infra.HasSecurityFeature("ssh_keys")
			},
		},
		{
			ID:          "sec-flat-network",
			Category:    CategorySecurity,
			Title:       "Segment the network by trust level",
			Description: "All workloads share one network segment; a single compromised guest can reach everything.",
			Priority:    PriorityMedium,
			Confidence:  0.75,
			ImplementationSteps: []string{
				"Define VLANs for management, storage, and guest traffic",
				"Apply default-deny rules between segments",
				"Move the hypervisor management interface off the guest network",
			},
			Rationale: "Segmentation bounds the blast radius of any single compromise.",
			Condition: func(infra InfrastructureContext) bool {
				return !infra.HasSecurityFeature("network_segmentation")
			},
		},
		{
			ID:          "perf-cpu-pressure",
			Category:    CategoryPerformance,
			Title:       "Relieve CPU pressure",
			Description: "Average CPU utilization is high enough that guests are likely contending for cycles.",
			Priority:    PriorityHigh,
			Confidence:  0.85,
			ImplementationSteps: []string{
				"Identify the busiest guests and check for runaway processes",
				"Rebalance VMs across hosts or add compute capacity",
				"Review CPU overcommitment ratios",
			},
			Rationale: "Sustained CPU saturation shows up as latency in every hosted workload.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.CPUUtilization > 0.85
			},
		},
		{
			ID:          "perf-memory-pressure",
			Category:    CategoryPerformance,
			Title:       "Relieve memory pressure",
			Description: "Memory utilization is high; ballooning or swapping will degrade guest performance.",
			Priority:    PriorityHigh,
			Confidence:  0.8,
			ImplementationSteps: []string{
				"Check for guests sized far above their working set",
				"Reduce memory overcommitment or add RAM",
				"Enable ballooning drivers where missing",
			},
			Rationale: "Host-level memory exhaustion degrades all guests at once, not just the offender.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.MemoryUtilization > 0.85
			},
		},
		{
			ID:          "cost-idle-fleet",
			Category:    CategoryCostOptimization,
			Title:       "Consolidate under-utilized VMs",
			Description: "The fleet is largely idle; consolidation would free hosts for other work or power savings.",
			Priority:    PriorityLow,
			Confidence:  0.65,
			ImplementationSteps: []string{
				"Identify VMs idle for more than 30 days",
				"Consolidate low-utilization workloads onto fewer hosts",
				"Power down or repurpose the freed hosts",
			},
			Rationale: "Idle capacity costs power, licenses, and maintenance attention.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.VMCount > 5 && infra.CPUUtilization < 0.2 && infra.MemoryUtilization < 0.3
			},
		},
		{
			ID:          "cost-nonprod-sizing",
			Category:    CategoryCostOptimization,
			Title:       "Right-size non-production VMs",
			Description: "Non-production VMs show very low utilization and are candidates for smaller allocations.",
			Priority:    PriorityInfo,
			Confidence:  0.55,
			ImplementationSteps: []string{
				"Compare allocated versus used resources over the last month",
				"Shrink allocations for dev and test guests",
			},
			Rationale: "Development workloads rarely need production-grade sizing.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.EnvironmentType != "production" && infra.CPUUtilization < 0.15
			},
		},
		{
			ID:          "scale-orchestration",
			Category:    CategoryScalability,
			Title:       "Introduce workload orchestration",
			Description: "The VM count has outgrown manual management; an orchestration layer would reduce drift and toil.",
			Priority:    PriorityMedium,
			Confidence:  0.7,
			ImplementationSteps: []string{
				"Introduce infrastructure-as-code for VM lifecycle",
				"Evaluate Kubernetes for containerizable workloads",
				"Automate provisioning through templates",
			},
			Rationale: "Beyond a few dozen VMs, per-host manual administration stops scaling.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.VMCount > 50 && !infra.UsesTechnology("kubernetes") && !infra.UsesTechnology("terraform")
			},
		},
		{
			ID:          "scale-storage-headroom",
			Category:    CategoryScalability,
			Title:       "Expand storage before it fills",
			Description: "Storage utilization is approaching capacity; expansion takes lead time you may not have later.",
			Priority:    PriorityMedium,
			Confidence:  0.8,
			ImplementationSteps: []string{
				"Project fill date from current growth",
				"Order or allocate additional storage now",
				"Archive or delete stale data where policy allows",
			},
			Rationale: "Full storage pools cause outages that arrive faster than procurement.",
			Condition: func(infra InfrastructureContext) bool {
				return infra.StorageUtilization > 0.8
			},
		},
		{
			ID:          "bp-no-backup",
			Category:    CategoryBestPractices,
			Title:       "Configure backups",
			Description: "No backup system is configured. Any storage failure or mistake is currently unrecoverable.",
			Priority:    PriorityCritical,
			Confidence:  0.95,
			ImplementationSteps: []string{
				"Define RPO and RTO per workload",
				"Configure scheduled backups with at least one offsite copy",
				"Test a restore end to end",
			},
			Rationale: "Unrecoverable data loss is the single worst infrastructure outcome.",
			Condition: func(infra InfrastructureContext) bool {
				return !infra.BackupConfigured
			},
		},
		{
			ID:          "mon-no-monitoring",
			Category:    CategoryMonitoring,
			Title:       "Deploy monitoring",
			Description: "No monitoring is configured; failures are currently discovered by users, not operators.",
			Priority:    PriorityHigh,
			Confidence:  0.85,
			ImplementationSteps: []string{
				"Deploy a metrics stack covering hosts and guests",
				"Alert on symptoms users would notice first",
				"Link a runbook from every alert",
			},
			Rationale: "Without monitoring, every other recommendation's effect is invisible.",
			Condition: func(infra InfrastructureContext) bool {
				return !infra.MonitoringConfigured
			},
		},
	}
}
