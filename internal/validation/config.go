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

package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// VM memory bounds in megabytes for structural checks.
const (
	MinVMMemoryMB = 512
	MaxVMMemoryMB = 131072
	// MinVMCores and MaxVMCores bound the vCPU allocation.
	MinVMCores = 1
	MaxVMCores = 128
)

// Severity weights for the holistic assessment score.
const (
	weightCritical = 10
	weightError    = 5
	weightWarning  = 2
	weightInfo     = 1
)

// ConfigFormat reports how a configuration artifact was parsed.
type ConfigFormat string

// Parse outcomes; the fallback order JSON → YAML → raw is deliberate and
// first successful parse wins.
const (
	FormatJSON ConfigFormat = "json"
	FormatYAML ConfigFormat = "yaml"
	FormatRaw  ConfigFormat = "raw"
)

// hardcodedSecretPattern flags credential literals embedded in configuration
// regardless of config type.
var hardcodedSecretPattern = regexp.MustCompile(
	`(?i)(password|passwd|secret|api_key|apikey|access_key|private_key|token)\s*[:=]\s*["'][^"']+["']`)

// SecurityAssessment is the holistic grade over a set of findings.
type SecurityAssessment struct {
	OverallScore float64   `json:"overall_score"`
	RiskLevel    Risk      `json:"risk_level"`
	Findings     []Result  `json:"findings"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ConfigValidator screens infrastructure configuration artifacts.
type ConfigValidator struct{}

// NewConfigValidator creates a config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateInfrastructureConfig parses the artifact (JSON, then YAML, then
// raw), runs domain structural checks on parsed content, and scans for
// hardcoded secrets regardless of format. configType names the artifact kind
// ("terraform", "ansible", "vm"); domain scopes the structural checks.
func (v *ConfigValidator) ValidateInfrastructureConfig(config, configType, domain string) []Result {
	parsed, format, parseResult := parseConfig(config)

	var results []Result
	if parseResult != nil {
		results = append(results, *parseResult)
	}

	if parsed != nil {
		results = append(results, v.structuralChecks(parsed, configType, domain)...)
	}

	if hardcodedSecretPattern.MatchString(config) {
		results = append(results, Result{
			Category:    CategorySecurity,
			Level:       LevelCritical,
			Message:     "configuration contains a hardcoded credential",
			Description: fmt.Sprintf("A credential literal was found in the %s artifact.", format),
			Remediation: "Move credentials to a secret manager and reference them by name.",
		})
	}

	return gradeRisk(results)
}

// parseConfig tries JSON, then YAML, then falls back to raw. The returned
// Result is non-nil only for the raw fallback, reported as a SYNTAX error
// rather than a fatal failure.
func parseConfig(config string) (map[string]interface{}, ConfigFormat, *Result) {
	var viaJSON map[string]interface{}
	if err := json.Unmarshal([]byte(config), &viaJSON); err == nil {
		return viaJSON, FormatJSON, nil
	}

	var viaYAML map[string]interface{}
	if err := yaml.Unmarshal([]byte(config), &viaYAML); err == nil && viaYAML != nil {
		return viaYAML, FormatYAML, nil
	}

	return nil, FormatRaw, &Result{
		Category:    CategorySyntax,
		Level:       LevelError,
		Message:     "configuration is not valid JSON or YAML",
		Description: "Structural checks were skipped; only content scanning was applied.",
		Remediation: "Fix the artifact syntax and revalidate.",
	}
}

// structuralChecks applies domain-specific field and bounds checks.
func (v *ConfigValidator) structuralChecks(parsed map[string]interface{}, configType, domain string) []Result {
	var results []Result

	switch domain {
	case "virtualization", "vm":
		results = append(results, checkVMConfig(parsed)...)
	}

	if configType == "terraform" {
		if _, hasBackend := parsed["backend"]; !hasBackend {
			if _, hasTerraformBlock := parsed["terraform"]; !hasTerraformBlock {
				results = append(results, Result{
					Category:    CategoryStructure,
					Level:       LevelWarning,
					Message:     "no state backend configured",
					Remediation: "Configure a remote backend with locking for shared state.",
				})
			}
		}
	}

	return results
}

// checkVMConfig validates a VM definition's required fields and bounds.
func checkVMConfig(parsed map[string]interface{}) []Result {
	var results []Result

	if _, exists := parsed["name"]; !exists {
		results = append(results, Result{
			Category:    CategoryStructure,
			Level:       LevelError,
			Message:     "VM configuration is missing the name field",
			Remediation: "Add a unique name for the VM.",
		})
	}

	if memory, exists := numericField(parsed, "memory", "memory_mb"); exists {
		if memory < MinVMMemoryMB || memory > MaxVMMemoryMB {
			results = append(results, Result{
				Category: CategoryStructure,
				Level:    LevelError,
				Message: fmt.Sprintf("VM memory %.0f MB is outside the allowed range %d-%d MB",
					memory, MinVMMemoryMB, MaxVMMemoryMB),
				Remediation: "Size memory within the supported range.",
			})
		}
	} else {
		results = append(results, Result{
			Category:    CategoryStructure,
			Level:       LevelWarning,
			Message:     "VM configuration does not declare memory",
			Remediation: "Declare an explicit memory allocation.",
		})
	}

	if cores, exists := numericField(parsed, "cores", "cpu_cores", "vcpus"); exists {
		if cores < MinVMCores || cores > MaxVMCores {
			results = append(results, Result{
				Category: CategoryStructure,
				Level:    LevelError,
				Message: fmt.Sprintf("VM core count %.0f is outside the allowed range %d-%d",
					cores, MinVMCores, MaxVMCores),
				Remediation: "Allocate a supported number of vCPUs.",
			})
		}
	}

	return results
}

// numericField reads the first present key as a float64, covering the int
// and float shapes both JSON and YAML decoders produce.
func numericField(parsed map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, exists := parsed[key]
		if !exists {
			continue
		}
		switch n := value.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}

// AssessSecurity grades a finding set. The score starts at 100 and loses the
// severity-weighted deduction normalized by (finding count × 10); one or
// more CRITICAL findings force the risk level to CRITICAL regardless of the
// numeric score.
func AssessSecurity(findings []Result) SecurityAssessment {
	assessment := SecurityAssessment{
		OverallScore: 100,
		RiskLevel:    RiskLow,
		Findings:     findings,
		GeneratedAt:  time.Now(),
	}
	if len(findings) == 0 {
		return assessment
	}

	totalWeight := 0
	critical := false
	for _, finding := range findings {
		switch finding.Level {
		case LevelCritical:
			totalWeight += weightCritical
			critical = true
		case LevelError:
			totalWeight += weightError
		case LevelWarning:
			totalWeight += weightWarning
		default:
			totalWeight += weightInfo
		}
	}

	deduction := float64(totalWeight) / float64(len(findings)*10) * 100
	assessment.OverallScore = 100 - deduction

	switch {
	case critical:
		assessment.RiskLevel = RiskCritical
	case assessment.OverallScore >= 80:
		assessment.RiskLevel = RiskLow
	case assessment.OverallScore >= 50:
		assessment.RiskLevel = RiskMedium
	default:
		assessment.RiskLevel = RiskHigh
	}
	return assessment
}
