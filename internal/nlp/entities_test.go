package nlp

import (
	"strings"
	"testing"
)

func TestExtract_ResourceEntities(t *testing.T) {
	extractor := NewExtractor()

	testCases := []struct {
		name          string
		text          string
		expectedType  EntityType
		expectedValue string
	}{
		{
			name:          "memory with RAM suffix",
			text:          "Create a VM with 8GB RAM",
			expectedType:  EntityMemory,
			expectedValue: "8GB",
		},
		{
			name:          "cpu cores",
			text:          "I need 4 cores for this workload",
			expectedType:  EntityCPUCores,
			expectedValue: "4",
		},
		{
			name:          "storage size",
			text:          "Attach 500GB of storage",
			expectedType:  EntityStorage,
			expectedValue: "500GB",
		},
		{
			name:          "vm count",
			text:          "Provision 3 VMs in the cluster",
			expectedType:  EntityVMCount,
			expectedValue: "3",
		},
		{
			name:          "ip address",
			text:          "The gateway is 192.168.1.1 on this segment",
			expectedType:  EntityIPAddress,
			expectedValue: "192.168.1.1",
		},
		{
			name:          "network segment",
			text:          "Use the 10.0.0.0/24 subnet",
			expectedType:  EntityNetworkSegment,
			expectedValue: "10.0.0.0/24",
		},
		{
			name:          "port number",
			text:          "Open port 8006 on the firewall",
			expectedType:  EntityPort,
			expectedValue: "8006",
		},
		{
			name:          "technology name",
			text:          "Deploy it with Terraform please",
			expectedType:  EntityTechnology,
			expectedValue: "terraform",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entities := extractor.Extract(tc.text)

			found := false
			for _, entity := range entities {
				if entity.Type == tc.expectedType && entity.Value == tc.expectedValue {
					found = true
					if entity.Confidence != PatternConfidence {
						t.Errorf("Expected confidence %f, got %f", PatternConfidence, entity.Confidence)
					}
					if entity.Start < 0 || entity.End > len(tc.text) || entity.Start >= entity.End {
						t.Errorf("Invalid span [%d,%d) for text length %d", entity.Start, entity.End, len(tc.text))
					}
				}
			}

			if !found {
				t.Errorf("Expected entity %s=%q in %v", tc.expectedType, tc.expectedValue, entities)
			}
		})
	}
}

func TestExtract_EmptyAndAdversarialInput(t *testing.T) {
	extractor := NewExtractor()

	inputs := []string{
		"",
		"   ",
		strings.Repeat("a", 50000),
		"\x00\xff\xfe garbage \x01",
		"'; DROP TABLE users; --",
		strings.Repeat("8GB RAM ", 5000),
	}

	for _, input := range inputs {
		entities := extractor.Extract(input)
		if entities == nil {
			t.Errorf("Extract returned nil for input of length %d", len(input))
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	extractor := NewExtractor()
	text := "Create 2 VMs with 4 cores and 8GB RAM plus 100GB of disk on 10.0.0.0/24"

	first := extractor.Extract(text)
	second := extractor.Extract(text)

	if len(first) != len(second) {
		t.Fatalf("Extraction is not deterministic: %d vs %d entities", len(first), len(second))
	}

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Entity %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestExtract_OverlapKeepsHigherConfidence(t *testing.T) {
	entities := []Entity{
		{Type: EntityIPAddress, Value: "10.0.0.0", Confidence: 0.8, Start: 4, End: 12},
		{Type: EntityNetworkSegment, Value: "10.0.0.0/24", Confidence: 0.9, Start: 4, End: 15},
	}

	result := dedupeOverlapping(entities)

	if len(result) != 1 {
		t.Fatalf("Expected 1 entity after dedup, got %d", len(result))
	}
	if result[0].Type != EntityNetworkSegment {
		t.Errorf("Expected higher-confidence entity to win, got %s", result[0].Type)
	}
}

func TestExtract_CIDRNotDoubleCounted(t *testing.T) {
	extractor := NewExtractor()
	entities := extractor.Extract("route traffic for 10.20.0.0/16")

	segments := 0
	addresses := 0
	for _, entity := range entities {
		switch entity.Type {
		case EntityNetworkSegment:
			segments++
		case EntityIPAddress:
			addresses++
		}
	}

	if segments != 1 {
		t.Errorf("Expected 1 network segment, got %d", segments)
	}
	if addresses != 0 {
		t.Errorf("CIDR should not also produce a bare IP entity, got %d", addresses)
	}
}

func TestGroupByType(t *testing.T) {
	entities := []Entity{
		{Type: EntityTechnology, Value: "terraform"},
		{Type: EntityTechnology, Value: "proxmox"},
		{Type: EntityCPUCores, Value: "4"},
	}

	grouped := GroupByType(entities)

	if len(grouped[EntityTechnology]) != 2 {
		t.Errorf("Expected 2 technologies, got %d", len(grouped[EntityTechnology]))
	}
	if grouped[EntityTechnology][0] != "terraform" {
		t.Errorf("Expected extraction order preserved, got %v", grouped[EntityTechnology])
	}
}
