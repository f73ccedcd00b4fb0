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

package nlp

import "regexp"

// entityPattern associates a compiled regex with the entity type it produces.
// The first capture group becomes the entity value; if the pattern has no
// groups the whole match is used.
type entityPattern struct {
	Type     EntityType
	Pattern  *regexp.Regexp
	Keywords bool // true for word-boundary technology keywords
}

// buildEntityPatterns returns the ordered entity pattern table. Order matters:
// extraction walks this table top to bottom, and span-overlap deduplication
// keeps the first (higher confidence) entity on ties.
func buildEntityPatterns() []entityPattern {
	patterns := []entityPattern{
		{Type: EntityMemory, Pattern: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:gb|gib|mb|mib|tb))\s*(?:of\s+)?(?:ram|memory)`)},
		{Type: EntityMemory, Pattern: regexp.MustCompile(`(?i)(?:ram|memory)\s*(?:of|:)?\s*(\d+(?:\.\d+)?\s*(?:gb|gib|mb|mib|tb))`)},
		{Type: EntityStorage, Pattern: regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:gb|gib|tb|tib|mb))\s*(?:of\s+)?(?:disk|storage|ssd|hdd|volume)`)},
		{Type: EntityStorage, Pattern: regexp.MustCompile(`(?i)(?:disk|storage|volume)\s*(?:of|:|size)?\s*(\d+(?:\.\d+)?\s*(?:gb|gib|tb|tib|mb))`)},
		{Type: EntityCPUCores, Pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:v?cpus?|cores?|processors?|threads)`)},
		{Type: EntityCPUCores, Pattern: regexp.MustCompile(`(?i)(?:cpu|core)\s*(?:count|:)?\s*(\d+)\b`)},
		{Type: EntityVMCount, Pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:vms?|virtual\s+machines?|instances?|guests?|nodes?)`)},
		{Type: EntityNetworkSegment, Pattern: regexp.MustCompile(`\b((?:\d{1,3}\.){3}\d{1,3}/\d{1,2})\b`)},
		{Type: EntityIPAddress, Pattern: regexp.MustCompile(`\b((?:\d{1,3}\.){3}\d{1,3})\b`)},
		{Type: EntityPort, Pattern: regexp.MustCompile(`(?i)port\s+(\d{1,5})\b`)},
		{Type: EntityVersion, Pattern: regexp.MustCompile(`(?i)\bv?(\d+\.\d+(?:\.\d+)?)\b`)},
	}

	// Technology names are matched on word boundaries rather than substrings
	// so "docker" does not fire on "dockerfile-less" style compounds.
	for _, tech := range technologyNames {
		patterns = append(patterns, entityPattern{
			Type:     EntityTechnology,
			Pattern:  regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(tech) + `)\b`),
			Keywords: true,
		})
	}

	return patterns
}

// technologyNames lists the virtualization/IaC/container/cloud technologies
// the extractor recognizes by name.
var technologyNames = []string{
	"proxmox", "vmware", "esxi", "vsphere", "hyper-v", "kvm", "qemu", "libvirt",
	"virtualbox", "xen", "openstack", "vagrant",
	"terraform", "ansible", "puppet", "chef", "saltstack", "pulumi", "cloudformation",
	"docker", "kubernetes", "k8s", "podman", "containerd", "helm", "docker-compose",
	"openshift", "rancher", "nomad",
	"aws", "azure", "gcp", "digitalocean", "linode", "hetzner",
	"jenkins", "gitlab", "github actions", "argocd",
	"prometheus", "grafana", "zabbix", "nagios",
	"nginx", "haproxy", "traefik", "pfsense", "wireguard", "openvpn",
	"ceph", "zfs", "nfs", "iscsi",
}

// intentRule is a single weighted regex rule contributing to an intent score.
type intentRule struct {
	Pattern *regexp.Regexp
	Weight  float64
}

// intentDefinition bundles the pattern rules and keyword bag for one intent.
type intentDefinition struct {
	Intent   IntentType
	Rules    []intentRule
	Keywords []string
}

// buildIntentDefinitions returns the intent taxonomy with its scoring rules.
// Declaration order is the tie-break when two intents score identically.
func buildIntentDefinitions() []intentDefinition {
	return []intentDefinition{
		{
			Intent: IntentCreateVM,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:create|build|provision|spin\s+up|set\s+up|deploy)\s+(?:a\s+|an\s+|\d+\s+)?(?:new\s+)?(?:vm|vms|virtual\s+machines?|guests?)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\bnew\s+(?:vm|virtual\s+machine)\b`), Weight: 0.8},
				{Pattern: regexp.MustCompile(`(?i)\b(?:vm|virtual\s+machine)\s+with\s+\d+`), Weight: 0.9},
			},
			Keywords: []string{"vm", "virtual machine", "hypervisor", "cores", "ram", "guest", "template", "clone"},
		},
		{
			Intent: IntentDeployInfrastructure,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:deploy|roll\s+out|stand\s+up|provision)\s+(?:the\s+)?(?:infrastructure|environment|stack|cluster|platform)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\b(?:multi-?tier|production|staging)\s+(?:environment|deployment|setup)\b`), Weight: 0.8},
			},
			Keywords: []string{"deploy", "infrastructure", "environment", "cluster", "rollout", "provision", "stack"},
		},
		{
			Intent: IntentGenerateIaC,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:generate|write|create|produce)\s+(?:a\s+)?(?:terraform|ansible|puppet|cloudformation|pulumi|iac)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\b(?:terraform|ansible)\s+(?:config(?:uration)?|playbook|module|manifest|code|script)\b`), Weight: 0.9},
				{Pattern: regexp.MustCompile(`(?i)\binfrastructure\s+as\s+code\b`), Weight: 0.8},
			},
			Keywords: []string{"terraform", "ansible", "playbook", "iac", "module", "manifest", "hcl", "cloudformation"},
		},
		{
			Intent: IntentSecurityReview,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:security\s+(?:review|audit|assessment|scan|check)|harden(?:ing)?|audit)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\b(?:is|are)\s+(?:this|my|our)\s+.{0,40}\bsecure\b`), Weight: 0.8},
				{Pattern: regexp.MustCompile(`(?i)\b(?:vulnerabilit(?:y|ies)|cve|compliance|exposure)\b`), Weight: 0.7},
			},
			Keywords: []string{"security", "secure", "firewall", "encryption", "certificate", "tls", "audit", "compliance", "permissions"},
		},
		{
			Intent: IntentTroubleshoot,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:troubleshoot|debug|diagnose|investigate)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\b(?:not\s+working|fail(?:s|ed|ing)?|broken|crash(?:es|ed|ing)?|won'?t\s+(?:start|boot)|error)\b`), Weight: 0.9},
				{Pattern: regexp.MustCompile(`(?i)\bwhy\s+(?:is|does|won'?t|can'?t)\b`), Weight: 0.6},
			},
			Keywords: []string{"error", "problem", "issue", "broken", "fix", "failing", "timeout", "unreachable", "down"},
		},
		{
			Intent: IntentOptimize,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:optimiz(?:e|ation)|tune|tuning|improve\s+performance|speed\s+up)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\b(?:too\s+slow|high\s+(?:cpu|memory|load)|resource\s+usage|reduce\s+cost)\b`), Weight: 0.8},
			},
			Keywords: []string{"optimize", "performance", "slow", "faster", "efficiency", "utilization", "overhead", "cost"},
		},
		{
			Intent: IntentMigrate,
			Rules: []intentRule{
				{Pattern: regexp.MustCompile(`(?i)\b(?:migrat(?:e|ion)|move|transfer|convert)\s+(?:vms?|workloads?|servers?|from)\b`), Weight: 1.0},
				{Pattern: regexp.MustCompile(`(?i)\bfrom\s+\w+\s+to\s+\w+\b`), Weight: 0.5},
			},
			Keywords: []string{"migrate", "migration", "move", "lift and shift", "import", "export", "convert"},
		},
		{
			Intent:   IntentGeneralQuestion,
			Rules:    []intentRule{},
			Keywords: []string{"what is", "how does", "explain", "difference between", "when should", "why"},
		},
	}
}

// Skill, urgency, complexity and sentiment keyword bags. Counting keywords is
// deliberately naive; the classifier must stay total over arbitrary input.
var (
	expertTerms = []string{
		"numa", "sr-iov", "pci passthrough", "iommu", "cgroup", "hugepages",
		"live migration", "ceph", "ipam", "bgp", "vlan trunking", "cpu pinning",
		"virtio", "etcd", "cni", "csi", "kernel", "systemd",
	}
	beginnerTerms = []string{
		"what is", "how do i", "beginner", "new to", "first time", "getting started",
		"basics", "simple", "step by step", "tutorial", "explain like",
	}
	urgentTerms = []string{
		"urgent", "asap", "immediately", "emergency", "critical", "outage",
		"production down", "right now", "breach",
	}
	elevatedTerms = []string{
		"soon", "today", "deadline", "this week", "quickly", "priority",
	}
	positiveTerms = []string{
		"great", "thanks", "perfect", "works", "good", "excellent", "helpful", "solved",
	}
	negativeTerms = []string{
		"broken", "terrible", "frustrat", "useless", "wrong", "bad", "annoying", "failed",
	}
)

// complexityBuckets maps each complexity level to its indicator keywords.
// Ordered from simplest to most complex; the densest bucket wins.
var complexityBuckets = []struct {
	Level    ComplexityLevel
	Keywords []string
}{
	{ComplexitySimple, []string{"single", "one vm", "basic", "simple", "small", "test", "lab"}},
	{ComplexityModerate, []string{"few", "couple", "pair", "backup", "staging", "redundant"}},
	{ComplexityComplex, []string{"cluster", "high availability", "ha", "load balanc", "failover", "replication"}},
	{ComplexityEnterprise, []string{"multi-site", "multi-region", "datacenter", "thousands", "disaster recovery", "compliance", "fleet"}},
}

// infrastructureTypeTable maps indicator keywords to an infrastructure type.
// First match wins; the order below is the documented tie-break.
var infrastructureTypeTable = []struct {
	Type     InfrastructureType
	Keywords []string
}{
	{InfraVirtualization, []string{"vm", "virtual machine", "hypervisor", "proxmox", "vmware", "kvm", "esxi", "qemu"}},
	{InfraContainers, []string{"container", "docker", "kubernetes", "k8s", "pod", "helm", "podman"}},
	{InfraIaC, []string{"terraform", "ansible", "playbook", "infrastructure as code", "iac", "cloudformation", "pulumi"}},
	{InfraCloud, []string{"aws", "azure", "gcp", "cloud", "s3", "ec2", "serverless"}},
	{InfraNetworking, []string{"network", "vlan", "subnet", "firewall", "router", "dns", "vpn", "bridge"}},
	{InfraStorage, []string{"storage", "disk", "ceph", "zfs", "nfs", "iscsi", "raid", "volume"}},
	{InfraMonitoring, []string{"monitor", "prometheus", "grafana", "alert", "metrics", "logging", "observability"}},
}

// requiredParameters lists the parameters an intent needs before the advisor
// can act without clarification.
var requiredParameters = map[IntentType][]string{
	IntentCreateVM:             {"memory", "cpu_cores", "storage"},
	IntentGenerateIaC:          {"tool"},
	IntentDeployInfrastructure: {"environment"},
	IntentMigrate:              {"source", "target"},
}

// clarificationQuestions maps a missing parameter to the question asked for it.
var clarificationQuestions = map[string]string{
	"memory":      "How much memory (RAM) should be allocated?",
	"cpu_cores":   "How many CPU cores do you need?",
	"storage":     "How much storage should be provisioned?",
	"tool":        "Which IaC tool should be used (Terraform, Ansible, ...)?",
	"environment": "Which environment is this for (production, staging, development)?",
	"source":      "What is the source platform for the migration?",
	"target":      "What is the target platform for the migration?",
}
