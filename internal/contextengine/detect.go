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

package contextengine

import (
	"strings"

	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/nlp"
)

// keywordWeightPerWord scales a matched keyword's contribution by how many
// words it contains; multi-word keywords are stronger domain signals.
const keywordWeightPerWord = 1.5

// DefaultDomain is assumed when no domain keywords match at all.
const DefaultDomain = knowledge.DomainSystemEngineering

// defaultDomainConfidence accompanies the fallback domain.
const defaultDomainConfidence = 0.5

// domainKeywordSet binds a domain to its detection vocabulary. The table is
// ordered; on equal scores the earlier entry wins. That tie-break carries
// over from the previous behavior on purpose, changing it changes
// classification outcomes on real inputs.
type domainKeywordSet struct {
	Domain   knowledge.Domain
	Keywords []string
}

var domainKeywords = []domainKeywordSet{
	{
		Domain: knowledge.DomainVirtualization,
		Keywords: []string{
			"vm", "virtual machine", "hypervisor", "proxmox", "vmware", "esxi",
			"kvm", "qemu", "live migration", "snapshot", "guest", "vcpu",
			"virtualization", "hyper-v",
		},
	},
	{
		Domain: knowledge.DomainIaC,
		Keywords: []string{
			"terraform", "ansible", "pulumi", "infrastructure as code",
			"playbook", "state file", "provisioning", "puppet", "chef",
			"saltstack", "cloudformation", "declarative",
		},
	},
	{
		Domain: knowledge.DomainContainers,
		Keywords: []string{
			"docker", "kubernetes", "k8s", "container", "pod", "helm",
			"containerd", "image registry", "deployment", "ingress",
			"namespace", "sidecar", "podman",
		},
	},
	{
		Domain: knowledge.DomainCloud,
		Keywords: []string{
			"aws", "azure", "gcp", "cloud", "s3", "ec2", "hybrid cloud",
			"cloud bursting", "egress", "saas", "iaas", "serverless",
		},
	},
	{
		Domain: knowledge.DomainSecurity,
		Keywords: []string{
			"security", "vulnerability", "hardening", "firewall", "exploit",
			"penetration test", "cve", "compliance", "encryption", "zero trust",
			"secrets", "credentials", "ransomware", "audit",
		},
	},
	{
		Domain: knowledge.DomainNetworking,
		Keywords: []string{
			"network", "vlan", "subnet", "routing", "dns", "load balancer",
			"vpn", "bgp", "dhcp", "proxy", "segmentation", "mtu", "bridge",
		},
	},
	{
		Domain: knowledge.DomainMonitoring,
		Keywords: []string{
			"monitoring", "prometheus", "grafana", "alerting", "metrics",
			"observability", "dashboard", "zabbix", "logging", "slo",
			"capacity planning",
		},
	},
	{
		Domain: knowledge.DomainSystemEngineering,
		Keywords: []string{
			"automation", "backup", "linux", "server", "systemd", "cron",
			"script", "maintenance", "patching", "disaster recovery",
		},
	},
}

// securityEscalationTerms raise the session security posture when mentioned.
var securityEscalationTerms = []string{
	"breach", "compromised", "attack", "incident", "ransomware", "exploit",
	"data leak", "unauthorized access",
}

// securityMediumTerms indicate a security-aware conversation short of an
// active incident.
var securityMediumTerms = []string{
	"security", "hardening", "compliance", "encryption", "firewall", "audit",
}

// DetectDomain scores each domain's keyword list against the text and
// returns the best domain with a confidence. The score for a domain is the
// sum of matched-keyword word counts times keywordWeightPerWord, normalized
// by the keyword-list length; confidence is min(score*2, 1.0). When nothing
// matches, DefaultDomain is returned at defaultDomainConfidence.
func DetectDomain(text string) (knowledge.Domain, float64) {
	lower := strings.ToLower(text)

	bestDomain := DefaultDomain
	bestScore := 0.0
	for _, set := range domainKeywords {
		score := 0.0
		for _, keyword := range set.Keywords {
			if strings.Contains(lower, keyword) {
				score += float64(len(strings.Fields(keyword))) * keywordWeightPerWord
			}
		}
		score /= float64(len(set.Keywords))
		// Strictly greater keeps the earlier declaration on ties.
		if score > bestScore {
			bestScore = score
			bestDomain = set.Domain
		}
	}

	if bestScore == 0 {
		return DefaultDomain, defaultDomainConfidence
	}

	confidence := bestScore * 2
	if confidence > 1.0 {
		confidence = 1.0
	}
	return bestDomain, confidence
}

// detectSecurityLevel maps text to a security posture. Escalation terms win
// over general security vocabulary.
func detectSecurityLevel(text string) SecurityLevel {
	lower := strings.ToLower(text)
	for _, term := range securityEscalationTerms {
		if strings.Contains(lower, term) {
			return SecurityHigh
		}
	}
	for _, term := range securityMediumTerms {
		if strings.Contains(lower, term) {
			return SecurityMedium
		}
	}
	return SecurityLow
}

// securityRank orders security levels for escalation-only comparison.
func securityRank(level SecurityLevel) int {
	switch level {
	case SecurityHigh:
		return 2
	case SecurityMedium:
		return 1
	default:
		return 0
	}
}

// expertiseFromSkill converts the per-turn NLP skill detection to the
// knowledge base's expertise tier. The value sets are aligned on purpose.
func expertiseFromSkill(level nlp.SkillLevel) knowledge.ExpertiseLevel {
	switch level {
	case nlp.SkillBeginner:
		return knowledge.LevelBeginner
	case nlp.SkillExpert:
		return knowledge.LevelExpert
	default:
		return knowledge.LevelIntermediate
	}
}

// mentionedTechnologies extracts the lowercase technology names a turn
// mentions, from the parsed intent when available.
func mentionedTechnologies(parsed *nlp.ParsedIntent) []string {
	if parsed == nil {
		return nil
	}
	techs := make([]string, 0, len(parsed.TechnicalTerms))
	for _, term := range parsed.TechnicalTerms {
		techs = append(techs, strings.ToLower(term))
	}
	return techs
}
