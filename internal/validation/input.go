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

// Package validation screens user input and infrastructure configuration
// artifacts. Findings carry a severity level; CRITICAL findings are the
// pipeline's hard-stop signal, everything below is sanitize-and-continue.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputLength bounds user input before processing.
const DefaultMaxInputLength = 10000

// Level is a finding severity.
type Level string

// Severity levels, lowest to highest.
const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// levelRank orders levels for comparisons, higher is worse.
func levelRank(level Level) int {
	switch level {
	case LevelCritical:
		return 3
	case LevelError:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// Category classifies what a finding is about.
type Category string

// Finding categories.
const (
	CategorySecurity  Category = "security"
	CategoryLength    Category = "length"
	CategoryURL       Category = "url"
	CategoryFilePath  Category = "file_path"
	CategoryEncoding  Category = "encoding"
	CategorySyntax    Category = "syntax"
	CategoryStructure Category = "structure"
)

// Risk grades the overall exposure a finding or assessment represents.
type Risk string

// Risk levels.
const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// riskForLevel derives a per-finding risk grade from its severity.
func riskForLevel(level Level) Risk {
	switch level {
	case LevelCritical:
		return RiskCritical
	case LevelError:
		return RiskHigh
	case LevelWarning:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Result is one validation finding.
type Result struct {
	Category           Category `json:"category"`
	Level              Level    `json:"level"`
	RiskLevel          Risk     `json:"risk_level,omitempty"`
	Message            string   `json:"message"`
	Description        string   `json:"description"`
	Remediation        string   `json:"remediation"`
	AffectedComponents []string `json:"affected_components,omitempty"`
	AutoFixable        bool     `json:"auto_fixable"`
}

// HasCritical reports whether any finding is CRITICAL. The orchestrator
// treats true as a hard stop before any model invocation.
func HasCritical(results []Result) bool {
	for _, result := range results {
		if result.Level == LevelCritical {
			return true
		}
	}
	return false
}

// MaxLevel returns the worst severity present, LevelInfo for an empty list.
func MaxLevel(results []Result) Level {
	max := LevelInfo
	for _, result := range results {
		if levelRank(result.Level) > levelRank(max) {
			max = result.Level
		}
	}
	return max
}

// dangerousPattern is one attack-signature group. Any single signature match
// raises a CRITICAL finding for the group.
type dangerousPattern struct {
	Name       string
	Signatures []*regexp.Regexp
}

var dangerousPatterns = []dangerousPattern{
	{
		Name: "command_injection",
		Signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?i)[;&|]\s*(?:rm|mkfs|dd|shutdown|reboot|halt)\b`),
			regexp.MustCompile(`(?i)\brm\s+-rf\s+/`),
			regexp.MustCompile("`[^`]+`"),
			regexp.MustCompile(`\$\([^)]*\)`),
			regexp.MustCompile(`(?i)\|\s*(?:sh|bash|zsh)\b`),
			regexp.MustCompile(`(?i)(?:curl|wget)\s+[^\s]+\s*\|\s*(?:sh|bash)`),
		},
	},
	{
		Name: "sql_injection",
		Signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?i);\s*drop\s+(?:table|database)\b`),
			regexp.MustCompile(`(?i)union\s+(?:all\s+)?select\b`),
			regexp.MustCompile(`(?i)'\s*or\s+'?1'?\s*=\s*'?1`),
			regexp.MustCompile(`(?i);\s*delete\s+from\b`),
			regexp.MustCompile(`(?i)insert\s+into\s+\w+.*--`),
		},
	},
	{
		Name: "path_traversal",
		Signatures: []*regexp.Regexp{
			regexp.MustCompile(`\.\.[/\\]`),
			regexp.MustCompile(`(?i)/etc/(?:passwd|shadow|sudoers)\b`),
			regexp.MustCompile(`(?i)/proc/self\b`),
			regexp.MustCompile(`(?i)c:\\+windows\\+system32`),
		},
	},
	{
		Name: "code_injection",
		Signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\beval\s*\(`),
			regexp.MustCompile(`(?i)\bexec\s*\(`),
			regexp.MustCompile(`(?i)__import__\s*\(`),
			regexp.MustCompile(`(?i)<script[\s>]`),
			regexp.MustCompile(`(?i)javascript:\s*\w`),
		},
	},
	{
		Name: "network_attacks",
		Signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bnmap\s+-`),
			regexp.MustCompile(`(?i)\bnc\s+-l\b`),
			regexp.MustCompile(`(?i)\bhping3?\b`),
			regexp.MustCompile(`(?i)\bmasscan\b`),
			regexp.MustCompile(`(?i)\bslowloris\b`),
		},
	},
}

var (
	urlPattern      = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s<>"']+`)
	filePathPattern = regexp.MustCompile(`(?:^|\s)((?:/|[A-Za-z]:\\|\.\./)[^\s<>"']+)`)

	encodingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`%[0-9a-fA-F]{2}`),
		regexp.MustCompile(`&#x?[0-9a-fA-F]+;`),
		regexp.MustCompile(`\\u[0-9a-fA-F]{4}`),
		regexp.MustCompile(`\\x[0-9a-fA-F]{2}`),
	}

	privateHostPattern = regexp.MustCompile(`(?i)^(?:localhost|127\.\d+\.\d+\.\d+|10\.\d+\.\d+\.\d+|192\.168\.\d+\.\d+|172\.(?:1[6-9]|2\d|3[01])\.\d+\.\d+|[^/]+\.local)(?::\d+)?$`)

	traversalSequences = regexp.MustCompile(`\.\.[/\\]`)
)

// allowedURLProtocols is the scheme allowlist for embedded URLs.
var allowedURLProtocols = map[string]bool{
	"http": true, "https": true, "ssh": true, "ftp": true,
}

// blockedExtensions flag executable or script file references.
var blockedExtensions = []string{
	".exe", ".bat", ".cmd", ".ps1", ".sh", ".php", ".jsp", ".asp",
}

// InputValidator screens free-text user input.
type InputValidator struct {
	maxLength int
}

// NewInputValidator creates a validator; maxLength <= 0 selects the default.
func NewInputValidator(maxLength int) *InputValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	return &InputValidator{maxLength: maxLength}
}

// ValidateUserInput runs every input check and returns all findings. It is a
// pure function of the text; multiple categories may each contribute and
// findings are never deduplicated across categories.
func (v *InputValidator) ValidateUserInput(text string) []Result {
	var results []Result

	if len(text) > v.maxLength {
		results = append(results, Result{
			Category:    CategoryLength,
			Level:       LevelError,
			Message:     fmt.Sprintf("input exceeds maximum length of %d characters", v.maxLength),
			Description: fmt.Sprintf("Input is %d characters long.", len(text)),
			Remediation: "Shorten the request; it will otherwise be truncated.",
			AutoFixable: true,
		})
	}

	if !utf8.ValidString(text) {
		results = append(results, Result{
			Category:    CategoryEncoding,
			Level:       LevelError,
			Message:     "input contains invalid UTF-8",
			Remediation: "Invalid byte sequences will be replaced.",
			AutoFixable: true,
		})
	}

	results = append(results, v.scanDangerousPatterns(text)...)
	results = append(results, v.scanURLs(text)...)
	results = append(results, v.scanFilePaths(text)...)
	results = append(results, v.scanEncoding(text)...)

	return gradeRisk(results)
}

// gradeRisk fills in the per-finding risk grade from severity.
func gradeRisk(results []Result) []Result {
	for i := range results {
		if results[i].RiskLevel == "" {
			results[i].RiskLevel = riskForLevel(results[i].Level)
		}
	}
	return results
}

func (v *InputValidator) scanDangerousPatterns(text string) []Result {
	var results []Result
	for _, group := range dangerousPatterns {
		for _, signature := range group.Signatures {
			if signature.MatchString(text) {
				results = append(results, Result{
					Category:           CategorySecurity,
					Level:              LevelCritical,
					Message:            fmt.Sprintf("input matches a %s signature", group.Name),
					Description:        fmt.Sprintf("The request contains a pattern associated with %s attempts.", strings.ReplaceAll(group.Name, "_", " ")),
					Remediation:        "Rephrase the request without shell metacharacters, SQL fragments, or embedded code.",
					AffectedComponents: []string{group.Name},
				})
				break
			}
		}
	}
	return results
}

func (v *InputValidator) scanURLs(text string) []Result {
	var results []Result
	for _, raw := range urlPattern.FindAllString(text, -1) {
		scheme, host := splitURL(raw)
		if !allowedURLProtocols[scheme] {
			results = append(results, Result{
				Category:    CategoryURL,
				Level:       LevelWarning,
				Message:     fmt.Sprintf("URL uses disallowed protocol %q", scheme),
				Description: raw,
				Remediation: "Only http, https, ssh and ftp URLs are processed.",
			})
			continue
		}
		if privateHostPattern.MatchString(host) {
			results = append(results, Result{
				Category:    CategoryURL,
				Level:       LevelWarning,
				Message:     "URL points at a private or internal host",
				Description: raw,
				Remediation: "Internal addresses in requests are recorded for review.",
			})
		}
	}
	return results
}

func (v *InputValidator) scanFilePaths(text string) []Result {
	var results []Result
	for _, match := range filePathPattern.FindAllStringSubmatch(text, -1) {
		path := match[1]
		if traversalSequences.MatchString(path) || strings.HasPrefix(strings.ToLower(path), "/etc/") ||
			strings.HasPrefix(strings.ToLower(path), "/proc/") {
			// Already covered by the path_traversal signature scan for the
			// whole text; the per-path finding pins down which path.
			results = append(results, Result{
				Category:           CategoryFilePath,
				Level:              LevelCritical,
				Message:            "file path contains traversal or targets a system directory",
				Description:        path,
				Remediation:        "Refer to files by name, not by system path.",
				AffectedComponents: []string{path},
			})
			continue
		}
		lower := strings.ToLower(path)
		for _, ext := range blockedExtensions {
			if strings.HasSuffix(lower, ext) {
				results = append(results, Result{
					Category:           CategoryFilePath,
					Level:              LevelError,
					Message:            fmt.Sprintf("file path references a blocked extension (%s)", ext),
					Description:        path,
					Remediation:        "Executable and script attachments are not processed.",
					AffectedComponents: []string{path},
				})
				break
			}
		}
	}
	return results
}

func (v *InputValidator) scanEncoding(text string) []Result {
	for _, pattern := range encodingPatterns {
		if pattern.MatchString(text) {
			return []Result{{
				Category:    CategoryEncoding,
				Level:       LevelWarning,
				Message:     "input contains encoded character sequences",
				Description: "URL, HTML entity, or escape encodings in plain text can be filter-bypass attempts.",
				Remediation: "Use plain text.",
			}}
		}
	}
	return nil
}

// Sanitize applies the repairs for auto-fixable findings: invalid UTF-8
// replacement and length truncation. Security findings are always CRITICAL
// and block the request upstream, so they are never rewritten here. The
// returned bool reports whether anything changed.
func (v *InputValidator) Sanitize(text string, findings []Result) (string, bool) {
	original := text

	for _, finding := range findings {
		if !finding.AutoFixable {
			continue
		}
		switch finding.Category {
		case CategoryEncoding:
			text = strings.ToValidUTF8(text, "\uFFFD")
		case CategoryLength:
			if len(text) > v.maxLength {
				text = text[:v.maxLength]
			}
		}
	}

	return text, text != original
}

// splitURL extracts the lowercase scheme and host portion of a raw URL
// without depending on full RFC parsing; validator findings never need more.
func splitURL(raw string) (scheme, host string) {
	parts := strings.SplitN(raw, "://", 2)
	if len(parts) != 2 {
		return "", ""
	}
	scheme = strings.ToLower(parts[0])
	rest := parts[1]
	if at := strings.IndexAny(rest, "/?#"); at >= 0 {
		rest = rest[:at]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme, rest
}
