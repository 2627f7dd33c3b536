package agent

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// DefaultMaxToolResultSize caps a single tool result body before it is
// persisted to the session log or rendered into a prompt.
const DefaultMaxToolResultSize = 64 * 1024

// secretPattern pairs a compiled regexp with the label DetectSecrets
// reports when it matches.
type secretPattern struct {
	name string
	re   *regexp.Regexp
}

// secretPatterns are always applied when ToolResultGuard.SanitizeSecrets is
// set, independent of any caller-supplied RedactPatterns.
var secretPatterns = []secretPattern{
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`)},
	{"aws_key", regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`)},
	{"generic_secret", regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
}

// ToolResultGuard redacts and truncates tool output before it is persisted
// or rendered into a prompt. Tool-name matching throughout is exact
// (case-insensitive); see DESIGN.md for why the teacher's glob/profile
// policy resolver was not adopted for this.
type ToolResultGuard struct {
	Enabled         bool
	MaxChars        int
	Denylist        []string
	RedactPatterns  []string
	RedactionText   string
	TruncateSuffix  string
	SanitizeSecrets bool // applies the builtin secretPatterns regardless of RedactPatterns
}

func (g ToolResultGuard) active() bool {
	return g.Enabled || g.MaxChars > 0 || len(g.Denylist) > 0 || len(g.RedactPatterns) > 0 || g.RedactionText != "" || g.TruncateSuffix != "" || g.SanitizeSecrets
}

func (g ToolResultGuard) redactionMarker() string {
	if marker := strings.TrimSpace(g.RedactionText); marker != "" {
		return marker
	}
	return "[REDACTED]"
}

func (g ToolResultGuard) truncationMarker() string {
	if marker := strings.TrimSpace(g.TruncateSuffix); marker != "" {
		return marker
	}
	return "...[truncated]"
}

// Apply runs the guard's rules over result. A denylisted tool is redacted
// wholesale before any pattern matching runs: there is no reason to scan
// content that is about to be discarded anyway.
func (g ToolResultGuard) Apply(toolName string, result models.ToolResult) models.ToolResult {
	if !g.active() {
		return result
	}

	if toolNameDenied(g.Denylist, toolName) {
		result.Content = g.redactionMarker()
		return result
	}

	content := result.Content
	if g.SanitizeSecrets {
		content = redactSecrets(content, g.redactionMarker())
	}
	for _, pattern := range g.RedactPatterns {
		content = redactPattern(content, pattern, g.redactionMarker())
	}
	result.Content = content

	if g.MaxChars > 0 && len(result.Content) > g.MaxChars {
		result.Content = result.Content[:g.MaxChars] + g.truncationMarker()
	}
	return result
}

// toolNameDenied reports whether toolName appears verbatim
// (case-insensitive) in denylist.
func toolNameDenied(denylist []string, toolName string) bool {
	for _, name := range denylist {
		if strings.EqualFold(strings.TrimSpace(name), toolName) {
			return true
		}
	}
	return false
}

func redactSecrets(content, marker string) string {
	if content == "" {
		return content
	}
	for _, p := range secretPatterns {
		content = p.re.ReplaceAllString(content, marker)
	}
	return content
}

func redactPattern(content, pattern, marker string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || content == "" {
		return content
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return content
	}
	return re.ReplaceAllString(content, marker)
}

// DetectSecrets reports which builtin secret patterns match content, useful
// for logging or alerting ahead of configuring a guard.
func DetectSecrets(content string) []string {
	if content == "" {
		return nil
	}
	var matches []string
	for _, p := range secretPatterns {
		if p.re.MatchString(content) {
			matches = append(matches, p.name)
		}
	}
	return matches
}

// SanitizeToolResult applies the default size cap and secret redaction
// directly, for callers that bypass ToolResultGuard entirely.
func SanitizeToolResult(result string) string {
	if len(result) > DefaultMaxToolResultSize {
		result = result[:DefaultMaxToolResultSize] + "\n...[truncated]"
	}
	return redactSecrets(result, "[REDACTED]")
}
