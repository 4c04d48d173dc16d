// Package commitmsg normalizes and formats commit messages: subject cleanup,
// conventional type/scope prefixes, length truncation, and bullet shaping.
package commitmsg

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Styles recognized by Format.
const (
	StyleConventional = "conventional"
	StylePlain        = "plain"
)

// Types is the conventional commit type vocabulary.
var Types = []string{"feat", "fix", "chore", "docs", "refactor", "perf", "test", "build", "ci", "style", "revert"}

var (
	conventionalRe  = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?:\s*(.*)$`)
	trailingPunctRe = regexp.MustCompile(`[.!?;:,]+$`)
	leadingTypeRe   = regexp.MustCompile(`^(?:` + strings.Join(Types, "|") + `)(?:\([^)]*\))?!?:`)
	scopelessRe     = regexp.MustCompile(`^(feat|fix)(!)?:\s*`)
)

// Subject is a parsed conventional subject line.
type Subject struct {
	Type        string
	Scope       string
	Breaking    bool
	Description string
}

// ParseSubject splits s into its conventional parts. ok is false when s does
// not have the type[(scope)][!]: description shape.
func ParseSubject(s string) (Subject, bool) {
	m := conventionalRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Subject{}, false
	}
	return Subject{Type: m[1], Scope: m[2], Breaking: m[3] == "!", Description: m[4]}, true
}

// String renders the subject back into type(scope)!: description form.
func (s Subject) String() string {
	var b strings.Builder
	b.WriteString(s.Type)
	if s.Scope != "" {
		b.WriteString("(" + s.Scope + ")")
	}
	if s.Breaking {
		b.WriteByte('!')
	}
	b.WriteString(": ")
	b.WriteString(s.Description)
	return b.String()
}

// NormalizeSubject strips trailing punctuation and coerces subject into
// conventional shape. feat and fix subjects without a scope get scope; any
// other text is wrapped as a chore.
func NormalizeSubject(subject, scope string) string {
	s := trailingPunctRe.ReplaceAllString(strings.TrimSpace(subject), "")
	if p, ok := ParseSubject(s); ok {
		if (p.Type == "feat" || p.Type == "fix") && p.Scope == "" {
			p.Scope = scope
		}
		return p.String()
	}
	return choreprefix(scope) + s
}

// Options controls Format.
type Options struct {
	Style            string
	MaxSubjectLength int
	MaxBullets       int
	BulletPrefix     string
}

// Message is a formatted commit message. Bullets are stored without the prefix.
type Message struct {
	Subject string
	Bullets []string
	Prefix  string
}

// String joins the subject and prefixed bullets with newlines, the exact text
// handed to git commit.
func (m Message) String() string {
	lines := make([]string, 0, 1+len(m.Bullets))
	lines = append(lines, m.Subject)
	for _, b := range m.Bullets {
		lines = append(lines, m.Prefix+" "+b)
	}
	return strings.Join(lines, "\n")
}

// Format applies the conventional prefix rules, truncates the subject to
// opts.MaxSubjectLength, and trims and caps the bullets.
func Format(subject string, bullets []string, scope string, opts Options) Message {
	s := strings.TrimSpace(subject)
	if opts.Style == StyleConventional && !leadingTypeRe.MatchString(s) {
		s = choreprefix(scope) + s
	}
	if scope != "" {
		s = scopelessRe.ReplaceAllString(s, "${1}("+scope+")${2}: ")
	}
	s = Truncate(s, opts.MaxSubjectLength)

	out := make([]string, 0, len(bullets))
	for _, b := range bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if opts.MaxBullets >= 0 && len(out) >= opts.MaxBullets {
			break
		}
		out = append(out, b)
	}
	return Message{Subject: s, Bullets: out, Prefix: opts.BulletPrefix}
}

// Truncate shortens s to max runes, replacing the tail with "..." when it had
// to cut. max <= 0 leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// SanitizeBullets strips diff markers, trims, drops empty lines and lines that
// contain any artifact pattern, and keeps at most limit lines.
func SanitizeBullets(lines []string, artifactPatterns []string, limit int) []string {
	var out []string
	for _, l := range lines {
		if limit >= 0 && len(out) >= limit {
			break
		}
		l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "+-"))
		if l == "" || MatchesArtifact(l, artifactPatterns) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// MatchesArtifact reports whether s contains one of patterns, case-insensitively.
func MatchesArtifact(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Parse splits message text back into a subject and bullets, removing prefix
// from bullet lines. Blank lines are ignored.
func Parse(text, prefix string) (subject string, bullets []string) {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if subject == "" {
			subject = line
			continue
		}
		if prefix != "" && strings.HasPrefix(line, prefix) {
			line = strings.TrimSpace(line[len(prefix):])
		}
		bullets = append(bullets, line)
	}
	return subject, bullets
}

func choreprefix(scope string) string {
	if scope == "" {
		return "chore: "
	}
	return "chore(" + scope + "): "
}

// truncateUTF8 returns s cut to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// TruncateBytes cuts s to limit bytes on a rune boundary and reports whether it cut.
func TruncateBytes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	return truncateUTF8(s, limit), true
}
