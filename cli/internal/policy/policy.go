// Package policy validates commit messages against the commit-style rules:
// conventional type allow-list, required scopes, imperative mood, punctuation,
// length, artifact and file-path mentions, vague wording, and bullet count.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"commitmate/cli/internal/commitmsg"
)

// Default values for Config.
const (
	DefaultMaxSubjectLength = 72
	DefaultMaxBullets       = 2
)

var (
	// VagueTerms are words that say nothing about a change.
	VagueTerms = []string{"update", "misc", "stuff", "various", "changes"}
	// ArtifactPatterns are path fragments of generated or vendored output.
	ArtifactPatterns = []string{"node_modules", "dist/", "build/", "coverage/", ".turbo/"}
	// ScopeRequired lists the types that must carry a scope.
	ScopeRequired = []string{"feat", "fix"}

	bannedLeadWords = []string{"updates", "updated", "updating", "fixes", "fixed", "fixing", "adds", "added", "adding", "please"}

	fileMentionRe = regexp.MustCompile(`(?i)\b[\w-]+\.(go|ts|tsx|js|jsx|mjs|cjs|css|scss|sass|vue|py|rb|java|rs|json|ya?ml|toml|md|lock|html|sh)\b`)
	pathMentionRe = regexp.MustCompile(`[\w.-]+/[\w.-]+/`)
)

// Config is the rule set applied by Validate.
type Config struct {
	MaxSubjectLength int
	MaxBullets       int
	AllowedTypes     []string
	ScopeRequired    []string
	VagueTerms       []string
	ArtifactPatterns []string
}

// Default returns the standard rule set.
func Default() Config {
	return Config{
		MaxSubjectLength: DefaultMaxSubjectLength,
		MaxBullets:       DefaultMaxBullets,
		AllowedTypes:     append([]string(nil), commitmsg.Types...),
		ScopeRequired:    append([]string(nil), ScopeRequired...),
		VagueTerms:       append([]string(nil), VagueTerms...),
		ArtifactPatterns: append([]string(nil), ArtifactPatterns...),
	}
}

// Result is the outcome of Validate. Valid is true iff Reasons is empty.
type Result struct {
	Valid   bool     `json:"valid" yaml:"valid"`
	Reasons []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Validate runs every rule against subject and bullets and accumulates one
// reason per failed rule. It is pure: identical inputs give identical results.
func Validate(subject string, bullets []string, cfg Config) Result {
	var reasons []string
	add := func(format string, args ...any) {
		reasons = append(reasons, fmt.Sprintf(format, args...))
	}

	subject = strings.TrimSpace(subject)
	if p, ok := commitmsg.ParseSubject(subject); !ok {
		add("subject must follow Conventional Commits (type(scope): description)")
	} else {
		if !contains(cfg.AllowedTypes, p.Type) {
			add("unsupported type %q (allowed: %s)", p.Type, strings.Join(cfg.AllowedTypes, ", "))
		}
		if contains(cfg.ScopeRequired, p.Type) && strings.TrimSpace(p.Scope) == "" {
			add("%s commits must include a scope", p.Type)
		}
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			add("description required")
		} else {
			first := strings.ToLower(strings.Fields(desc)[0])
			if contains(bannedLeadWords, first) || contains(cfg.VagueTerms, first) {
				add("description should use imperative mood (%q)", first)
			}
			if strings.ContainsAny(desc[len(desc)-1:], ".!?;:,") {
				add("description must not end with punctuation")
			}
		}
	}
	if n := len([]rune(subject)); cfg.MaxSubjectLength > 0 && n > cfg.MaxSubjectLength {
		add("subject exceeds %d characters (%d)", cfg.MaxSubjectLength, n)
	}
	if mentionsArtifacts(subject, cfg.ArtifactPatterns) {
		add("subject references artifacts or file paths")
	}
	if terms := vagueTerms(subject, cfg.VagueTerms); len(terms) > 0 {
		add("subject contains vague terms: %s", strings.Join(terms, ", "))
	}

	if len(bullets) > cfg.MaxBullets {
		add("too many bullets (%d > %d)", len(bullets), cfg.MaxBullets)
	}
	for i, b := range bullets {
		if mentionsArtifacts(b, cfg.ArtifactPatterns) {
			add("bullet %d references artifacts or file paths", i+1)
		}
		if terms := vagueTerms(b, cfg.VagueTerms); len(terms) > 0 {
			add("bullet %d contains vague terms: %s", i+1, strings.Join(terms, ", "))
		}
	}
	return Result{Valid: len(reasons) == 0, Reasons: reasons}
}

func mentionsArtifacts(s string, patterns []string) bool {
	return commitmsg.MatchesArtifact(s, patterns) || fileMentionRe.MatchString(s) || pathMentionRe.MatchString(s)
}

// vagueTerms returns the vague terms that appear in s as whole words, in the
// order they are configured.
func vagueTerms(s string, terms []string) []string {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	}) {
		words[w] = true
	}
	var found []string
	for _, t := range terms {
		if words[strings.ToLower(t)] {
			found = append(found, t)
		}
	}
	return found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
