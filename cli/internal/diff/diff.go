// Package diff reads unified diff text from git and removes file sections
// for generated, vendored, or build-artifact paths before the text is
// analyzed.
//
// # Sources
// Staged returns `git diff --cached`, Unstaged returns the working tree diff
// against the index. Both run git with a minimal environment so user pagers,
// external diff drivers, and prompts are never triggered.
//
// # Binary files
// Binary sections are kept by Filter (they carry no +/- content lines) but
// Parse reports them with Binary set and no hunks.
//
// # Ignore patterns
// A pattern ending in "/" matches that directory at any depth. Any other
// pattern is a filepath.Match glob tried against the full path and against
// the base name.
package diff

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultIgnorePatterns are applied when no patterns are configured.
var DefaultIgnorePatterns = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
	"Cargo.lock",
	"poetry.lock",
	"composer.lock",
	"Gemfile.lock",
	"go.sum",
	"*.min.js",
	"*.min.css",
	"*.map",
	"*.pb.go",
	"*_generated.go",
	"dist/",
	"build/",
	"node_modules/",
	"coverage/",
	".turbo/",
	".next/",
	"vendor/",
}

// Staged returns the diff of the index against HEAD.
func Staged(ctx context.Context, repoRoot string) (string, error) {
	return runGitDiff(ctx, repoRoot, "--cached")
}

// Unstaged returns the diff of the working tree against the index.
func Unstaged(ctx context.Context, repoRoot string) (string, error) {
	return runGitDiff(ctx, repoRoot)
}

func runGitDiff(ctx context.Context, repoRoot string, extra ...string) (string, error) {
	if repoRoot == "" {
		return "", errors.New("diff: repoRoot required")
	}
	args := append([]string{"diff", "--no-color", "--no-ext-diff"}, extra...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	cmd.Env = minimalEnv()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat",
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	}
	return env
}

// Filter removes every file section whose path matches one of patterns and
// returns the remaining diff text plus the removed paths in diff order. Nil
// patterns means DefaultIgnorePatterns; an empty non-nil slice disables
// filtering.
func Filter(diffText string, patterns []string) (string, []string) {
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}
	if len(patterns) == 0 || strings.TrimSpace(diffText) == "" {
		return diffText, nil
	}
	var (
		kept     strings.Builder
		excluded []string
	)
	for _, section := range splitByFileSections(diffText) {
		p := sectionPath(section)
		if p != "" && Matches(p, patterns) {
			excluded = append(excluded, p)
			continue
		}
		kept.WriteString(section)
	}
	return kept.String(), excluded
}

// Matches reports whether filePath is covered by any of patterns.
// Malformed glob patterns never match.
func Matches(filePath string, patterns []string) bool {
	p := filepath.ToSlash(filePath)
	base := path.Base(p)
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if strings.HasSuffix(pat, "/") {
			dir := strings.TrimSuffix(pat, "/")
			if strings.HasPrefix(p, dir+"/") || strings.Contains(p, "/"+dir+"/") {
				return true
			}
			continue
		}
		if ok, err := path.Match(pat, p); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pat, base); err == nil && ok {
			return true
		}
	}
	return false
}

// Paths returns the file paths touched by diffText in diff order, without
// duplicates.
func Paths(diffText string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, section := range splitByFileSections(diffText) {
		p := sectionPath(section)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
