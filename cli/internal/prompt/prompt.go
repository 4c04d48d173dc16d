// Package prompt builds the system and user prompts sent to the remote
// generator. The system prompt can be replaced per repository by a
// system_prompt.txt file in the commitmate state directory.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"commitmate/cli/internal/insights"
)

const overrideFilename = "system_prompt.txt"

// DefaultSystemPrompt tells the model to answer with a subject line and
// dash bullets only.
const DefaultSystemPrompt = `You write git commit messages from a structured summary of a staged diff.
Output only the commit message, no preface, no markdown, no code fences, no quotes.
Format:
- First line: the subject. Use imperative mood ("add retry" not "added retry").
- Then zero or more bullet lines, each starting with "- ", describing notable details.
Never mention file names, paths, or build output directories. Avoid vague words such as update, misc, stuff, various, changes.`

// SystemPrompt returns the system prompt. When stateDir/system_prompt.txt
// exists its trimmed contents are used. A missing file yields the default with
// a nil error; any other read error is returned.
func SystemPrompt(stateDir string) (string, error) {
	if stateDir == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(filepath.Join(stateDir, overrideFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSystemPrompt, nil
		}
		return "", fmt.Errorf("read system prompt override: %w", err)
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s, nil
	}
	return DefaultSystemPrompt, nil
}

// Options are the formatting requirements embedded in the user prompt.
type Options struct {
	Language         string
	Style            string
	MaxSubjectLength int
	MaxBullets       int
}

// UserPrompt renders the requirements and the diff insights for one request.
func UserPrompt(in insights.Insights, opts Options) string {
	var b strings.Builder
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Language: %s\n", orDefault(opts.Language, "English"))
	fmt.Fprintf(&b, "- Style: %s\n", orDefault(opts.Style, "conventional"))
	if opts.Style == "" || opts.Style == "conventional" {
		b.WriteString("- Subject format: type(scope): description\n")
		b.WriteString("- Allowed types: feat, fix, chore, docs, refactor, perf, test, build, ci, style, revert\n")
	}
	if opts.MaxSubjectLength > 0 {
		fmt.Fprintf(&b, "- Subject max length: %d characters\n", opts.MaxSubjectLength)
	}
	if opts.MaxBullets > 0 {
		fmt.Fprintf(&b, "- At most %d bullets\n", opts.MaxBullets)
	}

	b.WriteString("\nContext:\n")
	if in.Scope != "" {
		fmt.Fprintf(&b, "- Scope: %s\n", in.Scope)
	}
	if len(in.Topics) > 0 {
		fmt.Fprintf(&b, "- Topics: %s\n", strings.Join(in.Topics, ", "))
	}
	fmt.Fprintf(&b, "- Summary: %s\n", in.Summary)
	if len(in.FileKinds) > 0 {
		fmt.Fprintf(&b, "- File kinds: %s\n", strings.Join(in.FileKinds, ", "))
	}
	fmt.Fprintf(&b, "- Files touched: %d\n", in.FilesTouched)
	if len(in.BulletPoints) > 0 {
		b.WriteString("\nChanged lines:\n")
		for _, l := range in.BulletPoints {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	return strings.TrimSpace(b.String())
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
