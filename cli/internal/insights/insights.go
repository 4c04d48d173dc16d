// Package insights derives a structured summary of a unified diff: the likely
// scope of the change, ranked topic words, candidate bullet lines, and the
// kinds of files touched. Every downstream stage reads the Insights value; it
// is computed once per invocation and never mutated.
package insights

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultTopicLimit is the number of topics kept for display.
	DefaultTopicLimit = 3
	// GenerationTopicLimit is the number of topics kept when insights feed a generator.
	GenerationTopicLimit = 4

	maxBulletCandidates = 5
	maxBulletChars      = 80
	minTopicLen         = 4
	maxTopicLen         = 29
)

// Insights is the derived summary of one diff.
type Insights struct {
	Scope        string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Topics       []string `json:"topics" yaml:"topics"`
	BulletPoints []string `json:"bullet_points" yaml:"bullet_points"`
	Summary      string   `json:"summary" yaml:"summary"`
	IsFrontend   bool     `json:"is_frontend" yaml:"is_frontend"`
	FilesTouched int      `json:"files_touched" yaml:"files_touched"`
	FileKinds    []string `json:"file_kinds" yaml:"file_kinds"`
	Files        []string `json:"files" yaml:"files"`
}

var (
	scopeExts    = []string{".ts", ".tsx", ".js", ".jsx", ".css", ".scss", ".sass", ".vue"}
	frontendExts = []string{".tsx", ".jsx", ".css", ".scss", ".sass", ".vue"}
	uiKeywords   = []string{"component", "ui"}
	apiKeywords  = []string{"api", "server", "backend", "routes", "controllers"}
	buildKeyword = []string{"config", "settings", "env", "build", "webpack", "vite"}
)

// Analyze builds Insights from diffText. topicLimit <= 0 means DefaultTopicLimit.
// Analyze never fails; missing data yields empty fields.
func Analyze(diffText string, topicLimit int) Insights {
	if topicLimit <= 0 {
		topicLimit = DefaultTopicLimit
	}
	files, content := scan(diffText)
	in := Insights{
		Scope:        InferScope(files),
		Topics:       RankTopics(content, topicLimit),
		BulletPoints: bulletCandidates(content),
		IsFrontend:   hasFrontend(files),
		FilesTouched: len(files),
		FileKinds:    fileKinds(files),
		Files:        files,
	}
	in.Summary = Summarize(in.Scope, in.Topics)
	return in
}

// Summarize renders the one-line summary for scope and topics.
func Summarize(scope string, topics []string) string {
	joined := strings.Join(topics, ", ")
	if joined == "" {
		joined = "changes"
	}
	if scope != "" {
		return scope + " updates: " + joined
	}
	return "Updates around " + joined
}

// LeadTopic returns a copy of topics with topics[i] moved to the front. When i
// is out of range the order is unchanged.
func LeadTopic(topics []string, i int) []string {
	out := make([]string, 0, len(topics))
	if i <= 0 || i >= len(topics) {
		return append(out, topics...)
	}
	out = append(out, topics[i])
	out = append(out, topics[:i]...)
	return append(out, topics[i+1:]...)
}

// scan returns the touched file paths (deduplicated, first-seen order) and
// the trimmed content of every added or removed line. File headers are only
// recognized between hunks, so a removed "-- comment" or an added "++x" stays
// content. A hunk ends when its line counts are used up, at the next
// "diff --git" line, or at any line that cannot belong to a hunk body.
func scan(diffText string) (files []string, content []string) {
	seen := make(map[string]bool)
	var h hunk
	for _, line := range strings.Split(diffText, "\n") {
		line = strings.TrimRight(line, "\r")
		if h.open && !h.body(line) {
			h = hunk{}
		}
		if !h.open {
			switch {
			case strings.HasPrefix(line, "@@"):
				h = openHunk(line)
				continue
			case strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "--- "):
				p := headerPath(line[4:])
				if p != "" && !seen[p] {
					seen[p] = true
					files = append(files, p)
				}
				continue
			case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
				// bare header marker without a path
				continue
			}
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			if s := strings.TrimSpace(line[1:]); s != "" {
				content = append(content, s)
			}
		}
		h.consume(line)
	}
	return files, content
}

var hunkCounts = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// hunk tracks how many old and new lines remain in the current hunk body.
// counted is false when the header could not be parsed; such a hunk runs
// until a line that cannot be part of a body.
type hunk struct {
	open     bool
	counted  bool
	old, new int
}

func openHunk(line string) hunk {
	m := hunkCounts.FindStringSubmatch(line)
	if m == nil {
		return hunk{open: true}
	}
	return hunk{open: true, counted: true, old: hunkCount(m[1]), new: hunkCount(m[2])}
}

// hunkCount reads an optional range length; an omitted length means 1.
func hunkCount(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// body reports whether line still belongs to the open hunk.
func (h *hunk) body(line string) bool {
	if h.counted && h.old <= 0 && h.new <= 0 {
		return strings.HasPrefix(line, `\`)
	}
	if strings.HasPrefix(line, "diff --git ") || strings.HasPrefix(line, "@@") {
		return false
	}
	if line == "" {
		return h.counted
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

func (h *hunk) consume(line string) {
	if !h.counted {
		return
	}
	switch {
	case strings.HasPrefix(line, "+"):
		h.new--
	case strings.HasPrefix(line, "-"):
		h.old--
	case strings.HasPrefix(line, `\`):
	default:
		h.old--
		h.new--
	}
}

func headerPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		s = s[2:]
	}
	return s
}

// InferScope scans paths in order and returns the first category that matches.
func InferScope(files []string) string {
	for _, f := range files {
		lower := strings.ToLower(f)
		frontend := hasAnySuffix(lower, scopeExts)
		switch {
		case frontend && containsAny(lower, uiKeywords):
			return "ui"
		case containsAny(lower, apiKeywords):
			return "api"
		case frontend:
			return "front"
		case containsAny(lower, buildKeyword):
			return "build"
		}
	}
	return ""
}

// RankTopics counts words of 4 to 29 characters across lines and returns the
// limit most frequent, ties broken by first appearance.
func RankTopics(lines []string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, line := range lines {
		for _, w := range strings.Fields(normalizeWords(line)) {
			if len(w) < minTopicLen || len(w) > maxTopicLen {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func normalizeWords(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, s)
}

func bulletCandidates(content []string) []string {
	n := len(content)
	if n > maxBulletCandidates {
		n = maxBulletCandidates
	}
	out := make([]string, 0, n)
	for _, line := range content[:n] {
		if r := []rune(line); len(r) > maxBulletChars {
			line = string(r[:maxBulletChars])
		}
		out = append(out, line)
	}
	return out
}

func hasFrontend(files []string) bool {
	for _, f := range files {
		if hasAnySuffix(strings.ToLower(f), frontendExts) {
			return true
		}
	}
	return false
}

func fileKinds(files []string) []string {
	set := make(map[string]bool)
	for _, f := range files {
		base := path.Base(f)
		i := strings.LastIndexByte(base, '.')
		if i < 0 || i == len(base)-1 {
			continue
		}
		set[strings.ToLower(base[i+1:])] = true
	}
	kinds := make([]string, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
