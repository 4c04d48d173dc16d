package generate

import (
	"context"
	"strings"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/insights"
	"commitmate/cli/internal/policy"
)

const (
	localSubjectLimit = 72
	localBulletLimit  = 2
)

// mockVerbs rotate by candidate index so offline candidates are reproducible.
var mockVerbs = []string{"refine", "fix", "add", "improve", "update", "tune", "adjust", "harden", "align", "streamline"}

// Local is the deterministic heuristic generator.
type Local struct {
	ArtifactPatterns []string
}

// NewLocal returns a Local generator that drops bullets mentioning the
// default artifact patterns.
func NewLocal() *Local {
	return &Local{ArtifactPatterns: policy.ArtifactPatterns}
}

// Generate returns the candidate at req.Offset.
func (l *Local) Generate(_ context.Context, req Request) (Response, error) {
	return l.candidate(req, req.Offset, ""), nil
}

// GenerateMany returns n candidates, each led by a different topic when the
// diff has several.
func (l *Local) GenerateMany(_ context.Context, req Request, n int) ([]Response, error) {
	out := make([]Response, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.candidate(req, req.Offset+i, ""))
	}
	return out, nil
}

func (l *Local) candidate(req Request, i int, verb string) Response {
	in := req.Insights
	summary := ledSummary(in, i)
	if verb != "" {
		summary = verb + " " + strings.ToLower(summary)
	}
	return Response{
		Subject: commitmsg.Truncate(chorePrefix(in.Scope)+summary, localSubjectLimit),
		Bullets: commitmsg.SanitizeBullets(rotate(in.BulletPoints, i), l.ArtifactPatterns, localBulletLimit),
	}
}

// Mock is the offline generator: the local heuristic with a rotating verb.
type Mock struct {
	Local
}

// NewMock returns a Mock generator.
func NewMock() *Mock {
	return &Mock{Local: *NewLocal()}
}

// Generate returns the candidate at req.Offset.
func (m *Mock) Generate(_ context.Context, req Request) (Response, error) {
	return m.candidate(req, req.Offset, mockVerbs[mod(req.Offset, len(mockVerbs))]), nil
}

// GenerateMany returns n candidates with successive verbs.
func (m *Mock) GenerateMany(_ context.Context, req Request, n int) ([]Response, error) {
	out := make([]Response, 0, n)
	for i := 0; i < n; i++ {
		idx := req.Offset + i
		out = append(out, m.candidate(req, idx, mockVerbs[mod(idx, len(mockVerbs))]))
	}
	return out, nil
}

// ledSummary rebuilds the summary with topic i (modulo the topic count) first.
func ledSummary(in insights.Insights, i int) string {
	if len(in.Topics) == 0 {
		if in.Summary != "" {
			return in.Summary
		}
		return insights.Summarize(in.Scope, nil)
	}
	return insights.Summarize(in.Scope, insights.LeadTopic(in.Topics, mod(i, len(in.Topics))))
}

func chorePrefix(scope string) string {
	if scope == "" {
		return "chore: "
	}
	return "chore(" + scope + "): "
}

func rotate(lines []string, i int) []string {
	if len(lines) == 0 {
		return nil
	}
	k := mod(i, len(lines))
	out := make([]string, 0, len(lines))
	out = append(out, lines[k:]...)
	return append(out, lines[:k]...)
}

func mod(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}
