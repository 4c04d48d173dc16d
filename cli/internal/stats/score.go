// Package stats scores finished commit messages and aggregates the commit
// history log into acceptance statistics.
package stats

import (
	"regexp"
	"strings"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/insights"
)

// MaxScore caps Score.Total.
const MaxScore = 100

var (
	nonImperative = map[string]bool{
		"updates": true, "updated": true, "updating": true,
		"fixes": true, "fixed": true, "fixing": true,
		"adds": true, "added": true, "adding": true,
		"please": true,
	}
	typeTokenRe = regexp.MustCompile(`\b(?:` + strings.Join(commitmsg.Types, "|") + `)(?:\([^)]*\))?!?:`)
)

// Detail is one scored criterion.
type Detail struct {
	Name   string `json:"name" yaml:"name"`
	Points int    `json:"points" yaml:"points"`
	Max    int    `json:"max" yaml:"max"`
}

// Score is an informational quality score; it never gates a commit.
type Score struct {
	Total   int      `json:"total" yaml:"total"`
	Details []Detail `json:"details" yaml:"details"`
}

// ScoreMessage scores message text (subject line plus bullet lines) against
// the diff it describes.
func ScoreMessage(message string, in insights.Insights) Score {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	subject := strings.TrimSpace(lines[0])
	bullets := 0
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) != "" {
			bullets++
		}
	}

	var s Score
	add := func(name string, ok bool, hit, miss int) {
		p := miss
		if ok {
			p = hit
		}
		s.Details = append(s.Details, Detail{Name: name, Points: p, Max: hit})
		s.Total += p
	}
	add("subject length", len([]rune(subject)) <= 72, 20, 5)
	add("imperative mood", imperative(subject), 15, 5)
	add("type prefix", typeTokenRe.MatchString(subject), 15, 5)
	add("bullets", bullets > 0, 15, 5)
	add("frontend aware", in.IsFrontend, 10, 8)
	add("broad change", in.FilesTouched > 3, 8, 6)
	if s.Total > MaxScore {
		s.Total = MaxScore
	}
	return s
}

func imperative(subject string) bool {
	desc := subject
	if p, ok := commitmsg.ParseSubject(subject); ok {
		desc = p.Description
	}
	fields := strings.Fields(strings.ToLower(desc))
	if len(fields) == 0 {
		return false
	}
	if nonImperative[fields[0]] {
		return false
	}
	for _, f := range fields {
		if f == "please" {
			return false
		}
	}
	return true
}
