package stats

import (
	"sort"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/history"
)

// HistoryResult aggregates history.jsonl.
type HistoryResult struct {
	Sessions             int            `json:"sessions" yaml:"sessions"`
	Committed            int            `json:"committed" yaml:"committed"`
	Skipped              int            `json:"skipped" yaml:"skipped"`
	Aborted              int            `json:"aborted" yaml:"aborted"`
	AcceptanceRate       float64        `json:"acceptance_rate" yaml:"acceptance_rate"`
	ManualRate           float64        `json:"manual_rate" yaml:"manual_rate"`
	AverageScore         float64        `json:"average_score" yaml:"average_score"`
	AverageAttempts      float64        `json:"average_attempts" yaml:"average_attempts"`
	AverageRegenerations float64        `json:"average_regenerations" yaml:"average_regenerations"`
	Types                map[string]int `json:"types" yaml:"types"`
	Providers            map[string]int `json:"providers" yaml:"providers"`
}

// TypeCount is one entry of SortedTypes.
type TypeCount struct {
	Type  string
	Count int
}

// History reads stateDir's history (archives included) and aggregates it. A
// missing stateDir or empty history yields zero counts and no error.
func History(stateDir string) (*HistoryResult, error) {
	records, err := history.ReadRecords(stateDir)
	if err != nil {
		return nil, err
	}
	res := &HistoryResult{Types: map[string]int{}, Providers: map[string]int{}}
	var manual, scoreSum, scored, attempts, regens int
	for _, r := range records {
		res.Sessions++
		switch r.Outcome {
		case history.OutcomeCommitted:
			res.Committed++
		case history.OutcomeSkipped:
			res.Skipped++
		case history.OutcomeAborted:
			res.Aborted++
		}
		if r.Manual {
			manual++
		}
		if r.Score > 0 {
			scoreSum += r.Score
			scored++
		}
		attempts += r.Attempts
		regens += r.Regenerations
		if r.Provider != "" {
			res.Providers[r.Provider]++
		}
		if p, ok := commitmsg.ParseSubject(r.Subject); ok && r.Outcome == history.OutcomeCommitted {
			res.Types[p.Type]++
		}
	}
	if res.Sessions > 0 {
		n := float64(res.Sessions)
		res.AcceptanceRate = float64(res.Committed+res.Skipped) / n
		res.ManualRate = float64(manual) / n
		res.AverageAttempts = float64(attempts) / n
		res.AverageRegenerations = float64(regens) / n
	}
	if scored > 0 {
		res.AverageScore = float64(scoreSum) / float64(scored)
	}
	return res, nil
}

// SortedTypes returns the commit type counts, most frequent first, ties by name.
func (r *HistoryResult) SortedTypes() []TypeCount {
	out := make([]TypeCount, 0, len(r.Types))
	for t, c := range r.Types {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
