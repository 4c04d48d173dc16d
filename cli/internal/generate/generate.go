// Package generate turns diff insights into candidate commit messages. It
// offers a closed set of generators behind one interface: the deterministic
// local heuristic, the offline mock with rotating verbs, and the remote
// chat-completions generator that falls back to the local heuristic.
package generate

import (
	"context"

	"commitmate/cli/internal/insights"
)

// Request is the read-only input to a generator.
type Request struct {
	Insights insights.Insights
	Language string
	Style    string
	// Offset shifts candidate indexes so successive rounds differ.
	Offset int
}

// Response is one candidate message before normalization.
type Response struct {
	Subject   string   `json:"subject" yaml:"subject"`
	Bullets   []string `json:"bullets" yaml:"bullets"`
	Rationale []string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Generator produces the single best candidate for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ManyGenerator is implemented by generators that produce several candidates cheaply.
type ManyGenerator interface {
	Generator
	GenerateMany(ctx context.Context, req Request, n int) ([]Response, error)
}

// Many returns n candidates from g, using GenerateMany when g implements it
// and n calls to Generate otherwise.
func Many(ctx context.Context, g Generator, req Request, n int) ([]Response, error) {
	if n <= 0 {
		return nil, nil
	}
	if mg, ok := g.(ManyGenerator); ok {
		return mg.GenerateMany(ctx, req, n)
	}
	out := make([]Response, 0, n)
	for i := 0; i < n; i++ {
		r := req
		r.Offset = req.Offset + i
		res, err := g.Generate(ctx, r)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
