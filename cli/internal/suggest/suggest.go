// Package suggest drives candidate generation, normalization, formatting and
// policy validation in a bounded retry loop, and provides the manual-entry
// flow used when the loop runs out of attempts.
package suggest

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/generate"
	"commitmate/cli/internal/insights"
	"commitmate/cli/internal/policy"
	"commitmate/cli/internal/trace"
)

const (
	// DefaultMaxAttempts is the number of generation rounds before giving up.
	DefaultMaxAttempts = 3
	// DefaultCandidates is the number of candidates requested per round.
	DefaultCandidates = 3
	// DefaultScope is used when neither the diff nor the config names a scope.
	DefaultScope = "core"
)

// ErrNoValidMessage is returned by Build when every round produced only
// candidates that fail policy validation.
var ErrNoValidMessage = errors.New("no valid commit message after retries")

// Candidate is a formatted message that passed validation, paired with the
// raw generator output it came from.
type Candidate struct {
	Message commitmsg.Message
	Raw     generate.Response
}

// Result is the outcome of Build or Suggest.
type Result struct {
	Candidates []Candidate
	Attempts   int
	// Manual is true when the message was entered by the operator.
	Manual bool
	// Reasons holds the first rejection reasons of the last failed round.
	Reasons []string
}

// Orchestrator runs the suggestion pipeline. It is not safe for concurrent use.
type Orchestrator struct {
	Generator   generate.Generator
	Format      commitmsg.Options
	Policy      policy.Config
	Scope       string // configured fallback scope
	Language    string
	MaxAttempts int
	Candidates  int
	Log         *zap.Logger
	Tracer      *trace.Tracer
	// Notify shows rejection reasons to the operator during manual entry.
	Notify func(reasons []string)

	round int
}

// DesiredScope returns the scope used for normalization: the diff's scope,
// then configured, then DefaultScope.
func DesiredScope(in insights.Insights, configured string) string {
	if in.Scope != "" {
		return in.Scope
	}
	if s := strings.TrimSpace(configured); s != "" {
		return s
	}
	return DefaultScope
}

// Build requests candidates up to MaxAttempts times and returns every valid
// candidate of the first round that produced any. Each call continues the
// candidate sequence, so calling Build again regenerates.
func (o *Orchestrator) Build(ctx context.Context, in insights.Insights) (*Result, error) {
	if o.Generator == nil {
		return nil, errors.New("suggest: nil generator")
	}
	log := o.logger()
	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	scope := DesiredScope(in, o.Scope)
	var lastReasons []string
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raws, err := o.generate(ctx, in)
		if err != nil {
			return nil, errors.Wrap(err, "generate candidates")
		}
		o.Tracer.Attempt(attempt)
		var valid []Candidate
		var firstReasons []string
		for _, raw := range raws {
			msg, res := o.Evaluate(raw, in, scope)
			o.Tracer.Candidate(msg.String(), res.Valid, res.Reasons)
			if res.Valid {
				valid = append(valid, Candidate{Message: msg, Raw: raw})
			} else if firstReasons == nil {
				firstReasons = res.Reasons
			}
		}
		if len(valid) > 0 {
			return &Result{Candidates: valid, Attempts: attempt}, nil
		}
		lastReasons = firstReasons
		first := "no candidates"
		if len(firstReasons) > 0 {
			first = firstReasons[0]
		}
		log.Warn("Suggestion rejected, regenerating", zap.Int("attempt", attempt), zap.Int("max_attempts", attempts), zap.String("reason", first))
	}
	return &Result{Attempts: attempts, Reasons: lastReasons}, ErrNoValidMessage
}

// Evaluate normalizes, fills, formats and validates one raw candidate.
func (o *Orchestrator) Evaluate(raw generate.Response, in insights.Insights, scope string) (commitmsg.Message, policy.Result) {
	subject := commitmsg.NormalizeSubject(raw.Subject, scope)
	bullets := commitmsg.SanitizeBullets(raw.Bullets, o.Policy.ArtifactPatterns, o.Format.MaxBullets)
	if len(bullets) == 0 {
		bullets = commitmsg.SanitizeBullets(in.BulletPoints, o.Policy.ArtifactPatterns, o.Format.MaxBullets)
	}
	msg := commitmsg.Format(subject, bullets, scope, o.Format)
	return msg, policy.Validate(msg.Subject, msg.Bullets, o.Policy)
}

func (o *Orchestrator) generate(ctx context.Context, in insights.Insights) ([]generate.Response, error) {
	n := o.Candidates
	if n <= 0 {
		n = DefaultCandidates
	}
	req := generate.Request{Insights: in, Language: o.Language, Style: o.Format.Style, Offset: o.round * n}
	o.round++
	if mg, ok := o.Generator.(generate.ManyGenerator); ok {
		return mg.GenerateMany(ctx, req, n)
	}
	res, err := o.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return []generate.Response{res}, nil
}

// Suggest runs Build and, when it is exhausted, falls back to manual entry
// through p. A nil p turns exhaustion into ErrNoValidMessage.
func (o *Orchestrator) Suggest(ctx context.Context, in insights.Insights, p Prompter) (*Result, error) {
	res, err := o.Build(ctx, in)
	if err == nil || !errors.Is(err, ErrNoValidMessage) || p == nil {
		return res, err
	}
	o.logger().Warn("No valid suggestion after retries; switching to manual entry", zap.Int("attempts", res.Attempts))
	o.notify(res.Reasons)
	msg, err := o.Manual(p, commitmsg.Message{Prefix: o.Format.BulletPrefix}, DesiredScope(in, o.Scope))
	if err != nil {
		return nil, err
	}
	return &Result{Candidates: []Candidate{{Message: msg}}, Attempts: res.Attempts, Manual: true}, nil
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o *Orchestrator) notify(reasons []string) {
	if o.Notify != nil && len(reasons) > 0 {
		o.Notify(reasons)
	}
}
