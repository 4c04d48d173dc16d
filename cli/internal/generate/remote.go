package generate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/llm"
	"commitmate/cli/internal/prompt"
	"commitmate/cli/internal/tokens"
	"commitmate/cli/internal/trace"
)

const (
	remoteSubjectLimit = 72
	remoteBulletLimit  = 5
	breakerFailures    = 2
	breakerCooldown    = 30 * time.Second
)

// Completer sends one chat-completions request. *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// RemoteConfig holds the model parameters and prompt settings for Remote.
type RemoteConfig struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	SystemPrompt     string
	MaxSubjectLength int
	MaxBullets       int
	// ContextLimit is the model's input window in tokens; 0 means tokens.DefaultContextLimit.
	ContextLimit int
}

// Outcome is the result of one remote attempt: either a usable Response or
// the Reason the remote path could not produce one.
type Outcome struct {
	Response Response
	Reason   string
}

// OK reports whether the outcome carries a remote response.
func (o Outcome) OK() bool { return o.Reason == "" }

// Remote generates candidates through a chat-completions endpoint and falls
// back to another generator whenever the endpoint gives nothing usable.
type Remote struct {
	client   Completer
	cfg      RemoteConfig
	fallback Generator
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
	tracer   *trace.Tracer
	warnOnce sync.Once
}

// NewRemote builds a remote generator. client may be nil when no credential
// is available; every request then goes to fallback.
func NewRemote(client Completer, cfg RemoteConfig, fallback Generator, log *zap.Logger, tracer *trace.Tracer) *Remote {
	if fallback == nil {
		fallback = NewLocal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompt.DefaultSystemPrompt
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = tokens.DefaultContextLimit
	}
	return &Remote{
		client:   client,
		cfg:      cfg,
		fallback: fallback,
		log:      log,
		tracer:   tracer,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "remote-generator",
			MaxRequests: 1,
			Timeout:     breakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Debug("circuit breaker state change", zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
	}
}

// Attempt makes at most one remote call and reports what happened without
// falling back.
func (r *Remote) Attempt(ctx context.Context, req Request) Outcome {
	if r.client == nil {
		return Outcome{Reason: "no API key configured"}
	}
	chat := llm.ChatRequest{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Messages: []llm.Message{
			{Role: "system", Content: r.cfg.SystemPrompt},
			{Role: "user", Content: prompt.UserPrompt(req.Insights, prompt.Options{
				Language:         req.Language,
				Style:            req.Style,
				MaxSubjectLength: r.cfg.MaxSubjectLength,
				MaxBullets:       r.cfg.MaxBullets,
			})},
		},
	}
	estimate := tokens.EstimateAll(chat.Messages[0].Content, chat.Messages[1].Content)
	r.tracer.Prompt(chat.Messages[1].Content, estimate)
	if w := tokens.Check(estimate, r.cfg.MaxTokens, r.cfg.ContextLimit, tokens.DefaultWarnThreshold); w != "" {
		r.log.Warn("Remote prompt may not fit the model window", zap.String("estimate", w))
	}
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Complete(ctx, chat)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Outcome{Reason: "remote generation paused after repeated failures"}
		}
		return Outcome{Reason: err.Error()}
	}
	content, _ := out.(string)
	r.tracer.Response(content)
	res, ok := ParseResponse(content)
	if !ok {
		return Outcome{Reason: "response had no usable subject"}
	}
	return Outcome{Response: res}
}

// Generate returns the remote candidate, or the fallback's candidate when the
// remote attempt fails. The first fallback is logged as a warning.
func (r *Remote) Generate(ctx context.Context, req Request) (Response, error) {
	o := r.Attempt(ctx, req)
	if o.OK() {
		return o.Response, nil
	}
	r.warnOnce.Do(func() {
		r.log.Warn("Remote generation unavailable; using local heuristics", zap.String("reason", o.Reason))
	})
	r.log.Debug("remote fallback", zap.String("reason", o.Reason))
	return r.fallback.Generate(ctx, req)
}

// GenerateMany makes at most one remote call: the first candidate comes from
// Generate and the remaining n-1 from the fallback generator.
func (r *Remote) GenerateMany(ctx context.Context, req Request, n int) ([]Response, error) {
	if n <= 0 {
		return nil, nil
	}
	first, err := r.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	rest := req
	rest.Offset = req.Offset + 1
	more, err := Many(ctx, r.fallback, rest, n-1)
	return append([]Response{first}, more...), err
}

// ParseResponse reads a model answer: the first non-empty line is the subject
// (an optional "subject:" label and code fences are stripped) and following
// lines starting with -, * or • are bullets. ok is false without a subject.
func ParseResponse(content string) (Response, bool) {
	var res Response
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if res.Subject == "" {
			if len(line) >= len("subject:") && strings.EqualFold(line[:len("subject:")], "subject:") {
				line = strings.TrimSpace(line[len("subject:"):])
			}
			line = strings.TrimSpace(strings.Trim(line, "\"`"))
			if line == "" {
				continue
			}
			res.Subject = commitmsg.Truncate(line, remoteSubjectLimit)
			continue
		}
		if len(res.Bullets) >= remoteBulletLimit {
			break
		}
		for _, marker := range []string{"-", "*", "•"} {
			if strings.HasPrefix(line, marker) {
				if b := strings.TrimSpace(strings.TrimPrefix(line, marker)); b != "" {
					res.Bullets = append(res.Bullets, b)
				}
				break
			}
		}
	}
	return res, res.Subject != ""
}
