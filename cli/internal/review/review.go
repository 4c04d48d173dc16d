// Package review runs the interactive review loop over a suggested commit
// message: the operator accepts, edits, regenerates, or aborts, and accepted
// messages are re-validated before they are committed.
package review

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/insights"
	"commitmate/cli/internal/policy"
	"commitmate/cli/internal/suggest"
)

// maxShownReasons caps the reasons displayed when an accept is rejected.
const maxShownReasons = 3

// ErrAborted is returned by Run when the operator confirms an abort.
var ErrAborted = errors.New("commit aborted")

// State is a review loop state.
type State string

// Loop states. Committed, Skipped and ConfirmedAbort are terminal.
const (
	Reviewing      State = "reviewing"
	EditSubject    State = "edit-subject"
	EditBullets    State = "edit-bullets"
	Regenerate     State = "regenerate"
	Accept         State = "accept"
	Abort          State = "abort"
	Committed      State = "committed"
	Skipped        State = "skipped"
	ConfirmedAbort State = "confirmed-abort"
)

// Terminal reports whether s ends the loop.
func (s State) Terminal() bool {
	return s == Committed || s == Skipped || s == ConfirmedAbort
}

// Action is one operator choice while reviewing.
type Action struct {
	Label string
	Next  State
}

// Actions is the fixed choice list presented while reviewing.
var Actions = []Action{
	{Label: "Accept and commit", Next: Accept},
	{Label: "Edit subject", Next: EditSubject},
	{Label: "Edit bullets", Next: EditBullets},
	{Label: "Regenerate", Next: Regenerate},
	{Label: "Abort", Next: Abort},
}

// Prompter is the interactive capability the loop needs.
type Prompter interface {
	suggest.Prompter
	Choose(label string, options []string) (int, error)
	Confirm(label string, def bool) (bool, error)
}

// Outcome is the final state of a run.
type Outcome struct {
	State         State
	Message       commitmsg.Message
	Regenerations int
	Manual        bool
}

// Loop holds the collaborators of one review session.
type Loop struct {
	Prompter     Prompter
	Orchestrator *suggest.Orchestrator
	Insights     insights.Insights
	// Commit performs the commit. A nil Commit ends an accepted review as Skipped.
	Commit func(msg commitmsg.Message) error
	// Show displays the current message before the choice list.
	Show func(msg commitmsg.Message)
	// Notify displays rejection reasons.
	Notify func(reasons []string)
	Log    *zap.Logger
}

// Run drives the loop from initial until a terminal state. Prompter errors
// and commit failures end the run with that error.
func (l *Loop) Run(ctx context.Context, initial commitmsg.Message) (Outcome, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := Outcome{State: Reviewing, Message: initial}
	labels := make([]string, len(Actions))
	for i, a := range Actions {
		labels[i] = a.Label
	}
	for !out.State.Terminal() {
		log.Debug("review state", zap.String("state", string(out.State)))
		switch out.State {
		case Reviewing:
			if l.Show != nil {
				l.Show(out.Message)
			}
			i, err := l.Prompter.Choose("What would you like to do?", labels)
			if err != nil {
				return out, err
			}
			if i < 0 || i >= len(Actions) {
				continue
			}
			out.State = Actions[i].Next

		case EditSubject:
			s, err := l.Prompter.Input("Subject", out.Message.Subject)
			if err != nil {
				return out, err
			}
			if s = strings.TrimSpace(s); s != "" {
				out.Message.Subject = s
			}
			out.State = Reviewing

		case EditBullets:
			text, err := l.Prompter.Multiline("Bullets (one per line)", strings.Join(out.Message.Bullets, "\n"))
			if err != nil {
				return out, err
			}
			out.Message.Bullets = suggest.SplitBullets(text, out.Message.Prefix)
			out.State = Reviewing

		case Regenerate:
			res, err := l.Orchestrator.Suggest(ctx, l.Insights, l.Prompter)
			if err != nil {
				return out, err
			}
			out.Regenerations++
			out.Manual = res.Manual
			out.Message = res.Candidates[0].Message
			out.State = Reviewing

		case Accept:
			v := policy.Validate(out.Message.Subject, out.Message.Bullets, l.Orchestrator.Policy)
			if !v.Valid {
				reasons := v.Reasons
				if len(reasons) > maxShownReasons {
					reasons = reasons[:maxShownReasons]
				}
				if l.Notify != nil {
					l.Notify(reasons)
				}
				log.Debug("accept rejected", zap.Strings("reasons", v.Reasons))
				out.State = Regenerate
				continue
			}
			if l.Commit == nil {
				out.State = Skipped
				continue
			}
			if err := l.Commit(out.Message); err != nil {
				return out, err
			}
			out.State = Committed

		case Abort:
			ok, err := l.Prompter.Confirm("Abort without committing?", false)
			if err != nil {
				return out, err
			}
			if ok {
				out.State = ConfirmedAbort
				return out, ErrAborted
			}
			out.State = Reviewing

		default:
			return out, errors.Newf("review: unknown state %q", out.State)
		}
	}
	return out, nil
}
