package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/diff"
	"commitmate/cli/internal/erruser"
	"commitmate/cli/internal/generate"
	"commitmate/cli/internal/git"
	"commitmate/cli/internal/history"
	"commitmate/cli/internal/insights"
	"commitmate/cli/internal/review"
	"commitmate/cli/internal/session"
	"commitmate/cli/internal/stats"
	"commitmate/cli/internal/suggest"
	"commitmate/cli/internal/ui"
	"commitmate/cli/internal/version"
)

// changes is the diff a session works on.
type changes struct {
	text    string
	staged  bool
	ignored []string
	in      insights.Insights
}

func (a *app) newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Suggest a message for the staged changes, review it, and commit",
		Long: `Analyze the staged diff (or the unstaged diff when nothing is staged), generate
Conventional Commit suggestions, and let you accept, edit, regenerate, or abort
before committing. With --yes, or when stdin is not a terminal, the first valid
suggestion is used without prompting.`,
		Args: cobra.NoArgs,
		RunE: a.runCommit,
	}
	addCommitFlags(cmd.Flags())
	return cmd
}

// collectChanges reads the staged diff, falling back to unstaged changes, and
// analyzes it after applying the ignore patterns.
func collectChanges(ctx context.Context, ws *workspace) (*changes, error) {
	root := ws.root()
	staged, err := git.HasStaged(ctx, root)
	if err != nil {
		return nil, erruser.New("Could not read the staged changes.", err)
	}
	c := &changes{staged: staged}
	if staged {
		c.text, err = diff.Staged(ctx, root)
	} else {
		c.text, err = diff.Unstaged(ctx, root)
	}
	if err != nil {
		return nil, erruser.New("Could not read the diff.", err)
	}
	if strings.TrimSpace(c.text) == "" {
		return nil, erruser.New("No changes to commit.", nil)
	}
	if !staged {
		ws.log.Warn("Nothing staged; analyzing unstaged changes")
	}

	filtered, ignored := diff.Filter(c.text, ws.cfg.IgnorePatterns)
	c.ignored = ignored
	if strings.TrimSpace(filtered) == "" {
		ws.log.Warn("Every changed file matches an ignore pattern; analyzing the full diff", zap.Int("ignored", len(ignored)))
	} else {
		c.text = filtered
	}
	if len(ignored) > 0 {
		ws.log.Debug("ignored files", zap.Strings("paths", ignored))
	}
	c.in = insights.Analyze(c.text, insights.GenerationTopicLimit)
	return c, nil
}

func (a *app) orchestrator(ws *workspace) *suggest.Orchestrator {
	return &suggest.Orchestrator{
		Generator: a.generator(ws),
		Format:    ws.cfg.FormatOptions(),
		Policy:    ws.cfg.Policy(),
		Scope:     ws.cfg.Scope,
		Language:  ws.cfg.Language,
		Log:       ws.log,
		Tracer:    ws.tracer,
		Notify:    ws.console.Reasons,
	}
}

// tally accumulates what the history record needs.
type tally struct {
	id            string
	outcome       string
	message       commitmsg.Message
	commit        string
	attempts      int
	regenerations int
	manual        bool
}

func (a *app) runCommit(cmd *cobra.Command, _ []string) error {
	ws, err := a.load(cmd, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	all, _ := cmd.Flags().GetBool("all")
	interactive := !yes && a.interactive()
	t := &tally{id: uuid.NewString()}

	release, err := session.Acquire(ws.stateDir(), t.id)
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			msg := "Another commitmate session is active in this repository."
			if h, ok := session.ReadHolder(ws.stateDir()); ok {
				msg = fmt.Sprintf("Another commitmate session is active in this repository (pid %d, started %s).", h.PID, h.StartedAt)
			}
			return erruser.New(msg, nil)
		}
		return erruser.New("Could not lock the commitmate state directory.", err)
	}
	defer release()

	if all && !dryRun {
		if err := git.StageAll(ctx, ws.root()); err != nil {
			return erruser.New("Could not stage changes.", err)
		}
	}
	ch, err := collectChanges(ctx, ws)
	if err != nil {
		return err
	}

	var prompter *ui.Prompter
	var fallback suggest.Prompter
	if interactive {
		prompter = ui.NewPrompter(a.in, a.out)
		fallback = prompter
	}

	orch := a.orchestrator(ws)
	res, err := orch.Suggest(ctx, ch.in, fallback)
	if err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			return a.aborted(ws, ch, t)
		}
		if errors.Is(err, suggest.ErrNoValidMessage) {
			return erruser.New("No valid commit message could be generated. Run interactively to write one, or try --offline.", err)
		}
		return erruser.New("Could not generate a commit message.", err)
	}
	t.attempts = res.Attempts
	t.manual = res.Manual

	msg := res.Candidates[0].Message
	if interactive && len(res.Candidates) > 1 {
		options := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			options[i] = c.Message.Subject
		}
		i, err := prompter.Choose("Pick a suggestion", options)
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				return a.aborted(ws, ch, t)
			}
			return err
		}
		msg = res.Candidates[i].Message
	}

	commit := func(m commitmsg.Message) error {
		if !ch.staged {
			if err := a.stageForCommit(ctx, ws, prompter, yes); err != nil {
				return err
			}
		}
		hash, err := git.Commit(ctx, ws.root(), m.String())
		if err != nil {
			return erruser.New("git commit failed.", err)
		}
		t.commit = hash
		return nil
	}
	if dryRun {
		commit = nil
	}

	if !interactive {
		t.message = msg
		if commit == nil {
			t.outcome = history.OutcomeSkipped
		} else {
			if err := commit(msg); err != nil {
				return err
			}
			t.outcome = history.OutcomeCommitted
		}
	} else {
		loop := &review.Loop{
			Prompter:     prompter,
			Orchestrator: orch,
			Insights:     ch.in,
			Commit:       commit,
			Show:         ws.console.Message,
			Notify:       ws.console.Reasons,
			Log:          ws.log,
		}
		out, err := loop.Run(ctx, msg)
		t.message = out.Message
		t.regenerations = out.Regenerations
		t.manual = t.manual || out.Manual
		if err != nil {
			if errors.Is(err, review.ErrAborted) || errors.Is(err, ui.ErrCancelled) {
				return a.aborted(ws, ch, t)
			}
			return err
		}
		if out.State == review.Committed {
			t.outcome = history.OutcomeCommitted
		} else {
			t.outcome = history.OutcomeSkipped
		}
	}

	switch t.outcome {
	case history.OutcomeCommitted:
		ws.console.Message(t.message)
		ws.console.Success("Committed %s", shortHash(t.commit))
	default:
		ws.console.Message(t.message)
		ws.console.Info("Dry run; nothing committed.")
	}
	a.record(ws, ch, t)
	return nil
}

// stageForCommit stages every change when the session analyzed unstaged
// changes. It asks first unless --yes was given.
func (a *app) stageForCommit(ctx context.Context, ws *workspace, p *ui.Prompter, yes bool) error {
	if !yes {
		if p == nil {
			return erruser.New("Nothing is staged. Stage changes with git add, or pass --all or --yes.", nil)
		}
		ok, err := p.Confirm("Nothing is staged. Stage all changes and commit?", true)
		if err != nil {
			return err
		}
		if !ok {
			return review.ErrAborted
		}
	}
	if err := git.StageAll(ctx, ws.root()); err != nil {
		return erruser.New("Could not stage changes.", err)
	}
	return nil
}

func (a *app) aborted(ws *workspace, ch *changes, t *tally) error {
	t.outcome = history.OutcomeAborted
	ws.console.Warn("Aborted; nothing committed.")
	a.record(ws, ch, t)
	return errExit(1)
}

// record appends the session to history. Failures are logged, not returned.
func (a *app) record(ws *workspace, ch *changes, t *tally) {
	rec := history.NewRecord(t.outcome)
	rec.SessionID = t.id
	rec.Commit = t.commit
	rec.Subject = t.message.Subject
	rec.Bullets = t.message.Bullets
	rec.Provider = providerLabel(ws.cfg)
	if generate.IsRemote(rec.Provider) {
		rec.Model = generate.Model(rec.Provider, ws.cfg.Model)
	}
	rec.Attempts = t.attempts
	rec.Regenerations = t.regenerations
	rec.Manual = t.manual
	rec.FilesTouched = ch.in.FilesTouched
	rec.Version = version.String()
	if t.message.Subject != "" {
		rec.Score = stats.ScoreMessage(t.message.String(), ch.in).Total
	}
	if branch, err := ws.repo.CurrentBranch(); err == nil {
		rec.Branch = branch
	}
	if err := history.Append(ws.stateDir(), rec, ws.cfg.HistoryMaxRecords); err != nil {
		ws.log.Warn("Could not write history", zap.Error(err))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
