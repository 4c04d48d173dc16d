package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"commitmate/cli/internal/commitmsg"
	"commitmate/cli/internal/config"
	"commitmate/cli/internal/diff"
	"commitmate/cli/internal/erruser"
	"commitmate/cli/internal/generate"
	"commitmate/cli/internal/git"
	"commitmate/cli/internal/insights"
	"commitmate/cli/internal/llm"
	"commitmate/cli/internal/policy"
	"commitmate/cli/internal/stats"
)

const doctorTimeout = 10 * time.Second

// scissorsLine marks the start of the part git strips from a commit message file.
const scissorsLine = "# ------------------------ >8 ------------------------"

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output", "human", "Output format: human (default), json, or yaml")
	cmd.Flags().Bool("json", false, "Emit JSON to stdout (same as --output=json)")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	output, _ := cmd.Flags().GetString("output")
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		output = "json"
	}
	switch output = strings.ToLower(strings.TrimSpace(output)); output {
	case "human", "json", "yaml":
		return output, nil
	}
	return "", erruser.New("Invalid --output "+strconv.Quote(output)+"; use human, json, or yaml.", nil)
}

// writeStructured writes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode json")
}

type messageOutput struct {
	Subject string   `json:"subject" yaml:"subject"`
	Bullets []string `json:"bullets,omitempty" yaml:"bullets,omitempty"`
	Message string   `json:"message" yaml:"message"`
	Score   int      `json:"score" yaml:"score"`
}

func newMessageOutput(m commitmsg.Message, in insights.Insights) messageOutput {
	return messageOutput{
		Subject: m.Subject,
		Bullets: m.Bullets,
		Message: m.String(),
		Score:   stats.ScoreMessage(m.String(), in).Total,
	}
}

func (a *app) newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print validated commit message suggestions without committing",
		Args:  cobra.NoArgs,
		RunE:  a.runSuggest,
	}
	addGenerationFlags(cmd.Flags())
	addOutputFlags(cmd)
	return cmd
}

func (a *app) runSuggest(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	ws, err := a.load(cmd, true)
	if err != nil {
		return err
	}
	ch, err := collectChanges(cmd.Context(), ws)
	if err != nil {
		return err
	}
	res, err := a.orchestrator(ws).Build(cmd.Context(), ch.in)
	if err != nil {
		if res != nil {
			ws.console.Reasons(res.Reasons)
		}
		return erruser.New("No valid commit message could be generated.", err)
	}
	out := make([]messageOutput, len(res.Candidates))
	for i, c := range res.Candidates {
		out[i] = newMessageOutput(c.Message, ch.in)
	}
	if format != "human" {
		return writeStructured(a.out, format, out)
	}
	for i, c := range res.Candidates {
		ws.console.Title(fmt.Sprintf("Suggestion %d (score %d)", i+1, out[i].Score))
		ws.console.Message(c.Message)
	}
	return nil
}

type inspectOutput struct {
	Source     string            `json:"source" yaml:"source"`
	Scope      string            `json:"scope" yaml:"scope"`
	Topics     []string          `json:"topics" yaml:"topics"`
	Summary    string            `json:"summary" yaml:"summary"`
	Bullets    []string          `json:"bullet_points" yaml:"bullet_points"`
	IsFrontend bool              `json:"is_frontend" yaml:"is_frontend"`
	FileKinds  []string          `json:"file_kinds" yaml:"file_kinds"`
	Files      []diff.File       `json:"files" yaml:"files"`
	Ignored    []string          `json:"ignored,omitempty" yaml:"ignored,omitempty"`
	Suggestion *messageOutput    `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Breakdown  []stats.Detail    `json:"score_breakdown,omitempty" yaml:"score_breakdown,omitempty"`
	Policy     *inspectPolicyOut `json:"policy,omitempty" yaml:"policy,omitempty"`
}

type inspectPolicyOut struct {
	Attempts int      `json:"attempts" yaml:"attempts"`
	Reasons  []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

func (a *app) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the diff insights, the top suggestion, and its quality score",
		Args:  cobra.NoArgs,
		RunE:  a.runInspect,
	}
	addGenerationFlags(cmd.Flags())
	addOutputFlags(cmd)
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	ws, err := a.load(cmd, true)
	if err != nil {
		return err
	}
	ch, err := collectChanges(cmd.Context(), ws)
	if err != nil {
		return err
	}
	files, err := diff.Parse(ch.text)
	if err != nil {
		return erruser.New("Could not parse the diff.", err)
	}
	out := inspectOutput{
		Source:     "staged",
		Scope:      ch.in.Scope,
		Topics:     ch.in.Topics,
		Summary:    ch.in.Summary,
		Bullets:    ch.in.BulletPoints,
		IsFrontend: ch.in.IsFrontend,
		FileKinds:  ch.in.FileKinds,
		Files:      files,
		Ignored:    ch.ignored,
	}
	if !ch.staged {
		out.Source = "unstaged"
	}
	res, err := a.orchestrator(ws).Build(cmd.Context(), ch.in)
	switch {
	case err == nil:
		m := newMessageOutput(res.Candidates[0].Message, ch.in)
		out.Suggestion = &m
		out.Breakdown = stats.ScoreMessage(m.Message, ch.in).Details
		out.Policy = &inspectPolicyOut{Attempts: res.Attempts}
	case res != nil:
		out.Policy = &inspectPolicyOut{Attempts: res.Attempts, Reasons: res.Reasons}
	default:
		return erruser.New("Could not generate a commit message.", err)
	}
	if format != "human" {
		return writeStructured(a.out, format, out)
	}

	c := ws.console
	c.Title("Changes (" + out.Source + ")")
	c.Row("Scope", out.Scope, 10)
	c.Row("Topics", strings.Join(out.Topics, ", "), 10)
	c.Row("Summary", out.Summary, 10)
	c.Row("Kinds", strings.Join(out.FileKinds, ", "), 10)
	c.Row("Frontend", strconv.FormatBool(out.IsFrontend), 10)
	for _, f := range files {
		stat := fmt.Sprintf("+%d -%d", f.Added, f.Deleted)
		if f.Binary {
			stat = "binary"
		}
		c.Row("File", f.Path+" "+stat, 10)
	}
	for _, p := range out.Ignored {
		c.Info("ignored %s", p)
	}
	if out.Suggestion == nil {
		c.Warn("No valid suggestion after %d attempts.", out.Policy.Attempts)
		c.Reasons(out.Policy.Reasons)
		return nil
	}
	c.Title("Suggestion")
	c.Message(res.Candidates[0].Message)
	c.Title(fmt.Sprintf("Score %d/%d", out.Suggestion.Score, stats.MaxScore))
	for _, d := range out.Breakdown {
		c.Row(d.Name, fmt.Sprintf("%d/%d", d.Points, d.Max), 16)
	}
	return nil
}

func (a *app) newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [message]",
		Short: "Validate a commit message against the policy (exit 1 when invalid)",
		Long: `Validate a commit message against the configured policy. The message comes from
the argument, from --file (for use as a commit-msg hook), or from stdin when
neither is given. Lines starting with '#' are ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runLint,
	}
	cmd.Flags().String("file", "", "Read the message from this file")
	addOutputFlags(cmd)
	return cmd
}

type lintOutput struct {
	Valid   bool           `json:"valid" yaml:"valid"`
	Subject string         `json:"subject" yaml:"subject"`
	Bullets []string       `json:"bullets,omitempty" yaml:"bullets,omitempty"`
	Reasons []string       `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Score   int            `json:"score" yaml:"score"`
	Details []stats.Detail `json:"score_breakdown" yaml:"score_breakdown"`
}

func (a *app) runLint(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	ws, err := a.load(cmd, false)
	if err != nil {
		return err
	}
	text, err := a.lintInput(cmd, args)
	if err != nil {
		return err
	}
	subject, bullets := commitmsg.Parse(stripComments(text), ws.cfg.BulletPrefix)
	res := policy.Validate(subject, bullets, ws.cfg.Policy())
	score := stats.ScoreMessage(strings.Join(append([]string{subject}, bullets...), "\n"), insights.Insights{})
	out := lintOutput{
		Valid:   res.Valid,
		Subject: subject,
		Bullets: bullets,
		Reasons: res.Reasons,
		Score:   score.Total,
		Details: score.Details,
	}
	if format != "human" {
		if err := writeStructured(a.out, format, out); err != nil {
			return err
		}
	} else if res.Valid {
		ws.console.Success("Valid (score %d/%d)", out.Score, stats.MaxScore)
	} else {
		ws.console.Warn("Invalid commit message:")
		ws.console.Reasons(res.Reasons)
	}
	if !res.Valid {
		return errExit(1)
	}
	return nil
}

func (a *app) lintInput(cmd *cobra.Command, args []string) (string, error) {
	file, _ := cmd.Flags().GetString("file")
	switch {
	case len(args) == 1 && file != "":
		return "", erruser.New("Pass the message as an argument or with --file, not both.", nil)
	case len(args) == 1:
		return args[0], nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", erruser.New("Could not read "+file+".", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(a.in)
	if err != nil {
		return "", erruser.New("Could not read the message from stdin.", err)
	}
	return string(b), nil
}

// stripComments drops '#' comment lines and everything below git's scissors line.
func stripComments(text string) string {
	var keep []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == scissorsLine {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, "\n")
}

func (a *app) newBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch <name>",
		Short: "Create and switch to a branch from the configured base branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.load(cmd, true)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if err := git.ValidateBranchName(name); err != nil {
				return err
			}
			base, _ := cmd.Flags().GetString("base")
			if base == "" {
				base = ws.cfg.BaseBranch
			}
			if err := git.CreateBranch(cmd.Context(), ws.root(), name, base); err != nil {
				return erruser.New("Could not create branch "+name+" from "+base+".", err)
			}
			ws.console.Success("Switched to new branch %s (from %s)", name, base)
			return nil
		},
	}
	cmd.Flags().String("base", "", "Start point (default: base_branch from config)")
	return cmd
}

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API keys masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			ws, err := a.load(cmd, false)
			if err != nil {
				return err
			}
			entries := config.Entries(*ws.cfg)
			if format != "human" {
				return writeStructured(a.out, format, entries)
			}
			width := 0
			for _, e := range entries {
				width = max(width, len(e.Key)+1)
			}
			for _, e := range entries {
				ws.console.Row(e.Key, e.Value, width)
			}
			return nil
		},
	}
	addOutputFlags(show)
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key to the global config file",
		Long:  "Write a key to the global config file. Valid keys: " + strings.Join(config.Keys(), ", ") + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GlobalPath(a.env)
			if err != nil {
				return err
			}
			if err := config.Save(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Set %s in %s\n", strings.ToLower(strings.TrimSpace(args[0])), path)
			return nil
		},
	}
	cmd.AddCommand(show, set)
	return cmd
}

func (a *app) newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify environment (Git repository, configuration, credentials, endpoint)",
		Args:  cobra.NoArgs,
		RunE:  a.runDoctor,
	}
	addGenerationFlags(cmd.Flags())
	return cmd
}

func (a *app) runDoctor(cmd *cobra.Command, _ []string) error {
	ws, err := a.load(cmd, false)
	if err != nil {
		return err
	}
	c := ws.console
	if ws.repo == nil {
		c.Warn("Not inside a Git repository.")
	} else {
		branch, _ := ws.repo.CurrentBranch()
		c.Success("Git repository %s (branch %s)", ws.repo.Root, branch)
	}
	if path, err := config.GlobalPath(ws.env); err == nil {
		c.Row("Config", path, 10)
	}
	provider := providerLabel(ws.cfg)
	c.Row("Provider", provider, 10)
	if !generate.IsRemote(provider) {
		c.Success("No network access needed")
		return nil
	}
	c.Row("Model", generate.Model(provider, ws.cfg.Model), 10)
	endpoint := generate.Endpoint(provider, ws.cfg.Endpoint)
	c.Row("Endpoint", endpoint, 10)

	key := generate.ResolveAPIKey(provider, "", ws.cfg.APIKey, config.LookupFunc(ws.env))
	if key == "" {
		fmt.Fprintf(a.errOut, "No API key for %s. Set one of %s, or run: commitmate config set api_key env:NAME\n",
			provider, strings.Join(generate.ProviderEnv(provider), ", "))
		fmt.Fprintln(a.errOut, "Suggestions will use local heuristics until a key is configured.")
		return errExit(1)
	}
	c.Row("API key", config.MaskKey(key), 10)

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()
	result, err := llm.NewClient(endpoint, key, a.httpClient).Check(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			fmt.Fprintf(a.errOut, "Endpoint unreachable at %s.\n", endpoint)
			fmt.Fprintf(a.errOut, "Details: %v\n", err)
			return errExit(2)
		}
		fmt.Fprintln(a.errOut, err.Error())
		return errExit(1)
	}
	if !result.Authorized {
		fmt.Fprintf(a.errOut, "Endpoint rejected the API key (HTTP %d).\n", result.StatusCode)
		return errExit(1)
	}
	c.Success("Endpoint OK")
	return nil
}

func (a *app) newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show acceptance statistics from this repository's commit history log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			ws, err := a.load(cmd, true)
			if err != nil {
				return err
			}
			res, err := stats.History(ws.stateDir())
			if err != nil {
				return erruser.New("Could not read history.", err)
			}
			if format != "human" {
				return writeStructured(a.out, format, res)
			}
			c := ws.console
			if res.Sessions == 0 {
				c.Info("No sessions recorded yet.")
				return nil
			}
			c.Title("Sessions")
			c.Row("Total", strconv.Itoa(res.Sessions), 22)
			c.Row("Committed", strconv.Itoa(res.Committed), 22)
			c.Row("Skipped", strconv.Itoa(res.Skipped), 22)
			c.Row("Aborted", strconv.Itoa(res.Aborted), 22)
			c.Row("Acceptance rate", percent(res.AcceptanceRate), 22)
			c.Row("Manual rate", percent(res.ManualRate), 22)
			c.Row("Average score", strconv.FormatFloat(res.AverageScore, 'f', 1, 64), 22)
			c.Row("Average attempts", strconv.FormatFloat(res.AverageAttempts, 'f', 2, 64), 22)
			c.Row("Average regenerations", strconv.FormatFloat(res.AverageRegenerations, 'f', 2, 64), 22)
			types := res.SortedTypes()
			if len(types) > 0 {
				c.Title("Commit types")
				for _, t := range types {
					c.Row(t.Type, strconv.Itoa(t.Count), 22)
				}
			}
			return nil
		},
	}
	addOutputFlags(cmd)
	return cmd
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}
