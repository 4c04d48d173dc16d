package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"commitmate/cli/internal/config"
	"commitmate/cli/internal/erruser"
	"commitmate/cli/internal/generate"
	"commitmate/cli/internal/git"
	"commitmate/cli/internal/logging"
	"commitmate/cli/internal/prompt"
	"commitmate/cli/internal/trace"
	"commitmate/cli/internal/ui"
	"commitmate/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// app holds the process surroundings a command runs in. Tests build their
// own with buffers, a scratch repository, and a fixed environment.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	// dir is the working directory; empty means os.Getwd.
	dir string
	env []string
	// interactive reports whether prompts can be shown.
	interactive func() bool
	httpClient  *http.Client
}

func newApp() *app {
	return &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		env:    os.Environ(),
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing so that
// main.go can meet per-file coverage requirements.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	return newApp().run(args)
}

func (a *app) run(args []string) int {
	rootCmd := &cobra.Command{
		Use:     "commitmate",
		Short:   "Suggest, review, and commit Conventional Commit messages from your staged diff",
		Version: version.String(),
		Args:    cobra.NoArgs,
		RunE:    a.runCommit,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().Bool("trace", false, "Print internal steps to stderr (prompts, LLM I/O, candidate validation)")
	addCommitFlags(rootCmd.Flags())

	rootCmd.AddCommand(a.newCommitCmd())
	rootCmd.AddCommand(a.newSuggestCmd())
	rootCmd.AddCommand(a.newInspectCmd())
	rootCmd.AddCommand(a.newLintCmd())
	rootCmd.AddCommand(a.newBranchCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(a.newDoctorCmd())
	rootCmd.AddCommand(a.newStatsCmd())
	rootCmd.AddCommand(a.newVersionCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		printError(a.errOut, err)
		return 1
	}
	return 0
}

// printError writes err for the operator. A user-facing error prints its
// sentence and, when it has one, its cause on a "Details:" line; any other
// error prints once as is.
func printError(w io.Writer, err error) {
	msg, cause := erruser.Split(err)
	fmt.Fprintln(w, msg)
	if cause != nil {
		fmt.Fprintf(w, "Details: %v\n", cause)
	}
}

// addGenerationFlags registers the flags that select and shape the generator.
func addGenerationFlags(fs *pflag.FlagSet) {
	fs.Bool("offline", false, "Never call a remote model; use local heuristics")
	fs.String("provider", "", "Generator provider: github, openai, local, or mock (overrides config and env)")
	fs.String("model", "", "Remote model name (overrides config and env)")
	fs.String("scope", "", "Fallback Conventional Commit scope (overrides config and env)")
	fs.String("style", "", "Message style: conventional or plain (overrides config and env)")
	fs.String("language", "", "Language the remote model should write in (overrides config and env)")
}

func addCommitFlags(fs *pflag.FlagSet) {
	addGenerationFlags(fs)
	fs.BoolP("yes", "y", false, "Accept the first valid suggestion without prompting")
	fs.Bool("dry-run", false, "Print the accepted message instead of committing")
	fs.BoolP("all", "a", false, "Stage all changes (git add -A) before analyzing")
}

// overridesFromFlags returns Overrides for the generation flags that were set.
func overridesFromFlags(fs *pflag.FlagSet) *config.Overrides {
	var o config.Overrides
	set := false
	str := func(name string) *string {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		set = true
		return &v
	}
	o.Provider = str("provider")
	o.Model = str("model")
	o.Scope = str("scope")
	o.Style = str("style")
	o.Language = str("language")
	if fs.Lookup("offline") != nil && fs.Changed("offline") {
		v, _ := fs.GetBool("offline")
		o.Offline = &v
		set = true
	}
	if !set {
		return nil
	}
	return &o
}

// workspace is the loaded state shared by commands: repository, merged
// environment, configuration, and output helpers.
type workspace struct {
	repo    *git.Repo
	env     []string
	cfg     *config.Config
	log     *zap.Logger
	tracer  *trace.Tracer
	console *ui.Console
}

func (w *workspace) stateDir() string {
	if w.repo == nil {
		return ""
	}
	return w.repo.StateDir()
}

func (w *workspace) root() string {
	if w.repo == nil {
		return ""
	}
	return w.repo.Root
}

func (a *app) getwd() (string, error) {
	if a.dir != "" {
		return a.dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", erruser.New("Could not determine current directory.", err)
	}
	return wd, nil
}

// load opens the repository (required when needRepo), merges .env into the
// environment, and loads configuration. Configuration problems are logged as
// warnings and never fail the command.
func (a *app) load(cmd *cobra.Command, needRepo bool) (*workspace, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	traceOn, _ := cmd.Flags().GetBool("trace")
	ws := &workspace{
		log:     logging.New(a.errOut, verbose),
		console: ui.NewConsole(a.out),
		env:     a.env,
	}
	if traceOn {
		ws.tracer = trace.New(a.errOut)
	}

	cwd, err := a.getwd()
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(cwd)
	if err != nil {
		if needRepo {
			return nil, err
		}
		ws.log.Debug("no repository", zap.Error(err))
	}
	ws.repo = repo

	env, err := config.Environ(ws.root(), a.env)
	if err != nil {
		ws.log.Warn("Ignoring .env file", zap.Error(err))
	}
	ws.env = env

	cfg, warn := config.Load(cmd.Context(), config.LoadOptions{
		RepoRoot:  ws.root(),
		Env:       env,
		Overrides: overridesFromFlags(cmd.Flags()),
	})
	if warn != nil {
		ws.log.Warn("Configuration problems; affected keys use defaults", zap.Error(warn))
	}
	ws.cfg = cfg
	ws.log.Debug("configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.Bool("offline", cfg.Offline),
		zap.String("style", cfg.Style),
	)
	return ws, nil
}

// generator builds the generator selected by the configuration.
func (a *app) generator(ws *workspace) generate.Generator {
	system, err := prompt.SystemPrompt(ws.stateDir())
	if err != nil {
		ws.log.Warn("Could not read system prompt override; using default", zap.Error(err))
		system = prompt.DefaultSystemPrompt
	}
	return generate.Select(generate.Options{
		Provider:         ws.cfg.Provider,
		Offline:          ws.cfg.Offline,
		Model:            ws.cfg.Model,
		Endpoint:         ws.cfg.Endpoint,
		Temperature:      ws.cfg.Temperature,
		MaxTokens:        ws.cfg.MaxTokens,
		ConfigAPIKey:     ws.cfg.APIKey,
		LookupEnv:        config.LookupFunc(ws.env),
		SystemPrompt:     system,
		MaxSubjectLength: ws.cfg.MaxSubjectLength,
		MaxBullets:       ws.cfg.MaxBullets,
		HTTPClient:       a.httpClient,
		Logger:           ws.log,
		Tracer:           ws.tracer,
	})
}

// providerLabel names the generator for history and output.
func providerLabel(cfg *config.Config) string {
	if cfg.Offline {
		return "offline"
	}
	p := generate.NormalizeProvider(cfg.Provider)
	switch p {
	case generate.ProviderGitHub, generate.ProviderOpenAI, generate.ProviderLocal:
		return p
	}
	return generate.ProviderMock
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.out, "commitmate "+version.String())
			return err
		},
	}
}
