package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"commitmate/cli/internal/erruser"
	"commitmate/cli/internal/history"
	"commitmate/cli/internal/session"
)

func TestRunCLI(t *testing.T) {
	t.Parallel()
	if got := runCLI([]string{"--help"}); got != 0 {
		t.Errorf("runCLI(--help) = %d, want 0", got)
	}
	if got := runCLI([]string{"no-such-command"}); got != 1 {
		t.Errorf("runCLI(no-such-command) = %d, want 1", got)
	}
}

func TestPrintError(t *testing.T) {
	t.Parallel()
	hook := errors.New("pre-commit hook failed")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain wrapped", errors.Wrap(errors.New("boom"), "load config"), "load config: boom\n"},
		{"user without cause", erruser.New("No changes to commit.", nil), "No changes to commit.\n"},
		{"user with cause", erruser.New("git commit failed.", hook), "git commit failed.\nDetails: pre-commit hook failed\n"},
		{"wrapped user", errors.Wrap(erruser.New("git commit failed.", hook), "commit"), "git commit failed.\nDetails: pre-commit hook failed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			if buf.String() != tt.want {
				t.Errorf("printError() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestRun_plainErrorPrintedOnce(t *testing.T) {
	t.Parallel()
	a, _, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"no-such-command"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if out := errOut.String(); strings.Contains(out, "Details:") || strings.Count(out, "no-such-command") != 1 {
		t.Errorf("stderr = %q, want the error once without a Details line", out)
	}
}

// testApp returns an app rooted at dir with captured output, no terminal,
// and an isolated config directory.
func testApp(t *testing.T, dir string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	home := t.TempDir()
	return &app{
		in:          strings.NewReader(""),
		out:         &out,
		errOut:      &errOut,
		dir:         dir,
		env:         []string{"PATH=" + os.Getenv("PATH"), "HOME=" + home, "XDG_CONFIG_HOME=" + filepath.Join(home, ".config"), "NO_COLOR=1"},
		interactive: func() bool { return false },
	}, &out, &errOut
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitRun(t, dir, "init", "-b", "main")
	gitRun(t, dir, "config", "user.email", "test@commitmate.local")
	gitRun(t, dir, "config", "user.name", "Test")
	writeFile(t, dir, "README", "greeter\n")
	gitRun(t, dir, "add", "README")
	gitRun(t, dir, "commit", "-m", "chore: init")
	return dir
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// stageGreeter stages a small source change plus a lock file that the
// default ignore patterns drop.
func stageGreeter(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, dir, "greet/greet.go", "package greet\n\nfunc Greet(name string) string {\n\treturn greeting + name\n}\n")
	writeFile(t, dir, "package-lock.json", "{}\n")
	gitRun(t, dir, "add", "-A")
}

func TestVersion(t *testing.T) {
	t.Parallel()
	a, out, _ := testApp(t, t.TempDir())
	if got := a.run([]string{"version"}); got != 0 {
		t.Fatalf("version = %d, want 0", got)
	}
	if !strings.HasPrefix(out.String(), "commitmate ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestCommit_notARepository(t *testing.T) {
	t.Parallel()
	a, _, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"--offline"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "not inside a Git repository") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestCommit_noChanges(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	a, _, errOut := testApp(t, dir)
	if got := a.run([]string{"commit", "--offline", "--yes"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "No changes to commit.") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestCommit_dryRunRecordsSkipped(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)
	before := gitRun(t, dir, "rev-parse", "HEAD")

	a, out, errOut := testApp(t, dir)
	if got := a.run([]string{"commit", "--offline", "--yes", "--dry-run"}); got != 0 {
		t.Fatalf("exit = %d, want 0\nstderr: %s", got, errOut.String())
	}
	if !strings.Contains(out.String(), "Dry run") {
		t.Errorf("stdout = %q, want dry run notice", out.String())
	}
	if after := gitRun(t, dir, "rev-parse", "HEAD"); after != before {
		t.Errorf("HEAD moved on dry run: %s -> %s", before, after)
	}
	records, err := history.ReadRecords(filepath.Join(dir, ".git", "commitmate"))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != history.OutcomeSkipped {
		t.Fatalf("records = %+v, want one skipped", records)
	}
	if records[0].Provider != "offline" || records[0].Subject == "" {
		t.Errorf("record = %+v", records[0])
	}
}

// The local heuristic cannot phrase an unscoped diff in the imperative mood,
// so --yes has nothing valid to commit and reports the exhausted retries.
func TestCommit_yesLocalUnscopedDiffFails(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)

	a, _, errOut := testApp(t, dir)
	if got := a.run([]string{"commit", "--provider", "local", "--yes"}); got != 1 {
		t.Fatalf("exit = %d, want 1\nstderr: %s", got, errOut.String())
	}
	stderr := errOut.String()
	for _, want := range []string{
		"No valid commit message could be generated. Run interactively to write one, or try --offline.",
		"Details: no valid commit message after retries",
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if status := gitRun(t, dir, "status", "--porcelain"); !strings.Contains(status, "greet/greet.go") {
		t.Errorf("staged change should remain uncommitted, status:\n%s", status)
	}
}

func TestCommit_yesCommits(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)

	a, out, errOut := testApp(t, dir)
	if got := a.run([]string{"--offline", "--yes"}); got != 0 {
		t.Fatalf("exit = %d, want 0\nstderr: %s", got, errOut.String())
	}
	if !strings.Contains(out.String(), "Committed") {
		t.Errorf("stdout = %q", out.String())
	}
	subject := gitRun(t, dir, "log", "-1", "--format=%s")
	if !strings.HasPrefix(subject, "chore") {
		t.Errorf("subject = %q, want a chore subject", subject)
	}
	if status := gitRun(t, dir, "status", "--porcelain"); status != "" {
		t.Errorf("worktree not clean after commit:\n%s", status)
	}
	records, err := history.ReadRecords(filepath.Join(dir, ".git", "commitmate"))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != history.OutcomeCommitted || records[0].Commit == "" {
		t.Fatalf("records = %+v, want one committed with a hash", records)
	}
	if records[0].Branch != "main" {
		t.Errorf("Branch = %q, want main", records[0].Branch)
	}
}

func TestCommit_unstagedNeedsConsent(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	writeFile(t, dir, "README", "greeter with a longer description\n")

	a, _, errOut := testApp(t, dir)
	a.interactive = func() bool { return false }
	// Without --yes there is no prompt to ask for staging.
	if got := a.run([]string{"--offline"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "Nothing is staged") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestCommit_refusesConcurrentSession(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)
	release, err := session.Acquire(filepath.Join(dir, ".git", "commitmate"), "other")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	a, _, errOut := testApp(t, dir)
	if got := a.run([]string{"--offline", "--yes"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "Another commitmate session is active") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestSuggest_json(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)

	a, out, errOut := testApp(t, dir)
	if got := a.run([]string{"suggest", "--offline", "--json"}); got != 0 {
		t.Fatalf("exit = %d\nstderr: %s", got, errOut.String())
	}
	var got []messageOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(got) == 0 {
		t.Fatal("no suggestions")
	}
	for _, m := range got {
		if m.Subject == "" || !strings.HasPrefix(m.Message, m.Subject) {
			t.Errorf("suggestion = %+v", m)
		}
	}
}

func TestInspect_yamlDropsIgnoredFiles(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)

	a, out, errOut := testApp(t, dir)
	if got := a.run([]string{"inspect", "--offline", "--output", "yaml"}); got != 0 {
		t.Fatalf("exit = %d\nstderr: %s", got, errOut.String())
	}
	var got inspectOutput
	if err := yaml.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if got.Source != "staged" {
		t.Errorf("Source = %q, want staged", got.Source)
	}
	if len(got.Files) != 1 || got.Files[0].Path != "greet/greet.go" {
		t.Errorf("Files = %+v, want only greet/greet.go", got.Files)
	}
	if len(got.Ignored) != 1 || got.Ignored[0] != "package-lock.json" {
		t.Errorf("Ignored = %v, want [package-lock.json]", got.Ignored)
	}
	if got.Suggestion == nil || got.Suggestion.Score <= 0 {
		t.Errorf("Suggestion = %+v, want a scored suggestion", got.Suggestion)
	}
}

func TestInspect_badOutput(t *testing.T) {
	t.Parallel()
	a, _, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"inspect", "--output", "xml"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "Invalid --output") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestLint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"valid", []string{"lint", "feat(api): add paging to user listing"}, 0},
		{"not conventional", []string{"lint", "did some things"}, 1},
		{"vague", []string{"lint", "chore: misc stuff"}, 1},
		{"past tense", []string{"lint", "fix(api): fixed the crash"}, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _, _ := testApp(t, t.TempDir())
			if got := a.run(tt.args); got != tt.want {
				t.Errorf("exit = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLint_fileSkipsComments(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "COMMIT_EDITMSG")
	msg := "feat(api): add paging to user listing\n\n- limit page size to 50\n# Please enter the commit message\n" +
		scissorsLine + "\ndiff --git a/x b/x\n"
	if err := os.WriteFile(path, []byte(msg), 0o644); err != nil {
		t.Fatal(err)
	}
	a, out, errOut := testApp(t, dir)
	if got := a.run([]string{"lint", "--file", path, "--json"}); got != 0 {
		t.Fatalf("exit = %d\nstdout: %s\nstderr: %s", got, out.String(), errOut.String())
	}
	var got lintOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Valid || len(got.Bullets) != 1 || got.Bullets[0] != "limit page size to 50" {
		t.Errorf("lint = %+v", got)
	}
}

func TestLint_stdin(t *testing.T) {
	t.Parallel()
	a, _, _ := testApp(t, t.TempDir())
	a.in = strings.NewReader("docs: describe the release process\n")
	if got := a.run([]string{"lint"}); got != 0 {
		t.Errorf("exit = %d, want 0", got)
	}
}

func TestBranch(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	a, _, errOut := testApp(t, dir)
	if got := a.run([]string{"branch", "feature/paging"}); got != 0 {
		t.Fatalf("exit = %d\nstderr: %s", got, errOut.String())
	}
	if got := gitRun(t, dir, "rev-parse", "--abbrev-ref", "HEAD"); got != "feature/paging" {
		t.Errorf("HEAD = %q, want feature/paging", got)
	}

	a, _, _ = testApp(t, dir)
	if got := a.run([]string{"branch", "bad..name"}); got != 1 {
		t.Errorf("invalid name exit = %d, want 1", got)
	}
	a, _, _ = testApp(t, dir)
	if got := a.run([]string{"branch", "other", "--base", "does-not-exist"}); got != 1 {
		t.Errorf("missing base exit = %d, want 1", got)
	}
}

func TestConfig_setThenShow(t *testing.T) {
	t.Parallel()
	a, out, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"config", "set", "max_bullets", "4"}); got != 0 {
		t.Fatalf("set exit = %d\nstderr: %s", got, errOut.String())
	}
	if got := a.run([]string{"config", "set", "max_bullets", "99"}); got != 1 {
		t.Errorf("out-of-range set exit = %d, want 1", got)
	}
	if got := a.run([]string{"config", "set", "no_such_key", "1"}); got != 1 {
		t.Errorf("unknown key exit = %d, want 1", got)
	}

	out.Reset()
	if got := a.run([]string{"config", "show", "--json"}); got != 0 {
		t.Fatalf("show exit = %d\nstderr: %s", got, errOut.String())
	}
	var entries []struct{ Key, Value string }
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	found := false
	for _, e := range entries {
		if e.Key == "max_bullets" {
			found = true
			if e.Value != "4" {
				t.Errorf("max_bullets = %q, want 4", e.Value)
			}
		}
	}
	if !found {
		t.Error("max_bullets missing from config show")
	}
}

func TestDoctor_offline(t *testing.T) {
	t.Parallel()
	a, out, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"doctor", "--offline"}); got != 0 {
		t.Fatalf("exit = %d\nstderr: %s", got, errOut.String())
	}
	if !strings.Contains(out.String(), "No network access needed") {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestDoctor_missingKey(t *testing.T) {
	t.Parallel()
	a, _, errOut := testApp(t, t.TempDir())
	if got := a.run([]string{"doctor", "--provider", "openai"}); got != 1 {
		t.Fatalf("exit = %d, want 1", got)
	}
	if !strings.Contains(errOut.String(), "OPENAI_API_KEY") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	stageGreeter(t, dir)

	a, _, errOut := testApp(t, dir)
	if got := a.run([]string{"--offline", "--yes", "--dry-run"}); got != 0 {
		t.Fatalf("dry run exit = %d\nstderr: %s", got, errOut.String())
	}
	a, out, _ := testApp(t, dir)
	if got := a.run([]string{"stats", "--json"}); got != 0 {
		t.Fatalf("stats exit = %d", got)
	}
	var res struct {
		Sessions int `json:"sessions"`
		Skipped  int `json:"skipped"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if res.Sessions != 1 || res.Skipped != 1 {
		t.Errorf("stats = %+v, want one skipped session", res)
	}
}

func TestStripComments(t *testing.T) {
	t.Parallel()
	in := "feat: add x\n# comment\n- bullet\n" + scissorsLine + "\n+diff\n"
	if got, want := stripComments(in), "feat: add x\n- bullet"; got != want {
		t.Errorf("stripComments = %q, want %q", got, want)
	}
}
