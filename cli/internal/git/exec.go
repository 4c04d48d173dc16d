package git

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"

	"commitmate/cli/internal/erruser"
)

// StageAll stages every change in the working tree, including deletions and
// untracked files ("git add -A").
func StageAll(ctx context.Context, repoRoot string) error {
	if _, err := runGit(ctx, repoRoot, nil, "add", "-A"); err != nil {
		return erruser.New("Could not stage changes.", err)
	}
	return nil
}

// HasStaged reports whether the index differs from HEAD.
func HasStaged(ctx context.Context, repoRoot string) (bool, error) {
	_, err := runGit(ctx, repoRoot, nil, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, erruser.New("Could not check staged changes.", err)
}

// StagedFiles returns the paths with staged changes, in git's order.
func StagedFiles(ctx context.Context, repoRoot string) ([]string, error) {
	out, err := runGit(ctx, repoRoot, nil, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, erruser.New("Could not list staged files.", err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Commit records the staged changes with message exactly as given and
// returns the new commit hash.
func Commit(ctx context.Context, repoRoot, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", erruser.New("Commit message is empty.", nil)
	}
	if _, err := runGit(ctx, repoRoot, strings.NewReader(message), "commit", "--cleanup=verbatim", "-F", "-"); err != nil {
		return "", erruser.New("git commit failed.", err)
	}
	out, err := runGit(ctx, repoRoot, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", erruser.New("Could not read the new commit.", err)
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates name from base (or from HEAD when base is empty) and
// switches to it.
func CreateBranch(ctx context.Context, repoRoot, name, base string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	args := []string{"switch", "-c", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := runGit(ctx, repoRoot, nil, args...); err != nil {
		return erruser.New("Could not create branch "+name+".", err)
	}
	return nil
}

func runGit(ctx context.Context, repoRoot string, stdin *strings.Reader, args ...string) (string, error) {
	if repoRoot == "" {
		return "", errors.New("git: repo root required")
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	cmd.Env = minimalEnv()
	if stdin != nil {
		cmd.Stdin = stdin
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "git %s: %s", args[0], strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat", // prevent pager; subprocess output is captured
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}

// MinimalEnv returns the environment used for git subprocesses. Exported for tests
// so callers can assert HOME is included when set (e.g. to avoid "Author identity unknown").
func MinimalEnv() []string {
	return minimalEnv()
}
