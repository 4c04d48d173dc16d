package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"commitmate/cli/internal/erruser"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init", "-b", "main")
	run(t, dir, "git", "config", "user.email", "test@commitmate.local")
	run(t, dir, "git", "config", "user.name", "Test")
	writeFile(t, dir, "f1.txt", "a\n")
	run(t, dir, "git", "add", "f1.txt")
	run(t, dir, "git", "commit", "-m", "c1")
	writeFile(t, dir, "f2.txt", "b\n")
	run(t, dir, "git", "add", "f2.txt")
	run(t, dir, "git", "commit", "-m", "c2")
	return dir
}

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func runOut(t *testing.T, dir, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s %v: %v", name, args, err)
	}
	return strings.TrimSpace(string(out))
}

func realPath(t *testing.T, p string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(p)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestOpen_fromRoot(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if realPath(t, r.Root) != realPath(t, dir) {
		t.Errorf("Root = %q, want %q", r.Root, dir)
	}
	if realPath(t, r.GitDir) != realPath(t, filepath.Join(dir, ".git")) {
		t.Errorf("GitDir = %q, want %q", r.GitDir, filepath.Join(dir, ".git"))
	}
	if filepath.Base(r.StateDir()) != "commitmate" || filepath.Dir(r.StateDir()) != r.GitDir {
		t.Errorf("StateDir = %q", r.StateDir())
	}
}

func TestOpen_fromSubdir(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	sub := filepath.Join(dir, "sub", "dir")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if realPath(t, r.Root) != realPath(t, dir) {
		t.Errorf("Root(subdir) = %q, want %q", r.Root, dir)
	}
}

func TestOpen_notARepo(t *testing.T) {
	t.Parallel()
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open(non-repo): expected error")
	}
	if msg, _ := erruser.Split(err); msg == "" {
		t.Errorf("Open error should be user-facing: %v", err)
	}
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if got != "main" {
		t.Errorf("CurrentBranch = %q, want main", got)
	}

	run(t, dir, "git", "checkout", "--detach", "HEAD")
	got, err = r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch detached: %v", err)
	}
	if got != "HEAD" {
		t.Errorf("CurrentBranch detached = %q, want HEAD", got)
	}
}

func TestCurrentBranch_noCommits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	run(t, dir, "git", "init", "-b", "trunk")
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if got != "trunk" {
		t.Errorf("CurrentBranch = %q, want trunk", got)
	}
	hash, err := r.HeadHash()
	if err != nil || hash != "" {
		t.Errorf("HeadHash = %q, %v; want empty, nil", hash, err)
	}
}

func TestHeadHash(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.HeadHash()
	if err != nil {
		t.Fatalf("HeadHash: %v", err)
	}
	if want := runOut(t, dir, "git", "rev-parse", "HEAD"); got != want {
		t.Errorf("HeadHash = %q, want %q", got, want)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Clean() {
		t.Errorf("Status after initRepo = %+v, want clean", st)
	}

	writeFile(t, dir, "f1.txt", "changed\n")
	writeFile(t, dir, "new.txt", "n\n")
	run(t, dir, "git", "add", "new.txt")
	writeFile(t, dir, "loose.txt", "l\n")

	st, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := Status{
		Staged:    []string{"new.txt"},
		Unstaged:  []string{"f1.txt"},
		Untracked: []string{"loose.txt"},
	}
	if !reflect.DeepEqual(st, want) {
		t.Errorf("Status = %+v, want %+v", st, want)
	}
}

func TestValidateBranchName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"feat/login", false},
		{"fix-123", false},
		{"", true},
		{"-bad", true},
		{"has space", true},
		{"double..dot", true},
		{"ends.lock", true},
	}
	for _, tt := range tests {
		err := ValidateBranchName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBranchName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
