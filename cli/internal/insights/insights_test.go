package insights

import (
	"reflect"
	"strings"
	"testing"
)

func diffFor(path string, lines ...string) string {
	var b strings.Builder
	b.WriteString("diff --git a/" + path + " b/" + path + "\n")
	b.WriteString("--- a/" + path + "\n")
	b.WriteString("+++ b/" + path + "\n")
	b.WriteString("@@ -1,1 +1,2 @@\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	return b.String()
}

func TestAnalyze_frontendComponent(t *testing.T) {
	t.Parallel()
	in := Analyze(diffFor("src/components/Button.tsx", "+export function Button() {", "-const old = 1"), 0)
	if in.Scope != "ui" {
		t.Errorf("Scope = %q, want ui", in.Scope)
	}
	if !in.IsFrontend {
		t.Error("IsFrontend = false, want true")
	}
	if in.FilesTouched != 1 {
		t.Errorf("FilesTouched = %d, want 1 (paired markers collapse)", in.FilesTouched)
	}
	if !reflect.DeepEqual(in.FileKinds, []string{"tsx"}) {
		t.Errorf("FileKinds = %v, want [tsx]", in.FileKinds)
	}
}

func TestAnalyze_apiRoute(t *testing.T) {
	t.Parallel()
	in := Analyze(diffFor("server/api/routes/users.ts", "+router.get('/users', list)"), 0)
	if in.Scope != "api" {
		t.Errorf("Scope = %q, want api", in.Scope)
	}
	if in.IsFrontend {
		t.Error("plain .ts must not count as frontend")
	}
}

func TestAnalyze_noMarkers(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"", "just some text\n", "+added line only\n-removed\n"} {
		in := Analyze(text, 0)
		if in.FilesTouched != 0 {
			t.Errorf("Analyze(%q).FilesTouched = %d, want 0", text, in.FilesTouched)
		}
		if in.Scope != "" {
			t.Errorf("Analyze(%q).Scope = %q, want empty", text, in.Scope)
		}
	}
}

func TestAnalyze_devNullAndKinds(t *testing.T) {
	t.Parallel()
	text := "--- /dev/null\n+++ b/cmd/tool/main.go\n+package main\n" +
		"--- a/Makefile\n+++ b/Makefile\n+all: build\n" +
		"--- a/webpack.config.js\n+++ b/webpack.config.js\n+module.exports = {}\n"
	in := Analyze(text, 0)
	wantFiles := []string{"cmd/tool/main.go", "Makefile", "webpack.config.js"}
	if !reflect.DeepEqual(in.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", in.Files, wantFiles)
	}
	if !reflect.DeepEqual(in.FileKinds, []string{"go", "js"}) {
		t.Errorf("FileKinds = %v, want [go js]", in.FileKinds)
	}
	// webpack.config.js has a front-end extension, so it reads as "front".
	if in.Scope != "front" {
		t.Errorf("Scope = %q, want front", in.Scope)
	}
}

func TestInferScope(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"none", nil, ""},
		{"go file", []string{"internal/store/store.go"}, ""},
		{"ui", []string{"web/ui/Modal.vue"}, "ui"},
		{"front", []string{"web/app.js"}, "front"},
		{"api", []string{"backend/handlers.go"}, "api"},
		{"build", []string{"config/settings.yaml"}, "build"},
		{"first path wins", []string{"deploy/vite.settings.yaml", "src/components/A.tsx"}, "build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferScope(tt.files); got != tt.want {
				t.Errorf("InferScope(%v) = %q, want %q", tt.files, got, tt.want)
			}
		})
	}
}

func TestRankTopics_frequencyAndTieBreak(t *testing.T) {
	t.Parallel()
	lines := []string{
		"retry := newRetry(backoff)",
		"if retry.Enabled() { backoff.Reset() }",
		"cache hit",
	}
	got := RankTopics(lines, 3)
	// retry x2 (the newretry token is distinct), backoff x2, then first-seen newretry.
	want := []string{"retry", "backoff", "newretry"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankTopics = %v, want %v", got, want)
	}
}

func TestRankTopics_lengthBounds(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 30)
	got := RankTopics([]string{"abc abcd " + long + " " + long[:29]}, 10)
	want := []string{"abcd", long[:29]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankTopics = %v, want %v", got, want)
	}
}

func TestAnalyze_bulletsCapped(t *testing.T) {
	t.Parallel()
	long := "+" + strings.Repeat("a", 120)
	in := Analyze(diffFor("main.go", long, "+one", "+", "+two", "-three", "+four", "+five"), 0)
	if len(in.BulletPoints) != 5 {
		t.Fatalf("BulletPoints = %v, want 5 entries", in.BulletPoints)
	}
	if len(in.BulletPoints[0]) != 80 {
		t.Errorf("first bullet len = %d, want 80", len(in.BulletPoints[0]))
	}
	if in.BulletPoints[2] != "two" {
		t.Errorf("empty content lines should be skipped, got %v", in.BulletPoints)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scope  string
		topics []string
		want   string
	}{
		{"api", []string{"users", "routes"}, "api updates: users, routes"},
		{"", []string{"retry"}, "Updates around retry"},
		{"", nil, "Updates around changes"},
		{"ui", nil, "ui updates: changes"},
	}
	for _, tt := range tests {
		if got := Summarize(tt.scope, tt.topics); got != tt.want {
			t.Errorf("Summarize(%q, %v) = %q, want %q", tt.scope, tt.topics, got, tt.want)
		}
	}
}

func TestLeadTopic(t *testing.T) {
	t.Parallel()
	topics := []string{"alpha", "beta", "gamma"}
	if got := LeadTopic(topics, 2); !reflect.DeepEqual(got, []string{"gamma", "alpha", "beta"}) {
		t.Errorf("LeadTopic(2) = %v", got)
	}
	if got := LeadTopic(topics, 7); !reflect.DeepEqual(got, topics) {
		t.Errorf("LeadTopic(7) = %v, want unchanged", got)
	}
	if !reflect.DeepEqual(topics, []string{"alpha", "beta", "gamma"}) {
		t.Error("LeadTopic mutated its input")
	}
}

func TestAnalyze_topicLimit(t *testing.T) {
	t.Parallel()
	text := diffFor("main.go", "+alpha bravo charlie delta echoes")
	if got := len(Analyze(text, 0).Topics); got != DefaultTopicLimit {
		t.Errorf("default topics = %d, want %d", got, DefaultTopicLimit)
	}
	if got := len(Analyze(text, GenerationTopicLimit).Topics); got != GenerationTopicLimit {
		t.Errorf("generation topics = %d, want %d", got, GenerationTopicLimit)
	}
}

func TestAnalyze_headerLookingContent(t *testing.T) {
	t.Parallel()
	text := "diff --git a/db/schema.sql b/db/schema.sql\n" +
		"--- a/db/schema.sql\n" +
		"+++ b/db/schema.sql\n" +
		"@@ -1,3 +1,3 @@\n" +
		" CREATE TABLE settings (\n" +
		"--- settings table notes\n" +
		"+++counter stays inline\n" +
		" );\n" +
		"diff --git a/scripts/seed.lua b/scripts/seed.lua\n" +
		"--- a/scripts/seed.lua\n" +
		"+++ b/scripts/seed.lua\n" +
		"@@ -4 +4 @@\n" +
		"--- seed rows\n" +
		"+-- seed fixture rows\n" +
		"\\ No newline at end of file\n"
	in := Analyze(text, 0)
	wantFiles := []string{"db/schema.sql", "scripts/seed.lua"}
	if !reflect.DeepEqual(in.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", in.Files, wantFiles)
	}
	if in.FilesTouched != 2 {
		t.Errorf("FilesTouched = %d, want 2", in.FilesTouched)
	}
	if in.Scope != "" {
		t.Errorf("Scope = %q, want empty", in.Scope)
	}
	for _, want := range []string{"-- settings table notes", "++counter stays inline", "-- seed rows", "-- seed fixture rows"} {
		found := false
		for _, b := range in.BulletPoints {
			if b == want {
				found = true
			}
		}
		if !found {
			t.Errorf("BulletPoints = %v, missing %q", in.BulletPoints, want)
		}
	}
}

func TestScan_headersResumeAfterHunk(t *testing.T) {
	t.Parallel()
	// Plain "diff -u" output has no "diff --git" separator between files.
	text := "--- a/one.txt\n+++ b/one.txt\n@@ -1 +1 @@\n-old\n+new\n" +
		"--- a/two.txt\n+++ b/two.txt\n@@ -1,0 +1 @@\n+added\n"
	files, content := scan(text)
	if !reflect.DeepEqual(files, []string{"one.txt", "two.txt"}) {
		t.Errorf("files = %v", files)
	}
	if !reflect.DeepEqual(content, []string{"old", "new", "added"}) {
		t.Errorf("content = %v", content)
	}
}
