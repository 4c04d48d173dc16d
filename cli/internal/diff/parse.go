package diff

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

const binaryMarker = "Binary files "

var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// File is one file section of a unified diff.
type File struct {
	Path    string   `json:"path" yaml:"path"`
	Binary  bool     `json:"binary,omitempty" yaml:"binary,omitempty"`
	Added   int      `json:"added" yaml:"added"`
	Deleted int      `json:"deleted" yaml:"deleted"`
	Hunks   []string `json:"-" yaml:"-"`
}

// Parse splits the output of `git diff --no-color` into per-file sections
// with added/deleted line counts. Empty diff produces nil.
func Parse(diffOutput string) ([]File, error) {
	if strings.TrimSpace(diffOutput) == "" {
		return nil, nil
	}
	var files []File
	for _, section := range splitByFileSections(diffOutput) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		f, err := parseFileSection(section)
		if err != nil {
			return nil, errors.Wrap(err, "parse diff")
		}
		files = append(files, f)
	}
	return files, nil
}

// splitByFileSections splits diff output by "diff --git " so each section
// is one file's diff (or one binary notice). Concatenating the sections
// reproduces the input.
func splitByFileSections(out string) []string {
	const prefix = "diff --git "
	var sections []string
	start := 0
	for {
		i := strings.Index(out[start:], prefix)
		if i < 0 {
			if start < len(out) && strings.TrimSpace(out[start:]) != "" {
				sections = append(sections, out[start:])
			}
			break
		}
		pos := start + i
		if pos > start && strings.TrimSpace(out[start:pos]) != "" {
			sections = append(sections, out[start:pos])
		}
		start = pos
		next := strings.Index(out[start+len(prefix):], prefix)
		if next < 0 {
			sections = append(sections, out[start:])
			break
		}
		sections = append(sections, out[start:start+len(prefix)+next])
		start = start + len(prefix) + next
	}
	return sections
}

func parseFileSection(section string) (File, error) {
	scanner := bufio.NewScanner(strings.NewReader(section))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var (
		f            File
		pathA, pathB string
		inHunk       bool
		currentLines []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			pathA, pathB = parseDiffGitLine(line)
			continue
		case strings.HasPrefix(line, binaryMarker):
			f.Binary = true
			continue
		case !inHunk && strings.HasPrefix(line, "--- "):
			if p := parsePathLine(line, "--- "); p != "/dev/null" && pathA == "" {
				pathA = p
			}
			continue
		case !inHunk && strings.HasPrefix(line, "+++ "):
			if p := parsePathLine(line, "+++ "); p != "/dev/null" {
				pathB = p
			}
			continue
		case hunkHeaderRegex.MatchString(line):
			if inHunk && len(currentLines) > 0 {
				f.Hunks = append(f.Hunks, strings.Join(currentLines, "\n"))
			}
			currentLines = []string{line}
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if line == "" || line[0] == ' ' || line[0] == '\\' {
			currentLines = append(currentLines, line)
			continue
		}
		switch line[0] {
		case '+':
			f.Added++
			currentLines = append(currentLines, line)
		case '-':
			f.Deleted++
			currentLines = append(currentLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return File{}, err
	}
	if inHunk && len(currentLines) > 0 {
		f.Hunks = append(f.Hunks, strings.Join(currentLines, "\n"))
	}
	f.Path = pathB
	if f.Path == "" {
		f.Path = pathA
	}
	return f, nil
}

// sectionPath returns the file path a section describes, preferring the
// new-side path from the "diff --git" line.
func sectionPath(section string) string {
	line := section
	if i := strings.IndexByte(section, '\n'); i >= 0 {
		line = section[:i]
	}
	if !strings.HasPrefix(line, "diff --git ") {
		return ""
	}
	a, b := parseDiffGitLine(line)
	if b != "" {
		return b
	}
	return a
}

func parseDiffGitLine(line string) (a, b string) {
	// "diff --git a/path b/path"
	rest := strings.TrimPrefix(line, "diff --git ")
	parts := strings.Fields(rest)
	if len(parts) >= 2 {
		a = trimDiffPath(parts[0])
		b = trimDiffPath(parts[len(parts)-1])
	}
	return a, b
}

func trimDiffPath(s string) string {
	if len(s) >= 2 && (s[0] == 'a' || s[0] == 'b') && s[1] == '/' {
		return s[2:]
	}
	return s
}

func parsePathLine(line, prefix string) string {
	s := strings.TrimPrefix(line, prefix)
	if idx := strings.Index(s, "\t"); idx >= 0 {
		s = s[:idx]
	}
	return trimDiffPath(s)
}
