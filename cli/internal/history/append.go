package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"commitmate/cli/internal/erruser"
)

const (
	historyFilename = "history.jsonl"
	archivePrefix   = "history.jsonl."
	archiveSuffix   = ".gz"
	// DefaultMaxRecords bounds the active history file.
	DefaultMaxRecords  = 500
	maxRotatedArchives = 5
	// Records are small; 1MB leaves room for long bullet lists.
	maxLineSize = 1024 * 1024
)

// Append writes record as one JSON line to stateDir/history.jsonl, creating
// stateDir when missing. When maxRecords > 0 and the file then holds more
// lines, the oldest lines move to a new gzip archive.
func Append(stateDir string, record Record, maxRecords int) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return erruser.New("Could not create the commitmate state directory.", err)
	}
	line, err := json.Marshal(record)
	if err != nil {
		return erruser.New("Could not record commit history.", err)
	}
	path := filepath.Join(stateDir, historyFilename)
	if err := appendLine(path, append(line, '\n')); err != nil {
		return erruser.New("Could not record commit history.", err)
	}
	if maxRecords > 0 {
		return rotateIfNeeded(path, maxRecords)
	}
	return nil
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadRecords returns every record in stateDir, oldest first: the archives in
// ascending N, then the active file. A missing stateDir yields no records.
func ReadRecords(stateDir string) ([]Record, error) {
	archives, err := listArchives(stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, erruser.New("Could not read the history directory.", err)
	}
	var out []Record
	for _, a := range archives {
		recs, err := readGzipRecords(a.path)
		if err != nil {
			return nil, erruser.New("Could not read a history archive.", err)
		}
		out = append(out, recs...)
	}
	lines, err := readLines(filepath.Join(stateDir, historyFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, erruser.New("Could not read the history file.", err)
	}
	recs, err := parseRecords(lines)
	if err != nil {
		return nil, erruser.New("The history file is corrupt.", err)
	}
	return append(out, recs...), nil
}

type archive struct {
	n    int
	path string
}

// listArchives returns history.jsonl.N.gz files in dir sorted by N.
func listArchives(dir string) ([]archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		n, err := strconv.Atoi(name[len(archivePrefix) : len(name)-len(archiveSuffix)])
		if err != nil || n < 1 {
			continue
		}
		out = append(out, archive{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	return out, nil
}

// rotateIfNeeded moves all but the last maxRecords lines of path into the
// next archive, prunes archives beyond maxRotatedArchives, and rewrites path
// through a temp file and rename.
func rotateIfNeeded(path string, maxRecords int) error {
	lines, err := readLines(path)
	if err != nil {
		return erruser.New("Could not read history for rotation.", err)
	}
	if len(lines) <= maxRecords {
		return nil
	}
	dir := filepath.Dir(path)
	archives, err := listArchives(dir)
	if err != nil {
		return erruser.New("Could not rotate commit history.", err)
	}
	next := 1
	if len(archives) > 0 {
		next = archives[len(archives)-1].n + 1
	}
	cut := len(lines) - maxRecords
	name := filepath.Join(dir, archivePrefix+strconv.Itoa(next)+archiveSuffix)
	if err := writeGzip(name, lines[:cut]); err != nil {
		return erruser.New("Could not write a history archive.", err)
	}
	archives = append(archives, archive{n: next, path: name})
	for len(archives) > maxRotatedArchives {
		if err := os.Remove(archives[0].path); err != nil {
			return erruser.New("Could not prune history archives.", err)
		}
		archives = archives[1:]
	}
	if err := writeAtomic(path, lines[cut:]); err != nil {
		return erruser.New("Could not rotate commit history.", err)
	}
	return nil
}

func writeAtomic(path string, lines []string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "history.*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeGzip(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	gw := gzip.NewWriter(f)
	for _, l := range lines {
		if _, err := io.WriteString(gw, l+"\n"); err != nil {
			_ = gw.Close()
			return err
		}
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func readGzipRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()
	lines, err := scanLines(gr)
	if err != nil {
		return nil, err
	}
	return parseRecords(lines)
}

func parseRecords(lines []string) ([]Record, error) {
	var out []Record
	for i, line := range lines {
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readLines returns the non-blank lines of path without line terminators.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanLines(f)
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, sc.Err()
}
