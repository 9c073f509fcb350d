package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/model"
)

const (
	lineBuffer    = 512
	maxLineLength = 1 << 20
)

// Reader streams the lines of a fixed set of files, in order, from the start.
type Reader struct {
	paths      []string
	skipHeader int
	out        chan model.RawLine
}

// New creates a Reader for paths that skips the first skipHeaderLines lines of
// every file.
func New(paths []string, skipHeaderLines int) *Reader {
	if skipHeaderLines < 0 {
		skipHeaderLines = 0
	}
	return &Reader{
		paths:      paths,
		skipHeader: skipHeaderLines,
		out:        make(chan model.RawLine, lineBuffer),
	}
}

// Lines returns the channel where raw lines are sent. It is closed when Start returns.
func (r *Reader) Lines() <-chan model.RawLine {
	return r.out
}

// Paths returns the files this Reader reads.
func (r *Reader) Paths() []string {
	return r.paths
}

// Start reads every file and emits its non-blank lines. It returns the first
// I/O error, or ctx.Err() if cancelled.
func (r *Reader) Start(ctx context.Context) error {
	defer close(r.out)

	for _, p := range r.paths {
		if err := r.readFile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	lineNo := 0
	emitted := 0
	for {
		text, oversized, rerr := readLine(br, maxLineLength)
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("read %s: %w", path, rerr)
		}
		if rerr == io.EOF && text == "" && !oversized {
			break
		}

		lineNo++
		if lineNo > r.skipHeader && (oversized || strings.TrimSpace(text) != "") {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.out <- model.RawLine{Text: text, Source: path, Line: lineNo, Oversized: oversized}:
				emitted++
			}
		}
		if rerr == io.EOF {
			break
		}
	}

	log.Debug().Str("file", path).Int("lines", emitted).Msg("input file read")
	return nil
}

// readLine returns the next line without its line ending. A line longer than
// limit is consumed in full and reported as oversized with empty text.
func readLine(br *bufio.Reader, limit int) (string, bool, error) {
	var buf []byte
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			buf = append(buf, chunk...)
			if len(trimEOL(buf)) > limit {
				oversized = true
				buf = nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if oversized {
			return "", true, err
		}
		return string(trimEOL(buf)), false, err
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// Expand resolves files, directories and doublestar patterns (logs/**/*.csv)
// into a deduplicated file list. Directories contribute every file beneath
// them except names starting with "." or "_".
func Expand(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := expandOne(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			files = append(files, m)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched %v", patterns)
	}
	return files, nil
}

func expandOne(pattern string) ([]string, error) {
	info, err := os.Stat(pattern)
	if err != nil && !strings.ContainsAny(pattern, "*?[{") {
		return nil, err
	}
	if err == nil && info.IsDir() {
		all, err := doublestar.FilepathGlob(filepath.Join(pattern, "**", "*"), doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		var visible []string
		for _, p := range all {
			rel, _ := filepath.Rel(pattern, p)
			if !hidden(rel) {
				visible = append(visible, p)
			}
		}
		return visible, nil
	}
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}

// hidden reports whether any element of a relative path starts with "." or "_".
func hidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "_") {
			return true
		}
	}
	return false
}
