package partition

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/model"
)

// DataFile is the name of the single data file inside each partition directory.
const DataFile = "000000_0"

const dirPrefix = "status="

// Partition is one status=<code> directory on disk.
type Partition struct {
	Status int
	Path   string // data file path
}

type partFile struct {
	f *os.File
	w *csv.Writer
}

// Writer splits records into status=<code>/000000_0 files under a root directory.
// The status column is carried by the directory name, not the data file.
// Partitions are staged in a hidden directory and only replace the ones on
// disk when Close succeeds.
type Writer struct {
	dir       string
	staging   string
	delimiter rune
	files     map[int]*partFile
	counts    map[int]int
}

// NewWriter prepares a staging area under dir.
func NewWriter(dir string, delimiter rune) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition dir: %w", err)
	}
	staging, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("create partition staging dir: %w", err)
	}

	return &Writer{
		dir:       dir,
		staging:   staging,
		delimiter: delimiter,
		files:     make(map[int]*partFile),
		counts:    make(map[int]int),
	}, nil
}

// Write appends one record to its status partition.
func (w *Writer) Write(r model.LogRecord) error {
	pf, ok := w.files[r.Status]
	if !ok {
		var err error
		if pf, err = w.open(r.Status); err != nil {
			return err
		}
	}
	if err := pf.w.Write([]string{r.IP, r.Timestamp, r.URL, r.UserAgent}); err != nil {
		return fmt.Errorf("write partition %d: %w", r.Status, err)
	}
	w.counts[r.Status]++
	return nil
}

func (w *Writer) open(status int) (*partFile, error) {
	pdir := filepath.Join(w.staging, dirPrefix+strconv.Itoa(status))
	if err := os.MkdirAll(pdir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition %d: %w", status, err)
	}
	f, err := os.Create(filepath.Join(pdir, DataFile))
	if err != nil {
		return nil, fmt.Errorf("create partition %d: %w", status, err)
	}
	cw := csv.NewWriter(f)
	cw.Comma = w.delimiter
	pf := &partFile{f: f, w: cw}
	w.files[status] = pf
	return pf, nil
}

// Start writes records until the channel closes or ctx is done. It does not Close.
func (w *Writer) Start(ctx context.Context, records <-chan model.LogRecord) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-records:
			if !ok {
				return nil
			}
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
}

// Close flushes every partition, replaces the partitions previously in the
// directory with the new ones, and returns the record count per status.
func (w *Writer) Close() (map[int]int, error) {
	if err := w.closeFiles(); err != nil {
		os.RemoveAll(w.staging)
		return nil, err
	}
	if err := w.commit(); err != nil {
		return nil, err
	}

	log.Debug().Str("dir", w.dir).Int("partitions", len(w.counts)).Msg("partitions written")
	return w.counts, nil
}

// Abort discards everything written so far. Existing partitions are untouched.
func (w *Writer) Abort() error {
	w.closeFiles()
	return os.RemoveAll(w.staging)
}

func (w *Writer) closeFiles() error {
	var errs []error
	for status, pf := range w.files {
		pf.w.Flush()
		if err := pf.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush partition %d: %w", status, err))
		}
		if err := pf.f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.files = make(map[int]*partFile)
	return errors.Join(errs...)
}

func (w *Writer) commit() error {
	defer os.RemoveAll(w.staging)

	old, err := doublestar.Glob(os.DirFS(w.dir), dirPrefix+"*")
	if err != nil {
		return err
	}
	for _, p := range old {
		if err := os.RemoveAll(filepath.Join(w.dir, p)); err != nil {
			return fmt.Errorf("remove stale partition %s: %w", p, err)
		}
	}

	for status := range w.counts {
		name := dirPrefix + strconv.Itoa(status)
		if err := os.Rename(filepath.Join(w.staging, name), filepath.Join(w.dir, name)); err != nil {
			return fmt.Errorf("publish partition %d: %w", status, err)
		}
	}
	return nil
}

// Partitions lists the partitions under dir in ascending status order.
func Partitions(dir string) ([]Partition, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), dirPrefix+"*/"+DataFile)
	if err != nil {
		return nil, err
	}

	var out []Partition
	for _, m := range matches {
		name := strings.TrimPrefix(filepath.Dir(filepath.FromSlash(m)), dirPrefix)
		status, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out = append(out, Partition{Status: status, Path: filepath.Join(dir, filepath.FromSlash(m))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// Read loads every record of one partition, restoring the status column.
func Read(p Partition, delimiter rune) ([]model.LogRecord, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	cr.FieldsPerRecord = 4

	var out []model.LogRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read partition %d: %w", p.Status, err)
		}
		out = append(out, model.LogRecord{
			IP:        row[0],
			Timestamp: row[1],
			URL:       row[2],
			Status:    p.Status,
			UserAgent: row[3],
		})
	}
}
