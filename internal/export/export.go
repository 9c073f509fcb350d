package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/output"
)

// ReportFile is the name of the full JSON report written next to the section files.
const ReportFile = "report.json"

// WriteDir writes one <section>.csv per report section plus report.json into dir.
// Existing files are replaced.
func WriteDir(dir string, r *aggregator.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var written []string
	for _, sec := range output.Sections(r) {
		raw, err := sectionCSV(sec)
		if err != nil {
			return written, fmt.Errorf("encode %s: %w", sec.Name, err)
		}
		path := filepath.Join(dir, sec.Name+".csv")
		if err := writeAtomic(path, raw); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return written, err
	}
	path := filepath.Join(dir, ReportFile)
	if err := writeAtomic(path, append(raw, '\n')); err != nil {
		return written, err
	}
	written = append(written, path)

	log.Info().Str("dir", dir).Int("files", len(written)).Msg("report exported")
	return written, nil
}

func sectionCSV(sec output.Section) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"key", "count"}); err != nil {
		return nil, err
	}
	for _, l := range sec.Lines {
		if err := w.Write([]string{l.Key, strconv.Itoa(l.Count)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// writeAtomic writes to a temp file first, then renames over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
