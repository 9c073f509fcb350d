package parser

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/atikulmunna/logtally/internal/model"
)

// FieldCount is the number of columns in an access-log row.
const FieldCount = 5

// ErrMalformedRecord matches every MalformedRecordError via errors.Is.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports a line that cannot become a LogRecord.
type MalformedRecordError struct {
	Source string
	Line   int
	Raw    string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("malformed record at %s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return "malformed record: " + e.Reason
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// Parser converts a raw line into a LogRecord.
type Parser interface {
	Parse(raw string) (model.LogRecord, error)
}

// New returns the parser for an input format ("csv" or "json").
func New(format string, delimiter rune) (Parser, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return NewDelimitedParser(delimiter)
	case "json", "jsonl":
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

// ParseLine parses a RawLine and stamps any MalformedRecordError with its position.
// Oversized lines are malformed without being parsed.
func ParseLine(p Parser, line model.RawLine) (model.LogRecord, error) {
	if line.Oversized {
		mre := malformed("", "line too long", nil)
		mre.Source = line.Source
		mre.Line = line.Line
		return model.LogRecord{}, mre
	}
	rec, err := p.Parse(line.Text)
	if err != nil {
		var mre *MalformedRecordError
		if errors.As(err, &mre) {
			mre.Source = line.Source
			mre.Line = line.Line
		}
		return model.LogRecord{}, err
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Delimited Parser
// ---------------------------------------------------------------------------

// DelimitedParser splits ip,timestamp,url,status,user_agent rows.
// Double-quoted fields may contain the delimiter.
type DelimitedParser struct {
	delimiter rune
}

// NewDelimitedParser returns a parser for the given single-rune field delimiter.
func NewDelimitedParser(delimiter rune) (*DelimitedParser, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	if !validDelimiter(delimiter) {
		return nil, fmt.Errorf("invalid field delimiter %q", delimiter)
	}
	return &DelimitedParser{delimiter: delimiter}, nil
}

func (p *DelimitedParser) Parse(raw string) (model.LogRecord, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = p.delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields, err := r.Read()
	if err != nil {
		return model.LogRecord{}, malformed(raw, "unreadable line", err)
	}
	if len(fields) != FieldCount {
		return model.LogRecord{}, malformed(raw, fmt.Sprintf("expected %d fields, got %d", FieldCount, len(fields)), nil)
	}

	status, err := parseStatus(fields[3])
	if err != nil {
		return model.LogRecord{}, malformed(raw, fmt.Sprintf("status %q is not an integer", fields[3]), err)
	}

	return model.LogRecord{
		IP:        fields[0],
		Timestamp: fields[1],
		URL:       fields[2],
		Status:    status,
		UserAgent: fields[4],
	}, nil
}

// ---------------------------------------------------------------------------
// JSON Parser
// ---------------------------------------------------------------------------

// JSONParser handles JSON-lines input with the same five keys as the CSV header.
// status may be a number or a numeric string.
type JSONParser struct{}

func NewJSONParser() *JSONParser { return &JSONParser{} }

type jsonRecord struct {
	IP        *string      `json:"ip"`
	Timestamp *string      `json:"timestamp"`
	URL       *string      `json:"url"`
	Status    *json.Number `json:"status"`
	UserAgent *string      `json:"user_agent"`
}

func (p *JSONParser) Parse(raw string) (model.LogRecord, error) {
	var data jsonRecord
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return model.LogRecord{}, malformed(raw, "invalid JSON", err)
	}

	var missing []string
	for _, f := range []struct {
		name    string
		present bool
	}{
		{"ip", data.IP != nil},
		{"timestamp", data.Timestamp != nil},
		{"url", data.URL != nil},
		{"status", data.Status != nil},
		{"user_agent", data.UserAgent != nil},
	} {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.LogRecord{}, malformed(raw, "missing fields: "+strings.Join(missing, ", "), nil)
	}

	status, err := parseStatus(data.Status.String())
	if err != nil {
		return model.LogRecord{}, malformed(raw, fmt.Sprintf("status %q is not an integer", data.Status.String()), err)
	}

	return model.LogRecord{
		IP:        *data.IP,
		Timestamp: *data.Timestamp,
		URL:       *data.URL,
		Status:    status,
		UserAgent: *data.UserAgent,
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func parseStatus(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func malformed(raw, reason string, err error) *MalformedRecordError {
	return &MalformedRecordError{Raw: raw, Reason: reason, Err: err}
}

// validDelimiter mirrors the delimiters encoding/csv accepts.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

