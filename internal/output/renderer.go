package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// ErrUnknownFormat is returned by New for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Renderer writes a Report to an output stream.
type Renderer interface {
	Render(r *aggregator.Report) error
}

// New returns the Renderer for format ("text", "csv" or "json").
// color only affects the text renderer.
func New(format string, w io.Writer, color bool) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewTextRenderer(w, color), nil
	case "csv":
		return NewCSVRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ---------------------------------------------------------------------------
// Sections
// ---------------------------------------------------------------------------

// Line is one key/count row of a section.
type Line struct {
	Key   string
	Count int
}

// Section is a report block flattened to key/count rows.
type Section struct {
	Name   string
	Title  string
	Suffix string // appended after the count in text output
	Lines  []Line
}

// Sections flattens a Report into its six blocks in presentation order.
func Sections(r *aggregator.Report) []Section {
	statuses := make([]Line, 0, len(r.StatusCodes))
	for _, s := range r.StatusCodes {
		statuses = append(statuses, Line{Key: strconv.Itoa(s.Status), Count: s.Count})
	}

	return []Section{
		{Name: aggregator.SectionTotalRequests, Title: "Total Requests", Lines: []Line{{Key: "Total Requests", Count: r.TotalRequests}}},
		{Name: aggregator.SectionStatusCodes, Title: "Status Codes", Lines: statuses},
		{Name: aggregator.SectionTopURLs, Title: "Top URLs", Lines: lines(r.TopURLs)},
		{Name: aggregator.SectionUserAgents, Title: "User Agents", Lines: lines(r.UserAgents)},
		{Name: aggregator.SectionSuspiciousIPs, Title: "Suspicious IPs", Suffix: " failed requests", Lines: lines(r.SuspiciousIPs)},
		{Name: aggregator.SectionTrafficTrends, Title: "Traffic Trends", Suffix: " requests", Lines: lines(r.TrafficTrends)},
	}
}

func lines(items []aggregator.Ranked) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		out = append(out, Line{Key: it.Key, Count: it.Count})
	}
	return out
}

// ---------------------------------------------------------------------------
// Text Renderer
// ---------------------------------------------------------------------------

var (
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true) // cyan bold
	styleTotal   = lipgloss.NewStyle().Bold(true)
	styleEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
)

// TextRenderer prints one "key: count" block per section.
type TextRenderer struct {
	w     io.Writer
	color bool
}

// NewTextRenderer returns a text Renderer. color enables terminal styling.
func NewTextRenderer(w io.Writer, color bool) *TextRenderer {
	return &TextRenderer{w: w, color: color}
}

func (t *TextRenderer) Render(r *aggregator.Report) error {
	var b strings.Builder

	for i, s := range Sections(r) {
		if s.Name == aggregator.SectionTotalRequests {
			b.WriteString(t.style(styleTotal, fmt.Sprintf("Total Requests: %d", r.TotalRequests)))
			b.WriteString("\n")
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.style(styleTitle, s.Title))
		b.WriteString("\n")
		if len(s.Lines) == 0 {
			b.WriteString(t.style(styleEmpty, "(none)"))
			b.WriteString("\n")
			continue
		}
		for _, l := range s.Lines {
			fmt.Fprintf(&b, "%s: %d%s\n", l.Key, l.Count, s.Suffix)
		}
	}

	if r.SkippedRecords > 0 {
		b.WriteString("\n")
		b.WriteString(t.style(styleSkipped, fmt.Sprintf("Skipped Records: %d", r.SkippedRecords)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextRenderer) style(s lipgloss.Style, text string) string {
	if !t.color {
		return text
	}
	return s.Render(text)
}

// ---------------------------------------------------------------------------
// CSV Renderer
// ---------------------------------------------------------------------------

// CSVRenderer writes report,key,count rows.
type CSVRenderer struct {
	w io.Writer
}

func NewCSVRenderer(w io.Writer) *CSVRenderer {
	return &CSVRenderer{w: w}
}

func (c *CSVRenderer) Render(r *aggregator.Report) error {
	cw := csv.NewWriter(c.w)

	if err := cw.Write([]string{"report", "key", "count"}); err != nil {
		return err
	}
	for _, s := range Sections(r) {
		for _, l := range s.Lines {
			if err := cw.Write([]string{s.Name, l.Key, strconv.Itoa(l.Count)}); err != nil {
				return err
			}
		}
	}
	if err := cw.Write([]string{"skipped_records", "Skipped Records", strconv.Itoa(r.SkippedRecords)}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ---------------------------------------------------------------------------
// JSON Renderer
// ---------------------------------------------------------------------------

// JSONRenderer writes the Report as one indented JSON document.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONRenderer{enc: enc}
}

func (j *JSONRenderer) Render(r *aggregator.Report) error {
	return j.enc.Encode(r)
}
