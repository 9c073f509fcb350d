package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logtally/internal/model"
)

func TestDelimitedParser(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	rec, err := p.Parse("192.168.1.1,2024-02-01 10:15:00,/home,200,Mozilla/5.0")
	require.NoError(t, err)

	assert.Equal(t, model.LogRecord{
		IP:        "192.168.1.1",
		Timestamp: "2024-02-01 10:15:00",
		URL:       "/home",
		Status:    200,
		UserAgent: "Mozilla/5.0",
	}, rec)
}

func TestDelimitedParserQuotedUserAgent(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	rec, err := p.Parse(`10.0.0.1,2024-02-01 10:15:00,/about,404,"Mozilla/5.0 (KHTML, like Gecko)"`)
	require.NoError(t, err)

	assert.Equal(t, "Mozilla/5.0 (KHTML, like Gecko)", rec.UserAgent)
	assert.Equal(t, 404, rec.Status)
}

func TestDelimitedParserCustomDelimiter(t *testing.T) {
	p, err := NewDelimitedParser('\t')
	require.NoError(t, err)

	rec, err := p.Parse("10.0.0.1\t2024-02-01 10:15:00\t/x\t500\tcurl/8.0")
	require.NoError(t, err)
	assert.Equal(t, 500, rec.Status)
	assert.Equal(t, "curl/8.0", rec.UserAgent)
}

func TestDelimitedParserMalformed(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{name: "too few fields", line: "10.0.0.1,2024-02-01 10:15:00,/x,200", reason: "expected 5 fields, got 4"},
		{name: "too many fields", line: "10.0.0.1,2024-02-01 10:15:00,/x,200,Mozilla/5.0 (KHTML, like Gecko)", reason: "expected 5 fields, got 6"},
		{name: "non-integer status", line: "10.0.0.1,2024-02-01 10:15:00,/x,OK,curl", reason: `status "OK" is not an integer`},
		{name: "empty line", line: "", reason: "unreadable line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))

			var mre *MalformedRecordError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.reason, mre.Reason)
			assert.Equal(t, tt.line, mre.Raw)
		})
	}
}

func TestDelimitedParserStatusWhitespace(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	rec, err := p.Parse("10.0.0.1,2024-02-01 10:15:00,/x, 301 ,curl")
	require.NoError(t, err)
	assert.Equal(t, 301, rec.Status)
}

func TestNewDelimitedParserInvalid(t *testing.T) {
	for _, d := range []rune{'"', '\n', '\r'} {
		_, err := NewDelimitedParser(d)
		assert.Error(t, err, "delimiter %q", d)
	}
}

func TestParseLineStampsPosition(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	_, err = ParseLine(p, model.RawLine{Text: "garbage", Source: "access.csv", Line: 7})
	require.Error(t, err)
	assert.Equal(t, "malformed record at access.csv:7: expected 5 fields, got 1", err.Error())
}

func TestParseLineOversized(t *testing.T) {
	p, err := NewDelimitedParser(',')
	require.NoError(t, err)

	_, err = ParseLine(p, model.RawLine{Source: "access.csv", Line: 3, Oversized: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, "malformed record at access.csv:3: line too long", err.Error())
}

func TestJSONParser(t *testing.T) {
	p := NewJSONParser()

	rec, err := p.Parse(`{"ip":"10.0.0.2","timestamp":"2024-02-01 10:16:00","url":"/login","status":"500","user_agent":"curl/8.0"}`)
	require.NoError(t, err)
	assert.Equal(t, 500, rec.Status)
	assert.Equal(t, "/login", rec.URL)

	rec, err = p.Parse(`{"ip":"10.0.0.2","timestamp":"2024-02-01 10:16:00","url":"/","status":200,"user_agent":""}`)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Status)
}

func TestJSONParserMalformed(t *testing.T) {
	p := NewJSONParser()

	_, err := p.Parse(`{"ip":"10.0.0.2","url":"/login","status":500}`)
	require.Error(t, err)
	var mre *MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, "missing fields: timestamp, user_agent", mre.Reason)

	_, err = p.Parse(`not json`)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = p.Parse(`{"ip":"a","timestamp":"b","url":"c","status":"4xx","user_agent":"d"}`)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNew(t *testing.T) {
	p, err := New("csv", ',')
	require.NoError(t, err)
	assert.IsType(t, &DelimitedParser{}, p)

	p, err = New("JSON", 0)
	require.NoError(t, err)
	assert.IsType(t, &JSONParser{}, p)

	_, err = New("xml", ',')
	assert.Error(t, err)
}
