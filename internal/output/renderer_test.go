package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/model"
)

func sampleReport() *aggregator.Report {
	a := aggregator.FromRecords([]model.LogRecord{
		{IP: "192.168.1.1", Timestamp: "2024-02-01 10:15:00", URL: "/home", Status: 200, UserAgent: "Mozilla/5.0"},
		{IP: "192.168.1.2", Timestamp: "2024-02-01 10:16:00", URL: "/products", Status: 200, UserAgent: "Chrome/90.0"},
		{IP: "192.168.1.3", Timestamp: "2024-02-01 10:17:00", URL: "/checkout", Status: 404, UserAgent: "Safari/13.1"},
		{IP: "192.168.1.10", Timestamp: "2024-02-01 10:20:00", URL: "/home", Status: 500, UserAgent: "Mozilla/5.0"},
		{IP: "192.168.1.15", Timestamp: "2024-02-01 10:25:00", URL: "/products", Status: 404, UserAgent: "Chrome/90.0"},
	})
	opts := aggregator.DefaultOptions()
	opts.FailureThreshold = 0
	opts.Precision = aggregator.PrecisionHour
	return a.Report(opts)
}

const sampleText = `Total Requests: 5

Status Codes
200: 2
404: 2
500: 1

Top URLs
/home: 2
/products: 2
/checkout: 1

User Agents
Mozilla/5.0: 2
Chrome/90.0: 2
Safari/13.1: 1

Suspicious IPs
192.168.1.3: 1 failed requests
192.168.1.10: 1 failed requests
192.168.1.15: 1 failed requests

Traffic Trends
2024-02-01 10: 5 requests
`

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(&buf, false).Render(sampleReport()))
	assert.Equal(t, sampleText, buf.String())
}

func TestTextRendererStable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, NewTextRenderer(&a, false).Render(sampleReport()))
	require.NoError(t, NewTextRenderer(&b, false).Render(sampleReport()))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestTextRendererEmptyAndSkipped(t *testing.T) {
	r := aggregator.New().Report(aggregator.DefaultOptions())
	r.SkippedRecords = 2

	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(&buf, false).Render(r))

	assert.Equal(t, `Total Requests: 0

Status Codes
(none)

Top URLs
(none)

User Agents
(none)

Suspicious IPs
(none)

Traffic Trends
(none)

Skipped Records: 2
`, buf.String())
}

func TestCSVRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVRenderer(&buf).Render(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "report,key,count\ntotal_requests,Total Requests,5\nstatus_codes,200,2\n")
	assert.Contains(t, out, "suspicious_ips,192.168.1.10,1\n")
	assert.Contains(t, out, "traffic_trends,2024-02-01 10,5\n")
	assert.Contains(t, out, "skipped_records,Skipped Records,0\n")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONRenderer(&buf).Render(sampleReport()))

	var got aggregator.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got), buf.String())
	assert.Equal(t, 5, got.TotalRequests)
	assert.Equal(t, []aggregator.StatusCount{{Status: 200, Count: 2}, {Status: 404, Count: 2}, {Status: 500, Count: 1}}, got.StatusCodes)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, f := range []string{"", "text", "CSV", "json"} {
		r, err := New(f, &buf, false)
		require.NoError(t, err, f)
		assert.NotNil(t, r)
	}

	_, err := New("xml", &buf, false)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
