package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/model"
	"github.com/atikulmunna/logtally/internal/parser"
)

const sampleCSV = `ip,timestamp,url,status,user_agent
192.168.1.1,2024-02-01 10:15:00,/home,200,Mozilla/5.0
192.168.1.2,2024-02-01 10:16:00,/products,200,Chrome/90.0
192.168.1.3,2024-02-01 10:17:00,/checkout,404,Safari/14.0
192.168.1.10,2024-02-01 10:20:00,/home,500,Mozilla/5.0
192.168.1.15,2024-02-01 10:25:00,/products,404,Chrome/90.0
`

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvParser(t *testing.T) parser.Parser {
	t.Helper()
	p, err := parser.New("csv", ',')
	require.NoError(t, err)
	return p
}

type collector struct {
	mu      sync.Mutex
	records []model.LogRecord
}

func (c *collector) Consume(_ context.Context, records <-chan model.LogRecord) error {
	for r := range records {
		c.mu.Lock()
		c.records = append(c.records, r)
		c.mu.Unlock()
	}
	return nil
}

func TestRun(t *testing.T) {
	path := writeInput(t, "access.csv", sampleCSV)
	col := &collector{}

	res, err := Run(context.Background(), Options{
		Inputs:          []string{path},
		Parser:          csvParser(t),
		SkipHeaderLines: 1,
		Report:          aggregator.DefaultOptions(),
		Consumers:       []Consumer{col},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{path}, res.Files)
	assert.Equal(t, 0, res.Skipped)

	r := res.Report
	assert.Equal(t, 5, r.TotalRequests)
	assert.Equal(t, []aggregator.StatusCount{{Status: 200, Count: 2}, {Status: 404, Count: 2}, {Status: 500, Count: 1}}, r.StatusCodes)
	assert.Equal(t, []aggregator.Ranked{{Key: "/home", Count: 2}, {Key: "/products", Count: 2}, {Key: "/checkout", Count: 1}}, r.TopURLs)
	assert.Empty(t, r.SuspiciousIPs)
	assert.Len(t, r.TrafficTrends, 5)

	assert.Len(t, col.records, 5)
	assert.Equal(t, "192.168.1.1", col.records[0].IP)
}

func TestRunSkipsMalformed(t *testing.T) {
	path := writeInput(t, "access.csv", sampleCSV+"garbage line\n10.0.0.1,2024-02-01 10:30:00,/x,abc,curl\n")

	res, err := Run(context.Background(), Options{
		Inputs:          []string{path},
		Parser:          csvParser(t),
		SkipHeaderLines: 1,
		Report:          aggregator.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Report.TotalRequests)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Report.SkippedRecords)
	require.Len(t, res.Samples, 2)
	assert.ErrorIs(t, res.Samples[0], parser.ErrMalformedRecord)
}

func TestRunSkipsOversizedLine(t *testing.T) {
	long := "10.0.0.1,2024-02-01 10:30:00,/" + strings.Repeat("a", 2<<20) + ",200,curl\n"
	path := writeInput(t, "access.csv", sampleCSV+long+"10.0.0.2,2024-02-01 10:31:00,/tail,200,curl\n")

	res, err := Run(context.Background(), Options{
		Inputs:          []string{path},
		Parser:          csvParser(t),
		SkipHeaderLines: 1,
		Report:          aggregator.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Report.TotalRequests)
	assert.Equal(t, 1, res.Report.SkippedRecords)
	require.Len(t, res.Samples, 1)

	var mre *parser.MalformedRecordError
	require.True(t, errors.As(res.Samples[0], &mre))
	assert.Equal(t, 7, mre.Line)
}

func TestRunStrict(t *testing.T) {
	path := writeInput(t, "access.csv", sampleCSV+"garbage line\n")

	_, err := Run(context.Background(), Options{
		Inputs:          []string{path},
		Parser:          csvParser(t),
		SkipHeaderLines: 1,
		Strict:          true,
		Report:          aggregator.DefaultOptions(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrMalformedRecord)

	var mre *parser.MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, 7, mre.Line)
}

func TestRunConsumerError(t *testing.T) {
	path := writeInput(t, "access.csv", sampleCSV)
	boom := errors.New("sink down")

	_, err := Run(context.Background(), Options{
		Inputs: []string{path},
		Parser: csvParser(t),
		Consumers: []Consumer{ConsumerFunc(func(context.Context, <-chan model.LogRecord) error {
			return boom
		})},
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunNoInputs(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Inputs: []string{filepath.Join(t.TempDir(), "*.csv")},
		Parser: csvParser(t),
	})
	assert.ErrorContains(t, err, "no input files matched")
}

func TestRunEmptyInput(t *testing.T) {
	path := writeInput(t, "empty.csv", "ip,timestamp,url,status,user_agent\n")

	res, err := Run(context.Background(), Options{
		Inputs:          []string{path},
		Parser:          csvParser(t),
		SkipHeaderLines: 1,
		Report:          aggregator.DefaultOptions(),
		RunID:           "fixed",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.RunID)
	assert.Equal(t, 0, res.Report.TotalRequests)
	assert.Empty(t, res.Report.StatusCodes)
	assert.Empty(t, res.Report.TopURLs)
}
