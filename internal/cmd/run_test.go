package cmd

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/config"
)

type closeErrWriter struct {
	bytes.Buffer
	err error
}

func (w *closeErrWriter) Close() error { return w.err }

func TestWriteReportReturnsCloseError(t *testing.T) {
	diskFull := errors.New("disk full")
	dest := &closeErrWriter{err: diskFull}

	orig := createOutput
	createOutput = func(string) (io.WriteCloser, error) { return dest, nil }
	t.Cleanup(func() { createOutput = orig })

	cfg := &config.Config{Output: config.OutputConfig{Path: "report.txt", Format: "text"}}
	err := writeReport(io.Discard, cfg, &aggregator.Report{TotalRequests: 3})

	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, dest.String(), "Total Requests: 3\n")
}

func TestWriteReportToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Output: config.OutputConfig{Format: "json", Color: true}}

	require.NoError(t, writeReport(&buf, cfg, &aggregator.Report{TotalRequests: 3}))
	assert.Contains(t, buf.String(), `"total_requests": 3`)
}
