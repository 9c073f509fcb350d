package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/hub"
	"github.com/atikulmunna/logtally/internal/model"
	"github.com/atikulmunna/logtally/internal/parser"
	"github.com/atikulmunna/logtally/internal/source"
)

// Consumer receives every parsed record of a run on its own channel.
type Consumer interface {
	Consume(ctx context.Context, records <-chan model.LogRecord) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, records <-chan model.LogRecord) error

// Consume calls f.
func (f ConsumerFunc) Consume(ctx context.Context, records <-chan model.LogRecord) error {
	return f(ctx, records)
}

// Options configures one run.
type Options struct {
	Inputs          []string // files, directories or glob patterns
	Parser          parser.Parser
	SkipHeaderLines int
	Strict          bool
	Report          aggregator.Options
	Consumers       []Consumer
	RunID           string // generated when empty
}

// Result is the outcome of a successful run.
type Result struct {
	RunID    string
	Files    []string
	Report   *aggregator.Report
	Skipped  int
	Samples  []error
	Duration time.Duration
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run reads every input once, aggregates it, and feeds each Consumer.
// The first error from any stage cancels the others and is returned.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Parser == nil {
		return nil, errors.New("pipeline: parser is required")
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	start := time.Now()

	files, err := source.Expand(opts.Inputs)
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("run_id", opts.RunID).Logger()
	logger.Info().Int("files", len(files)).Msg("analysis started")

	reader := source.New(files, opts.SkipHeaderLines)
	h := hub.New(reader.Lines(), opts.Parser, hub.Options{Strict: opts.Strict})

	agg := aggregator.New()
	aggCh := h.Subscribe()
	chans := make([]<-chan model.LogRecord, len(opts.Consumers))
	for i := range opts.Consumers {
		chans[i] = h.Subscribe()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reader.Start(gctx) })
	g.Go(func() error { return h.Start(gctx) })
	g.Go(func() error { return agg.Start(gctx, aggCh) })
	for i, c := range opts.Consumers {
		c, ch := c, chans[i]
		g.Go(func() error { return c.Consume(gctx, ch) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := agg.Report(opts.Report)
	report.SkippedRecords = h.Skipped()

	res := &Result{
		RunID:    opts.RunID,
		Files:    files,
		Report:   report,
		Skipped:  h.Skipped(),
		Samples:  h.Samples(),
		Duration: time.Since(start),
	}

	logger.Info().
		Int("records", report.TotalRequests).
		Int("skipped", res.Skipped).
		Dur("elapsed", res.Duration).
		Msg("analysis finished")
	return res, nil
}
