package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/model"
	"github.com/atikulmunna/logtally/internal/parser"
)

const (
	subscriberBuffer = 1024
	maxSamples       = 10
)

// Options controls how the Hub treats malformed lines.
type Options struct {
	// Strict aborts on the first malformed line instead of skipping it.
	Strict bool
}

// Hub receives raw lines, parses them, and broadcasts LogRecord values to all subscribers.
// Every subscriber sees every record: a full subscriber blocks the Hub.
type Hub struct {
	parser      parser.Parser
	input       <-chan model.RawLine
	opts        Options
	mu          sync.RWMutex
	subscribers []chan model.LogRecord
	parsed      int
	skipped     int
	samples     []error
}

// New creates a Hub that reads from the input channel and parses with the given parser.
func New(input <-chan model.RawLine, p parser.Parser, opts Options) *Hub {
	return &Hub{
		parser: p,
		input:  input,
		opts:   opts,
	}
}

// Subscribe returns a channel that receives every parsed record.
// It must be called before Start.
func (h *Hub) Subscribe() <-chan model.LogRecord {
	ch := make(chan model.LogRecord, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Parsed returns the number of records broadcast so far.
func (h *Hub) Parsed() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parsed
}

// Skipped returns the number of malformed lines skipped so far.
func (h *Hub) Skipped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.skipped
}

// Samples returns up to the first 10 malformed-line errors.
func (h *Hub) Samples() []error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]error(nil), h.samples...)
}

// Start reads, parses and broadcasts until the input closes, ctx is cancelled,
// or, in strict mode, a line is malformed. Subscriber channels are closed on return.
func (h *Hub) Start(ctx context.Context) error {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-h.input:
			if !ok {
				return nil
			}
			rec, err := parser.ParseLine(h.parser, raw)
			if err != nil {
				if h.opts.Strict || !errors.Is(err, parser.ErrMalformedRecord) {
					return err
				}
				h.skip(err)
				continue
			}
			if err := h.broadcast(ctx, rec); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) skip(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.skipped++
	if len(h.samples) < maxSamples {
		h.samples = append(h.samples, err)
		log.Warn().Err(err).Msg("skipping malformed record")
	}
}

// broadcast sends a record to all subscribers, waiting on slow ones.
func (h *Hub) broadcast(ctx context.Context, rec model.LogRecord) error {
	h.mu.RLock()
	subs := h.subscribers
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	h.parsed++
	h.mu.Unlock()
	return nil
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
