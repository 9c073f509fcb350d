package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
	"github.com/atikulmunna/logtally/internal/alert"
	"github.com/atikulmunna/logtally/internal/cache"
	"github.com/atikulmunna/logtally/internal/config"
	"github.com/atikulmunna/logtally/internal/export"
	"github.com/atikulmunna/logtally/internal/output"
	"github.com/atikulmunna/logtally/internal/parser"
	"github.com/atikulmunna/logtally/internal/partition"
	"github.com/atikulmunna/logtally/internal/pipeline"
	"github.com/atikulmunna/logtally/internal/store"
)

// analyzeOnce runs one full pass over inputs: aggregation plus every
// configured sink and publisher.
func analyzeOnce(ctx context.Context, cfg *config.Config, inputs []string) (*pipeline.Result, error) {
	delim, err := cfg.Delimiter()
	if err != nil {
		return nil, err
	}
	p, err := parser.New(cfg.Input.Format, delim)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ReportOptions()
	if err != nil {
		return nil, err
	}

	runID := pipeline.NewRunID()
	var consumers []pipeline.Consumer

	var pw *partition.Writer
	if cfg.Output.PartitionDir != "" {
		if pw, err = partition.NewWriter(cfg.Output.PartitionDir, delim); err != nil {
			return nil, err
		}
		consumers = append(consumers, pipeline.ConsumerFunc(pw.Start))
	}

	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate web_logs: %w", err)
		}
		consumers = append(consumers, st.WithRunID(runID))
		defer func() {
			counts, err := st.StatusCounts(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("web_logs status query failed")
				return
			}
			log.Debug().Interface("status_counts", counts).Str("run_id", runID).Msg("web_logs loaded")
		}()
	}

	res, err := pipeline.Run(ctx, pipeline.Options{
		Inputs:          inputs,
		Parser:          p,
		SkipHeaderLines: cfg.HeaderLines(),
		Strict:          cfg.Input.Strict,
		Report:          opts,
		Consumers:       consumers,
		RunID:           runID,
	})
	if pw != nil {
		if err != nil {
			err = errors.Join(err, pw.Abort())
		} else if counts, cerr := pw.Close(); cerr != nil {
			err = cerr
		} else {
			log.Info().Str("dir", cfg.Output.PartitionDir).Interface("partitions", counts).Msg("partitions written")
		}
	}
	if err != nil {
		return nil, err
	}

	if err := publish(ctx, cfg, res.Report); err != nil {
		return nil, err
	}
	return res, nil
}

// publish sends a finished report to every configured destination.
func publish(ctx context.Context, cfg *config.Config, r *aggregator.Report) error {
	if cfg.Output.ExportDir != "" {
		if _, err := export.WriteDir(cfg.Output.ExportDir, r); err != nil {
			return err
		}
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := cache.NewPublisher(client, cfg.Redis.Prefix, cfg.Redis.TTL).Publish(ctx, r); err != nil {
			return err
		}
	}

	if cfg.AMQP.URL != "" {
		dur, err := time.ParseDuration(cfg.AMQP.BlockDuration)
		if err != nil {
			return err
		}
		pub, err := alert.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey, dur)
		if err != nil {
			return err
		}
		defer pub.Close()
		if _, err := pub.Publish(ctx, r.SuspiciousIPs); err != nil {
			return err
		}
	}
	return nil
}

// createOutput opens the report file.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeReport renders r to the configured path, or to w when no path is set.
func writeReport(w io.Writer, cfg *config.Config, r *aggregator.Report) (err error) {
	color := cfg.Output.Color && isTerminal(w)
	if cfg.Output.Path != "" {
		var f io.WriteCloser
		if f, err = createOutput(cfg.Output.Path); err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w, color = f, false
	}

	renderer, err := output.New(cfg.Output.Format, w, color)
	if err != nil {
		return err
	}
	return renderer.Render(r)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
