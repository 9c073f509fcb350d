package cmd

import (
	"context"
	"maps"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/logtally/internal/config"
	"github.com/atikulmunna/logtally/internal/server"
	"github.com/atikulmunna/logtally/internal/source"
	"github.com/atikulmunna/logtally/internal/watcher"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	keys := maps.Clone(analysisFlags)
	keys["port"] = "server.port"
	keys["watch"] = "server.watch"

	cmd := &cobra.Command{
		Use:   "serve [inputs...]",
		Short: "Analyze access logs and serve the report over HTTP",
		Long: `Analyze the inputs once, then serve the report as JSON on /api/report and
push it to WebSocket clients on /ws. With --watch, the inputs are
re-analyzed whenever one of them changes.

Examples:
  logtally serve access.csv --port 8080
  logtally serve "logs/*.csv" --watch`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), keys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, args)
		},
	}

	addAnalysisFlags(cmd)
	cmd.Flags().IntP("port", "p", 8080, "HTTP port")
	cmd.Flags().BoolP("watch", "w", false, "re-analyze when an input file changes")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, inputs []string) error {
	return serve(ctx, server.New(strconv.Itoa(cfg.Server.Port), cfg.Server.Mode), cfg, inputs)
}

// serve analyzes inputs into srv, then runs srv and, with watching enabled,
// re-analyzes on every input change until ctx is cancelled.
func serve(ctx context.Context, srv *server.Server, cfg *config.Config, inputs []string) error {
	var w *watcher.Watcher
	if cfg.Server.Watch {
		files, err := source.Expand(inputs)
		if err != nil {
			return err
		}
		if w, err = watcher.New(files, 0); err != nil {
			return err
		}
		log.Info().Int("files", len(files)).Strs("dirs", w.Dirs()).Msg("watching inputs")
	}

	res, err := analyzeOnce(ctx, cfg, inputs)
	if err != nil {
		return err
	}
	srv.Update(res.Report)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })

	if w != nil {
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
		g.Go(func() error {
			for ev := range w.Events {
				log.Info().Str("file", ev.Path).Str("op", ev.Op.String()).Msg("input changed, re-analyzing")
				res, err := analyzeOnce(gctx, cfg, inputs)
				if err != nil {
					log.Error().Err(err).Msg("re-analysis failed")
					continue
				}
				srv.Update(res.Report)
			}
			return nil
		})
	}

	return g.Wait()
}
