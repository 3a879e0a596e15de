package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/dashloom/internal/dashboard"
	"github.com/KaramelBytes/dashloom/internal/server"
)

var (
	serveAddr     string
	serveData     []string
	serveRowLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve [dataset...]",
	Short: "Serve dashboards as JSON over HTTP",
	Long: `Serve loads each dataset once and answers dashboard, options and rows
requests over HTTP. With no arguments every registered dashboard whose source
can be found is served; missing files are skipped with a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseDataFlags(serveData)
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = dashboard.Names()
		}

		metrics := server.NewMetrics()
		opts := dashboardOptions()
		opts.Recorder = metrics

		loaded, err := openAll(names, overrides, opts, len(args) > 0)
		if err != nil {
			return err
		}
		if len(loaded) == 0 {
			return fmt.Errorf("no datasets could be loaded; set sources with --data or 'dashloom config set sources.<name> <path>'")
		}

		srv, err := server.New(server.Config{
			Datasets:  loaded,
			AssetsDir: cfg.AssetsDir,
			RowLimit:  serveRowLimit,
			Logger:    log,
			Metrics:   metrics,
		})
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

// openAll loads the named datasets concurrently. Unless strict, a dataset
// whose source is absent is skipped with a warning.
func openAll(names []string, overrides map[string]string, opts dashboard.Options, strict bool) ([]*dashboard.Dataset, error) {
	defs := make([]*dashboard.Definition, len(names))
	for i, n := range names {
		def, err := dashboard.Lookup(n)
		if err != nil {
			return nil, err
		}
		defs[i] = def
	}

	opened := make([]*dashboard.Dataset, len(defs))
	var g errgroup.Group
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			var src []string
			if p, ok := overrides[def.Name]; ok {
				src = []string{p}
			}
			ds, err := dashboard.Open(def, sourceFor(def, src), opts)
			if err != nil {
				if !strict && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, dashboard.ErrNoSource)) {
					fmt.Fprintf(os.Stderr, "⚠ Warning: skipping %s: %v\n", def.Name, err)
					return nil
				}
				return fmt.Errorf("open %s: %w", def.Name, err)
			}
			log.WithFields(logrus.Fields{"dataset": def.Name, "source": ds.Source(), "rows": ds.Table().Len()}).Info("dataset loaded")
			opened[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := opened[:0]
	for _, ds := range opened {
		if ds != nil {
			out = append(out, ds)
		}
	}
	return out, nil
}

// parseDataFlags turns name=path pairs into a map keyed by lowercase name.
func parseDataFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, path, ok := strings.Cut(p, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid --data %q (want name=path)", p)
		}
		def, err := dashboard.Lookup(name)
		if err != nil {
			return nil, err
		}
		out[def.Name] = strings.TrimSpace(path)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config listen_addr)")
	serveCmd.Flags().StringArrayVar(&serveData, "data", nil, "dataset source as name=path (repeatable)")
	serveCmd.Flags().IntVar(&serveRowLimit, "row-limit", 1000, "maximum rows returned by /rows")
}
