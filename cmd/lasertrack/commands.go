package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/okian/lasertrack/internal/adapters/http/api"
	app "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/config"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/tracing"
)

var errNoStore = errors.New("db_path is not set; nothing to read")

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and import workers",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	shutdownTracing, err := tracing.Setup(ctx, "lasertrack", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn(ctx, "tracer shutdown failed", logger.Error(err))
		}
	}()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc, svc, api.WithLogger(log.Named("http")))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import log files and print one JSON result per file",
		ArgsUsage: "<file|dir>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "reject logs of any other mode"},
			&cli.BoolFlag{Name: "unranked", Usage: "store without rating"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("import: no files given")
			}
			ctx := c.Context
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			opts := app.ImportOptions{Ranked: !c.Bool("unranked")}
			if raw := c.String("mode"); raw != "" {
				if opts.Mode, err = model.ParseMode(raw); err != nil {
					return err
				}
			}
			items, err := readLogs(c.Args().Slice())
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.Background()) }()
			return runImport(ctx, svc, items, opts, c.App.Writer)
		},
	}
}

func runImport(ctx context.Context, svc *app.Service, items []app.BatchItem, opts app.ImportOptions, out io.Writer) error {
	results, err := svc.ImportBatch(ctx, items, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	logger.Get().Info(ctx, "import finished",
		logger.Int("files", len(results)),
		logger.Int("failed", failed))
	return nil
}

// readLogs loads every argument; directories contribute their regular files.
func readLogs(args []string) ([]app.BatchItem, error) {
	var items []app.BatchItem
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		paths := []string{arg}
		if info.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			paths = paths[:0]
			for _, e := range entries {
				if e.Type().IsRegular() {
					paths = append(paths, filepath.Join(arg, e.Name()))
				}
			}
		}
		for _, p := range paths {
			raw, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			items = append(items, app.BatchItem{Source: p, Raw: raw})
		}
	}
	return items, nil
}

func recomputeCommand() *cli.Command {
	return &cli.Command{
		Name:  "recompute",
		Usage: "reset all ratings and replay every ranked match",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return errNoStore
			}
			svc, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.Background()) }()

			res, err := svc.Recompute(ctx)
			if err != nil {
				return err
			}
			logger.Get().Info(ctx, "recompute finished",
				logger.Int("matches", res.Matches),
				logger.Int("refreshed", res.Refreshed),
				logger.Int("pages", res.Pages),
				logger.Duration("duration", res.Duration))
			return nil
		},
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "print the replay script of a stored match as JSON",
		ArgsUsage: "<match-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("replay: want exactly one match id")
			}
			ctx := c.Context
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return errNoStore
			}
			svc, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.Background()) }()

			script, err := svc.Replay(ctx, c.Args().First())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(script)
		},
	}
}
