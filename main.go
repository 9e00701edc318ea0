package main

// main.go - entrypoint: starts the MCP server over stdio.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sanjit/dafny-mcp/internal/config"
	"github.com/sanjit/dafny-mcp/internal/dafny"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "dafny-mcp [flags] [-- dafny server args]",
	Short: "MCP server exposing Dafny verification gutters",
	Long: `dafny-mcp drives a Dafny language server over stdio and exposes per-line
verification status of open files to MCP clients.

Arguments after -- replace the server arguments from the config file.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	rootCmd.Flags().String("config", "", "path to "+config.FileName+" (default: search upwards from the working directory)")
	rootCmd.Flags().String("dafny", "", "dafny executable (overrides [server] command)")
	rootCmd.Flags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.Flags().Bool("no-watch", false, "do not re-sync open files when they change on disk")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the explicit config file, else the nearest one above the
// working directory, else the defaults.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	found, ok, err := config.Find(cwd)
	if err != nil {
		return config.Config{}, err
	}
	if !ok {
		return config.Default(), nil
	}
	return config.Load(found)
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("dafny"); v != "" {
		cfg.Server.Command = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v, _ := cmd.Flags().GetBool("no-watch"); v {
		cfg.Gutter.AutoSync = false
	}
	if len(args) > 0 {
		cfg.Server.Args = args
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger, &mcp.StdioTransport{})
}

// logSink reports applied gutters at debug level.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) UpdateGutter(status dafny.GutterStatus) {
	s.logger.Debug("gutter updated",
		slog.String("uri", status.URI),
		slog.Int("version", status.Version),
		slog.Uint64("seq", status.Sequence),
		slog.Bool("settled", status.Settled))
}

func newServer(sm *dafny.StateManager) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "dafny-mcp",
		Version: version,
	}, nil)
	registerTools(server, sm)
	return server
}

// serve runs the MCP server on transport until the client disconnects or ctx
// is cancelled, alongside the file watcher and metrics endpoint.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, transport mcp.Transport) error {
	opts := dafny.Options{
		Command:       cfg.Server.Command,
		Args:          cfg.Server.Args,
		NotifyTimeout: cfg.Server.NotifyTimeout.Duration,
		Logger:        logger,
		Sink:          logSink{logger: logger},
	}
	if cfg.Gutter.Cache {
		dir, err := cfg.CacheDir()
		if err == nil {
			opts.Cache, err = dafny.OpenGutterCache(dir)
		}
		if err != nil {
			logger.Warn("gutter cache disabled", slog.Any("error", err))
		}
	}
	sm := dafny.NewStateManager(opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Gutter.AutoSync {
		w, err := dafny.NewWatcher(sm, cfg.Gutter.Debounce.Duration, logger)
		if err != nil {
			return err
		}
		defer w.Close()
		sm.SetWatcher(w)
		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// The client going away ends everything else too.
		defer cancel()
		err := newServer(sm).Run(gctx, transport)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if serr := sm.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("shutdown", slog.Any("error", serr))
	}
	return err
}
