package main

// gutter-trace opens .dfy files in a Dafny language server, waits for their
// verification to settle and prints the resulting gutter of every file.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sanjit/dafny-mcp/internal/config"
	"github.com/sanjit/dafny-mcp/internal/dafny"
)

// errFailing makes the process exit non-zero without printing anything more.
var errFailing = errors.New("verification failed")

var rootCmd = &cobra.Command{
	Use:   "gutter-trace [flags] FILE... [-- dafny server args]",
	Short: "Print the verification gutter of Dafny files",
	Args: func(cmd *cobra.Command, args []string) error {
		if n := filesBeforeDash(cmd, args); n == 0 {
			return errors.New("at least one file is required")
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTrace,
}

func init() {
	rootCmd.Flags().String("format", "text", "output format: text, json or yaml")
	rootCmd.Flags().Duration("timeout", 2*time.Minute, "how long to wait for verification to settle")
	rootCmd.Flags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.Flags().String("dafny", "", "dafny executable (overrides the config file)")
	rootCmd.Flags().String("log-level", "warn", "log level for server traffic")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailing) {
			fmt.Fprintf(os.Stderr, "gutter-trace: %v\n", err)
		}
		os.Exit(1)
	}
}

func filesBeforeDash(cmd *cobra.Command, args []string) int {
	if n := cmd.ArgsLenAtDash(); n >= 0 {
		return n
	}
	return len(args)
}

func setupColor(mode string) error {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	default:
		return fmt.Errorf("unknown color mode %q (want auto, on or off)", mode)
	}
	return nil
}

// updateCounter counts applied gutters per document.
type updateCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *updateCounter) UpdateGutter(status dafny.GutterStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[status.URI]++
}

func (c *updateCounter) get(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[uri]
}

func runTrace(cmd *cobra.Command, args []string) error {
	colorMode, _ := cmd.Flags().GetString("color")
	if err := setupColor(colorMode); err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	level, _ := cmd.Flags().GetString("log-level")

	cfg := config.Default()
	if cwd, err := os.Getwd(); err == nil {
		if path, ok, err := config.Find(cwd); err != nil {
			return err
		} else if ok {
			if cfg, err = config.Load(path); err != nil {
				return err
			}
		}
	}
	if v, _ := cmd.Flags().GetString("dafny"); v != "" {
		cfg.Server.Command = v
	}
	n := filesBeforeDash(cmd, args)
	files := args[:n]
	if len(args) > n {
		cfg.Server.Args = args[n:]
	}

	logger, err := config.NewLogger(level)
	if err != nil {
		return err
	}
	counter := &updateCounter{counts: make(map[string]int)}
	sm := dafny.NewStateManager(dafny.Options{
		Command:       cfg.Server.Command,
		Args:          cfg.Server.Args,
		NotifyTimeout: cfg.Server.NotifyTimeout.Duration,
		Logger:        logger,
		Sink:          counter,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sm.Shutdown(ctx); err != nil {
			logger.Warn("shutdown", slog.Any("error", err))
		}
	}()

	start := time.Now()
	for _, f := range files {
		if err := sm.OpenDoc(f); err != nil {
			return fmt.Errorf("open %s: %w", f, err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			sm.Mu.Lock()
			doc, err := sm.GetDoc(f)
			sm.Mu.Unlock()
			if err != nil {
				return err
			}
			if err := dafny.WaitSettled(gctx, sm, doc); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%s: %w", f, err)
			}
			elapsed := time.Since(start)

			v, err := sm.View(f)
			if err != nil {
				return err
			}
			sm.Mu.Lock()
			diags := append([]dafny.Diagnostic(nil), doc.Diagnostics...)
			sm.Mu.Unlock()

			reports[i] = newFileReport(f, v, diags)
			reports[i].Updates = counter.get(v.URI)
			reports[i].Elapsed = elapsed.Round(time.Millisecond).String()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeReports(os.Stdout, format, reports); err != nil {
		return err
	}
	if failing(reports) {
		return errFailing
	}
	return nil
}
