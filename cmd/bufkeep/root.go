package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/bufkeep/internal/app"
	"github.com/dshills/bufkeep/internal/config"
	"github.com/dshills/bufkeep/internal/worker"
)

var (
	cfgFile  string
	logLevel string
	sets     []string
	cfg      *config.Config
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bufkeep",
		Short:         "Buffer table, background file jobs and sessions",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			for _, kv := range sets {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--set %q: want key=value", kv)
				}
				if err := loaded.Set(key, value); err != nil {
					return err
				}
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringArrayVar(&sets, "set", nil, "override a setting, e.g. --set worker.chunk.size=4096")

	rootCmd.AddCommand(NewOpenCmd())
	rootCmd.AddCommand(NewConvertCmd())
	rootCmd.AddCommand(NewSessionCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// withApp runs fn against a fresh application and shuts it down afterwards.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(fn func(ctx context.Context, a *app.Application) error) error {
	a, err := app.New(cfg, app.WithoutWatcher())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, a)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// settle waits for every pending file job and returns the first failure.
func settle(ctx context.Context, a *app.Application) error {
	results, err := a.Wait(ctx)
	for _, r := range results {
		if r.State == worker.StateFailed && err == nil {
			err = r.Err
		}
	}
	return err
}

// waitWithProgress is Wait with a progress line drawn on w while it is a
// terminal.
func waitWithProgress(ctx context.Context, a *app.Application, w io.Writer) ([]app.Result, error) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.Wait(ctx)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var results []app.Result
	drawn := false
	for a.Pending() > 0 {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-ticker.C:
		}
		results = append(results, a.Poll()...)
		if n, ok := a.Progress(); ok && n.Job != nil {
			fmt.Fprintf(f, "\r\033[K%s %s %3.0f%%", n.Job.Op(), filepath.Base(n.Job.Path()), n.Job.Percent())
			drawn = true
		}
	}
	if drawn {
		fmt.Fprint(f, "\r\033[K")
	}
	return results, nil
}
