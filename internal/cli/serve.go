package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose pool and runtime metrics over HTTP",
		Long: `Open the database and serve Prometheus metrics on /metrics until
interrupted: connection pool statistics (lanatus_db_*) plus Go runtime and
process metrics. Engine and cache counters belong to the processes doing the
work and are logged by each command with --verbose.

Example:
  lanatus serve --listen 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides metrics.listen)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a, err := openApp(ctx, cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	listen := a.cfg.Metrics.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}
	if listen == "" {
		return NewExitError(ExitCommandError, "no listen address: set metrics.listen or --listen")
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.serveRegistry(), promhttp.HandlerOpts{
		ErrorLog: &promLogger{log: a.log},
	}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.log.Info("serving metrics", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s/metrics\n", ln.Addr())

	select {
	case err := <-errCh:
		return WrapExitError(ExitFailure, "metrics server failed", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "metrics server failed", err)
	}

	a.log.Info("stopped gracefully")
	return nil
}

// promLogger adapts slog to promhttp.Logger.
type promLogger struct {
	log *slog.Logger
}

func (l *promLogger) Println(v ...interface{}) {
	l.log.Error(fmt.Sprint(v...))
}
