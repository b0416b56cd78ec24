package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/harun/plughost/pkg/capability"
	"github.com/harun/plughost/pkg/host"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the plugin host",
	Long: `Start the plugin host in the foreground. Plugins are discovered,
standard schemes registered, protocols activated and web APIs exported.
Messages sent by plugins are broadcast to websocket clients connected to
the shell endpoint. The host runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	shell := host.NewShell(rt.metrics, rt.logger)
	defer shell.Close()

	var opts []host.LogHostOption
	if rt.cfg.Shell.Enabled {
		opts = append(opts, host.WithMessenger(shell))
	}
	h := host.NewLogHost(rt.logger, opts...)

	srv, serveErr := startServer(rt, shell)

	startup := capability.NewStartup(rt.index, h, rt.metrics, rt.logger, capability.StartupConfig{
		ContinueOnActivationFailure: rt.cfg.Startup.ContinueOnActivationFailure,
	})
	if err := startup.Run(ctx); err != nil {
		shutdownServer(srv)
		return fmt.Errorf("startup failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plughost started with %d plugin(s), %d channel(s) exported\n",
		rt.discoverer.Registry().Count(), len(h.Channels()))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		shutdownServer(srv)
		return fmt.Errorf("server failed: %w", err)
	}

	rt.logger.Info().Msg("Shutting down")
	shutdownServer(srv)
	return nil
}

// startServer serves the shell and metrics endpoints. It returns a nil
// server when neither is enabled.
func startServer(rt *runtime, shell *host.Shell) (*http.Server, <-chan error) {
	errCh := make(chan error, 1)
	if !rt.cfg.Shell.Enabled && !rt.cfg.Metrics.Enabled {
		return nil, errCh
	}

	mux := http.NewServeMux()
	if rt.cfg.Shell.Enabled {
		mux.Handle("/shell", shell.Handler())
	}
	if rt.cfg.Metrics.Enabled {
		mux.Handle(rt.cfg.Metrics.Path, rt.metrics.Handler())
	}

	addr := net.JoinHostPort(rt.cfg.Shell.Host, strconv.Itoa(rt.cfg.Shell.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		rt.logger.Info().Str("addr", addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return srv, errCh
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
