// Command anp-bootstrap runs the peer-discovery, topology-exchange and
// NAT-programming sequence for one host in a cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amd-rccl/anp-bootstrap/common/go/logging"
	"github.com/amd-rccl/anp-bootstrap/internal/bootstrap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var topologyPath string

	cmd := &cobra.Command{
		Use:   "anp-bootstrap <peer-list-file>",
		Short: "Run the bootstrap peer-discovery and NAT-programming sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], topologyPath, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file for ambient knobs")
	cmd.Flags().StringVar(&topologyPath, "topology", bootstrap.DefaultTopologyPath, "path to this host's topology JSON descriptor")

	return cmd
}

func run(ctx context.Context, peerListPath, topologyPath, configPath string) error {
	cfg := bootstrap.DefaultSettings()
	if configPath != "" {
		loaded, err := bootstrap.LoadSettings(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log, _, err := logging.Init(&logging.Config{Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := waitForShutdownSignal(ctx)
		if sig != nil {
			log.Infow("shutting down", "signal", sig)
			cancel()
		}
	}()

	return bootstrap.Run(ctx, log, cfg, peerListPath, topologyPath)
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM arrives or ctx is
// canceled for some other reason, in which case it returns nil: the
// caller's bootstrap.Run call already has its own error to report and
// doesn't need a redundant cancel.
func waitForShutdownSignal(ctx context.Context) os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		return sig
	case <-ctx.Done():
		return nil
	}
}
