package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amd-rccl/anp-bootstrap/internal/natrules"
	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

// Run reads the peer list and local topology, elects a root, and drives
// either RunRoot or RunLeaf depending on the outcome, exactly the control
// flow C4 owns: election -> exchange -> C5 programming on this host.
func Run(ctx context.Context, log *zap.SugaredLogger, cfg *Settings, peerListPath, topologyPath string) error {
	peers, err := ParsePeerList(peerListPath)
	if err != nil {
		return err
	}

	local, err := LocalAddrs()
	if err != nil {
		return err
	}

	localIP, err := FindLocalIP(peers, local)
	if err != nil {
		return err
	}

	localHost, err := LoadTopology(topologyPath)
	if err != nil {
		return err
	}
	if localHost.HostIP == "" {
		localHost = topology.NewHost(localHost.HostName, localIP.String(), localHost.Devices)
	}

	backend, err := natrules.Select(ctx, cfg.NAT.Backend)
	if err != nil {
		return newErr(Backend, err)
	}

	root := ElectRoot(peers)
	log.Infow("root elected", "root", root, "local", localIP, "peers", len(peers))

	if root == localIP {
		return RunRoot(ctx, log, cfg, backend, localHost, len(peers))
	}

	if err := RunLeaf(ctx, log, cfg, backend, localHost, root); err != nil {
		return fmt.Errorf("leaf bootstrap: %w", err)
	}
	return nil
}
