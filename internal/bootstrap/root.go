package bootstrap

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/amd-rccl/anp-bootstrap/internal/natrules"
	"github.com/amd-rccl/anp-bootstrap/internal/tlv"
	"github.com/amd-rccl/anp-bootstrap/internal/topology"
	"github.com/amd-rccl/anp-bootstrap/internal/wire"
)

// peerConn pairs an accepted connection with the peer address observed at
// accept time, the getpeername-equivalent used only for logging.
type peerConn struct {
	sock *tlv.Socket
	addr netip.Addr
}

// RunRoot drives the root half of the protocol: LISTENING -> AWAITING_LEAVES(k)
// -> PROMPTING -> COLLECTING(k) -> MERGING -> DISTRIBUTING -> PROGRAMMING ->
// DONE. backend is injected rather than selected here, so the NAT step is a
// policy the caller (Run) decides once, not a concern the state machine
// re-derives.
func RunRoot(ctx context.Context, log *zap.SugaredLogger, cfg *Settings, backend natrules.Backend, localHost topology.Host, peerCount int) error {
	db := topology.NewHostDB()
	db.LocalIP = localHost.HostIP
	db.AllHosts[localHost.HostIP] = localHost

	bindIP, err := netip.ParseAddr(localHost.HostIP)
	if err != nil {
		return newErr(Config, fmt.Errorf("root bind: invalid local host IP %q: %w", localHost.HostIP, err))
	}

	addr := netip.AddrPortFrom(bindIP, uint16(cfg.Bootstrap.Port))
	listener := tlv.Init(addr, HandshakeMagic)
	if err := listener.Listen(); err != nil {
		return newErr(Fatal, fmt.Errorf("root bind: %w", err))
	}
	defer listener.Close()

	k := peerCount - 1
	log.Infow("root listening", "port", cfg.Bootstrap.Port, "awaiting", k)

	conns, err := awaitLeaves(ctx, log, listener, k, cfg.Bootstrap.Deadline)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range conns {
			c.sock.Close()
		}
	}()

	log.Infow("all leaves joined, prompting")
	for _, c := range conns {
		if err := tlv.SendTLV(c.sock, tlv.PlanarConfigRequest, nil); err != nil {
			log.Warnw("prompt send failed", "peer", c.addr, "error", err)
		}
	}

	collect(log, conns, db)

	db.IndexRebuild()

	composite := wire.EncodeAllHosts(db)
	log.Infow("distributing composite config", "hosts", len(db.AllHosts))
	for _, c := range conns {
		if err := tlv.SendTLV(c.sock, tlv.CompositeConfig, composite); err != nil {
			log.Warnw("composite send failed", "peer", c.addr, "error", err)
		}
	}

	applied, skipped, warnings, errs := natrules.Program(ctx, backend, db, db.LocalIP)
	for _, e := range errs {
		log.Warnw("rule programming failed", "error", e)
	}
	log.Infow("rule programming done", "applied", applied, "skipped", skipped, "warnings", warnings)

	return nil
}

// awaitLeaves accepts exactly k connections, retrying transient accept
// errors with an unbounded backoff.NewConstantBackOff unless deadline is
// nonzero.
func awaitLeaves(ctx context.Context, log *zap.SugaredLogger, listener *tlv.Socket, k int, deadline time.Duration) ([]peerConn, error) {
	conns := make([]peerConn, 0, k)

	for len(conns) < k {
		sock, err := acceptWithRetry(ctx, listener, deadline)
		if err != nil {
			return nil, newErr(Fatal, fmt.Errorf("accept leaf: %w", err))
		}

		peerAddr, _ := sock.PeerAddr()
		log.Infow("leaf joined", "peer", peerAddr, "remaining", k-len(conns)-1)
		conns = append(conns, peerConn{sock: sock, addr: peerAddr})
	}

	return conns, nil
}

func acceptWithRetry(ctx context.Context, listener *tlv.Socket, deadline time.Duration) (*tlv.Socket, error) {
	op := func() (*tlv.Socket, error) {
		return listener.Accept()
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	// MaxTries is left unset and the library's default elapsed-time cap is
	// disabled: accept retries are unbounded unless the operator has opted
	// into the bounded-deadline config knob, in which case the context
	// above cuts the loop short instead.
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)),
		backoff.WithMaxElapsedTime(0),
	)
}

// collect fans out one receiver goroutine per connection. A sync.WaitGroup
// is used rather than errgroup.Group: one peer's protocol failure must not
// cancel the other receivers, but a plain errgroup.Group cancels its
// derived context on the first error.
func collect(log *zap.SugaredLogger, conns []peerConn, db *topology.HostDB) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, c := range conns {
		wg.Add(1)
		go func(c peerConn) {
			defer wg.Done()

			typ, payload, err := tlv.RecvTLV(c.sock)
			if err != nil {
				log.Warnw("collecting: recv failed", "peer", c.addr, "error", err)
				return
			}
			if typ != tlv.ConfigResponse {
				log.Warnw("collecting: unexpected message type", "peer", c.addr, "type", typ)
				return
			}

			host, n, err := wire.DecodeHost(payload, 0)
			if err != nil {
				log.Warnw("collecting: decode failed", "peer", c.addr, "error", err)
				return
			}
			if n != len(payload) {
				log.Warnw("collecting: trailing bytes after host record", "peer", c.addr, "consumed", n, "total", len(payload))
				return
			}

			mu.Lock()
			db.AllHosts[host.HostIP] = host
			mu.Unlock()
		}(c)
	}

	wg.Wait()
}
