package bootstrap

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/amd-rccl/anp-bootstrap/internal/natrules"
	"github.com/amd-rccl/anp-bootstrap/internal/tlv"
	"github.com/amd-rccl/anp-bootstrap/internal/topology"
	"github.com/amd-rccl/anp-bootstrap/internal/wire"
)

// RunLeaf drives the non-root half of the protocol: CONNECTING ->
// AWAITING_PROMPT -> SENDING -> AWAITING_COMPOSITE -> PROGRAMMING -> DONE.
func RunLeaf(ctx context.Context, log *zap.SugaredLogger, cfg *Settings, backend natrules.Backend, localHost topology.Host, rootIP netip.Addr) error {
	addr := netip.AddrPortFrom(rootIP, uint16(cfg.Bootstrap.Port))
	sock := tlv.Init(addr, HandshakeMagic)

	if err := connectWithRetry(ctx, sock, cfg.Bootstrap.Deadline); err != nil {
		return newErr(Fatal, fmt.Errorf("leaf connect: %w", err))
	}
	defer sock.Close()

	log.Infow("connected to root", "root", rootIP)

	typ, payload, err := tlv.RecvTLV(sock)
	if err != nil {
		return newErr(Protocol, fmt.Errorf("awaiting prompt: %w", err))
	}
	if typ != tlv.PlanarConfigRequest || len(payload) != 0 {
		return newErr(Protocol, fmt.Errorf("awaiting prompt: unexpected message %s (%d bytes)", typ, len(payload)))
	}

	encoded := wire.EncodeHost(localHost)
	if err := tlv.SendTLV(sock, tlv.ConfigResponse, encoded); err != nil {
		return newErr(Protocol, fmt.Errorf("sending config response: %w", err))
	}

	typ, payload, err = tlv.RecvTLV(sock)
	if err != nil {
		return newErr(Protocol, fmt.Errorf("awaiting composite: %w", err))
	}
	if typ != tlv.CompositeConfig {
		return newErr(Protocol, fmt.Errorf("awaiting composite: unexpected message type %s", typ))
	}

	db, err := wire.DecodeAllHosts(payload)
	if err != nil {
		return newErr(Protocol, fmt.Errorf("decoding composite: %w", err))
	}
	db.LocalIP = localHost.HostIP
	db.IndexRebuild()

	log.Infow("received composite config", "hosts", len(db.AllHosts))

	applied, skipped, warnings, errs := natrules.Program(ctx, backend, db, db.LocalIP)
	for _, e := range errs {
		log.Warnw("rule programming failed", "error", e)
	}
	log.Infow("rule programming done", "applied", applied, "skipped", skipped, "warnings", warnings)

	return nil
}

// connectWithRetry attempts to connect in a loop with one-second sleeps
// between attempts; retries are unbounded unless the operator has opted
// into the deadline config knob. Leaves starting before the root is
// listening is the intentional, expected case.
func connectWithRetry(ctx context.Context, sock *tlv.Socket, deadline time.Duration) error {
	op := func() (struct{}, error) {
		return struct{}{}, sock.Connect()
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	// WithMaxElapsedTime(0) disables the library's default elapsed-time cap.
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)),
		backoff.WithMaxElapsedTime(0),
	)
	return err
}
