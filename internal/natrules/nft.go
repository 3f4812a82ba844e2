package natrules

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

const natTable = "nat"

// nftBackend renders rules as `nft add rule` invocations and materializes
// the nat table plus its three chains once per process, matching
// setup_nft_nat_table in the original.
type nftBackend struct {
	setupOnce sync.Once
	setupErr  error
}

func newNFTBackend() *nftBackend {
	return &nftBackend{}
}

func (b *nftBackend) Probe(ctx context.Context) error {
	return exec.CommandContext(ctx, "nft", "--version").Run()
}

func (b *nftBackend) ensureTable(ctx context.Context) error {
	b.setupOnce.Do(func() {
		b.setupErr = b.setupTable(ctx)
	})
	return b.setupErr
}

func (b *nftBackend) setupTable(ctx context.Context) error {
	cmds := [][]string{
		{"add", "table", "ip", natTable},
		{"add", "chain", "ip", natTable, "POSTROUTING", "{", "type", "nat", "hook", "postrouting", "priority", "100", ";", "}"},
		{"add", "chain", "ip", natTable, "OUTPUT", "{", "type", "nat", "hook", "output", "priority", "0", ";", "}"},
		{"add", "chain", "ip", natTable, "INPUT", "{", "type", "nat", "hook", "input", "priority", "0", ";", "}"},
	}

	for _, args := range cmds {
		if out, err := exec.CommandContext(ctx, "nft", args...).CombinedOutput(); err != nil {
			// "File exists" on a repeated add is not an error: the table
			// and chains may already be set up from a prior run.
			if !strings.Contains(string(out), "File exists") {
				return fmt.Errorf("natrules: nft setup %v failed: %w: %s", args, err, out)
			}
		}
	}

	return nil
}

func (b *nftBackend) Ensure(ctx context.Context, rule Rule) (Outcome, error) {
	if err := b.ensureTable(ctx); err != nil {
		return Skipped, err
	}

	ruleArgs := nftRuleSpec(rule)

	listOut, err := exec.CommandContext(ctx, "nft", "list", "chain", "ip", natTable, rule.Chain.String()).CombinedOutput()
	if err == nil && strings.Contains(string(listOut), strings.Join(ruleArgs, " ")) {
		return Skipped, nil
	}

	args := append([]string{"add", "rule", "ip", natTable, rule.Chain.String()}, ruleArgs...)
	out, err := exec.CommandContext(ctx, "nft", args...).CombinedOutput()
	if err != nil {
		return Applied, fmt.Errorf("natrules: nft add rule failed: %w: %s", err, out)
	}

	return Applied, nil
}

func (b *nftBackend) TeardownIfOwned(ctx context.Context, rule Rule) error {
	// nft has no direct "delete this exact rule" without a handle lookup;
	// tearing down owned rules requires listing handles first.
	out, err := exec.CommandContext(ctx, "nft", "-a", "list", "chain", "ip", natTable, rule.Chain.String()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("natrules: nft list for teardown failed: %w", err)
	}

	spec := strings.Join(nftRuleSpec(rule), " ")
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, spec) {
			continue
		}
		idx := strings.LastIndex(line, "handle")
		if idx < 0 {
			continue
		}
		handle := strings.TrimSpace(line[idx+len("handle"):])
		delErr := exec.CommandContext(ctx, "nft", "delete", "rule", "ip", natTable, rule.Chain.String(), "handle", handle).Run()
		if delErr != nil {
			return fmt.Errorf("natrules: nft delete rule failed: %w", delErr)
		}
	}

	return nil
}

func nftRuleSpec(rule Rule) []string {
	var args []string

	if rule.MatchSource.IsValid() {
		args = append(args, "ip", "saddr", rule.MatchSource.String())
	}
	if rule.MatchDestination.IsValid() {
		args = append(args, "ip", "daddr", rule.MatchDestination.String())
	}

	switch rule.IfaceDirection {
	case OutIface:
		args = append(args, "oifname", rule.Iface)
	case InIface:
		args = append(args, "iifname", rule.Iface)
	}

	switch rule.Action {
	case SNAT:
		args = append(args, "snat", "to", rule.ToSource.String())
	case DNAT:
		args = append(args, "dnat", "to", rule.ToDestination.String())
	}

	return args
}
