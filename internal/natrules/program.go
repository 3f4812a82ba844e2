package natrules

import (
	"context"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

// Program derives every rule implied by db for localIP and ensures each
// one through backend, in the mandated local-before-remote order. Errors
// from Ensure are logged by the caller and accumulated into a non-fatal
// warning count; programming continues with the remaining rules
// regardless of any single failure.
func Program(ctx context.Context, backend Backend, db *topology.HostDB, localIP string) (applied, skipped, warnings int, errs []error) {
	for _, rule := range Derive(db, localIP) {
		outcome, err := backend.Ensure(ctx, rule)
		if err != nil {
			warnings++
			errs = append(errs, err)
			continue
		}

		switch outcome {
		case Applied:
			applied++
		case Skipped:
			skipped++
		}
	}

	return applied, skipped, warnings, errs
}
