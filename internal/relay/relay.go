// Package relay is the relay contract of spec.md §6: submit_bundle and the
// fan-out-to-N, first-signal-wins policy. Each relay client authenticates
// with an independent bundle-signing keypair, following flashbots' own
// X-Flashbots-Signature convention.
package relay

import (
	"context"

	"github.com/bellwether-labs/sando/internal/bundlebuild"
)

// Outcome is the tri-state result of awaiting a submitted bundle.
type Outcome int

const (
	Included Outcome = iota
	NotIncluded
	Error
)

func (o Outcome) String() string {
	switch o {
	case Included:
		return "included"
	case NotIncluded:
		return "not_included"
	default:
		return "error"
	}
}

// PendingBundle is the handle a submission returns; Await blocks until the
// target block has passed and reports whether the bundle landed.
type PendingBundle interface {
	Await(ctx context.Context) (Outcome, error)
}

// Relay is one relay endpoint's submission contract (spec.md §6).
type Relay interface {
	Name() string
	SubmitBundle(ctx context.Context, bundle *bundlebuild.Bundle) (PendingBundle, error)
}
