package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bellwether-labs/sando/internal/bundlebuild"
	"github.com/bellwether-labs/sando/internal/obs"
)

// Fanout submits one bundle to every configured relay in parallel and
// treats the first inclusion signal as authoritative (spec.md §6 "the
// builder fan-outs to N relay endpoints in parallel and treats the first
// inclusion signal as authoritative").
type Fanout struct {
	relays []Relay
	log    *obs.Logger
}

func NewFanout(relays []Relay, log *obs.Logger) *Fanout {
	return &Fanout{relays: relays, log: log.For("relay.fanout")}
}

// Submit sends bundle to every relay and blocks until either some relay
// reports Included, or every relay has reported a terminal (non-Included)
// outcome.
func (f *Fanout) Submit(ctx context.Context, bundle *bundlebuild.Bundle) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// submissionID ties together the per-relay log lines of one fan-out
	// round, since every relay logs independently and concurrently.
	submissionID := uuid.New().String()

	results := make(chan Outcome, len(f.relays))
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range f.relays {
		r := r
		g.Go(func() error {
			pending, err := r.SubmitBundle(gctx, bundle)
			if err != nil {
				f.log.Warn("bundle submission failed", "submission_id", submissionID, "relay", r.Name(), "err", err)
				results <- Error
				return nil
			}
			outcome, err := pending.Await(gctx)
			if err != nil {
				f.log.Warn("await failed", "submission_id", submissionID, "relay", r.Name(), "err", err)
				results <- Error
				return nil
			}
			f.log.Info("relay outcome", "submission_id", submissionID, "relay", r.Name(), "outcome", outcome.String())
			results <- outcome
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	seen := 0
	for outcome := range results {
		seen++
		if outcome == Included {
			cancel()
			return Included, nil
		}
		if seen == len(f.relays) {
			break
		}
	}
	if len(f.relays) == 0 {
		return Error, fmt.Errorf("relay: no relays configured")
	}
	return NotIncluded, nil
}
