package engine

import (
	"context"
	"strconv"

	"github.com/bellwether-labs/sando/internal/obs"
	"github.com/bellwether-labs/sando/internal/relay"
)

// runExecutor consumes actions and drives external I/O: relay submission
// (spec.md §4.8 "Executors consume actions and drive external I/O").
func runExecutor(ctx context.Context, actions <-chan Action, fanout *relay.Fanout, nonces *NonceTracker, alerter obs.Alerter, log *obs.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-actions:
			if !ok {
				return nil
			}
			submit, ok := action.(SubmitToFlashbotsAction)
			if !ok {
				continue
			}
			outcome, err := fanout.Submit(ctx, submit.Bundle.Bundle)
			if err != nil {
				log.Warn("relay submission failed", "pool", submit.Bundle.Pool, "err", err)
				continue
			}
			if outcome == relay.Included {
				nonces.ConfirmIncluded()
				log.Info("bundle included", "pool", submit.Bundle.Pool, "target_block", submit.Bundle.Bundle.TargetBlock)
				_ = alerter.Alert(ctx, "bundle_included", map[string]string{
					"pool":         submit.Bundle.Pool.Hex(),
					"target_block": strconv.FormatUint(submit.Bundle.Bundle.TargetBlock, 10),
				})
			}
		}
	}
}
