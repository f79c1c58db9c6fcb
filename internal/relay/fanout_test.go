package relay

import (
	"context"
	"testing"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/bellwether-labs/sando/internal/bundlebuild"
	"github.com/bellwether-labs/sando/internal/obs"
)

type fakePendingBundle struct {
	outcome Outcome
	err     error
}

func (f fakePendingBundle) Await(ctx context.Context) (Outcome, error) { return f.outcome, f.err }

type fakeRelay struct {
	name    string
	outcome Outcome
}

func (f fakeRelay) Name() string { return f.name }
func (f fakeRelay) SubmitBundle(ctx context.Context, bundle *bundlebuild.Bundle) (PendingBundle, error) {
	return fakePendingBundle{outcome: f.outcome}, nil
}

func TestFanout_FirstInclusionWins(t *testing.T) {
	log := obs.NewLogger(gethlog.LvlCrit)
	f := NewFanout([]Relay{
		fakeRelay{name: "a", outcome: NotIncluded},
		fakeRelay{name: "b", outcome: Included},
	}, log)

	outcome, err := f.Submit(context.Background(), &bundlebuild.Bundle{})
	require.NoError(t, err)
	require.Equal(t, Included, outcome)
}

func TestFanout_AllNotIncluded(t *testing.T) {
	log := obs.NewLogger(gethlog.LvlCrit)
	f := NewFanout([]Relay{
		fakeRelay{name: "a", outcome: NotIncluded},
		fakeRelay{name: "b", outcome: NotIncluded},
	}, log)

	outcome, err := f.Submit(context.Background(), &bundlebuild.Bundle{})
	require.NoError(t, err)
	require.Equal(t, NotIncluded, outcome)
}

func TestFanout_NoRelaysConfigured(t *testing.T) {
	log := obs.NewLogger(gethlog.LvlCrit)
	f := NewFanout(nil, log)

	_, err := f.Submit(context.Background(), &bundlebuild.Bundle{})
	require.Error(t, err)
}
