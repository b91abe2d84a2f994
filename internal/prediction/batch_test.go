package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchItems(symbols ...string) []Item {
	items := make([]Item, 0, len(symbols))
	for _, s := range symbols {
		items = append(items, Item{Symbol: s, Series: richSeries(s)})
	}
	return items
}

func TestBatchPredictsAllSymbols(t *testing.T) {
	bridge := NewBridge(nil, nil, nil, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 3, time.Second, zerolog.Nop())

	items := batchItems("AAA", "BBB", "CCC", "DDD", "EEE")

	var calls int
	var lastDone, lastTotal int
	outcomes := predictor.Run(context.Background(), items, nil, func(done, total int, _ Outcome) {
		calls++
		lastDone, lastTotal = done, total
	})

	require.Len(t, outcomes, 5)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, lastDone)
	assert.Equal(t, 5, lastTotal)

	seen := make(map[string]bool)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, o.Symbol, o.Record.Symbol)
		seen[o.Symbol] = true
	}
	assert.Len(t, seen, 5)
}

func TestBatchContinuesPastFailures(t *testing.T) {
	bridge := NewBridge(nil, nil, nil, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 2, time.Second, zerolog.Nop())

	items := batchItems("AAA", "BBB")
	items = append(items, Item{Symbol: "BROKEN"}) // no series

	outcomes := predictor.Run(context.Background(), items, nil, nil)
	require.Len(t, outcomes, 3)

	failures := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
			assert.Equal(t, "BROKEN", o.Symbol)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestBatchCooperativeCancellation(t *testing.T) {
	bridge := NewBridge(nil, nil, nil, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 1, time.Second, zerolog.Nop())

	cancelled := func() bool { return true }
	outcomes := predictor.Run(context.Background(), batchItems("AAA", "BBB"), cancelled, nil)
	assert.Empty(t, outcomes)
}

func TestBatchContextCancellation(t *testing.T) {
	bridge := NewBridge(nil, nil, nil, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 1, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := predictor.Run(ctx, batchItems("AAA", "BBB"), nil, nil)
	assert.Empty(t, outcomes)
}

func TestBatchPerSymbolTimeout(t *testing.T) {
	// A hung news source must degrade that symbol's sentiment, never hang
	// or fail the batch.
	bridge := NewBridge(nil, NewLexiconSentimentModel(), blockingNews{}, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 2, 20*time.Millisecond, zerolog.Nop())

	outcomes := predictor.Run(context.Background(), batchItems("AAA"), nil, nil)

	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	require.Len(t, outcomes[0].Record.Models, 2)
	assert.False(t, outcomes[0].Record.Models[1].Available)
}

func TestBatchEmptyUniverse(t *testing.T) {
	bridge := NewBridge(nil, nil, nil, zerolog.Nop())
	predictor := NewBatchPredictor(bridge, 4, time.Second, zerolog.Nop())
	assert.Nil(t, predictor.Run(context.Background(), nil, nil, nil))
}
