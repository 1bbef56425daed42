package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepHistoryRespectsTTL(t *testing.T) {
	mock := clock.NewMock()
	bus, err := New(&Config{HistoryTTL: time.Minute}, WithClock(mock))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, Event{Topic: "beat.added", Payload: "old"}))
	require.NoError(t, bus.Publish(ctx, Event{Topic: "beat.removed", Payload: "old"}))

	mock.Add(2 * time.Minute)
	require.NoError(t, bus.Publish(ctx, Event{Topic: "beat.added", Payload: "fresh"}))

	mock.Add(30 * time.Second)
	bus.sweepHistory()

	history := bus.History("beat.added")
	require.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].Payload)

	// Topics whose entries all aged out disappear from the history map.
	assert.Empty(t, bus.History("beat.removed"))
}
