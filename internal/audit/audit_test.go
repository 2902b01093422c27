package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobilefix/internal/audit"
	"mobilefix/pkg/requestcontext"
)

func TestPipelineDeliversEvents(t *testing.T) {
	store := audit.NewMemoryStore()
	publisher, worker := audit.NewPipeline(store, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	emitCtx := requestcontext.WithRequestID(context.Background(), "req-1")
	publisher.Emit(emitCtx, audit.Event{
		Action:   audit.ActionRepairCreated,
		Entity:   "repair",
		EntityID: "abc",
	})
	publisher.Drain(time.Second)

	require.Eventually(t, func() bool {
		events, err := store.ListByEntity(context.Background(), "repair", "abc")
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListByEntity(context.Background(), "repair", "abc")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionRepairCreated, events[0].Action)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp stamped on emit")

	cancel()
	<-done
}

func TestEmitDropsWhenInboxFull(t *testing.T) {
	store := audit.NewMemoryStore()
	publisher, _ := audit.NewPipeline(store, 1)

	ctx := context.Background()
	publisher.Emit(ctx, audit.Event{Action: audit.ActionUserCreated})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No worker running, so this must not block.
		publisher.Emit(ctx, audit.Event{Action: audit.ActionUserDeleted})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full inbox")
	}
}

func TestMemoryStoreListRecent(t *testing.T) {
	store := audit.NewMemoryStore()
	ctx := context.Background()

	for _, action := range []string{audit.ActionUserCreated, audit.ActionDeviceCreated, audit.ActionRepairCreated} {
		require.NoError(t, store.Append(ctx, audit.Event{Action: action}))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, audit.ActionDeviceCreated, recent[0].Action)
	assert.Equal(t, audit.ActionRepairCreated, recent[1].Action)

	all, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
