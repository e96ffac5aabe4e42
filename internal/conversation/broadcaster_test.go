// ABOUTME: Tests for the change Broadcaster fan-out
// ABOUTME: Covers subscribe, publish, unsubscribe, re-keying, context cancellation, concurrency

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeChange(convID string, version uint64) Change {
	return Change{ConversationID: convID, Version: version, Reason: ChangeRecord}
}

func TestBroadcaster_SingleSubscriberReceivesChange(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "conv-1")
	b.Publish(makeChange("conv-1", 1))

	select {
	case received := <-ch:
		assert.Equal(t, uint64(1), received.Version)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameChange(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "conv-1")
	ch2, _ := b.Subscribe(ctx, "conv-1")

	b.Publish(makeChange("conv-1", 7))

	for i, ch := range []<-chan Change{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, uint64(7), received.Version, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_ConversationsAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "conv-1")
	ch2, _ := b.Subscribe(t.Context(), "conv-2")

	b.Publish(makeChange("conv-1", 1))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("conv-1 subscriber timed out")
	}

	select {
	case c := <-ch2:
		t.Fatalf("conv-2 subscriber got unexpected change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "conv-1")
	b.Unsubscribe("conv-1", subID)

	_, open := <-ch
	assert.False(t, open)

	// Unknown subscriptions are ignored.
	b.Unsubscribe("conv-1", subID)
	b.Unsubscribe("nope", "nope")
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "conv-1")
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "conv-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(makeChange("conv-1", uint64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_MoveRekeysSubscriptions(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "old")
	b.Move("old", "new")

	b.Publish(makeChange("old", 1))
	b.Publish(makeChange("new", 2))

	select {
	case c := <-ch:
		assert.Equal(t, "new", c.ConversationID)
	case <-time.After(time.Second):
		t.Fatal("moved subscriber timed out")
	}

	b.Unsubscribe("old", subID)
	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcaster_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			b.Subscribe(ctx, "conv-1")
		}()
		go func(v int) {
			defer wg.Done()
			b.Publish(makeChange("conv-1", uint64(v)))
		}(i)
	}
	wg.Wait()
	require.NotPanics(t, func() { b.Publish(makeChange("conv-1", 99)) })
}
