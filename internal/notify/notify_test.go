package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashEditor/internal/history"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	second, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	event := Event{Type: EventSaved, Origin: history.OriginUserEdit, Revision: 3}
	require.NoError(t, hub.Publish(ctx, event))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, event, got)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHubClosesChannelOnCancel(t *testing.T) {
	hub := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, Event{Revision: 1}))
	require.NoError(t, hub.Publish(ctx, Event{Revision: 2}))

	got := <-ch
	assert.Equal(t, uint64(1), got.Revision)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var delivered []string
	okSink := SinkFunc(func(_ context.Context, e Event) error {
		delivered = append(delivered, e.Description)
		return nil
	})
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, Event) error { return boom })

	err := Multi{failing, nil, okSink}.Publish(context.Background(), Event{Description: "edit"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"edit"}, delivered)
}

func TestEventWireFormatOmitsContent(t *testing.T) {
	raw, err := json.Marshal(Event{Type: EventSaved, Content: "pages: []", Description: "Move widget"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pages")
	assert.Contains(t, string(raw), `"description":"Move widget"`)
}
