package eventfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJsonRoundTrip(t *testing.T) {
	ev := &Event{Kind: KindRangeAdjusted, UpdateIndex: "20240304-S100", Time: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	got := EventFromJsonBytes(ev.ToJsonBytes())
	require.NotNil(t, got)
	assert.Equal(t, *ev, *got)

	assert.Nil(t, EventFromJsonBytes([]byte(`{"foo":1}`)))
	assert.Nil(t, EventFromJsonBytes([]byte(`not json`)))
}

func TestListenerReceivesPublishedEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *Event, 1)
	stopped := make(chan error, 1)
	go func() {
		stopped <- StartListener(ctx, strings.TrimPrefix(srv.URL, "http://"), func(ev *Event) {
			received <- ev
		})
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.Publish(Event{Kind: KindStaffCalibrated, StaffNumber: "S100"})

	select {
	case ev := <-received:
		assert.Equal(t, KindStaffCalibrated, ev.Kind)
		assert.Equal(t, "S100", ev.StaffNumber)
		assert.False(t, ev.Time.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func httpHandler(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}
