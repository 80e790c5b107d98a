package wsserver

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/events"
)

func TestRelay_StreamsEventsAsFrames(t *testing.T) {
	evtCh := make(chan events.Event, 2)
	evtCh <- events.NewStageStarted("analyze", 0, 3)
	evtCh <- events.NewComplete(map[string]any{"doc_id": "doc-1"}, "done")
	close(evtCh)

	cancelled := false
	handler := websocket.Handler(func(ws *websocket.Conn) {
		_ = Relay(ws, Session{Events: evtCh, Cancel: func() { cancelled = true }})
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	var frames []events.Frame
	for i := 0; i < 2; i++ {
		var raw string
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, websocket.Message.Receive(ws, &raw))
		var f events.Frame
		require.NoError(t, json.Unmarshal([]byte(raw), &f))
		frames = append(frames, f)
	}

	require.Len(t, frames, 2)
	assert.Equal(t, "stage_started", frames[0].EventType)
	assert.Equal(t, "complete", frames[1].EventType)
	assert.False(t, cancelled)
}

func TestRelay_DispatchesClientMessages(t *testing.T) {
	evtCh := make(chan events.Event)
	received := make(chan string, 1)

	handler := websocket.Handler(func(ws *websocket.Conn) {
		_ = Relay(ws, Session{
			Events: evtCh,
			OnClientMessage: func(raw []byte) error {
				received <- string(raw)
				return nil
			},
		})
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()
	defer close(evtCh)

	require.NoError(t, websocket.Message.Send(ws, `{"type":"resume","approved":true}`))

	select {
	case got := <-received:
		assert.Contains(t, got, "resume")
	case <-time.After(2 * time.Second):
		t.Fatal("server never dispatched the client message")
	}
}
