package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinit/internal/domain"
)

func newLiveServer(t *testing.T, svc *fakeMapService) *httptest.Server {
	t.Helper()
	c := NewMapController(testLogger, svc)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Live(w, withViewer(r, "bob"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/map/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMapController_Live_PushesUpdates(t *testing.T) {
	svc := &fakeMapService{
		updates:   make(chan domain.FeedUpdate, 2),
		cancelled: make(chan struct{}),
	}
	conn := dial(t, newLiveServer(t, svc))

	svc.updates <- domain.FeedUpdate{Viewer: "bob", Generation: 4}
	svc.updates <- domain.FeedUpdate{Viewer: "bob", Generation: 5}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []uint64{4, 5} {
		var msg LiveMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MsgTypeFeedUpdated, msg.Type)
		assert.Equal(t, want, msg.Generation)
	}

	// Closing the client ends the subscription.
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	waitClosed(t, svc.cancelled)
}

func TestMapController_Live_ClosesWhenFeedEnds(t *testing.T) {
	svc := &fakeMapService{
		updates:   make(chan domain.FeedUpdate),
		cancelled: make(chan struct{}),
	}
	conn := dial(t, newLiveServer(t, svc))

	close(svc.updates)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	waitClosed(t, svc.cancelled)
}

func TestMapController_Live_RequiresViewer(t *testing.T) {
	c := NewMapController(testLogger, &fakeMapService{})
	rr := httptest.NewRecorder()

	c.Live(rr, httptest.NewRequest(http.MethodGet, "/map/live", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
