package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pinit/internal/delivery/http/helpers"
	"pinit/internal/delivery/http/middleware"
)

// MsgTypeFeedUpdated is pushed whenever the viewer's feed changes.
const MsgTypeFeedUpdated = "feed_updated"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Connections authenticate by token, not origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveMessage is one websocket push.
type LiveMessage struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`
}

// Live godoc
// @Summary Live feed updates
// @Description Upgrades to a websocket that pushes {"type":"feed_updated","generation":n} when the viewer's feed changes. Browsers may pass the token as access_token.
// @Tags map
// @Security BearerAuth
// @Param access_token query string false "JWT when the Authorization header cannot be set"
// @Success 101 "switching protocols"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /map/live [get]
func (c *MapController) Live(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.Logger.WarnContext(r.Context(), "websocket upgrade failed", "viewer", viewer, "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := c.Service.Subscribe(viewer)
	defer cancel()

	// Clients only send control frames; reading is needed to process pongs and notice closes.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	c.Logger.DebugContext(r.Context(), "live feed connected", "viewer", viewer)
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(LiveMessage{Type: MsgTypeFeedUpdated, Generation: upd.Generation}); err != nil {
				c.Logger.DebugContext(r.Context(), "live feed write failed", "viewer", viewer, "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			c.Logger.DebugContext(r.Context(), "live feed disconnected", "viewer", viewer)
			return
		}
	}
}
