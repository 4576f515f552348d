// internal/httpapi/events.go
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/modbus-client/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// events streams client state events as JSON text frames. Slow sockets
// lose events rather than holding up the bus.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	queue := make(chan status.Event, s.cfg.EventBuffer)
	unsubscribe := s.client.Subscribe(func(ev status.Event) {
		select {
		case queue <- ev:
		default:
		}
	})
	defer unsubscribe()

	// reader: detect close, discard input
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
