package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
)

const writeTimeout = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *conn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.socket.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes the connection's events sequentially, which serializes
// all session operations for this connection. Its exit is the single place
// disconnect teardown runs, so Disconnect fires exactly once.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, username string, c *conn) {
	defer func() {
		cancel()
		c.Close()
		ctl.Hub.Detach(id)
		ctl.Sessions.Disconnect(id)
		log.Info().Str("module", "ws").Str("conn", string(id)).Msg("readPump closing")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.socket.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleEvent(ctx, id, username, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(ctx context.Context, id domain.ConnID, username string, c *conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad json")
		return
	}

	switch env.Type {
	case "enterRoom":
		ctl.handleEnterRoom(ctx, id, username, data)
	case "message":
		ctl.handleMessage(id, data)
	case "typing":
		ctl.handleTyping(id, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
	}
}
