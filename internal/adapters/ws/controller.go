// Package ws is the realtime transport adapter: it upgrades authenticated
// HTTP requests to WebSocket connections and dispatches the JSON envelope
// protocol to the session service.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/auth"
	"github.com/okulov/Relay/internal/config"
	"github.com/okulov/Relay/internal/domain"
	"github.com/okulov/Relay/internal/hub"
	"github.com/okulov/Relay/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Auth     *auth.Manager
	Hub      *hub.Hub
	Sessions *session.Service
	Cfg      *config.Config
}

func NewController(a *auth.Manager, h *hub.Hub, s *session.Service, cfg *config.Config) *Controller {
	return &Controller{Auth: a, Hub: h, Sessions: s, Cfg: cfg}
}

// HandleChat authenticates the handshake and hands the socket over to the
// read/write pumps. A rejected credential never reaches Connected state:
// the request is refused with 401 before the upgrade, no state is created.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	username, err := ctl.Auth.Verify(handshakeToken(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("handshake rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	socket.SetReadLimit(ctl.Cfg.ReadLimit)

	id := domain.ConnID(uuid.NewString())
	conn := newConn(socket, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)

	ctl.Hub.Attach(id, conn)
	log.Info().Str("module", "ws").Str("conn", string(id)).
		Str("user", username).Msg("new connection")

	go ctl.writePump(ctx, conn)
	ctl.Sessions.Connect(id, username)
	go ctl.readPump(ctx, cancel, id, username, conn)
}

// handshakeToken takes the credential from the token query parameter, with
// an Authorization: Bearer fallback for clients that can set headers.
func handshakeToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
