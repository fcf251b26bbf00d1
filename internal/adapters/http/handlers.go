package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/auth"
	"github.com/okulov/Relay/internal/domain"
	"github.com/okulov/Relay/internal/history"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

type loginResponse struct {
	OK       bool   `json:"ok"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

type historyItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// handleLogin exchanges a username for a signed token. There are no
// accounts: any non-empty name gets a credential.
func handleLogin(mgr *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}
		username, err := domain.ParseUsername(req.Username)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := mgr.Issue(username)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("token issue failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}
		c.JSON(http.StatusOK, loginResponse{OK: true, Token: token, Username: username})
	}
}

// AuthMiddleware guards the non-realtime surface with the same credentials
// the websocket handshake accepts.
func AuthMiddleware(mgr *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		username, err := mgr.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("username", username)
		c.Next()
	}
}

// handleHistory serves the bounded per-room history query, oldest first.
func handleHistory(hist *history.Store, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := strings.TrimSpace(c.Query("room"))
		if room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room query required"})
			return
		}

		msgs, err := hist.LastN(c.Request.Context(), room, limit)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").
				Str("room", room).Msg("history query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}

		out := make([]historyItem, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, historyItem{ID: m.ID, Name: m.Name, Text: m.Text, Time: m.Time})
		}
		c.JSON(http.StatusOK, out)
	}
}
