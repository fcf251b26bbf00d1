package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
)

func (ctl *Controller) handleTyping(id domain.ConnID, data []byte) {
	var p struct {
		Type     string `json:"type"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad typing payload")
		return
	}
	ctl.Sessions.Typing(id, p.IsTyping)
}
