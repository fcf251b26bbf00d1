package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
)

func (ctl *Controller) handleMessage(id domain.ConnID, data []byte) {
	var p struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad message payload")
		return
	}
	ctl.Sessions.SendMessage(id, p.ID, p.Text)
}
