package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/okulov/Relay/internal/domain"
)

func (ctl *Controller) handleEnterRoom(ctx context.Context, id domain.ConnID, username string, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad enterRoom payload")
		return
	}
	ctl.Sessions.EnterRoom(ctx, id, username, p.Room)
}
