package ws

import "encoding/json"

func (ctl *Controller) handlePing(c *conn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.TrySend(data)
}
