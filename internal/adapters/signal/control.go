package signal

func (ctl *LobbyWSController) handlePing(conn *WsLobbyConn) {
	resp := struct {
		Command string `json:"command"`
	}{
		Command: "pong",
	}
	ctl.sendJSON(conn, resp)
}
