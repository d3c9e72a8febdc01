package web

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// socketMessage is the envelope for both directions of the stats socket.
type socketMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// statsSocket upgrades to a WebSocket, greets with "connected" and answers
// every "request_stats" with a fresh "stats_update".
func (s *Server) statsSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log := s.log.WithField("remote", r.RemoteAddr)
	log.Debug("stats socket connected")

	if err := writeSocket(conn, socketMessage{
		Event: "connected",
		Data:  map[string]string{"data": "Connected to admin panel"},
	}); err != nil {
		return
	}

	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			var closed wsutil.ClosedError
			if !errors.Is(err, io.EOF) && !errors.As(err, &closed) {
				log.WithError(err).Debug("stats socket read failed")
			}
			return
		}
		if op != ws.OpText {
			continue
		}

		var req socketMessage
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		if req.Event != "request_stats" {
			continue
		}

		reply := socketMessage{Event: "stats_update"}
		stats, err := s.admin.FreshStatistics(r.Context())
		if err != nil {
			reply = socketMessage{Event: "error", Data: map[string]string{"error": err.Error()}}
		} else {
			reply.Data = stats
		}
		if err := writeSocket(conn, reply); err != nil {
			log.WithError(err).Debug("stats socket write failed")
			return
		}
	}
}

func writeSocket(conn net.Conn, msg socketMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return wsutil.WriteServerMessage(conn, ws.OpText, payload)
}
