/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launix-de/memcp/internal/framelog"
	"github.com/launix-de/memcp/internal/subscribe"
)

const wsPingPeriod = 30 * time.Second

// serveCatWS upgrades `cat` to a duplex WebSocket: frames matching the
// subscription stream out as JSON text messages; any text message the
// client sends back is treated as a raw append payload to the topic
// given by the `topic` query parameter, the duplex half spec.md §6
// anticipates for a future streaming append.
func (s *Server) serveCatWS(w http.ResponseWriter, r *http.Request) {
	opts, err := parseSubscribeOptions(r.URL.Query())
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sub := subscribe.Open(ctx, s.Log, s.Hub, opts)

	done := make(chan struct{})
	go s.pumpWSReads(conn, r.URL.Query().Get("topic"), done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-sub.Frames():
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			b, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pumpWSReads discards client frames unless topic is set, in which case
// every text message received becomes one append to that topic — the
// client-to-server half of duplex cat.
func (s *Server) pumpWSReads(conn *websocket.Conn, topic string, done chan<- struct{}) {
	defer close(done)
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage || topic == "" {
			continue
		}
		hash, err := s.CAS.Put(msg)
		if err != nil {
			s.log.Warnw("ws append: cas put failed", "error", err)
			continue
		}
		if _, err := s.Log.Append(topic, framelog.AppendOptions{Hash: hash}); err != nil {
			s.log.Warnw("ws append failed", "topic", topic, "error", err)
		}
	}
}
