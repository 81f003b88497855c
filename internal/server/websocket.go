package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-notemap/notemap"
)

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	gone   chan struct{}
	server *Server
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "handleWebSocket",
			"error":    err,
		}).Warn("Websocket upgrade failed")
		return
	}
	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, sendQueue),
		done:   make(chan struct{}),
		gone:   make(chan struct{}),
		server: s,
	}
	go client.writePump()
	client.readPump(r.Context())
}

// readPump treats every text frame as one melody and streams its notes back.
func (c *websocketClient) readPump(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMelodyBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		art, err := c.server.generate(ctx, string(data), 0, func(ev notemap.NoteEvent) {
			c.push(Message{Type: TypeNote, Note: &ev})
		})
		if err != nil {
			c.push(Message{Type: TypeError, Error: err.Error()})
			continue
		}
		c.push(Message{Type: TypeDone, Notes: len(art.Result.Notes), Header: art.Header})
	}
}

// push queues msg unless the writer has gone away.
func (c *websocketClient) push(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.gone:
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.gone)
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
