package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one WebSocket connection. send holds at most the latest report.
type client struct {
	send chan *aggregator.Report
	done chan struct{}
}

func newClient() *client {
	return &client{
		send: make(chan *aggregator.Report, 1),
		done: make(chan struct{}),
	}
}

// push queues r, replacing any report the client has not written yet.
func (c *client) push(r *aggregator.Report) {
	for {
		select {
		case c.send <- r:
			return
		case <-c.done:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

// handleWebSocket upgrades to WebSocket and streams every report update to the client.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	cl := newClient()
	s.register(cl)
	defer s.unregister(cl)

	if r := s.Report(); r != nil {
		cl.push(r)
	}

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump: send reports as JSON.
	for {
		select {
		case <-gone:
			return
		case <-cl.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case r := <-cl.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(r); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
