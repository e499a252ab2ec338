package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ldmdldm/pylot-project/internal/analytics"
	"go.uber.org/zap"
)

// Broadcaster pushes every decision record to connected websocket
// clients. It plugs into the analytics dispatcher as a sink, so live
// subscribers and durable sinks see the same records.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log,
	}
}

func (b *Broadcaster) Name() string { return "websocket" }

func (b *Broadcaster) Publish(_ context.Context, rec analytics.Record) error {
	msg, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Debug("websocket write failed; dropping client", zap.Error(err))
			c.Close()
			delete(b.clients, c)
		}
	}
	return nil
}

func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.Close()
		delete(b.clients, c)
	}
	return nil
}

// Handler upgrades the connection and keeps it registered until the
// client goes away. Inbound messages are discarded.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

var _ analytics.Sink = (*Broadcaster)(nil)
