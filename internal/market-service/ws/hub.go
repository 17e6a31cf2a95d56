package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// Snapshots devolve o último envelope conhecido de um mercado (cache Redis do worker)
type Snapshots interface {
	GetLast(ctx context.Context, marketID int64) (events.Envelope, bool, error)
}

// client serializa as escritas: gorilla/websocket não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por mercado
type Hub struct {
	log       *zap.Logger
	upgrader  websocket.Upgrader
	snapshots Snapshots
	mu        sync.RWMutex
	// marketID -> set of clients
	subs map[int64]map[*client]struct{}
}

// NewHub cria o hub; snapshots pode ser nil (sem replay no subscribe)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshots Snapshots) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:       log,
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshots: snapshots,
		subs:      make(map[int64]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão.
// Cada cliente pode assinar vários mercados; no subscribe recebe o último snapshot.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.subscribe(c, msg.MarketID)
			id := msg.MarketID
			_ = c.write(ServerMsg{Type: "subscribed", MarketID: &id})
			h.replay(r.Context(), c, id)
		case "unsubscribe":
			h.unsubscribe(c, msg.MarketID)
			id := msg.MarketID
			_ = c.write(ServerMsg{Type: "unsubscribed", MarketID: &id})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		default:
			_ = c.write(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(c *client, marketID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[marketID]; !ok {
		h.subs[marketID] = make(map[*client]struct{})
	}
	h.subs[marketID][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, marketID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[marketID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, marketID)
		}
	}
}

func (h *Hub) replay(ctx context.Context, c *client, marketID int64) {
	if h.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	env, ok, err := h.snapshots.GetLast(ctx, marketID)
	if err != nil {
		h.log.Warn("snapshot lookup failed", zap.Int64("market_id", marketID), zap.Error(err))
		return
	}
	if ok {
		_ = c.write(env)
	}
}

// Subscribers retorna quantos clientes assinam o mercado
func (h *Hub) Subscribers(marketID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[marketID])
}

// Broadcast envia o envelope para todos os clientes inscritos no mercado
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[env.MarketID]))
	for c := range h.subs[env.MarketID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	for _, c := range conns {
		_ = c.write(json.RawMessage(b))
	}
}
