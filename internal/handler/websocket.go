package handler

import (
	"net/http"
	"sync"
	"time"

	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type scoreboardMessage struct {
	Type string             `json:"type"`
	Data *domain.Scoreboard `json:"data"`
}

// Hub fans scoreboard refreshes out to connected websocket clients. Writes to
// a single connection are serialised by its own mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	latest  *domain.Scoreboard
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		metrics: m,
	}
}

func (h *Hub) register(conn *websocket.Conn) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock := &sync.Mutex{}
	h.clients[conn] = lock
	h.metrics.AddWSClients(1)
	return lock
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.metrics.AddWSClients(-1)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Latest() *domain.Scoreboard {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Broadcast stores board as the latest snapshot and pushes it to every
// client. Clients that fail a write are dropped.
func (h *Hub) Broadcast(board *domain.Scoreboard) {
	h.mu.Lock()
	h.latest = board
	snapshot := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, lock := range h.clients {
		snapshot[conn] = lock
	}
	h.mu.Unlock()

	msg := scoreboardMessage{Type: "scoreboard", Data: board}
	for conn, lock := range snapshot {
		if err := writeJSON(conn, lock, msg); err != nil {
			log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("dropping websocket client")
			h.unregister(conn)
		}
	}
}

func writeJSON(conn *websocket.Conn, lock *sync.Mutex, v any) error {
	lock.Lock()
	defer lock.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// ScoreboardStream godoc
// @Summary      Live scoreboard stream
// @Description  Websocket that sends the current scoreboard on connect and again after every rescoring
// @Tags         cot
// @Success      101
// @Router       /ws/scoreboard [get]
func (h *Handler) ScoreboardStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	lock := h.hub.register(conn)
	defer h.hub.unregister(conn)

	board := h.hub.Latest()
	if board == nil {
		dash, err := h.scores.Dashboard(c.Request.Context())
		if err != nil {
			log.Warn().Err(err).Msg("initial scoreboard unavailable")
		} else {
			board = &dash.Scoreboard
		}
	}
	if board != nil {
		if err := writeJSON(conn, lock, scoreboardMessage{Type: "scoreboard", Data: board}); err != nil {
			return
		}
	}

	// Clients only listen; reading drains control frames and detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
