package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

const (
	defaultSendBuffer = 64
	writeWait         = 10 * time.Second
)

// subscriber owns one connection. Only its write loop writes to conn.
type subscriber struct {
	conn      *websocket.Conn
	info      ConnInfo
	send      chan []byte
	closeOnce sync.Once
}

func (s *subscriber) stop() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Hub maintains websocket subscribers per conversation.
type Hub struct {
	rooms      map[string]map[*websocket.Conn]*subscriber
	mu         sync.RWMutex
	sendBuffer int
	log        *log.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*websocket.Conn]*subscriber),
		sendBuffer: defaultSendBuffer,
		log:        logger,
	}
}

// AddClient registers a websocket connection to a conversation room and starts its write loop.
func (h *Hub) AddClient(conversationID string, conn *websocket.Conn, info ConnInfo) {
	sub := &subscriber{conn: conn, info: info, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]*subscriber)
	}
	if prev, ok := h.rooms[conversationID][conn]; ok {
		prev.stop()
	}
	h.rooms[conversationID][conn] = sub
	h.mu.Unlock()

	go h.writeLoop(conversationID, sub)
}

// RemoveClient unregisters a connection and stops its write loop. The caller closes the connection.
func (h *Hub) RemoveClient(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	if sub, ok := conns[conn]; ok {
		sub.stop()
		delete(conns, conn)
	}
	if len(conns) == 0 {
		delete(h.rooms, conversationID)
	}
}

// ClientCount returns the number of subscribers of a conversation.
func (h *Hub) ClientCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// BroadcastConversationEvent queues the event for every subscriber of a conversation.
// It never blocks on the network; a subscriber whose queue is full is disconnected.
func (h *Hub) BroadcastConversationEvent(conversationID string, event models.ConversationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode conversation event", "err", err)
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for _, sub := range h.rooms[conversationID] {
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.Warn("websocket subscriber too slow, disconnecting", "conversation_id", conversationID, "conn_id", sub.info.ConnID)
		observability.IncWSEvent("ws_slow_consumer")
		h.RemoveClient(conversationID, sub.conn)
		if sub.conn != nil {
			sub.conn.Close()
		}
	}
	observability.IncWSEvent(event.Type)
}

func (h *Hub) writeLoop(conversationID string, sub *subscriber) {
	for payload := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.reportWriteError(conversationID, sub.info, err)
			h.RemoveClient(conversationID, sub.conn)
			sub.conn.Close()
			// drain until RemoveClient's close ends the range
			for range sub.send {
			}
			return
		}
	}
}

func (h *Hub) reportWriteError(conversationID string, info ConnInfo, err error) {
	h.log.Warn("websocket write error",
		"conversation_id", conversationID,
		"conn_id", info.ConnID,
		"user_id", info.UserID,
		"duration_ms", time.Since(info.ConnectedAt).Milliseconds(),
		"err", err,
	)
	observability.IncWSEvent("ws_error")
}
