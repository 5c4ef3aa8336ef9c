package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"conversation-service/internal/observability"
	"conversation-service/internal/services"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// ConversationWebSocketHandler streams membership events of one conversation.
type ConversationWebSocketHandler struct {
	hub    *Hub
	access services.AccessChecker
	tokens TokenValidator
	log    *log.Logger
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, access services.AccessChecker, tokens TokenValidator, logger *log.Logger) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{hub: hub, access: access, tokens: tokens, log: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	ctx, span := otel.Tracer("conversation-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		token = c.Query("token")
	}
	userID, err := h.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if !h.access.HasUserAccess(ctx, userID, conversationID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.log.Debug("websocket connected", "conversation_id", conversationID, "conn_id", info.ConnID, "user_id", userID)

	// clients only listen; reads detect the close
	go func() {
		defer func() {
			h.hub.RemoveClient(conversationID, conn)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
					h.log.Debug("websocket closed", "conn_id", info.ConnID, "reason", err, "duration_ms", time.Since(info.ConnectedAt).Milliseconds())
				}
				return
			}
		}
	}()
}
