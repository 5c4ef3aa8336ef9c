package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/services"
)

// SearchHandler serves message search and context lookups.
type SearchHandler struct {
	search services.SearchService
}

// NewSearchHandler builds a SearchHandler.
func NewSearchHandler(search services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /conversations/:conversation_id/messages/search.
// Store failures and denied access both produce an empty page.
func (h *SearchHandler) Search(c *gin.Context) {
	page := queryInt(c, "page", 0)
	size := queryInt(c, "size", services.DefaultPageSize)

	result := h.search.SearchMessages(c.Request.Context(), c.Param("conversation_id"), c.Query("q"), userIDFromContext(c), page, size)
	c.JSON(http.StatusOK, result)
}

// Context handles GET /messages/:message_id/context.
func (h *SearchHandler) Context(c *gin.Context) {
	size := queryInt(c, "size", services.DefaultContextSize)

	msgs := h.search.GetMessageContext(c.Request.Context(), c.Param("message_id"), userIDFromContext(c), size)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// queryInt falls back to def when the parameter is absent or malformed.
func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
