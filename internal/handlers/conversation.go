package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/services"
	"conversation-service/internal/telemetry"
)

// ConversationHandler serves conversation and participant endpoints.
type ConversationHandler struct {
	membership services.MembershipService
	audit      *telemetry.AuditEmitter
	log        *log.Logger
}

// NewConversationHandler constructs a ConversationHandler. audit may be nil.
func NewConversationHandler(membership services.MembershipService, audit *telemetry.AuditEmitter, logger *log.Logger) *ConversationHandler {
	return &ConversationHandler{membership: membership, audit: audit, log: logger}
}

// StartDirect handles POST /conversations/direct.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	userID := userIDFromContext(c)

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.membership.CreateDirectConversation(c.Request.Context(), userID, req.UserID)
	if err != nil {
		h.fail(c, err, "could not start conversation", "")
		return
	}

	h.emitAudit(c, "INFO", "Direct conversation opened", conv.ID)
	c.JSON(http.StatusOK, conv)
}

// CreateGroup handles POST /conversations/groups.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID := userIDFromContext(c)

	var req struct {
		Name            string   `json:"name" binding:"required"`
		Description     *string  `json:"description"`
		IsPublic        bool     `json:"is_public"`
		MaxParticipants *int     `json:"max_participants"`
		ParticipantIDs  []string `json:"participant_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.membership.CreateGroup(c.Request.Context(), userID, models.GroupRequest{
		Name:            req.Name,
		Description:     req.Description,
		IsPublic:        req.IsPublic,
		MaxParticipants: req.MaxParticipants,
		ParticipantIDs:  req.ParticipantIDs,
	})
	if err != nil {
		h.fail(c, err, "could not create group", "")
		return
	}

	h.emitAudit(c, "INFO", "Group created", conv.ID)
	c.JSON(http.StatusCreated, conv)
}

// ListConversations handles GET /conversations with an optional ?type= filter.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	var convType *models.ConversationType
	if raw := c.Query("type"); raw != "" {
		t := models.ConversationType(raw)
		convType = &t
	}

	convs, err := h.membership.ListUserConversations(c.Request.Context(), userIDFromContext(c), convType)
	if err != nil {
		respondError(c, err, "failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// ListPublicGroups handles GET /conversations/public.
func (h *ConversationHandler) ListPublicGroups(c *gin.Context) {
	groups, err := h.membership.ListPublicGroups(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to load groups")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": groups})
}

// GetConversation handles GET /conversations/:conversation_id.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conv, err := h.membership.GetConversation(c.Request.Context(), c.Param("conversation_id"), userIDFromContext(c))
	if err != nil {
		respondError(c, err, "failed to load conversation")
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ListParticipants handles GET /conversations/:conversation_id/participants.
func (h *ConversationHandler) ListParticipants(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if !h.membership.HasUserAccess(c.Request.Context(), userIDFromContext(c), conversationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	participants, err := h.membership.ListParticipants(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err, "failed to load participants")
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// AddParticipant handles POST /conversations/:conversation_id/participants.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.membership.CanManageParticipants(c.Request.Context(), userIDFromContext(c), conversationID) {
		h.emitAudit(c, "ERROR", "not allowed", conversationID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage participants"})
		return
	}

	if err := h.membership.AddUserToConversation(c.Request.Context(), conversationID, req.UserID); err != nil {
		h.fail(c, err, "could not add participant", conversationID)
		return
	}

	h.emitAudit(c, "INFO", "Participant added", conversationID)
	c.Status(http.StatusNoContent)
}

// RemoveParticipant handles DELETE /conversations/:conversation_id/participants/:user_id.
// Any group participant may remove themselves. Direct conversations have no way back in, so
// nobody leaves them.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	target := c.Param("user_id")
	actor := userIDFromContext(c)

	conv, err := h.membership.GetConversation(c.Request.Context(), conversationID, actor)
	if err != nil {
		h.fail(c, err, "could not remove participant", conversationID)
		return
	}
	if !conv.IsGroup() {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot remove participants from direct conversations"})
		return
	}

	if actor != target && !h.membership.CanManageParticipants(c.Request.Context(), actor, conversationID) {
		h.emitAudit(c, "ERROR", "not allowed", conversationID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage participants"})
		return
	}

	if err := h.membership.RemoveUserFromConversation(c.Request.Context(), conversationID, target); err != nil {
		h.fail(c, err, "could not remove participant", conversationID)
		return
	}

	h.emitAudit(c, "INFO", "Participant removed", conversationID)
	c.Status(http.StatusNoContent)
}

// ChangeRole handles PUT /conversations/:conversation_id/participants/:user_id/role.
func (h *ConversationHandler) ChangeRole(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	if !h.membership.IsOwner(c.Request.Context(), userIDFromContext(c), conversationID) {
		h.emitAudit(c, "ERROR", "not allowed", conversationID)
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can change roles"})
		return
	}

	if err := h.membership.ChangeParticipantRole(c.Request.Context(), conversationID, c.Param("user_id"), role); err != nil {
		h.fail(c, err, "could not change role", conversationID)
		return
	}

	h.emitAudit(c, "INFO", "Participant role changed", conversationID)
	c.Status(http.StatusNoContent)
}

// UpdateSettings handles PATCH /conversations/:conversation_id/settings.
func (h *ConversationHandler) UpdateSettings(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	var patch models.GroupSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.membership.CanUpdateSettings(c.Request.Context(), userIDFromContext(c), conversationID) {
		h.emitAudit(c, "ERROR", "not allowed", conversationID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to update settings"})
		return
	}

	conv, err := h.membership.UpdateGroupSettings(c.Request.Context(), conversationID, patch)
	if err != nil {
		h.fail(c, err, "could not update settings", conversationID)
		return
	}

	h.emitAudit(c, "INFO", "Group settings updated", conversationID)
	c.JSON(http.StatusOK, conv)
}

// GetRole handles GET /conversations/:conversation_id/role.
func (h *ConversationHandler) GetRole(c *gin.Context) {
	role, ok := h.membership.GetUserRole(c.Request.Context(), userIDFromContext(c), c.Param("conversation_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a participant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":                    role,
		"can_manage_participants": role.CanManageParticipants(),
		"can_update_settings":     role.CanUpdateSettings(),
	})
}

func (h *ConversationHandler) fail(c *gin.Context, err error, fallback, conversationID string) {
	if statusFromError(err) == http.StatusInternalServerError {
		h.log.Error(fallback, "conversation_id", conversationID, "user_id", userIDFromContext(c), "err", err)
		h.emitAudit(c, "ERROR", "internal error", conversationID)
	}
	respondError(c, err, fallback)
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text, conversationID string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c), conversationID)
}
