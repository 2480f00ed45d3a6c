package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relaychat/internal/domain/message"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// History serves GET /v1/conversations/:id/messages, the pull side of
// offline catch-up.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_INPUT"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.messages.History(c.Request.Context(), conversationID, userID, page, limit)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "HISTORY_FAILED"))
		return
	}

	out := make([]httpdto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageDTO(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageHistoryResponse{
		Messages: out,
		Page:     page,
		Limit:    limit,
	}))
}

func (h *MessageHandler) Edits(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_INPUT"))
		return
	}

	edits, err := h.messages.Edits(c.Request.Context(), messageID, userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "EDITS_FAILED"))
		return
	}

	out := make([]httpdto.MessageEditDTO, 0, len(edits))
	for _, e := range edits {
		out = append(out, httpdto.MessageEditDTO{Content: e.Content, EditedAt: e.EditedAt})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_INPUT"))
		return
	}

	reactions, err := h.messages.Reactions(c.Request.Context(), messageID, userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "REACTIONS_FAILED"))
		return
	}

	out := make([]httpdto.ReactionDTO, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, httpdto.ReactionDTO{
			UserID:    r.UserID.String(),
			Emoji:     r.Emoji,
			CreatedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// RegisterAttachment reserves an attachment and returns a presigned
// upload URL; the attachment id later rides along in send-message.
func (h *MessageHandler) RegisterAttachment(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.RegisterAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}

	upload, err := h.messages.RegisterAttachment(c.Request.Context(), userID, req.ContentType, req.SizeBytes)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "ATTACHMENT_FAILED"))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(upload))
}

func toMessageDTO(m message.Message) httpdto.MessageDTO {
	dto := httpdto.MessageDTO{
		ID:        m.ID.String(),
		SenderID:  m.SenderID.String(),
		Content:   m.Content,
		Type:      m.Type,
		Status:    string(m.Status),
		Edited:    m.Edited,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt,
	}
	if m.ConversationID.Valid {
		dto.ConversationID = m.ConversationID.UUID.String()
	}
	if m.ReceiverID.Valid {
		dto.ReceiverID = m.ReceiverID.UUID.String()
	}
	if m.SeqID.Valid {
		seq := m.SeqID.Int64
		dto.SeqID = &seq
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		dto.EditedAt = &t
	}
	return dto
}
