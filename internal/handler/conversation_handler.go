package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type ConversationHandler struct {
	conversations *services.ConversationService
}

func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_INPUT"))
			return
		}
		participantIDs = append(participantIDs, id)
	}

	conv, err := h.conversations.Create(c.Request.Context(), userID, services.CreateConversationInput{
		Name:           req.Name,
		IsGroup:        req.IsGroup,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "CREATE_FAILED"))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toConversationDTO(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conversations, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "LIST_FAILED"))
		return
	}

	out := make([]httpdto.ConversationDTO, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationDTO(conv))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *ConversationHandler) Get(c *gin.Context) {
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

	conv, err := h.conversations.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "GET_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toConversationDTO(conv)))
}

func (h *ConversationHandler) AddParticipant(c *gin.Context) {
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

	var req httpdto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_INPUT"))
		return
	}

	if err := h.conversations.AddParticipant(c.Request.Context(), conversationID, userID, targetID); err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "ADD_PARTICIPANT_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"added": true}))
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
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
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_INPUT"))
		return
	}

	if err := h.conversations.RemoveParticipant(c.Request.Context(), conversationID, userID, targetID); err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "REMOVE_PARTICIPANT_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": true}))
}

func (h *ConversationHandler) Rename(c *gin.Context) {
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

	var req httpdto.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}

	if err := h.conversations.Rename(c.Request.Context(), conversationID, userID, req.Name); err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "RENAME_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"renamed": true}))
}

func toConversationDTO(conv conversation.Conversation) httpdto.ConversationDTO {
	dto := httpdto.ConversationDTO{
		ID:        conv.ID.String(),
		IsGroup:   conv.IsGroup,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.Name.Valid {
		dto.Name = conv.Name.String
	}
	if conv.CreatedBy.Valid {
		dto.CreatedBy = conv.CreatedBy.UUID.String()
	}
	for _, p := range conv.Participants {
		dto.Participants = append(dto.Participants, httpdto.ParticipantDTO{
			UserID:   p.UserID.String(),
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
		})
	}
	return dto
}
