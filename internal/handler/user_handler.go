package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_INPUT"))
		return
	}

	profile, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "GET_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profile))
}

// Presence answers from the Redis mirror so the hub is never blocked
// by read traffic.
func (h *UserHandler) Presence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_INPUT"))
		return
	}

	info, err := h.users.Presence(c.Request.Context(), userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "PRESENCE_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(info))
}

func (h *UserHandler) TypingUsers(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_INPUT"))
		return
	}

	typing, err := h.users.TypingUsers(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "TYPING_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"typing": typing}))
}
