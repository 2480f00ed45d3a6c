package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req httpdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "REGISTER_FAILED"))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(resp))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "LOGIN_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
