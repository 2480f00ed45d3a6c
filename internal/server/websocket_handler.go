package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler authenticates and upgrades incoming connections.
type WebSocketHandler struct {
	hub         *Hub
	authService *services.AuthService
	logger      *SocketLogger
}

func NewWebSocketHandler(hub *Hub, authService *services.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		logger:      NewSocketLogger(),
	}
}

// Handle rejects bad credentials before upgrading, distinguishing a
// missing credential from an invalid one so clients can tell a config
// bug from an expired token.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized,
			httpdto.NewErrorResponse(relay_errors.ErrCredentialMissing.Error(), "UNAUTHORIZED"))
		return
	}

	claims, err := h.authService.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized,
			httpdto.NewErrorResponse(relay_errors.ErrCredentialInvalid.Error(), "UNAUTHORIZED"))
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized,
			httpdto.NewErrorResponse(relay_errors.ErrCredentialInvalid.Error(), "UNAUTHORIZED"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", userID, "", err)
		return
	}

	client := NewClient(h.hub, conn, userID)
	h.hub.Register(client)
}

func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
