package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jandrishti/jandrishti-backend/internal/http/middleware"
	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.TokenParser
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens middleware.TokenParser, checkOrigin func(r *http.Request) bool) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		_ = c.Error(apperror.ErrUnauthorized)
		return
	}

	identity, err := h.tokens.Parse(rawToken)
	if err != nil {
		_ = c.Error(apperror.ErrInvalidToken)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		logger.L().WithError(err).Debug("ws handler: апгрейд не удался")
		return
	}

	client := ws.NewClient(conn, h.hub, identity.ID, identity.Role)
	h.hub.Register(client)
	client.Run(c.Request.Context())
}
