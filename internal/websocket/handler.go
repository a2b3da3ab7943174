package websocket

import (
	"context"
	"net/http"
	"strings"

	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	auth       services.AuthVerifier
	hub        *Hub
	authorizer *ChannelAuthorizer
	logger     *WebSocketLogger
	upgrader   websocket.Upgrader
}

// NewHandler accepts connections whose Origin is in allowedOrigins; "*"
// allows any origin.
func NewHandler(auth services.AuthVerifier, hub *Hub, authorizer *ChannelAuthorizer, log *WebSocketLogger, allowedOrigins []string) *Handler {
	return &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: authorizer,
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.auth.ResolveCaller(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", userID, "", err)
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.logger.Info("connected", userID, client.ID)
	go client.WriteLoop(ctx)

	client.ReadLoop(ctx, h.hub, h.authorizer, h.logger)

	h.hub.Unregister(client)
	h.logger.Info("disconnected", userID, client.ID)
}
