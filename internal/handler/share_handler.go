package handler

import (
	"net/http"

	"cardcircle/internal/domain/message"
	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ShareHandler posts a card into a group as a card message.
type ShareHandler struct {
	messages *services.MessageService
	logger   *logger.Logger
}

func NewShareHandler(messages *services.MessageService, l *logger.Logger) *ShareHandler {
	return &ShareHandler{messages: messages, logger: l}
}

func (h *ShareHandler) ShareToGroup(c *gin.Context) {
	var req httpdto.ShareCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		badRequest(c, "invalid group id")
		return
	}
	m, err := h.messages.Send(c.Request.Context(), userID, message.ContainerGroup, groupID, req.Body())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m)))
}
