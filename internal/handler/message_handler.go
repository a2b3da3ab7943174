package handler

import (
	"net/http"
	"strconv"
	"time"

	"cardcircle/internal/domain/message"
	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.MessageService
	logger  *logger.Logger
}

func NewMessageHandler(service *services.MessageService, l *logger.Logger) *MessageHandler {
	return &MessageHandler{service: service, logger: l}
}

func (h *MessageHandler) ListGroup(c *gin.Context) { h.list(c, message.ContainerGroup) }
func (h *MessageHandler) SendGroup(c *gin.Context) { h.send(c, message.ContainerGroup) }
func (h *MessageHandler) ListDirect(c *gin.Context) { h.list(c, message.ContainerDirect) }
func (h *MessageHandler) SendDirect(c *gin.Context) { h.send(c, message.ContainerDirect) }

func (h *MessageHandler) send(c *gin.Context, ct message.ContainerType) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	containerID, ok := pathID(c, string(ct))
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	m, err := h.service.Send(c.Request.Context(), userID, ct, containerID, req.Body())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m)))
}

func (h *MessageHandler) list(c *gin.Context, ct message.ContainerType) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	containerID, ok := pathID(c, string(ct))
	if !ok {
		return
	}
	opts, ok := parseListOptions(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), userID, ct, containerID, opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{
		Messages: httpdto.FromMessageSlice(items),
	}))
}

func parseListOptions(c *gin.Context) (services.ListOptions, bool) {
	var opts services.ListOptions
	if raw := c.Query("sinceId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid sinceId")
			return opts, false
		}
		opts.SinceID = &id
	}
	if raw := c.Query("since"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "since must be an RFC3339 timestamp")
			return opts, false
		}
		opts.Since = &at
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid limit")
			return opts, false
		}
		opts.Limit = limit
	}
	return opts, true
}
