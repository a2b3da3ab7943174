package handler

import (
	"net/http"

	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DirectHandler struct {
	service *services.DirectService
	logger  *logger.Logger
}

func NewDirectHandler(service *services.DirectService, l *logger.Logger) *DirectHandler {
	return &DirectHandler{service: service, logger: l}
}

func (h *DirectHandler) Open(c *gin.Context) {
	var req httpdto.OpenDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}
	otherID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	conv, created, err := h.service.OpenOrGet(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.OpenDirectResponse{
		Conversation: httpdto.FromDirectSummary(services.DirectSummary{Conversation: conv, OtherUserID: otherID}),
		Created:      created,
	}))
}

func (h *DirectHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": httpdto.FromDirectSummarySlice(items)}))
}
