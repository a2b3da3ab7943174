package handler

import (
	"net/http"

	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, l *logger.Logger, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError && l != nil {
		l.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, httpdto.NewErrorResponse(services.PublicMessage(err), services.ErrorCode(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	}
	return id, ok
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}
