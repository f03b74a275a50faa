package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/repository"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/service"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	var ve *model.ErrValidation
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Msg
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// projectID parses the :id route parameter.
func projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
