package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hr-scheduling-backend/internal/scheduling"
	"hr-scheduling-backend/internal/store"
)

// Services groups the scheduling components the handlers call into.
type Services struct {
	Slots   *scheduling.Manager
	Queries *scheduling.QueryService
	Stats   *scheduling.StatsAggregator
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	svc     Services
	webpush *webpush.Options
	logger  *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc Services, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:   s,
		svc:     svc,
		webpush: webpushOptions,
		logger:  logger.Named("api"),
	}
}

// errorStatus maps an error onto its HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, scheduling.ErrInvalidFormat),
		errors.Is(err, scheduling.ErrInvalidStatus),
		errors.Is(err, scheduling.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, scheduling.ErrNotFound),
		errors.Is(err, scheduling.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduling.ErrSlotConflict),
		errors.Is(err, scheduling.ErrSlotCancelled):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Internal details are logged,
// never returned.
func (h *Handler) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	msg := scheduling.UserMessage(err)
	switch status {
	case http.StatusServiceUnavailable:
		msg = "database temporarily unavailable, please retry"
		h.logger.Warn("database unavailable", zap.String("path", c.FullPath()), zap.Error(err))
	case http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
