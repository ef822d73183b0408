package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statsOverviewResponse is the body of GET /stats/overview.
type statsOverviewResponse struct {
	TotalInterviews     int64            `json:"total_interviews"`
	ScheduledInterviews int64            `json:"scheduled_interviews"`
	CompletedInterviews int64            `json:"completed_interviews"`
	CancelledInterviews int64            `json:"cancelled_interviews"`
	InterviewsByStatus  map[string]int64 `json:"interviews_by_status"`
}

// StatsOverview handles GET /stats/overview.
func (h *Handler) StatsOverview(c *gin.Context) {
	ov, err := h.svc.Stats.Overview(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	byStatus := make(map[string]int64, len(ov.ByStatus))
	for status, n := range ov.ByStatus {
		byStatus[string(status)] = n
	}
	c.JSON(http.StatusOK, statsOverviewResponse{
		TotalInterviews:     ov.Total,
		ScheduledInterviews: ov.Scheduled,
		CompletedInterviews: ov.Completed,
		CancelledInterviews: ov.Cancelled,
		InterviewsByStatus:  byStatus,
	})
}

// Healthz handles GET /healthz by pinging the database.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
