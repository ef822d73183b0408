package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/scheduling"
)

// PreviousSlotHeader names the cancelled original when an update moved a
// booking to a new slot.
const PreviousSlotHeader = "X-Previous-Slot-Id"

type createSlotRequest struct {
	Date          string  `json:"date" binding:"required"`
	Time          string  `json:"time" binding:"required"`
	ApplicationID string  `json:"application_id" binding:"required"`
	CandidateName *string `json:"candidate_name"`
	JobTitle      *string `json:"job_title"`
	Status        *string `json:"status"`
	Location      *string `json:"location"`
	Notes         *string `json:"notes"`
}

type updateSlotRequest struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Status   *string `json:"status"`
	Location *string `json:"location"`
	Notes    *string `json:"notes"`
}

type openSlotRequest struct {
	Date     string  `json:"date" binding:"required"`
	Time     string  `json:"time" binding:"required"`
	Location *string `json:"location"`
	Notes    *string `json:"notes"`
}

// listSlotsResponse is the paginated envelope of GET /slots.
type listSlotsResponse struct {
	Data       []model.InterviewSlot `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	TotalPages int                   `json:"total_pages"`
}

// ListSlots handles GET /slots.
func (h *Handler) ListSlots(c *gin.Context) {
	q := scheduling.ListQuery{
		DateFrom:      c.Query("date_from"),
		DateTo:        c.Query("date_to"),
		ApplicationID: c.Query("application_id"),
		Status:        c.Query("status"),
		Order:         c.Query("order"),
	}

	var err error
	if raw, ok := c.GetQuery("skip"); ok {
		if q.Skip, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "skip must be an integer")
			return
		}
	}
	if raw, ok := c.GetQuery("limit"); ok {
		if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit == 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
	}
	if raw, ok := c.GetQuery("is_available"); ok {
		avail, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "is_available must be true or false")
			return
		}
		q.IsAvailable = &avail
	}

	page, err := h.svc.Queries.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listSlotsResponse{
		Data:       page.Items,
		Total:      page.Total,
		Page:       page.Number(),
		PerPage:    page.Limit,
		TotalPages: page.TotalPages(),
	})
}

// GetSlot handles GET /slots/:id.
func (h *Handler) GetSlot(c *gin.Context) {
	slot, err := h.svc.Slots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// CreateSlot handles POST /slots. Repeating a booking the application
// already holds returns the held slot.
func (h *Handler) CreateSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: date, time and application_id are required")
		return
	}

	slot, _, err := h.svc.Slots.Create(c.Request.Context(), scheduling.CreateInput{
		Date:          req.Date,
		Time:          req.Time,
		ApplicationID: req.ApplicationID,
		CandidateName: req.CandidateName,
		JobTitle:      req.JobTitle,
		Status:        req.Status,
		Location:      req.Location,
		Notes:         req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// OpenSlot handles POST /slots/availability.
func (h *Handler) OpenSlot(c *gin.Context) {
	var req openSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: date and time are required")
		return
	}

	slot, created, err := h.svc.Slots.Open(c.Request.Context(), scheduling.OpenInput{
		Date:     req.Date,
		Time:     req.Time,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, slot)
}

// UpdateSlot handles PUT /slots/:id. Every field is optional, so an empty
// body is an empty update.
func (h *Handler) UpdateSlot(c *gin.Context) {
	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.Slots.Reschedule(c.Request.Context(), c.Param("id"), scheduling.RescheduleInput{
		Date:     req.Date,
		Time:     req.Time,
		Status:   req.Status,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Moved {
		c.Header(PreviousSlotHeader, res.PreviousID)
	}
	c.JSON(http.StatusOK, res.Slot)
}

// CancelSlot handles DELETE /slots/:id.
func (h *Handler) CancelSlot(c *gin.Context) {
	slot, err := h.svc.Slots.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interview slot cancelled", "slot_id": slot.ID})
}
