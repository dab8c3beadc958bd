package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/service"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/response"
)

// AttendanceHandler handles the live-marking flow.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Load godoc
// @Summary Load a marking session: roster plus submitted marks
// @Tags Attendance
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string true "Subject ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param period query int true "Period number"
// @Success 200 {object} response.Envelope
// @Router /attendance/session [get]
func (h *AttendanceHandler) Load(c *gin.Context) {
	period, err := strconv.Atoi(c.Query("period"))
	if err != nil || period < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "period must be a positive number"))
		return
	}
	key := models.AttendanceSessionKey{
		ClassID:      c.Query("classId"),
		SubjectID:    c.Query("subjectId"),
		Date:         c.Query("date"),
		PeriodNumber: period,
	}
	if key.ClassID == "" || key.SubjectID == "" || key.Date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId, subjectId and date are required"))
		return
	}
	session, err := h.service.Load(c.Request.Context(), tenantFromContext(c), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Submit godoc
// @Summary Submit a whole marking session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SubmitAttendanceRequest true "Session payload"
// @Success 204
// @Router /attendance/session [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req service.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if err := h.service.Submit(c.Request.Context(), tenantFromContext(c), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByStudent godoc
// @Summary Attendance history for a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) ListByStudent(c *gin.Context) {
	records, err := h.service.ListByStudent(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
