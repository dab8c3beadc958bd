package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/projection"
	"github.com/edunik/edunik-api/internal/service"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/response"
)

// AssignmentHandler handles assignment endpoints and the role-scoped
// assignment board.
type AssignmentHandler struct {
	service *service.AssignmentService
	users   *service.UserService
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(svc *service.AssignmentService, users *service.UserService) *AssignmentHandler {
	return &AssignmentHandler{service: svc, users: users}
}

// Board godoc
// @Summary Role-scoped assignment board, active and past
// @Tags Assignments
// @Produce json
// @Param childId query string false "Child to view as (parents only)"
// @Success 200 {object} response.Envelope
// @Router /assignments/board [get]
func (h *AssignmentHandler) Board(c *gin.Context) {
	claims := claimsFromContext(c)
	tenantID := tenantFromContext(c)

	viewer := projection.Viewer{UserID: claims.UserID, Role: claims.Role}
	if claims.Role == models.RoleStudent {
		user, err := h.users.Get(c.Request.Context(), tenantID, claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		viewer.HomeroomClassID = user.HomeroomClassID
	}

	board, err := h.service.Board(c.Request.Context(), tenantID, viewer, c.Query("childId"), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Get godoc
// @Summary Get assignment by id
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	assignment, err := h.service.Create(c.Request.Context(), tenantFromContext(c), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	assignment, err := h.service.Update(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id"), isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
