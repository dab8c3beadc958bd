package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunik/edunik-api/internal/service"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
	"github.com/edunik/edunik-api/pkg/response"
)

// ImportHandler handles bulk user import uploads.
type ImportHandler struct {
	service *service.ImportService
}

// NewImportHandler constructs an import handler.
func NewImportHandler(svc *service.ImportService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Upload godoc
// @Summary Upload an xlsx roster for bulk user creation
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster spreadsheet"
// @Success 202 {object} response.Envelope
// @Router /imports/users [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file field is required"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer f.Close()

	status, err := h.service.Upload(c.Request.Context(), tenantFromContext(c), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// Status godoc
// @Summary Progress of a running or finished import
// @Tags Imports
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} response.Envelope
// @Router /imports/users/{id} [get]
func (h *ImportHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
