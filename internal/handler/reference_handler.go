package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/internal/service"
	"github.com/sciclub-portal/papers-api/pkg/response"
)

// ReferenceHandler serves grade rubric and club reference data.
type ReferenceHandler struct {
	service *service.ReferenceService
}

// NewReferenceHandler creates a new handler.
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// ListGrades godoc
// @Summary List review grades
// @Description List the grade rubric, optionally scoped to one category via the tag parameter
// @Tags Reference
// @Produce json
// @Param tag query string false "Grade category"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades [get]
func (h *ReferenceHandler) ListGrades(c *gin.Context) {
	if tag := c.Query("tag"); tag != "" {
		grades, err := h.service.ListGradesByTag(c.Request.Context(), models.GradeTag(tag))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, grades, nil)
		return
	}

	grades, err := h.service.ListGrades(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// ListClubs godoc
// @Summary List student clubs
// @Description List clubs selectable in submission forms
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clubs [get]
func (h *ReferenceHandler) ListClubs(c *gin.Context) {
	clubs, err := h.service.ListClubs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clubs, nil)
}
