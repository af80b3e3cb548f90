package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sciclub-portal/papers-api/internal/dto"
	"github.com/sciclub-portal/papers-api/internal/models"
	"github.com/sciclub-portal/papers-api/internal/service"
	appErrors "github.com/sciclub-portal/papers-api/pkg/errors"
	"github.com/sciclub-portal/papers-api/pkg/response"
)

// PaperHandler wires HTTP endpoints to the paper service.
type PaperHandler struct {
	service *service.PaperService
}

// NewPaperHandler creates a new handler.
func NewPaperHandler(svc *service.PaperService) *PaperHandler {
	return &PaperHandler{service: svc}
}

// Create godoc
// @Summary Submit a paper
// @Description Create a paper with co-authors, the signed statement and optional attachments in one multipart request
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Paper title"
// @Param club_id formData string true "Student club id"
// @Param description formData string true "Description"
// @Param keywords formData string false "Keywords"
// @Param co_authors formData string false "JSON array of co-authors"
// @Param statement formData file true "Signed statement"
// @Param files formData file false "Additional attachments"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /papers [post]
func (h *PaperHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreatePaperRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paper payload"))
		return
	}
	coAuthors, err := parseCoAuthors(c.PostForm("co_authors"))
	if err != nil {
		response.Error(c, err)
		return
	}
	req.CoAuthors = coAuthors

	statement, closeStatement, err := openUpload(c, "statement")
	if err != nil {
		response.Error(c, err)
		return
	}
	if closeStatement != nil {
		defer closeStatement()
	}
	attachments, closeAttachments, err := openUploads(c, "files")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAttachments()

	paper, err := h.service.Create(c.Request.Context(), claims, req, statement, attachments)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, paper)
}

// List godoc
// @Summary List papers
// @Description List papers visible to the caller, newest first
// @Tags Papers
// @Produce json
// @Param page query int false "Page"
// @Param club_id query string false "Filter by club"
// @Param approved query bool false "Filter by approval (staff)"
// @Param search query string false "Search title and keywords"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PaperFilter{
		ClubID: c.Query("club_id"),
		Search: c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if raw := c.Query("approved"); raw != "" && claims.IsStaff() {
		if approved, err := strconv.ParseBool(raw); err == nil {
			filter.Approved = &approved
		}
	}

	papers, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, papers, pagination)
}

// Get godoc
// @Summary Get paper detail
// @Description Return one paper with co-authors, files and reviewer ids. The optional q parameter carries the id order of the caller's list for prev/next navigation.
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Param q query string false "Comma-separated ordered paper ids"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var orderedIDs []string
	if q := c.Query("q"); q != "" {
		orderedIDs = strings.Split(q, ",")
	}

	paper, nav, err := h.service.Get(c.Request.Context(), claims, c.Param("id"), orderedIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"navigation": nav}
	response.JSON(c, http.StatusOK, paper, nil, meta)
}

// Update godoc
// @Summary Edit a paper
// @Description Update paper fields, replace the co-author set, delete and add attachments in one transaction
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Paper id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [put]
func (h *PaperHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdatePaperRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paper payload"))
		return
	}
	coAuthors, err := parseCoAuthors(c.PostForm("co_authors"))
	if err != nil {
		response.Error(c, err)
		return
	}
	req.CoAuthors = coAuthors
	if raw := c.PostForm("delete_file_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.DeleteFileIDs = append(req.DeleteFileIDs, id)
			}
		}
	}

	uploads, closeUploads, err := openUploads(c, "files")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUploads()

	paper, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, paper, nil)
}

// Delete godoc
// @Summary Delete a paper
// @Description Remove a paper with its co-authors, files and reviews
// @Tags Papers
// @Produce json
// @Param id path string true "Paper id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [delete]
func (h *PaperHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AssignReviewers godoc
// @Summary Assign reviewers
// @Description Replace the reviewer set of a paper (staff only, at most two)
// @Tags Papers
// @Accept json
// @Produce json
// @Param id path string true "Paper id"
// @Param payload body dto.AssignReviewersRequest true "Reviewer ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /papers/{id}/reviewers [put]
func (h *PaperHandler) AssignReviewers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AssignReviewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	paper, err := h.service.AssignReviewers(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, paper, nil)
}

// ListReviewers godoc
// @Summary List reviewers
// @Description List reviewer accounts with their assignment load (staff only)
// @Tags Papers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviewers [get]
func (h *PaperHandler) ListReviewers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	reviewers, err := h.service.ListReviewers(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, reviewers, nil)
}

// FileURL godoc
// @Summary Signed download link
// @Description Return a short-lived signed URL for one attachment
// @Tags Files
// @Produce json
// @Param id path string true "Paper id"
// @Param fileID path string true "File id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id}/files/{fileID}/url [get]
func (h *PaperHandler) FileURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.FileURL(c.Request.Context(), claims, c.Param("id"), c.Param("fileID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download an attachment
// @Description Stream a file referenced by a valid signed token
// @Tags Files
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /files/download [get]
func (h *PaperHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, blob, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer blob.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Content-Type", file.MimeType)
	c.File(blob.Name())
}

func parseCoAuthors(raw string) ([]dto.CoAuthorInput, error) {
	if raw == "" {
		return nil, nil
	}
	var coAuthors []dto.CoAuthorInput
	if err := json.Unmarshal([]byte(raw), &coAuthors); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "co_authors must be a JSON array")
	}
	return coAuthors, nil
}

func openUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+field+" upload")
	}
	return uploadFromHeader(header)
}

func openUploads(c *gin.Context, field string) ([]*service.Upload, func(), error) {
	noop := func() {}
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, noop, nil
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}

	var uploads []*service.Upload
	var closers []func()
	for _, header := range form.File[field] {
		upload, closeFn, err := uploadFromHeader(header)
		if err != nil {
			for _, fn := range closers {
				fn()
			}
			return nil, noop, err
		}
		uploads = append(uploads, upload)
		closers = append(closers, closeFn)
	}
	return uploads, func() {
		for _, fn := range closers {
			fn()
		}
	}, nil
}

func uploadFromHeader(header *multipart.FileHeader) (*service.Upload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	return &service.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Reader:   file,
	}, func() { _ = file.Close() }, nil
}
