package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoAuthors(t *testing.T) {
	coAuthors, err := parseCoAuthors(`[{"name":"Anna","surname":"Nowak"},{"name":"Piotr","surname":"Lis","email":"p@example.com"}]`)
	require.NoError(t, err)
	require.Len(t, coAuthors, 2)
	assert.Equal(t, "Anna", coAuthors[0].Name)
	assert.Equal(t, "p@example.com", coAuthors[1].Email)
}

func TestParseCoAuthorsEmptyField(t *testing.T) {
	coAuthors, err := parseCoAuthors("")
	require.NoError(t, err)
	assert.Nil(t, coAuthors)
}

func TestParseCoAuthorsRejectsMalformedJSON(t *testing.T) {
	_, err := parseCoAuthors(`{"name":"not a list"}`)
	require.Error(t, err)
}

func TestOpenUploadsReadsMultipartFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "draft.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/papers", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req

	uploads, closeUploads, err := openUploads(c, "files")
	require.NoError(t, err)
	defer closeUploads()

	require.Len(t, uploads, 1)
	assert.Equal(t, "draft.pdf", uploads[0].Filename)
	assert.Equal(t, int64(len("%PDF-1.4 test")), uploads[0].Size)
}

func TestCreatePaperRequiresAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPaperHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/papers", nil)
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPaperHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/files/download", nil)
	c.Request = req

	handler.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
