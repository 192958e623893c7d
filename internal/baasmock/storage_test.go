package baasmock

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) upload(name, mimeType string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(h.t, form.WriteField("fileId", "file-"+name))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", mimeType)
	part, err := form.CreatePart(header)
	require.NoError(h.t, err)
	_, err = part.Write(content)
	require.NoError(h.t, err)
	require.NoError(h.t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/storage/buckets/photos/files", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	for k, v := range h.authed() {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) createPhoto(rawFileID, mimeType string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/databases/lopperater/collections/photos/documents", map[string]any{
		"documentId": "unique()",
		"data": map[string]any{
			"rawFileId": rawFileID, "filename": "x", "mimeType": mimeType, "size": 3,
			"userId": "u1", "uploadedAt": "2026-05-02T10:00:00Z", "processingStatus": "pending",
		},
	}, h.authed())
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(h.t, rec)["$id"].(string)
}

func (h *harness) execute(photoID, rawFileID string) map[string]any {
	h.t.Helper()
	body, err := json.Marshal(map[string]string{"photoRecordId": photoID, "rawFileId": rawFileID})
	require.NoError(h.t, err)
	rec := h.do(http.MethodPost, "/v1/functions/faceBlur/executions", map[string]any{"body": string(body), "async": true}, h.authed())
	require.Equal(h.t, http.StatusCreated, rec.Code)
	return decode(h.t, rec)
}

func (h *harness) photo(id string) map[string]any {
	for _, d := range h.server.Documents("photos") {
		if d["$id"] == id {
			return d
		}
	}
	return nil
}

func TestUploadFile(t *testing.T) {
	h := newHarness(t, Options{})
	rec := h.upload("bod.jpg", "image/jpeg", []byte("abc"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "file-bod.jpg", body["$id"])
	assert.Equal(t, "image/jpeg", body["mimeType"])
	assert.Equal(t, float64(3), body["sizeOriginal"])

	rec = h.upload("bod.jpg", "image/jpeg", []byte("abc"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecutionCompletesImages(t *testing.T) {
	h := newHarness(t, Options{})
	require.Equal(t, http.StatusCreated, h.upload("bod.jpg", "image/jpeg", []byte("abc")).Code)
	id := h.createPhoto("file-bod.jpg", "image/jpeg")

	exec := h.execute(id, "file-bod.jpg")
	assert.Equal(t, "completed", exec["status"])

	photo := h.photo(id)
	assert.Equal(t, "completed", photo["processingStatus"])
	assert.NotEmpty(t, photo["processedFileId"])
	assert.NotEmpty(t, photo["processingStartedAt"])
	assert.NotEmpty(t, photo["processingCompletedAt"])
}

func TestExecutionFailsNonImages(t *testing.T) {
	h := newHarness(t, Options{})
	require.Equal(t, http.StatusCreated, h.upload("notes.txt", "text/plain", []byte("abc")).Code)
	id := h.createPhoto("file-notes.txt", "text/plain")

	h.execute(id, "file-notes.txt")
	assert.Equal(t, "failed", h.photo(id)["processingStatus"])

	exec := h.execute("missing", "file-notes.txt")
	assert.Equal(t, "failed", exec["status"])
}

func TestExecutionWithDelay(t *testing.T) {
	h := newHarness(t, Options{ProcessingDelay: 20 * time.Millisecond})
	require.Equal(t, http.StatusCreated, h.upload("bod.png", "image/png", []byte("abc")).Code)
	id := h.createPhoto("file-bod.png", "image/png")

	exec := h.execute(id, "file-bod.png")
	assert.Equal(t, "waiting", exec["status"])
	assert.Equal(t, "processing", h.photo(id)["processingStatus"])

	assert.Eventually(t, func() bool {
		return h.photo(id)["processingStatus"] == "completed"
	}, time.Second, 5*time.Millisecond)
}

func TestUploadRequiresAuth(t *testing.T) {
	h := newHarness(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/storage/buckets/photos/files", strings.NewReader(""))
	req.Header.Set("X-Appwrite-Project", "proj")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
