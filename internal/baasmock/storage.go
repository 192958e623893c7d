package baasmock

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	who, err := s.authenticate(r)
	if err != nil || who.anonymous() {
		respondError(w, http.StatusUnauthorized, "user_unauthorized", "The current user is not authorized to perform the requested action.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "storage_invalid_file", "Invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "storage_file_empty", "Empty file passed to the endpoint.")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "storage_invalid_file", err.Error())
		return
	}

	id := r.FormValue("fileId")
	if id == "" || id == "unique()" {
		id = uuid.NewString()
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	stored := storedFile{
		id:       id,
		bucket:   chi.URLParam(r, "bucket"),
		name:     header.Filename,
		mimeType: mimeType,
		content:  content,
		created:  s.now().UTC(),
	}

	s.mu.Lock()
	if _, exists := s.files[id]; exists {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, "storage_file_already_exists", "A storage file with the requested ID already exists.")
		return
	}
	s.files[id] = stored
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, fileJSON(stored))
}

func fileJSON(f storedFile) map[string]any {
	return map[string]any{
		"$id":          f.id,
		"bucketId":     f.bucket,
		"$createdAt":   f.created.Format(timeLayout),
		"name":         f.name,
		"mimeType":     f.mimeType,
		"sizeOriginal": len(f.content),
	}
}

type executionRequest struct {
	Body  string `json:"body"`
	Async bool   `json:"async"`
}

type processingPayload struct {
	PhotoRecordID string `json:"photoRecordId"`
	RawFileID     string `json:"rawFileId"`
}

// handleExecution simulates the face-blur function: the photo record moves
// to processing, then to completed for images and failed otherwise.
func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	who, err := s.authenticate(r)
	if err != nil || who.anonymous() {
		respondError(w, http.StatusUnauthorized, "user_unauthorized", "The current user is not authorized to perform the requested action.")
		return
	}
	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "general_argument_invalid", "Invalid request body: "+err.Error())
		return
	}
	execution := map[string]any{
		"$id":        uuid.NewString(),
		"functionId": chi.URLParam(r, "function"),
		"$createdAt": s.now().UTC().Format(timeLayout),
		"status":     "waiting",
	}

	var payload processingPayload
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil || payload.PhotoRecordID == "" {
		execution["status"] = "failed"
		respondJSON(w, http.StatusCreated, execution)
		return
	}

	s.mu.RLock()
	found := s.findLocked("photos", payload.PhotoRecordID) != nil
	raw, hasFile := s.files[payload.RawFileID]
	s.mu.RUnlock()
	if !found {
		execution["status"] = "failed"
		respondJSON(w, http.StatusCreated, execution)
		return
	}

	s.UpdateDocument("photos", payload.PhotoRecordID, map[string]any{
		"processingStatus":    "processing",
		"processingStartedAt": s.now().UTC().Format(timeLayout),
	})
	finish := func() {
		attrs := map[string]any{"processingCompletedAt": s.now().UTC().Format(timeLayout)}
		if hasFile && strings.HasPrefix(raw.mimeType, "image/") {
			processedID := uuid.NewString()
			s.mu.Lock()
			processed := raw
			processed.id = processedID
			processed.name = "blurred_" + raw.name
			s.files[processedID] = processed
			s.mu.Unlock()
			attrs["processingStatus"] = "completed"
			attrs["processedFileId"] = processedID
			attrs["faceCount"] = float64(0)
		} else {
			attrs["processingStatus"] = "failed"
		}
		s.UpdateDocument("photos", payload.PhotoRecordID, attrs)
	}
	if s.opts.ProcessingDelay > 0 {
		time.AfterFunc(s.opts.ProcessingDelay, finish)
	} else {
		finish()
		execution["status"] = "completed"
	}
	respondJSON(w, http.StatusCreated, execution)
}
