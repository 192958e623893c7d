package domain

import "time"

// ProcessingStatus tracks a photo through the face-blur pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid reports whether s is a known status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether processing has finished, successfully or not.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next respects
// pending -> processing -> completed|failed. Staying put is always allowed.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next.IsTerminal()
	case StatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// Photo is the metadata record for an uploaded stall photo.
type Photo struct {
	ID                    string           `json:"id"`
	RawFileID             string           `json:"rawFileId"`
	ProcessedFileID       *string          `json:"processedFileId,omitempty"`
	Filename              string           `json:"filename"`
	MimeType              string           `json:"mimeType"`
	Size                  int64            `json:"size"`
	UserID                string           `json:"userId"`
	StallID               *string          `json:"stallId,omitempty"`
	UploadedAt            time.Time        `json:"uploadedAt"`
	Caption               *string          `json:"caption,omitempty"`
	ProcessingStatus      ProcessingStatus `json:"processingStatus"`
	FaceCount             *int             `json:"faceCount,omitempty"`
	ProcessingStartedAt   *time.Time       `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time       `json:"processingCompletedAt,omitempty"`
}

// PhotoUpload is a raw image handed to the photo pipeline.
type PhotoUpload struct {
	Filename string
	MimeType string
	Content  []byte
	UserID   string
	StallID  *string
	Caption  *string
}

// StoredFile describes a file accepted by file storage.
type StoredFile struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
}
