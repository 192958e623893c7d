package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
)

// UploadPhotoFile stores the raw image in the photo bucket.
func (c *Client) UploadPhotoFile(ctx context.Context, upload domain.PhotoUpload) (domain.StoredFile, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("fileId", uuid.NewString()); err != nil {
		return domain.StoredFile{}, fmt.Errorf("upload photo: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
	header.Set("Content-Type", upload.MimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("upload photo: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return domain.StoredFile{}, fmt.Errorf("upload photo: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.StoredFile{}, fmt.Errorf("upload photo: %w", err)
	}

	var out fileResponse
	err = c.do(ctx, request{
		op:          "upload photo",
		method:      http.MethodPost,
		path:        fmt.Sprintf("/storage/buckets/%s/files", url.PathEscape(c.opts.PhotoBucketID)),
		body:        &buf,
		contentType: form.FormDataContentType(),
	}, &out)
	if err != nil {
		return domain.StoredFile{}, err
	}
	return domain.StoredFile{ID: *out.ID, Name: *out.Name, MimeType: *out.MimeType, Size: *out.SizeOriginal}, nil
}

type photoData struct {
	RawFileID        string    `json:"rawFileId"`
	Filename         string    `json:"filename"`
	MimeType         string    `json:"mimeType"`
	Size             int64     `json:"size"`
	UserID           string    `json:"userId"`
	StallID          *string   `json:"stallId,omitempty"`
	UploadedAt       time.Time `json:"uploadedAt"`
	Caption          *string   `json:"caption,omitempty"`
	ProcessingStatus string    `json:"processingStatus"`
}

// CreatePhotoRecord stores photo metadata and returns the stored record.
func (c *Client) CreatePhotoRecord(ctx context.Context, photo domain.Photo) (domain.Photo, error) {
	var doc photoDocument
	err := c.createDocument(ctx, "create photo record", CollectionPhotos, photoData{
		RawFileID:        photo.RawFileID,
		Filename:         photo.Filename,
		MimeType:         photo.MimeType,
		Size:             photo.Size,
		UserID:           photo.UserID,
		StallID:          photo.StallID,
		UploadedAt:       photo.UploadedAt.UTC(),
		Caption:          photo.Caption,
		ProcessingStatus: string(photo.ProcessingStatus),
	}, &doc)
	if err != nil {
		return domain.Photo{}, err
	}
	return doc.toDomain(), nil
}

func (c *Client) GetPhoto(ctx context.Context, id string) (domain.Photo, error) {
	var doc photoDocument
	if err := c.getDocument(ctx, "get photo", CollectionPhotos, id, &doc); err != nil {
		return domain.Photo{}, err
	}
	return doc.toDomain(), nil
}

type processingRequest struct {
	PhotoRecordID string  `json:"photoRecordId"`
	RawFileID     string  `json:"rawFileId"`
	UserID        string  `json:"userId"`
	StallID       *string `json:"stallId,omitempty"`
}

// StartPhotoProcessing triggers the face-blur function asynchronously.
func (c *Client) StartPhotoProcessing(ctx context.Context, photo domain.Photo) error {
	body, err := json.Marshal(processingRequest{
		PhotoRecordID: photo.ID,
		RawFileID:     photo.RawFileID,
		UserID:        photo.UserID,
		StallID:       photo.StallID,
	})
	if err != nil {
		return fmt.Errorf("start photo processing: %w", err)
	}
	req, err := c.jsonRequest("start photo processing", http.MethodPost,
		fmt.Sprintf("/functions/%s/executions", url.PathEscape(c.opts.PhotoFunctionID)),
		map[string]any{"body": string(body), "async": true})
	if err != nil {
		return err
	}
	var out executionResponse
	if err := c.do(ctx, req, &out); err != nil {
		return err
	}
	if *out.Status == "failed" {
		return apperr.NewRemote("photo processing execution failed to start", nil)
	}
	c.logger.Debug().Str("execution_id", *out.ID).Str("photo_id", photo.ID).Msg("photo processing triggered")
	return nil
}
