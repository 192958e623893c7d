// Package photos runs the stall photo pipeline: upload the raw file, record
// it as pending, trigger the face-blur function and follow its status.
package photos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
)

const (
	MaxPhotoBytes       = 10 << 20
	defaultPollInterval = 2 * time.Second
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// Options configures a Service.
type Options struct {
	Storage      domain.PhotoStorage
	Logger       zerolog.Logger
	PollInterval time.Duration
}

// Service drives uploads through the storage collaborator.
type Service struct {
	storage      domain.PhotoStorage
	logger       zerolog.Logger
	pollInterval time.Duration
	now          func() time.Time
}

func New(opts Options) *Service {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		storage:      opts.Storage,
		logger:       opts.Logger,
		pollInterval: interval,
		now:          time.Now,
	}
}

// ValidateUpload checks an upload before anything is sent.
func ValidateUpload(upload domain.PhotoUpload) error {
	if strings.TrimSpace(upload.Filename) == "" {
		return apperr.NewValidation("filename is required")
	}
	if strings.TrimSpace(upload.UserID) == "" {
		return apperr.NewAuthentication("you must be logged in to upload photos")
	}
	if !allowedMimeTypes[strings.ToLower(upload.MimeType)] {
		return apperr.NewValidation(fmt.Sprintf("unsupported photo type %q", upload.MimeType))
	}
	if len(upload.Content) == 0 {
		return apperr.NewValidation("photo is empty")
	}
	if len(upload.Content) > MaxPhotoBytes {
		return apperr.NewValidation(fmt.Sprintf("photo exceeds %d MiB", MaxPhotoBytes>>20))
	}
	return nil
}

// Upload stores the file, creates its pending record and starts processing.
// When only the trigger fails the created record is returned with the error
// so the caller can retry processing later.
func (s *Service) Upload(ctx context.Context, upload domain.PhotoUpload) (domain.Photo, error) {
	if err := ValidateUpload(upload); err != nil {
		return domain.Photo{}, err
	}

	file, err := s.storage.UploadPhotoFile(ctx, upload)
	if err != nil {
		return domain.Photo{}, apperr.FromCollaborator(ctx, "upload photo", err)
	}

	photo, err := s.storage.CreatePhotoRecord(ctx, domain.Photo{
		RawFileID:        file.ID,
		Filename:         upload.Filename,
		MimeType:         file.MimeType,
		Size:             file.Size,
		UserID:           upload.UserID,
		StallID:          upload.StallID,
		UploadedAt:       s.now().UTC(),
		Caption:          upload.Caption,
		ProcessingStatus: domain.StatusPending,
	})
	if err != nil {
		return domain.Photo{}, apperr.FromCollaborator(ctx, "create photo record", err)
	}
	metrics.PhotoStatus.WithLabelValues(string(domain.StatusPending)).Inc()

	if err := s.storage.StartPhotoProcessing(ctx, photo); err != nil {
		s.logger.Warn().Err(err).Str("photo_id", photo.ID).Msg("failed to start photo processing")
		return photo, apperr.FromCollaborator(ctx, "start photo processing", err)
	}

	s.logger.Info().
		Str("photo_id", photo.ID).
		Str("raw_file_id", photo.RawFileID).
		Int64("size", photo.Size).
		Msg("photo uploaded")
	return photo, nil
}

// Status fetches the current record.
func (s *Service) Status(ctx context.Context, photoID string) (domain.Photo, error) {
	photo, err := s.storage.GetPhoto(ctx, photoID)
	if err != nil {
		return domain.Photo{}, apperr.FromCollaborator(ctx, "get photo", err)
	}
	return photo, nil
}

// WaitForProcessing polls until the photo reaches a terminal status or ctx
// ends. A status moving backwards is reported as a malformed response.
func (s *Service) WaitForProcessing(ctx context.Context, photoID string) (domain.Photo, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	last := domain.StatusPending
	for {
		photo, err := s.Status(ctx, photoID)
		if err != nil {
			return domain.Photo{}, err
		}
		if err := checkTransition(photo, last); err != nil {
			return photo, err
		}
		if photo.ProcessingStatus != last {
			metrics.PhotoStatus.WithLabelValues(string(photo.ProcessingStatus)).Inc()
			last = photo.ProcessingStatus
		}
		if last.IsTerminal() {
			return photo, nil
		}

		select {
		case <-ctx.Done():
			return photo, apperr.FromCollaborator(ctx, "wait for photo", ctx.Err())
		case <-ticker.C:
		}
	}
}

func checkTransition(photo domain.Photo, last domain.ProcessingStatus) error {
	if !photo.ProcessingStatus.Valid() {
		return apperr.NewMalformedResponse(fmt.Sprintf("photo %s has unknown status %q", photo.ID, photo.ProcessingStatus), nil)
	}
	if !last.CanTransitionTo(photo.ProcessingStatus) {
		return apperr.NewMalformedResponse(fmt.Sprintf("photo %s moved from %s back to %s", photo.ID, last, photo.ProcessingStatus), nil)
	}
	return nil
}
