package baas

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// Response shapes use pointers so a missing attribute is distinguishable
// from a zero value. checkShape rejects documents lacking required fields.

var shapes = newShapeValidator()

func newShapeValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func checkShape(out any) error {
	err := shapes.Struct(out)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("unexpected document shape: %s", strings.Join(problems, "; "))
}

type identified interface {
	documentID() string
}

type documentList[T any] struct {
	Total     *int `json:"total" validate:"required"`
	Documents []T  `json:"documents" validate:"required,dive"`
}

type versionResponse struct {
	Version *string `json:"version" validate:"required"`
}

type ratingDocument struct {
	ID           *string    `json:"$id" validate:"required,min=1"`
	CreatedAt    *time.Time `json:"$createdAt" validate:"required"`
	StallID      *string    `json:"stallId" validate:"required,min=1"`
	UserID       *string    `json:"userId" validate:"required,min=1"`
	Selection    *float64   `json:"selection" validate:"required,gte=0,lte=10"`
	Friendliness *float64   `json:"friendliness" validate:"required,gte=0,lte=10"`
	Creativity   *float64   `json:"creativity" validate:"required,gte=0,lte=10"`
	Comment      *string    `json:"comment"`
}

func (d *ratingDocument) documentID() string { return *d.ID }

func (d ratingDocument) toDomain() domain.Rating {
	return domain.Rating{
		ID:      *d.ID,
		StallID: *d.StallID,
		UserID:  *d.UserID,
		Scores: domain.Scores{
			Selection:    *d.Selection,
			Friendliness: *d.Friendliness,
			Creativity:   *d.Creativity,
		},
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type marketDocument struct {
	ID          *string    `json:"$id" validate:"required,min=1"`
	Name        *string    `json:"name" validate:"required,min=1"`
	Description *string    `json:"description"`
	Latitude    *float64   `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64   `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address     *string    `json:"address" validate:"required"`
	City        *string    `json:"city" validate:"required"`
	PostalCode  *string    `json:"postalCode"`
	StartDate   *time.Time `json:"startDate" validate:"required"`
	EndDate     *time.Time `json:"endDate" validate:"required"`
	IsActive    *bool      `json:"isActive" validate:"required"`
}

func (d *marketDocument) documentID() string { return *d.ID }

func (d marketDocument) toDomain() domain.Market {
	return domain.Market{
		ID:          *d.ID,
		Name:        *d.Name,
		Description: d.Description,
		Location: domain.Location{
			Coordinates: domain.Coordinates{Latitude: *d.Latitude, Longitude: *d.Longitude},
			Address:     *d.Address,
			City:        *d.City,
			PostalCode:  d.PostalCode,
		},
		StartDate: d.StartDate.UTC(),
		EndDate:   d.EndDate.UTC(),
		IsActive:  *d.IsActive,
	}
}

type marketData struct {
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	PostalCode  *string   `json:"postalCode,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IsActive    bool      `json:"isActive"`
}

type stallDocument struct {
	ID          *string    `json:"$id" validate:"required,min=1"`
	CreatedAt   *time.Time `json:"$createdAt" validate:"required"`
	UpdatedAt   *time.Time `json:"$updatedAt"`
	MarketID    *string    `json:"marketId" validate:"required,min=1"`
	VendorID    *string    `json:"vendorId"`
	Name        *string    `json:"name" validate:"required,min=1"`
	Description *string    `json:"description"`
	Phone       *string    `json:"phone"`
	PhotoIDs    []string   `json:"photoIds"`
}

func (d *stallDocument) documentID() string { return *d.ID }

func (d stallDocument) toDomain() domain.Stall {
	s := domain.Stall{
		ID:          *d.ID,
		MarketID:    *d.MarketID,
		VendorID:    d.VendorID,
		Name:        *d.Name,
		Description: d.Description,
		Phone:       d.Phone,
		PhotoIDs:    append([]string{}, d.PhotoIDs...),
		Ratings:     []domain.Rating{},
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.CreatedAt.UTC(),
	}
	if d.UpdatedAt != nil {
		s.UpdatedAt = d.UpdatedAt.UTC()
	}
	return s
}

type photoDocument struct {
	ID                    *string    `json:"$id" validate:"required,min=1"`
	RawFileID             *string    `json:"rawFileId" validate:"required,min=1"`
	ProcessedFileID       *string    `json:"processedFileId"`
	Filename              *string    `json:"filename" validate:"required"`
	MimeType              *string    `json:"mimeType" validate:"required"`
	Size                  *int64     `json:"size" validate:"required,gte=0"`
	UserID                *string    `json:"userId" validate:"required,min=1"`
	StallID               *string    `json:"stallId"`
	UploadedAt            *time.Time `json:"uploadedAt" validate:"required"`
	Caption               *string    `json:"caption"`
	ProcessingStatus      *string    `json:"processingStatus" validate:"required,oneof=pending processing completed failed"`
	FaceCount             *int       `json:"faceCount"`
	ProcessingStartedAt   *time.Time `json:"processingStartedAt"`
	ProcessingCompletedAt *time.Time `json:"processingCompletedAt"`
}

func (d *photoDocument) documentID() string { return *d.ID }

func (d photoDocument) toDomain() domain.Photo {
	return domain.Photo{
		ID:                    *d.ID,
		RawFileID:             *d.RawFileID,
		ProcessedFileID:       d.ProcessedFileID,
		Filename:              *d.Filename,
		MimeType:              *d.MimeType,
		Size:                  *d.Size,
		UserID:                *d.UserID,
		StallID:               d.StallID,
		UploadedAt:            d.UploadedAt.UTC(),
		Caption:               d.Caption,
		ProcessingStatus:      domain.ProcessingStatus(*d.ProcessingStatus),
		FaceCount:             d.FaceCount,
		ProcessingStartedAt:   d.ProcessingStartedAt,
		ProcessingCompletedAt: d.ProcessingCompletedAt,
	}
}

type fileResponse struct {
	ID           *string `json:"$id" validate:"required,min=1"`
	Name         *string `json:"name" validate:"required"`
	MimeType     *string `json:"mimeType" validate:"required"`
	SizeOriginal *int64  `json:"sizeOriginal" validate:"required,gte=0"`
}

type executionResponse struct {
	ID     *string `json:"$id" validate:"required,min=1"`
	Status *string `json:"status" validate:"required"`
}

type accountResponse struct {
	ID     *string  `json:"$id" validate:"required,min=1"`
	Name   *string  `json:"name" validate:"required"`
	Email  *string  `json:"email" validate:"required"`
	Labels []string `json:"labels"`
}
