// Package rating validates rating input and aggregates stall ratings.
package rating

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
)

const (
	MinScore = 0
	MaxScore = 10
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.ToLower(fld.Name[:1]) + fld.Name[1:]
		}
		return name
	})
	return v
}

// RatingForm is the normalised result of ValidateRatingForm.
type RatingForm struct {
	StallName string
	Phone     string
	Scores    domain.Scores
}

// ValidateScore accepts values in [0,10].
func ValidateScore(field string, value float64) error {
	if math.IsNaN(value) || value < MinScore || value > MaxScore {
		return &OutOfRangeError{Field: field, Value: value, Min: MinScore, Max: MaxScore}
	}
	return nil
}

// ValidateRatingForm checks the rate-a-stall form. A zero score counts as
// unset.
func ValidateRatingForm(stallName, phone string, scores domain.Scores) (RatingForm, error) {
	name := strings.TrimSpace(stallName)
	if name == "" {
		return RatingForm{}, &MissingFieldError{Field: "stallName"}
	}
	if strings.TrimSpace(phone) == "" {
		return RatingForm{}, &MissingFieldError{Field: "phone"}
	}
	fields := scoreFields(scores)
	for _, f := range fields {
		if f.value == 0 {
			return RatingForm{}, &MissingFieldError{Field: f.name}
		}
	}
	normalized, err := ValidatePhoneNumber(phone)
	if err != nil {
		return RatingForm{}, err
	}
	for _, f := range fields {
		if err := ValidateScore(f.name, f.value); err != nil {
			return RatingForm{}, err
		}
	}
	return RatingForm{StallName: name, Phone: normalized, Scores: scores}, nil
}

// ValidateDraft checks a draft before it is submitted.
func ValidateDraft(draft domain.RatingDraft) error {
	return validateStruct(draft)
}

// ValidatePayload checks a create request before it leaves the process.
// Unlike the form and draft checks, a zero score is a real score here.
func ValidatePayload(payload domain.RatingPayload) error {
	if err := checkStructErr(validate.StructExcept(payload, "Scores")); err != nil {
		return err
	}
	for _, f := range scoreFields(payload.Scores) {
		if err := ValidateScore(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMarketDraft checks a new market.
func ValidateMarketDraft(draft domain.MarketDraft) error {
	return validateStruct(draft)
}

// NormalizeStallDraft checks a new stall and normalises its phone number.
func NormalizeStallDraft(draft domain.StallDraft) (domain.StallDraft, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.MarketID == "" {
		return domain.StallDraft{}, &MissingFieldError{Field: "marketId"}
	}
	if draft.Name == "" {
		return domain.StallDraft{}, &MissingFieldError{Field: "name"}
	}
	if draft.Phone != nil {
		if strings.TrimSpace(*draft.Phone) == "" {
			draft.Phone = nil
		} else {
			phone, err := ValidatePhoneNumber(*draft.Phone)
			if err != nil {
				return domain.StallDraft{}, err
			}
			draft.Phone = &phone
		}
	}
	return draft, nil
}

func validateStruct(v any) error {
	return checkStructErr(validate.Struct(v))
}

func checkStructErr(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.NewValidation(err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &MissingFieldError{Field: fe.Field()}
	case "gte", "lte":
		if strings.Contains(fe.StructNamespace(), ".Scores.") {
			value, _ := fe.Value().(float64)
			return &OutOfRangeError{Field: fe.Field(), Value: value, Min: MinScore, Max: MaxScore}
		}
		return apperr.NewValidation(fmt.Sprintf("%s is out of range", fe.Field()))
	case "gtefield":
		return apperr.NewValidation(fmt.Sprintf("%s must not be before %s", fe.Field(), lowerFirst(fe.Param())))
	default:
		return apperr.NewValidation(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
}

type scoreField struct {
	name  string
	value float64
}

func scoreFields(s domain.Scores) []scoreField {
	return []scoreField{
		{"selection", s.Selection},
		{"friendliness", s.Friendliness},
		{"creativity", s.Creativity},
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
