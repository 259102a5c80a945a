// Package ai defines the external survey-validation collaborator. The
// actual model call lives outside this backend; a disabled implementation
// ships by default.
package ai

import (
	"context"
	"errors"

	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
)

// ValidationResult is the structured outcome of a survey validation.
type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Suggestions []string `json:"suggestions,omitempty"`
	Reflection  string   `json:"reflection,omitempty"`
}

// Validator validates a filled-in survey.
type Validator interface {
	Available() bool
	ValidateSurvey(ctx context.Context, survey model.Survey) (ValidationResult, error)
}

// Disabled is the Validator used when no AI backend is configured.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) ValidateSurvey(context.Context, model.Survey) (ValidationResult, error) {
	return ValidationResult{}, ierr.New(ierr.ErrorCodeUnavailable, errors.New("survey validation is not configured"))
}
