package models

import (
	"strings"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// CreateStepRequest carries the admin input for defining a new step.
type CreateStepRequest struct {
	Code        string        `json:"code"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ActionType  StepAction    `json:"action_type"`
	DataScope   StepDataScope `json:"data_scope"`
	Order       int           `json:"order"`
	IsActive    *bool         `json:"is_active,omitempty"`
}

// Normalize trims surrounding whitespace from free-text fields.
func (r *CreateStepRequest) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

// Validate checks the request against the step field invariants.
func (r *CreateStepRequest) Validate() error {
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if len(r.Code) > 50 {
		return dErrors.New(dErrors.CodeValidation, "code must be 50 characters or less")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > 100 {
		return dErrors.New(dErrors.CodeValidation, "title must be 100 characters or less")
	}
	if r.Order < 1 {
		return dErrors.New(dErrors.CodeValidation, "order must be a positive integer")
	}
	if !r.ActionType.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown action type %q", r.ActionType)
	}
	if !r.DataScope.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown data scope %q", r.DataScope)
	}
	return nil
}

// Active resolves the optional is_active flag; steps default to active.
func (r *CreateStepRequest) Active() bool {
	if r.IsActive == nil {
		return true
	}
	return *r.IsActive
}

// UpdateStepRequest carries a partial update for an existing step. Nil fields
// are left untouched.
type UpdateStepRequest struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	ActionType  *StepAction    `json:"action_type,omitempty"`
	DataScope   *StepDataScope `json:"data_scope,omitempty"`
	Order       *int           `json:"order,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
}

// Normalize trims surrounding whitespace from free-text fields.
func (r *UpdateStepRequest) Normalize() {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
}

// Validate checks the populated fields against the step field invariants.
func (r *UpdateStepRequest) Validate() error {
	if r.Title != nil {
		if *r.Title == "" {
			return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
		if len(*r.Title) > 100 {
			return dErrors.New(dErrors.CodeValidation, "title must be 100 characters or less")
		}
	}
	if r.Order != nil && *r.Order < 1 {
		return dErrors.New(dErrors.CodeValidation, "order must be a positive integer")
	}
	if r.ActionType != nil && !r.ActionType.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown action type %q", *r.ActionType)
	}
	if r.DataScope != nil && !r.DataScope.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown data scope %q", *r.DataScope)
	}
	return nil
}

// IsEmpty reports whether the update touches nothing.
func (r *UpdateStepRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.ActionType == nil &&
		r.DataScope == nil && r.Order == nil && r.IsActive == nil
}

// ApplyTo copies the populated fields onto the step. The caller validates
// first and persists after.
func (r *UpdateStepRequest) ApplyTo(s *Step) {
	if r.Title != nil {
		s.Title = *r.Title
	}
	if r.Description != nil {
		s.Description = *r.Description
	}
	if r.ActionType != nil {
		s.ActionType = *r.ActionType
	}
	if r.DataScope != nil {
		s.DataScope = *r.DataScope
	}
	if r.Order != nil {
		s.Order = *r.Order
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// BatchProgressRequest names the registrations an admin wants to move in bulk.
type BatchProgressRequest struct {
	RegistrationIDs []string `json:"registration_ids"`
}

// Validate checks that at least one registration was named.
func (r *BatchProgressRequest) Validate() error {
	if len(r.RegistrationIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "registration_ids is required")
	}
	return nil
}

// BatchOutcomeKind classifies what happened to one registration in a batch.
type BatchOutcomeKind string

const (
	OutcomeAdvanced  BatchOutcomeKind = "advanced"
	OutcomeRetreated BatchOutcomeKind = "retreated"
	OutcomeSkipped   BatchOutcomeKind = "skipped"
	OutcomeNotFound  BatchOutcomeKind = "not_found"
	OutcomeError     BatchOutcomeKind = "error"
)

// BatchOutcome is the per-registration result of a bulk advance or retreat.
type BatchOutcome struct {
	RegistrationID string           `json:"registration_id"`
	Outcome        BatchOutcomeKind `json:"outcome"`
	Detail         string           `json:"detail,omitempty"`
}

// ParseRegistrationIDs parses and deduplicates the raw ID list, reporting
// unparseable entries as error outcomes rather than failing the batch.
func (r *BatchProgressRequest) ParseRegistrationIDs() ([]id.RegistrationID, []BatchOutcome) {
	seen := make(map[id.RegistrationID]struct{}, len(r.RegistrationIDs))
	ids := make([]id.RegistrationID, 0, len(r.RegistrationIDs))
	var invalid []BatchOutcome
	for _, raw := range r.RegistrationIDs {
		regID, err := id.ParseRegistrationID(raw)
		if err != nil {
			invalid = append(invalid, BatchOutcome{
				RegistrationID: raw,
				Outcome:        OutcomeError,
				Detail:         dErrors.MessageOf(err),
			})
			continue
		}
		if _, ok := seen[regID]; ok {
			continue
		}
		seen[regID] = struct{}{}
		ids = append(ids, regID)
	}
	return ids, invalid
}
