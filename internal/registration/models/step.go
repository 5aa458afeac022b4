package models

import (
	"time"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// StepAction describes what kind of work a step demands from the pilgrim.
type StepAction string

const (
	StepActionFillForm StepAction = "fill_form"
	StepActionUpload   StepAction = "upload"
	StepActionPayment  StepAction = "payment"
	StepActionReview   StepAction = "review"
	StepActionApproval StepAction = "approval"
	StepActionAuto     StepAction = "auto"
)

// IsValid reports whether the action is one of the closed set of values.
func (a StepAction) IsValid() bool {
	switch a {
	case StepActionFillForm, StepActionUpload, StepActionPayment,
		StepActionReview, StepActionApproval, StepActionAuto:
		return true
	}
	return false
}

// StepDataScope names the data domain a step is responsible for. At most one
// step owns a given scope so there is never ambiguity about which step edits
// which part of a pilgrim's file.
type StepDataScope string

const (
	ScopeUser         StepDataScope = "user"
	ScopeRegistration StepDataScope = "registration"
	ScopeDocuments    StepDataScope = "documents"
	ScopePayment      StepDataScope = "payment"
	ScopeVisa         StepDataScope = "visa"
	ScopeHotel        StepDataScope = "hotel"
	ScopeFlight       StepDataScope = "flight"
)

// IsValid reports whether the scope is one of the closed set of values.
func (s StepDataScope) IsValid() bool {
	switch s {
	case ScopeUser, ScopeRegistration, ScopeDocuments, ScopePayment,
		ScopeVisa, ScopeHotel, ScopeFlight:
		return true
	}
	return false
}

// BootstrapStepOrder is the order index of the credentials step every new
// registration starts at. The step holding this order is immutable and
// non-deletable once created: progress records reference it as their default
// starting point.
const BootstrapStepOrder = 1

// Step is one stage of the multi-stage registration workflow.
//
// Invariants:
//   - Code is non-empty, at most 50 characters, and unique
//   - Title is non-empty and at most 100 characters
//   - Order is a positive integer, unique across all steps
//   - DataScope is unique across all steps
//   - The step with Order == BootstrapStepOrder never changes or disappears
type Step struct {
	ID          id.StepID     `json:"id"`
	Code        string        `json:"code"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ActionType  StepAction    `json:"action_type"`
	DataScope   StepDataScope `json:"data_scope"`
	Order       int           `json:"order"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsBootstrap reports whether this is the protected first step.
func (s *Step) IsBootstrap() bool {
	return s.Order == BootstrapStepOrder
}

// Validate checks the step's field invariants.
func (s *Step) Validate() error {
	if s.Code == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "step code cannot be empty")
	}
	if len(s.Code) > 50 {
		return dErrors.New(dErrors.CodeInvariantViolation, "step code must be 50 characters or less")
	}
	if s.Title == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "step title cannot be empty")
	}
	if len(s.Title) > 100 {
		return dErrors.New(dErrors.CodeInvariantViolation, "step title must be 100 characters or less")
	}
	if s.Order < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "step order must be a positive integer")
	}
	if !s.ActionType.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown action type %q", s.ActionType)
	}
	if !s.DataScope.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown data scope %q", s.DataScope)
	}
	return nil
}

// NewStep constructs a validated step.
func NewStep(stepID id.StepID, code, title, description string, action StepAction, scope StepDataScope, order int, active bool, now time.Time) (*Step, error) {
	s := &Step{
		ID:          stepID,
		Code:        code,
		Title:       title,
		Description: description,
		ActionType:  action,
		DataScope:   scope,
		Order:       order,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
