package models

import (
	"time"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// RegistrationStatus is the derived overall state of a pilgrim's registration.
type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "pending"
	StatusCompleted RegistrationStatus = "completed"
	StatusFailed    RegistrationStatus = "failed"
)

// IsValid reports whether the status is one of the closed set of values.
func (s RegistrationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Registration tracks one pilgrim's position in the step sequence.
//
// Invariants:
//   - exactly one record per user (enforced by the store)
//   - CurrentStepID always references an existing step
//   - CompletedStepIDs is a set: no duplicates, no ordering
//   - StatusFailed is terminal and sticky: recomputation only flips
//     pending <-> completed, it never clears a failure
//
// Status is derived from completed-step count versus active-step count, not
// stored authority: RecomputeStatus must run after every mutation of
// CompletedStepIDs.
type Registration struct {
	ID               id.RegistrationID  `json:"id"`
	UserID           id.UserID          `json:"user_id"`
	CurrentStepID    id.StepID          `json:"current_step_id"`
	CompletedStepIDs []id.StepID        `json:"completed_step_ids"`
	Status           RegistrationStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewRegistration seeds a progress record at the given first step.
func NewRegistration(regID id.RegistrationID, userID id.UserID, firstStep id.StepID, now time.Time) *Registration {
	return &Registration{
		ID:            regID,
		UserID:        userID,
		CurrentStepID: firstStep,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasCompleted reports whether the step is in the completed set.
func (r *Registration) HasCompleted(stepID id.StepID) bool {
	for _, completed := range r.CompletedStepIDs {
		if completed == stepID {
			return true
		}
	}
	return false
}

// MarkCompleted adds the step to the completed set (idempotent).
func (r *Registration) MarkCompleted(stepID id.StepID) {
	if r.HasCompleted(stepID) {
		return
	}
	r.CompletedStepIDs = append(r.CompletedStepIDs, stepID)
}

// RemoveCompleted removes the step from the completed set (idempotent).
func (r *Registration) RemoveCompleted(stepID id.StepID) {
	for i, completed := range r.CompletedStepIDs {
		if completed == stepID {
			r.CompletedStepIDs = append(r.CompletedStepIDs[:i], r.CompletedStepIDs[i+1:]...)
			return
		}
	}
}

// IsCompleted reports whether the completed set covers all active steps.
func (r *Registration) IsCompleted(activeStepCount int) bool {
	return len(r.CompletedStepIDs) >= activeStepCount
}

// RecomputeStatus re-derives the status after a completed-set mutation.
// A failed registration stays failed.
func (r *Registration) RecomputeStatus(activeStepCount int) {
	if r.Status == StatusFailed {
		return
	}
	if activeStepCount > 0 && r.IsCompleted(activeStepCount) {
		r.Status = StatusCompleted
		return
	}
	r.Status = StatusPending
}

// CanFail checks whether the registration can transition to failed.
func (r *Registration) CanFail() error {
	if r.Status == StatusFailed {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration is already failed")
	}
	return nil
}

// ApplyFailure transitions the registration to the terminal failed status.
// Call CanFail first to validate the transition.
func (r *Registration) ApplyFailure(now time.Time) {
	r.Status = StatusFailed
	r.UpdatedAt = now
}
