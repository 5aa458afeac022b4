package service

import (
	"context"
	"errors"

	"manasik/internal/audit"
	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"
	"manasik/pkg/requestcontext"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// GetOrCreate returns the user's progress record, creating one lazily at the
// lowest-order active step. Concurrent calls for the same user collapse to a
// single create; the store's conditional insert covers races across
// processes.
func (s *Service) GetOrCreate(ctx context.Context, userID id.UserID) (*models.Registration, error) {
	result, err, _ := s.group.Do(userID.String(), func() (any, error) {
		return s.getOrCreate(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Registration), nil
}

func (s *Service) getOrCreate(ctx context.Context, userID id.UserID) (*models.Registration, error) {
	reg, err := s.registrations.FindByUser(ctx, userID)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}

	active, err := s.ActiveStepsOrdered(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "no active registration steps configured")
	}

	now := requestcontext.Now(ctx)
	fresh := models.NewRegistration(id.NewRegistrationID(), userID, active[0].ID, now)
	reg, created, err := s.registrations.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
	}
	if created {
		s.incrementRegistrationsCreated()
		s.logAudit(ctx, string(audit.EventRegistrationOpened),
			"user_id", userID.String(),
			"registration_id", reg.ID.String(),
			"step_id", reg.CurrentStepID.String())
	}
	return reg, nil
}

// GetRegistration fetches one progress record by ID.
func (s *Service) GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.registrations.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	return reg, nil
}

// Advance marks the current step completed and moves to the next active step.
// On the last active step the registration stays put and flips to completed;
// advancing again after that is a quiet no-op. When the current step is no
// longer in the active sequence the call is a recorded no-op.
func (s *Service) Advance(ctx context.Context, regID id.RegistrationID) (*models.Registration, models.BatchOutcomeKind, error) {
	active, err := s.ActiveStepsOrdered(ctx)
	if err != nil {
		return nil, models.OutcomeError, err
	}

	now := requestcontext.Now(ctx)
	noop := false
	terminal := false
	reg, err := s.registrations.Execute(ctx, regID,
		func(r *models.Registration) error {
			idx := indexOfStep(active, r.CurrentStepID)
			switch {
			case idx < 0:
				noop = true
			case idx == len(active)-1 && r.HasCompleted(r.CurrentStepID):
				terminal = true
			}
			return nil
		},
		func(r *models.Registration) {
			if noop || terminal {
				return
			}
			idx := indexOfStep(active, r.CurrentStepID)
			r.MarkCompleted(r.CurrentStepID)
			if idx+1 < len(active) {
				r.CurrentStepID = active[idx+1].ID
			}
			r.RecomputeStatus(len(active))
			r.UpdatedAt = now
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.OutcomeNotFound, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, models.OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance registration")
	}

	if noop {
		s.recordProgressNoOp(ctx, "advance", reg)
		return reg, models.OutcomeSkipped, nil
	}
	if terminal {
		return reg, models.OutcomeSkipped, nil
	}

	s.incrementStepAdvanced()
	s.logAudit(ctx, string(audit.EventStepAdvanced),
		"user_id", reg.UserID.String(),
		"registration_id", reg.ID.String(),
		"step_id", reg.CurrentStepID.String())
	return reg, models.OutcomeAdvanced, nil
}

// Retreat is the inverse of Advance: it removes the predecessor step from the
// completed set and moves the registration back to it. On the first active
// step, or when the current step is not in the active sequence, the call is a
// recorded no-op.
func (s *Service) Retreat(ctx context.Context, regID id.RegistrationID) (*models.Registration, models.BatchOutcomeKind, error) {
	active, err := s.ActiveStepsOrdered(ctx)
	if err != nil {
		return nil, models.OutcomeError, err
	}

	now := requestcontext.Now(ctx)
	noop := false
	reg, err := s.registrations.Execute(ctx, regID,
		func(r *models.Registration) error {
			if indexOfStep(active, r.CurrentStepID) < 1 {
				noop = true
			}
			return nil
		},
		func(r *models.Registration) {
			idx := indexOfStep(active, r.CurrentStepID)
			if idx < 1 {
				return
			}
			prev := active[idx-1].ID
			r.RemoveCompleted(prev)
			r.CurrentStepID = prev
			r.RecomputeStatus(len(active))
			r.UpdatedAt = now
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.OutcomeNotFound, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, models.OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to retreat registration")
	}

	if noop {
		s.recordProgressNoOp(ctx, "retreat", reg)
		return reg, models.OutcomeSkipped, nil
	}

	s.incrementStepRetreated()
	s.logAudit(ctx, string(audit.EventStepRetreated),
		"user_id", reg.UserID.String(),
		"registration_id", reg.ID.String(),
		"step_id", reg.CurrentStepID.String())
	return reg, models.OutcomeRetreated, nil
}

// MarkFailed moves a registration to the terminal failed status.
func (s *Service) MarkFailed(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	reg, err := s.registrations.Execute(ctx, regID,
		func(r *models.Registration) error {
			if err := r.CanFail(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, "registration is already failed")
				}
				return err
			}
			return nil
		},
		func(r *models.Registration) {
			r.ApplyFailure(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark registration failed")
	}

	s.incrementRegistrationsFailed()
	s.logAudit(ctx, string(audit.EventRegistrationFailed),
		"user_id", reg.UserID.String(),
		"registration_id", reg.ID.String())
	return reg, nil
}

// AdvanceBatch advances each named registration, reporting a per-record
// outcome instead of failing the whole batch.
func (s *Service) AdvanceBatch(ctx context.Context, req *models.BatchProgressRequest) ([]models.BatchOutcome, error) {
	return s.progressBatch(ctx, req, s.Advance)
}

// RetreatBatch retreats each named registration, reporting a per-record
// outcome instead of failing the whole batch.
func (s *Service) RetreatBatch(ctx context.Context, req *models.BatchProgressRequest) ([]models.BatchOutcome, error) {
	return s.progressBatch(ctx, req, s.Retreat)
}

func (s *Service) progressBatch(ctx context.Context, req *models.BatchProgressRequest,
	op func(context.Context, id.RegistrationID) (*models.Registration, models.BatchOutcomeKind, error)) ([]models.BatchOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids, outcomes := req.ParseRegistrationIDs()
	for _, regID := range ids {
		_, kind, err := op(ctx, regID)
		outcome := models.BatchOutcome{RegistrationID: regID.String(), Outcome: kind}
		if err != nil {
			outcome.Detail = dErrors.MessageOf(err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func indexOfStep(active []*models.Step, stepID id.StepID) int {
	for i, step := range active {
		if step.ID == stepID {
			return i
		}
	}
	return -1
}

func (s *Service) recordProgressNoOp(ctx context.Context, op string, reg *models.Registration) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "registration step no-op",
			"op", op,
			"registration_id", reg.ID.String(),
			"current_step_id", reg.CurrentStepID.String())
	}
	if s.metrics != nil {
		s.metrics.StepNoOp.WithLabelValues(op).Inc()
	}
}

func (s *Service) incrementRegistrationsCreated() {
	if s.metrics != nil {
		s.metrics.RegistrationsCreated.Inc()
	}
}

func (s *Service) incrementRegistrationsFailed() {
	if s.metrics != nil {
		s.metrics.RegistrationsFailed.Inc()
	}
}

func (s *Service) incrementStepAdvanced() {
	if s.metrics != nil {
		s.metrics.StepAdvanced.Inc()
	}
}

func (s *Service) incrementStepRetreated() {
	if s.metrics != nil {
		s.metrics.StepRetreated.Inc()
	}
}
