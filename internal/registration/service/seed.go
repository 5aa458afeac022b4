package service

import (
	"context"
	"errors"
	"time"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// BootstrapStepCode is the code of the seeded first step.
const BootstrapStepCode = "change_credentials"

// SeedBootstrapStep ensures the catalog contains the first step every new
// registration starts at. Idempotent: an existing step with the bootstrap
// code, or a concurrent seed from another instance, is not an error.
func (s *Service) SeedBootstrapStep(ctx context.Context) error {
	_, err := s.steps.FindByCode(ctx, BootstrapStepCode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check bootstrap step")
	}

	now := time.Now()
	step, err := models.NewStep(id.NewStepID(), BootstrapStepCode,
		"Change Username and Password",
		"Replace the issued credentials before any other registration step.",
		models.StepActionFillForm, models.ScopeUser, models.BootstrapStepOrder, true, now)
	if err != nil {
		return err
	}

	if err := s.steps.CreateIfScopeAvailable(ctx, step); err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed bootstrap step")
	}

	s.invalidateCatalog(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "seeded bootstrap registration step",
			"step_id", step.ID.String(), "code", step.Code)
	}
	return nil
}
