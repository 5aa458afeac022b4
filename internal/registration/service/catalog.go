package service

import (
	"context"
	"errors"
	"time"

	"manasik/internal/audit"
	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"
	"manasik/pkg/requestcontext"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// CreateStep defines a new catalog step. Code, order and data scope must all
// be unused.
func (s *Service) CreateStep(ctx context.Context, req *models.CreateStepRequest) (*models.Step, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	step, err := models.NewStep(id.NewStepID(), req.Code, req.Title, req.Description,
		req.ActionType, req.DataScope, req.Order, req.Active(), now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.steps.CreateIfScopeAvailable(ctx, step); err != nil {
		return nil, translateStepUniqueness(err, step.DataScope)
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, string(audit.EventStepCreated),
		"step_id", step.ID.String(),
		"detail", step.Code)
	return step, nil
}

// GetStep fetches one step by ID.
func (s *Service) GetStep(ctx context.Context, stepID id.StepID) (*models.Step, error) {
	step, err := s.steps.FindByID(ctx, stepID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "step not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load step")
	}
	return step, nil
}

// ListSteps returns every catalog step, active or not, ordered by Order.
func (s *Service) ListSteps(ctx context.Context) ([]*models.Step, error) {
	steps, err := s.steps.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list steps")
	}
	return steps, nil
}

// ActiveStepsOrdered returns the active steps sorted by Order ascending. The
// snapshot is served from the catalog cache when one is configured; cache
// failures fall through to the store.
func (s *Service) ActiveStepsOrdered(ctx context.Context) ([]*models.Step, error) {
	start := time.Now()
	defer s.observeCatalogLookup(start)

	if s.cache != nil {
		steps, ok, err := s.cache.Get(ctx)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "catalog cache read failed", "error", err)
		}
		if ok {
			s.incrementCatalogCacheHit()
			return steps, nil
		}
		s.incrementCatalogCacheMiss()
	}

	steps, err := s.steps.ListActiveOrdered(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active steps")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, steps); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "catalog cache write failed", "error", err)
		}
	}
	return steps, nil
}

// UpdateStep applies a partial update. The bootstrap step is immutable.
func (s *Service) UpdateStep(ctx context.Context, stepID id.StepID, req *models.UpdateStepRequest) (*models.Step, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "update must change at least one field")
	}

	step, err := s.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step.IsBootstrap() {
		return nil, dErrors.New(dErrors.CodeForbidden, "the first registration step cannot be modified")
	}
	if req.Order != nil && *req.Order == models.BootstrapStepOrder {
		return nil, dErrors.New(dErrors.CodeForbidden, "order 1 is reserved for the first registration step")
	}

	req.ApplyTo(step)
	step.UpdatedAt = requestcontext.Now(ctx)
	if err := step.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if err := s.steps.Update(ctx, step); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "step not found")
		}
		return nil, translateStepUniqueness(err, step.DataScope)
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, string(audit.EventStepUpdated),
		"step_id", step.ID.String(),
		"detail", step.Code)
	return step, nil
}

// DeleteStep removes a step from the catalog. The bootstrap step and any
// step still referenced by a progress record are protected.
func (s *Service) DeleteStep(ctx context.Context, stepID id.StepID) error {
	step, err := s.GetStep(ctx, stepID)
	if err != nil {
		return err
	}
	if step.IsBootstrap() {
		return dErrors.New(dErrors.CodeForbidden, "the first registration step cannot be deleted")
	}

	referenced, err := s.registrations.ReferencesStep(ctx, stepID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check step references")
	}
	if referenced {
		return dErrors.New(dErrors.CodeConflict, "step is referenced by existing registrations")
	}

	if err := s.steps.Delete(ctx, stepID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "step not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete step")
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, string(audit.EventStepDeleted),
		"step_id", step.ID.String(),
		"detail", step.Code)
	return nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "catalog cache invalidation failed", "error", err)
	}
}

func translateStepUniqueness(err error, scope models.StepDataScope) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Newf(dErrors.CodeConflict, "data scope %q is already owned by another step", scope)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "step code and order must be unique")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist step")
	}
}

func (s *Service) observeCatalogLookup(start time.Time) {
	if s.metrics != nil {
		s.metrics.CatalogLookupDuration.Observe(time.Since(start).Seconds())
	}
}

func (s *Service) incrementCatalogCacheHit() {
	if s.metrics != nil {
		s.metrics.CatalogCacheHits.Inc()
	}
}

func (s *Service) incrementCatalogCacheMiss() {
	if s.metrics != nil {
		s.metrics.CatalogCacheMisses.Inc()
	}
}
