package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"manasik/internal/audit"
	"manasik/internal/platform/metrics"
	"manasik/internal/registration/models"
	"manasik/pkg/attrs"
	"manasik/pkg/requestcontext"

	id "manasik/pkg/domain"
)

// StepStore persists the step catalog. Implementations signal uniqueness
// failures with the sentinel errors: ErrAlreadyUsed when the data scope is
// taken, ErrConflict for code or order collisions.
type StepStore interface {
	CreateIfScopeAvailable(ctx context.Context, step *models.Step) error
	FindByID(ctx context.Context, stepID id.StepID) (*models.Step, error)
	FindByCode(ctx context.Context, code string) (*models.Step, error)
	List(ctx context.Context) ([]*models.Step, error)
	ListActiveOrdered(ctx context.Context) ([]*models.Step, error)
	Update(ctx context.Context, step *models.Step) error
	Delete(ctx context.Context, stepID id.StepID) error
}

// RegistrationStore persists per-user progress records.
type RegistrationStore interface {
	// CreateIfAbsent inserts the record unless the user already has one, in
	// which case it returns the existing record with created == false.
	CreateIfAbsent(ctx context.Context, reg *models.Registration) (*models.Registration, bool, error)
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	FindByUser(ctx context.Context, userID id.UserID) (*models.Registration, error)
	// Execute runs validate then mutate on the record under the store's
	// concurrency control, persisting only if both succeed.
	Execute(ctx context.Context, regID id.RegistrationID,
		validate func(*models.Registration) error,
		mutate func(*models.Registration)) (*models.Registration, error)
	// ReferencesStep reports whether any progress record points at the step,
	// either as current step or in its completed set.
	ReferencesStep(ctx context.Context, stepID id.StepID) (bool, error)
}

// AuditPublisher captures domain events for the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// CatalogCache holds a snapshot of the ordered active steps. A miss returns
// ok == false with no error.
type CatalogCache interface {
	Get(ctx context.Context) ([]*models.Step, bool, error)
	Set(ctx context.Context, steps []*models.Step) error
	Invalidate(ctx context.Context) error
}

// Service orchestrates the step catalog and registration progress.
type Service struct {
	steps          StepStore
	registrations  RegistrationStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	cache          CatalogCache

	// group collapses concurrent lazy-create calls for the same user.
	group singleflight.Group
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCatalogCache(cache CatalogCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New constructs a Service.
func New(steps StepStore, registrations RegistrationStore, opts ...Option) *Service {
	s := &Service{steps: steps, registrations: registrations}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:         attrs.ExtractString(attributes, "user_id"),
		RegistrationID: attrs.ExtractString(attributes, "registration_id"),
		StepID:         attrs.ExtractString(attributes, "step_id"),
		Action:         event,
		Detail:         attrs.ExtractString(attributes, "detail"),
	})
}
