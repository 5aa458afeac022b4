package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"manasik/internal/platform/metrics"
	"manasik/internal/registration/models"
	"manasik/internal/transport/http/shared"
	"manasik/pkg/platform/middleware/admin"
	"manasik/pkg/platform/middleware/auth"
	"manasik/pkg/platform/middleware/request"
	"manasik/pkg/requestcontext"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// Service defines the registration operations the handlers depend on.
type Service interface {
	ActiveStepsOrdered(ctx context.Context) ([]*models.Step, error)
	GetOrCreate(ctx context.Context, userID id.UserID) (*models.Registration, error)

	CreateStep(ctx context.Context, req *models.CreateStepRequest) (*models.Step, error)
	GetStep(ctx context.Context, stepID id.StepID) (*models.Step, error)
	ListSteps(ctx context.Context) ([]*models.Step, error)
	UpdateStep(ctx context.Context, stepID id.StepID, req *models.UpdateStepRequest) (*models.Step, error)
	DeleteStep(ctx context.Context, stepID id.StepID) error

	GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	AdvanceBatch(ctx context.Context, req *models.BatchProgressRequest) ([]models.BatchOutcome, error)
	RetreatBatch(ctx context.Context, req *models.BatchProgressRequest) ([]models.BatchOutcome, error)
	MarkFailed(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
}

// Handler handles registration endpoints.
type Handler struct {
	logger       *slog.Logger
	registration Service
	metrics      *metrics.Metrics
	jwtValidator auth.JWTValidator
	adminCred    admin.Credential
}

// New creates a registration Handler.
func New(
	registration Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator auth.JWTValidator,
	adminCred admin.Credential) *Handler {
	return &Handler{
		logger:       logger,
		registration: registration,
		metrics:      m,
		jwtValidator: jwtValidator,
		adminCred:    adminCred,
	}
}

// Register mounts the authenticated user-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/registration/steps", h.handleGetSteps)
	})
}

// handleGetSteps returns the active step sequence annotated with the caller's
// progress, lazily opening a progress record on first call.
func (h *Handler) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", requestID)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	active, err := h.registration.ActiveStepsOrdered(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load active steps",
			"request_id", requestID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	if len(active) == 0 {
		h.logger.ErrorContext(ctx, "no active registration steps configured",
			"request_id", requestID)
		shared.WriteErrorDetail(w, http.StatusInternalServerError,
			"registration is not configured",
			map[string]string{"steps": "no active registration steps configured"})
		return
	}

	reg, err := h.registration.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve registration progress",
			"request_id", requestID, "user_id", userID.String(), "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, "registration steps", buildStepsResponse(active, reg))
}
