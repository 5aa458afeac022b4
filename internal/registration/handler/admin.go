package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"manasik/internal/registration/models"
	"manasik/internal/transport/http/shared"
	"manasik/pkg/platform/middleware/admin"
	"manasik/pkg/platform/middleware/request"

	id "manasik/pkg/domain"
	dErrors "manasik/pkg/domain-errors"
)

// RegisterAdmin mounts the operator routes behind the admin token gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminCred, h.logger))

		r.Post("/registration/steps", h.handleCreateStep)
		r.Get("/registration/steps", h.handleListSteps)
		r.Get("/registration/steps/{id}", h.handleGetStep)
		r.Patch("/registration/steps/{id}", h.handleUpdateStep)
		r.Delete("/registration/steps/{id}", h.handleDeleteStep)

		r.Post("/registrations/advance", h.handleAdvanceBatch)
		r.Post("/registrations/retreat", h.handleRetreatBatch)
		r.Get("/registrations/{id}", h.handleGetRegistration)
		r.Post("/registrations/{id}/fail", h.handleFailRegistration)
	})
}

func (h *Handler) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	step, err := h.registration.CreateStep(ctx, &req)
	if err != nil {
		h.logAdminFailure(r, "create step", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, "step created", stepDetail(step))
}

func (h *Handler) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.registration.ListSteps(r.Context())
	if err != nil {
		h.logAdminFailure(r, "list steps", err)
		shared.WriteError(w, err)
		return
	}
	details := make([]StepDetail, 0, len(steps))
	for _, step := range steps {
		details = append(details, stepDetail(step))
	}
	shared.WriteJSON(w, http.StatusOK, "steps", details)
}

func (h *Handler) handleGetStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := id.ParseStepID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	step, err := h.registration.GetStep(r.Context(), stepID)
	if err != nil {
		h.logAdminFailure(r, "get step", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "step", stepDetail(step))
}

func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := id.ParseStepID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.UpdateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	step, err := h.registration.UpdateStep(r.Context(), stepID, &req)
	if err != nil {
		h.logAdminFailure(r, "update step", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "step updated", stepDetail(step))
}

func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := id.ParseStepID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.registration.DeleteStep(r.Context(), stepID); err != nil {
		h.logAdminFailure(r, "delete step", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdvanceBatch(w http.ResponseWriter, r *http.Request) {
	h.handleProgressBatch(w, r, "advance", h.registration.AdvanceBatch)
}

func (h *Handler) handleRetreatBatch(w http.ResponseWriter, r *http.Request) {
	h.handleProgressBatch(w, r, "retreat", h.registration.RetreatBatch)
}

func (h *Handler) handleProgressBatch(w http.ResponseWriter, r *http.Request, op string,
	batch func(ctx context.Context, req *models.BatchProgressRequest) ([]models.BatchOutcome, error)) {
	ctx := r.Context()
	var req models.BatchProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	outcomes, err := batch(ctx, &req)
	if err != nil {
		h.logAdminFailure(r, op, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, op+" processed", map[string]any{"results": outcomes})
}

func (h *Handler) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	reg, err := h.registration.GetRegistration(r.Context(), regID)
	if err != nil {
		h.logAdminFailure(r, "get registration", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "registration", registrationView(reg))
}

func (h *Handler) handleFailRegistration(w http.ResponseWriter, r *http.Request) {
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	reg, err := h.registration.MarkFailed(r.Context(), regID)
	if err != nil {
		h.logAdminFailure(r, "fail registration", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "registration failed", registrationView(reg))
}

func (h *Handler) logAdminFailure(r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "admin operation failed",
			"op", op, "request_id", request.GetRequestID(ctx), "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, "admin operation rejected",
		"op", op, "request_id", request.GetRequestID(ctx), "error", err.Error())
}
