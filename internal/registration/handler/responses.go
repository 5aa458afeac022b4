package handler

import (
	"manasik/internal/registration/models"
)

// StepDetail is the wire form of a catalog step.
type StepDetail struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionType  string `json:"action_type"`
	DataScope   string `json:"data_scope"`
	Order       int    `json:"order"`
	IsActive    bool   `json:"is_active"`
}

// AnnotatedStep is a step with the caller's completion flags.
type AnnotatedStep struct {
	StepDetail
	IsCompleted bool `json:"is_completed"`
	IsCurrent   bool `json:"is_current"`
}

// ProgressMeta summarizes the caller's position. IsCompleted reflects whether
// the current step itself is completed, not the whole registration; clients
// depend on that reading.
type ProgressMeta struct {
	CurrentStepOrder    int  `json:"current_step_order"`
	CompletedStepsCount int  `json:"completed_steps_count"`
	IsCompleted         bool `json:"is_completed"`
}

// ProgressView is the caller's progress record on the wire.
type ProgressView struct {
	CurrentStep    string       `json:"current_step"`
	CompletedSteps []string     `json:"completed_steps"`
	Status         string       `json:"status"`
	Meta           ProgressMeta `json:"meta"`
}

// StepsResponse is the payload of the authenticated steps listing.
type StepsResponse struct {
	CurrentStep *StepDetail     `json:"current_step"`
	AllSteps    []AnnotatedStep `json:"all_steps"`
	Progress    ProgressView    `json:"progress"`
}

// RegistrationView is the admin wire form of a progress record.
type RegistrationView struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	CurrentStepID  string   `json:"current_step_id"`
	CompletedSteps []string `json:"completed_step_ids"`
	Status         string   `json:"status"`
}

func stepDetail(step *models.Step) StepDetail {
	return StepDetail{
		ID:          step.ID.String(),
		Code:        step.Code,
		Title:       step.Title,
		Description: step.Description,
		ActionType:  string(step.ActionType),
		DataScope:   string(step.DataScope),
		Order:       step.Order,
		IsActive:    step.IsActive,
	}
}

func registrationView(reg *models.Registration) RegistrationView {
	completed := make([]string, 0, len(reg.CompletedStepIDs))
	for _, stepID := range reg.CompletedStepIDs {
		completed = append(completed, stepID.String())
	}
	return RegistrationView{
		ID:             reg.ID.String(),
		UserID:         reg.UserID.String(),
		CurrentStepID:  reg.CurrentStepID.String(),
		CompletedSteps: completed,
		Status:         string(reg.Status),
	}
}

func buildStepsResponse(active []*models.Step, reg *models.Registration) StepsResponse {
	annotated := make([]AnnotatedStep, 0, len(active))
	var current *StepDetail
	currentOrder := 0
	currentCompleted := false

	for _, step := range active {
		completed := reg.HasCompleted(step.ID)
		isCurrent := step.ID == reg.CurrentStepID
		annotated = append(annotated, AnnotatedStep{
			StepDetail:  stepDetail(step),
			IsCompleted: completed,
			IsCurrent:   isCurrent,
		})
		if isCurrent {
			detail := stepDetail(step)
			current = &detail
			currentOrder = step.Order
			currentCompleted = completed
		}
	}

	completedIDs := make([]string, 0, len(reg.CompletedStepIDs))
	for _, stepID := range reg.CompletedStepIDs {
		completedIDs = append(completedIDs, stepID.String())
	}

	return StepsResponse{
		CurrentStep: current,
		AllSteps:    annotated,
		Progress: ProgressView{
			CurrentStep:    reg.CurrentStepID.String(),
			CompletedSteps: completedIDs,
			Status:         string(reg.Status),
			Meta: ProgressMeta{
				CurrentStepOrder:    currentOrder,
				CompletedStepsCount: len(reg.CompletedStepIDs),
				IsCompleted:         currentCompleted,
			},
		},
	}
}
