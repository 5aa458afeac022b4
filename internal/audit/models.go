package audit

import "time"

// EventType names the audited registration actions.
type EventType string

const (
	EventStepCreated        EventType = "registration_step.created"
	EventStepUpdated        EventType = "registration_step.updated"
	EventStepDeleted        EventType = "registration_step.deleted"
	EventRegistrationOpened EventType = "registration.opened"
	EventStepAdvanced       EventType = "registration.step_advanced"
	EventStepRetreated      EventType = "registration.step_retreated"
	EventRegistrationFailed EventType = "registration.failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	StepID         string    `json:"step_id,omitempty"`
	Action         string    `json:"action"`
	Detail         string    `json:"detail,omitempty"`
}
