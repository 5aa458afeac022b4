// Package domain holds the typed identifiers shared across verticals.
// Wrapping uuid.UUID in distinct named types makes cross-entity ID mixups a
// compile error instead of a data bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "manasik/pkg/domain-errors"
)

type (
	// UserID identifies a pilgrim account (owned by the identity provider).
	UserID uuid.UUID
	// StepID identifies a registration step in the catalog.
	StepID uuid.UUID
	// RegistrationID identifies a per-user registration progress record.
	RegistrationID uuid.UUID
)

// NewStepID mints a random step ID.
func NewStepID() StepID { return StepID(uuid.New()) }

// NewRegistrationID mints a random registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id StepID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs as canonical UUID strings in JSON payloads.
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id StepID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id RegistrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *StepID) UnmarshalText(text []byte) error {
	parsed, err := ParseStepID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RegistrationID) UnmarshalText(text []byte) error {
	parsed, err := ParseRegistrationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseStepID parses and validates a step ID from its string form.
func ParseStepID(raw string) (StepID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return StepID{}, err
	}
	return StepID(parsed), nil
}

// ParseRegistrationID parses and validates a registration ID from its string form.
func ParseRegistrationID(raw string) (RegistrationID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return RegistrationID{}, err
	}
	return RegistrationID(parsed), nil
}
