package registration

import (
	"context"
	"fmt"
	"sync"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemoryRegistrationStore stores progress records in memory for tests/dev.
type InMemoryRegistrationStore struct {
	mu     sync.RWMutex
	byID   map[id.RegistrationID]*models.Registration
	byUser map[id.UserID]id.RegistrationID
}

// NewInMemory constructs an empty in-memory registration store.
func NewInMemory() *InMemoryRegistrationStore {
	return &InMemoryRegistrationStore{
		byID:   make(map[id.RegistrationID]*models.Registration),
		byUser: make(map[id.UserID]id.RegistrationID),
	}
}

func (s *InMemoryRegistrationStore) CreateIfAbsent(_ context.Context, reg *models.Registration) (*models.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byUser[reg.UserID]; ok {
		return cloneRegistration(s.byID[existingID]), false, nil
	}
	s.byID[reg.ID] = cloneRegistration(reg)
	s.byUser[reg.UserID] = reg.ID
	return cloneRegistration(reg), true, nil
}

func (s *InMemoryRegistrationStore) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reg, ok := s.byID[regID]; ok {
		return cloneRegistration(reg), nil
	}
	return nil, fmt.Errorf("registration not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryRegistrationStore) FindByUser(_ context.Context, userID id.UserID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if regID, ok := s.byUser[userID]; ok {
		return cloneRegistration(s.byID[regID]), nil
	}
	return nil, fmt.Errorf("registration not found: %w", sentinel.ErrNotFound)
}

// Execute runs validate then mutate on the record while holding the store
// lock, so concurrent progress changes for the same registration serialize.
func (s *InMemoryRegistrationStore) Execute(_ context.Context, regID id.RegistrationID,
	validate func(*models.Registration) error,
	mutate func(*models.Registration)) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.byID[regID]
	if !ok {
		return nil, fmt.Errorf("registration not found: %w", sentinel.ErrNotFound)
	}

	working := cloneRegistration(reg)
	if err := validate(working); err != nil {
		return working, err
	}
	mutate(working)
	s.byID[regID] = cloneRegistration(working)
	return working, nil
}

func (s *InMemoryRegistrationStore) ReferencesStep(_ context.Context, stepID id.StepID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, reg := range s.byID {
		if reg.CurrentStepID == stepID || reg.HasCompleted(stepID) {
			return true, nil
		}
	}
	return false, nil
}

func cloneRegistration(reg *models.Registration) *models.Registration {
	copied := *reg
	copied.CompletedStepIDs = append([]id.StepID(nil), reg.CompletedStepIDs...)
	return &copied
}
