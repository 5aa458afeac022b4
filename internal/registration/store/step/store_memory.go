package step

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrAlreadyUsed when the data scope is owned by another step
// - Return ErrConflict when the code or order collides with another step
// - Return wrapped errors with context for infrastructure failures

// InMemoryStepStore stores catalog steps in memory for tests/dev.
type InMemoryStepStore struct {
	mu    sync.RWMutex
	steps map[id.StepID]*models.Step
}

// NewInMemory constructs an empty in-memory step store.
func NewInMemory() *InMemoryStepStore {
	return &InMemoryStepStore{
		steps: make(map[id.StepID]*models.Step),
	}
}

func (s *InMemoryStepStore) CreateIfScopeAvailable(_ context.Context, step *models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.steps {
		if existing.DataScope == step.DataScope {
			return fmt.Errorf("data scope %q taken: %w", step.DataScope, sentinel.ErrAlreadyUsed)
		}
		if existing.Code == step.Code || existing.Order == step.Order {
			return fmt.Errorf("step code or order taken: %w", sentinel.ErrConflict)
		}
	}
	s.steps[step.ID] = cloneStep(step)
	return nil
}

func (s *InMemoryStepStore) FindByID(_ context.Context, stepID id.StepID) (*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if step, ok := s.steps[stepID]; ok {
		return cloneStep(step), nil
	}
	return nil, fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStepStore) FindByCode(_ context.Context, code string) (*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.steps {
		if step.Code == code {
			return cloneStep(step), nil
		}
	}
	return nil, fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStepStore) List(_ context.Context) ([]*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Step, 0, len(s.steps))
	for _, step := range s.steps {
		out = append(out, cloneStep(step))
	}
	sortByOrder(out)
	return out, nil
}

func (s *InMemoryStepStore) ListActiveOrdered(_ context.Context) ([]*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Step
	for _, step := range s.steps {
		if step.IsActive {
			out = append(out, cloneStep(step))
		}
	}
	sortByOrder(out)
	return out, nil
}

func (s *InMemoryStepStore) Update(_ context.Context, step *models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.ID]; !ok {
		return fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
	}
	for _, existing := range s.steps {
		if existing.ID == step.ID {
			continue
		}
		if existing.DataScope == step.DataScope {
			return fmt.Errorf("data scope %q taken: %w", step.DataScope, sentinel.ErrAlreadyUsed)
		}
		if existing.Code == step.Code || existing.Order == step.Order {
			return fmt.Errorf("step code or order taken: %w", sentinel.ErrConflict)
		}
	}
	s.steps[step.ID] = cloneStep(step)
	return nil
}

func (s *InMemoryStepStore) Delete(_ context.Context, stepID id.StepID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[stepID]; !ok {
		return fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
	}
	delete(s.steps, stepID)
	return nil
}

func cloneStep(step *models.Step) *models.Step {
	copied := *step
	return &copied
}

func sortByOrder(steps []*models.Step) {
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
}
