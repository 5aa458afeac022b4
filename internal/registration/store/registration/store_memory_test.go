package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

type RegistrationStoreSuite struct {
	suite.Suite
	store *InMemoryRegistrationStore
	ctx   context.Context
}

func (s *RegistrationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRegistrationStoreSuite(t *testing.T) {
	suite.Run(t, new(RegistrationStoreSuite))
}

func newTestRegistration(userID id.UserID) *models.Registration {
	return models.NewRegistration(id.NewRegistrationID(), userID, id.NewStepID(), time.Now())
}

func (s *RegistrationStoreSuite) TestCreateIfAbsent() {
	userID := id.UserID(uuid.New())
	first := newTestRegistration(userID)

	created, wasCreated, err := s.store.CreateIfAbsent(s.ctx, first)
	s.Require().NoError(err)
	s.True(wasCreated)
	s.Equal(first.ID, created.ID)

	// A second create for the same user returns the original record.
	second := newTestRegistration(userID)
	existing, wasCreated, err := s.store.CreateIfAbsent(s.ctx, second)
	s.Require().NoError(err)
	s.False(wasCreated)
	s.Equal(first.ID, existing.ID)
}

func (s *RegistrationStoreSuite) TestConcurrentCreateOnePerUser() {
	userID := id.UserID(uuid.New())
	const goroutines = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.store.CreateIfAbsent(s.ctx, newTestRegistration(userID))
			s.NoError(err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, createdCount, "exactly one create should win")
}

func (s *RegistrationStoreSuite) TestLookups() {
	userID := id.UserID(uuid.New())
	reg := newTestRegistration(userID)
	_, _, err := s.store.CreateIfAbsent(s.ctx, reg)
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(userID, found.UserID)

	found, err = s.store.FindByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(reg.ID, found.ID)

	_, err = s.store.FindByID(s.ctx, id.NewRegistrationID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByUser(s.ctx, id.UserID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RegistrationStoreSuite) TestExecute() {
	reg := newTestRegistration(id.UserID(uuid.New()))
	_, _, err := s.store.CreateIfAbsent(s.ctx, reg)
	s.Require().NoError(err)

	s.Run("persists mutations when validate passes", func() {
		next := id.NewStepID()
		updated, err := s.store.Execute(s.ctx, reg.ID,
			func(r *models.Registration) error { return nil },
			func(r *models.Registration) {
				r.MarkCompleted(r.CurrentStepID)
				r.CurrentStepID = next
			},
		)
		s.Require().NoError(err)
		s.Equal(next, updated.CurrentStepID)

		found, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(next, found.CurrentStepID)
		s.Len(found.CompletedStepIDs, 1)
	})

	s.Run("leaves state untouched when validate fails", func() {
		before, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)

		boom := errors.New("rejected")
		_, err = s.store.Execute(s.ctx, reg.ID,
			func(r *models.Registration) error { return boom },
			func(r *models.Registration) { r.CurrentStepID = id.NewStepID() },
		)
		s.ErrorIs(err, boom)

		after, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(before.CurrentStepID, after.CurrentStepID)
	})

	s.Run("unknown registration is not found", func() {
		_, err := s.store.Execute(s.ctx, id.NewRegistrationID(),
			func(r *models.Registration) error { return nil },
			func(r *models.Registration) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistrationStoreSuite) TestReferencesStep() {
	currentStep := id.NewStepID()
	completedStep := id.NewStepID()

	reg := models.NewRegistration(id.NewRegistrationID(), id.UserID(uuid.New()), currentStep, time.Now())
	reg.MarkCompleted(completedStep)
	_, _, err := s.store.CreateIfAbsent(s.ctx, reg)
	s.Require().NoError(err)

	referenced, err := s.store.ReferencesStep(s.ctx, currentStep)
	s.Require().NoError(err)
	s.True(referenced)

	referenced, err = s.store.ReferencesStep(s.ctx, completedStep)
	s.Require().NoError(err)
	s.True(referenced)

	referenced, err = s.store.ReferencesStep(s.ctx, id.NewStepID())
	s.Require().NoError(err)
	s.False(referenced)
}
