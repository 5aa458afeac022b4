package step

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

type StepStoreSuite struct {
	suite.Suite
	store *InMemoryStepStore
	ctx   context.Context
}

func (s *StepStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestStepStoreSuite(t *testing.T) {
	suite.Run(t, new(StepStoreSuite))
}

func newTestStep(code string, scope models.StepDataScope, order int, active bool) *models.Step {
	now := time.Now()
	return &models.Step{
		ID:         id.NewStepID(),
		Code:       code,
		Title:      "Step " + code,
		ActionType: models.StepActionFillForm,
		DataScope:  scope,
		Order:      order,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *StepStoreSuite) TestCreateUniqueness() {
	first := newTestStep("change_credentials", models.ScopeUser, 1, true)
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, first))

	s.Run("rejects duplicate data scope", func() {
		dup := newTestStep("other_code", models.ScopeUser, 9, true)
		err := s.store.CreateIfScopeAvailable(s.ctx, dup)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects duplicate code", func() {
		dup := newTestStep("change_credentials", models.ScopeVisa, 9, true)
		err := s.store.CreateIfScopeAvailable(s.ctx, dup)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects duplicate order", func() {
		dup := newTestStep("other_code", models.ScopeVisa, 1, true)
		err := s.store.CreateIfScopeAvailable(s.ctx, dup)
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *StepStoreSuite) TestLookups() {
	step := newTestStep("upload_passport", models.ScopeDocuments, 2, true)
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, step))

	found, err := s.store.FindByID(s.ctx, step.ID)
	s.Require().NoError(err)
	s.Equal(step.Code, found.Code)

	found, err = s.store.FindByCode(s.ctx, "upload_passport")
	s.Require().NoError(err)
	s.Equal(step.ID, found.ID)

	_, err = s.store.FindByID(s.ctx, id.NewStepID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByCode(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StepStoreSuite) TestReturnsCopies() {
	step := newTestStep("upload_passport", models.ScopeDocuments, 2, true)
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, step))

	found, err := s.store.FindByID(s.ctx, step.ID)
	s.Require().NoError(err)
	found.Title = "mutated"

	again, err := s.store.FindByID(s.ctx, step.ID)
	s.Require().NoError(err)
	s.Equal("Step upload_passport", again.Title)
}

func (s *StepStoreSuite) TestListActiveOrdered() {
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, newTestStep("third", models.ScopeVisa, 3, true)))
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, newTestStep("first", models.ScopeUser, 1, true)))
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, newTestStep("inactive", models.ScopeHotel, 2, false)))
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, newTestStep("fourth", models.ScopePayment, 4, true)))

	active, err := s.store.ListActiveOrdered(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 3)
	s.Equal([]string{"first", "third", "fourth"}, []string{active[0].Code, active[1].Code, active[2].Code})

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 4)
	s.Equal("inactive", all[1].Code)
}

func (s *StepStoreSuite) TestUpdate() {
	step := newTestStep("pay_fees", models.ScopePayment, 3, true)
	other := newTestStep("upload_passport", models.ScopeDocuments, 2, true)
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, step))
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, other))

	s.Run("applies changes", func() {
		updated := *step
		updated.Title = "Pay Package Fees"
		updated.Order = 5
		s.Require().NoError(s.store.Update(s.ctx, &updated))

		found, err := s.store.FindByID(s.ctx, step.ID)
		s.Require().NoError(err)
		s.Equal("Pay Package Fees", found.Title)
		s.Equal(5, found.Order)
	})

	s.Run("rejects stealing another step's scope", func() {
		updated := *step
		updated.DataScope = models.ScopeDocuments
		s.ErrorIs(s.store.Update(s.ctx, &updated), sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects stealing another step's order", func() {
		updated := *step
		updated.Order = 2
		s.ErrorIs(s.store.Update(s.ctx, &updated), sentinel.ErrConflict)
	})

	s.Run("keeping own unique fields is not a conflict", func() {
		updated, err := s.store.FindByID(s.ctx, step.ID)
		s.Require().NoError(err)
		updated.Title = "Renamed Again"
		s.NoError(s.store.Update(s.ctx, updated))
	})

	s.Run("unknown step is not found", func() {
		ghost := newTestStep("ghost", models.ScopeFlight, 9, true)
		s.ErrorIs(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound)
	})
}

func (s *StepStoreSuite) TestDelete() {
	step := newTestStep("review", models.ScopeRegistration, 6, true)
	s.Require().NoError(s.store.CreateIfScopeAvailable(s.ctx, step))

	s.Require().NoError(s.store.Delete(s.ctx, step.ID))
	_, err := s.store.FindByID(s.ctx, step.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(s.ctx, step.ID), sentinel.ErrNotFound)
}
