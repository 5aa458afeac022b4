package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "manasik/pkg/domain"
)

type RegistrationSuite struct {
	suite.Suite
	now time.Time
	reg *Registration
}

func (s *RegistrationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.reg = NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) TestCompletedSetSemantics() {
	stepA := id.NewStepID()
	stepB := id.NewStepID()

	s.False(s.reg.HasCompleted(stepA))

	s.reg.MarkCompleted(stepA)
	s.True(s.reg.HasCompleted(stepA))
	s.Len(s.reg.CompletedStepIDs, 1)

	// Marking twice does not duplicate.
	s.reg.MarkCompleted(stepA)
	s.Len(s.reg.CompletedStepIDs, 1)

	s.reg.MarkCompleted(stepB)
	s.Len(s.reg.CompletedStepIDs, 2)

	s.reg.RemoveCompleted(stepA)
	s.False(s.reg.HasCompleted(stepA))
	s.True(s.reg.HasCompleted(stepB))

	// Removing an absent step is a no-op.
	s.reg.RemoveCompleted(stepA)
	s.Len(s.reg.CompletedStepIDs, 1)
}

func (s *RegistrationSuite) TestRecomputeStatus() {
	s.Run("stays pending until all active steps are completed", func() {
		reg := NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
		reg.MarkCompleted(id.NewStepID())
		reg.RecomputeStatus(3)
		s.Equal(StatusPending, reg.Status)
	})

	s.Run("flips to completed when the set covers every active step", func() {
		reg := NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
		reg.MarkCompleted(id.NewStepID())
		reg.MarkCompleted(id.NewStepID())
		reg.RecomputeStatus(2)
		s.Equal(StatusCompleted, reg.Status)
	})

	s.Run("returns to pending when a completed step is removed", func() {
		reg := NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
		stepA := id.NewStepID()
		reg.MarkCompleted(stepA)
		reg.RecomputeStatus(1)
		s.Equal(StatusCompleted, reg.Status)

		reg.RemoveCompleted(stepA)
		reg.RecomputeStatus(1)
		s.Equal(StatusPending, reg.Status)
	})

	s.Run("failed is sticky through recomputation", func() {
		reg := NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
		reg.ApplyFailure(s.now)
		reg.MarkCompleted(id.NewStepID())
		reg.RecomputeStatus(1)
		s.Equal(StatusFailed, reg.Status)
	})

	s.Run("empty catalog never counts as completed", func() {
		reg := NewRegistration(id.NewRegistrationID(), id.UserID{}, id.NewStepID(), s.now)
		reg.RecomputeStatus(0)
		s.Equal(StatusPending, reg.Status)
	})
}

func (s *RegistrationSuite) TestFailureTransition() {
	s.NoError(s.reg.CanFail())

	later := s.now.Add(time.Hour)
	s.reg.ApplyFailure(later)
	s.Equal(StatusFailed, s.reg.Status)
	s.Equal(later, s.reg.UpdatedAt)

	s.Error(s.reg.CanFail())
}

func (s *RegistrationSuite) TestBatchRequestParsing() {
	regA := id.NewRegistrationID()
	regB := id.NewRegistrationID()

	req := &BatchProgressRequest{RegistrationIDs: []string{
		regA.String(),
		"not-a-uuid",
		regB.String(),
		regA.String(), // duplicate
	}}

	ids, invalid := req.ParseRegistrationIDs()
	s.Equal([]id.RegistrationID{regA, regB}, ids)
	s.Require().Len(invalid, 1)
	s.Equal("not-a-uuid", invalid[0].RegistrationID)
	s.Equal(OutcomeError, invalid[0].Outcome)
}
