package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"manasik/internal/registration/handler/mocks"
	"manasik/internal/registration/models"
	"manasik/internal/registration/service"
	registrationstore "manasik/internal/registration/store/registration"
	stepstore "manasik/internal/registration/store/step"
	"manasik/pkg/platform/middleware/admin"
	"manasik/pkg/platform/middleware/auth"
	"manasik/pkg/testutil"

	id "manasik/pkg/domain"
)

const testAdminToken = "test-admin-token"

// stepsEnvelope is the decoded wire response of the authenticated steps
// listing.
type stepsEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    StepsResponse     `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type HandlerSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	validator *mocks.MockJWTValidator
	svc       *service.Service
	router    chi.Router
	userID    id.UserID
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.validator = mocks.NewMockJWTValidator(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.svc = service.New(stepstore.NewInMemory(), registrationstore.NewInMemory(),
		service.WithLogger(logger))
	h := New(s.svc, logger, nil, s.validator, admin.Credential{Token: testAdminToken})

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	s.router = r
	s.userID = id.UserID(uuid.New())
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

// authorize wires the mock validator to accept "valid-token" as s.userID.
func (s *HandlerSuite) authorize() {
	s.validator.EXPECT().
		ValidateToken("valid-token").
		Return(&auth.Claims{UserID: s.userID}, nil).
		AnyTimes()
}

func (s *HandlerSuite) seedSteps() []*models.Step {
	specs := []struct {
		code  string
		scope models.StepDataScope
	}{
		{"change_credentials", models.ScopeUser},
		{"upload_docs", models.ScopeDocuments},
		{"payment", models.ScopePayment},
	}
	steps := make([]*models.Step, 0, len(specs))
	for i, spec := range specs {
		step, err := s.svc.CreateStep(s.ctx, &models.CreateStepRequest{
			Code:       spec.code,
			Title:      "Step " + spec.code,
			ActionType: models.StepActionFillForm,
			DataScope:  spec.scope,
			Order:      i + 1,
		})
		s.Require().NoError(err)
		steps = append(steps, step)
	}
	return steps
}

func (s *HandlerSuite) TestGetStepsRequiresAuth() {
	s.seedSteps()

	s.Run("missing token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("rejected token", func() {
		s.validator.EXPECT().
			ValidateToken("bad-token").
			Return(nil, errors.New("token has expired"))

		req := testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
		req.Header.Set("Authorization", "Bearer bad-token")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *HandlerSuite) TestGetStepsWhenUnconfigured() {
	s.authorize()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	env := testutil.UnmarshalResponse[stepsEnvelope](s.T(), rr)
	s.False(env.Success)
	s.Equal("registration is not configured", env.Message)
	s.Equal("no active registration steps configured", env.Errors["steps"])
}

func (s *HandlerSuite) TestGetSteps() {
	steps := s.seedSteps()
	s.authorize()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	env := testutil.UnmarshalResponse[stepsEnvelope](s.T(), rr)
	s.True(env.Success)
	s.Require().NotNil(env.Data.CurrentStep)
	s.Equal(steps[0].ID.String(), env.Data.CurrentStep.ID)
	s.Require().Len(env.Data.AllSteps, 3)
	s.True(env.Data.AllSteps[0].IsCurrent)
	s.False(env.Data.AllSteps[0].IsCompleted)
	s.Equal("pending", env.Data.Progress.Status)
	s.Equal(1, env.Data.Progress.Meta.CurrentStepOrder)
	s.Equal(0, env.Data.Progress.Meta.CompletedStepsCount)
	s.False(env.Data.Progress.Meta.IsCompleted)
}

// TestGetStepsMetaTracksCurrentStep pins the meta.is_completed contract: the
// flag reflects the current step's completion, not the whole registration.
func (s *HandlerSuite) TestGetStepsMetaTracksCurrentStep() {
	steps := s.seedSteps()
	s.authorize()

	reg, err := s.svc.GetOrCreate(s.ctx, s.userID)
	s.Require().NoError(err)

	// One advance: standing on step two, which is not yet completed.
	_, _, err = s.svc.Advance(s.ctx, reg.ID)
	s.Require().NoError(err)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := testutil.DoRequest(s.router, req)
	env := testutil.UnmarshalResponse[stepsEnvelope](s.T(), rr)

	s.Equal(steps[1].ID.String(), env.Data.Progress.CurrentStep)
	s.Equal(1, env.Data.Progress.Meta.CompletedStepsCount)
	s.False(env.Data.Progress.Meta.IsCompleted)

	// Two more advances finish the catalog while staying on the last step.
	for i := 0; i < 2; i++ {
		_, _, err = s.svc.Advance(s.ctx, reg.ID)
		s.Require().NoError(err)
	}

	req = testutil.NewRequest(s.T(), http.MethodGet, "/registration/steps")
	req.Header.Set("Authorization", "Bearer valid-token")
	rr = testutil.DoRequest(s.router, req)
	env = testutil.UnmarshalResponse[stepsEnvelope](s.T(), rr)

	s.Equal(steps[2].ID.String(), env.Data.Progress.CurrentStep)
	s.Equal(3, env.Data.Progress.Meta.CompletedStepsCount)
	s.True(env.Data.Progress.Meta.IsCompleted)
	s.Equal("completed", env.Data.Progress.Status)
}
