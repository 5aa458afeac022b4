package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	"manasik/pkg/testutil"

	id "manasik/pkg/domain"
)

type stepEnvelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    StepDetail `json:"data"`
}

type registrationEnvelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    RegistrationView `json:"data"`
}

type batchEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Results []models.BatchOutcome `json:"results"`
	} `json:"data"`
}

type AdminSuite struct {
	suite.Suite
	ctx    context.Context
	svc    *service.Service
	router chi.Router
}

func (s *AdminSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = service.New(stepstore.NewInMemory(), registrationstore.NewInMemory(),
		service.WithLogger(logger))

	validator := mocks.NewMockJWTValidator(gomock.NewController(s.T()))
	h := New(s.svc, logger, nil, validator, admin.Credential{Token: testAdminToken})

	r := chi.NewRouter()
	h.RegisterAdmin(r)
	s.router = r
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, new(AdminSuite))
}

// doAdmin executes req with the admin token attached.
func (s *AdminSuite) doAdmin(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("X-Admin-Token", testAdminToken)
	return testutil.DoRequest(s.router, req)
}

func (s *AdminSuite) createStep(code string, scope models.StepDataScope, order int) *models.Step {
	step, err := s.svc.CreateStep(s.ctx, &models.CreateStepRequest{
		Code:       code,
		Title:      "Step " + code,
		ActionType: models.StepActionFillForm,
		DataScope:  scope,
		Order:      order,
	})
	s.Require().NoError(err)
	return step
}

func (s *AdminSuite) TestAdminTokenGate() {
	s.Run("missing token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("wrong token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps")
		req.Header.Set("X-Admin-Token", "nope")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *AdminSuite) TestCreateStep() {
	s.Run("creates a step", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registration/steps",
			models.CreateStepRequest{
				Code:       "upload_docs",
				Title:      "Upload Documents",
				ActionType: models.StepActionUpload,
				DataScope:  models.ScopeDocuments,
				Order:      2,
			})
		rr := s.doAdmin(req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		env := testutil.UnmarshalResponse[stepEnvelope](s.T(), rr)
		s.True(env.Success)
		s.Equal("upload_docs", env.Data.Code)
		s.True(env.Data.IsActive)
		s.NotEmpty(env.Data.ID)
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/registration/steps", "{not json")
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("validation failure", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registration/steps",
			models.CreateStepRequest{Code: "", Title: "No Code", ActionType: models.StepActionUpload,
				DataScope: models.ScopeVisa, Order: 4})
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("taken data scope", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registration/steps",
			models.CreateStepRequest{
				Code:       "more_docs",
				Title:      "More Documents",
				ActionType: models.StepActionUpload,
				DataScope:  models.ScopeDocuments,
				Order:      5,
			})
		rr := s.doAdmin(req)

		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
		env := testutil.UnmarshalResponse[stepEnvelope](s.T(), rr)
		s.Contains(env.Message, "data scope")
	})
}

func (s *AdminSuite) TestStepLookups() {
	step := s.createStep("payment", models.ScopePayment, 3)

	s.Run("get by id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps/"+step.ID.String())
		rr := s.doAdmin(req)
		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[stepEnvelope](s.T(), rr)
		s.Equal("payment", env.Data.Code)
	})

	s.Run("malformed id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps/not-a-uuid")
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("unknown id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps/"+id.NewStepID().String())
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("list", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registration/steps")
		rr := s.doAdmin(req)
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *AdminSuite) TestUpdateStep() {
	bootstrap := s.createStep("change_credentials", models.ScopeUser, 1)
	step := s.createStep("upload_docs", models.ScopeDocuments, 2)

	s.Run("updates the title", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/admin/registration/steps/"+step.ID.String(),
			map[string]any{"title": "Upload Scanned Documents"})
		rr := s.doAdmin(req)

		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[stepEnvelope](s.T(), rr)
		s.Equal("Upload Scanned Documents", env.Data.Title)
		s.Equal("upload_docs", env.Data.Code)
	})

	s.Run("the first step is immutable", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/admin/registration/steps/"+bootstrap.ID.String(),
			map[string]any{"title": "Renamed"})
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("empty update is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch,
			"/admin/registration/steps/"+step.ID.String(), map[string]any{})
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *AdminSuite) TestDeleteStep() {
	bootstrap := s.createStep("change_credentials", models.ScopeUser, 1)
	step := s.createStep("upload_docs", models.ScopeDocuments, 2)

	s.Run("the first step cannot be deleted", func() {
		req := testutil.NewRequest(s.T(), http.MethodDelete,
			"/admin/registration/steps/"+bootstrap.ID.String())
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("an unreferenced step deletes", func() {
		req := testutil.NewRequest(s.T(), http.MethodDelete,
			"/admin/registration/steps/"+step.ID.String())
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})
}

func (s *AdminSuite) TestBatchProgress() {
	s.createStep("change_credentials", models.ScopeUser, 1)
	s.createStep("upload_docs", models.ScopeDocuments, 2)

	regA, err := s.svc.GetOrCreate(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	regB, err := s.svc.GetOrCreate(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)

	s.Run("advance reports per-record outcomes", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/advance",
			models.BatchProgressRequest{RegistrationIDs: []string{
				regA.ID.String(), regB.ID.String(), "garbage",
			}})
		rr := s.doAdmin(req)

		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[batchEnvelope](s.T(), rr)
		s.Require().Len(env.Data.Results, 3)

		byID := make(map[string]models.BatchOutcome, len(env.Data.Results))
		for _, outcome := range env.Data.Results {
			byID[outcome.RegistrationID] = outcome
		}
		s.Equal(models.OutcomeAdvanced, byID[regA.ID.String()].Outcome)
		s.Equal(models.OutcomeAdvanced, byID[regB.ID.String()].Outcome)
		s.Equal(models.OutcomeError, byID["garbage"].Outcome)
	})

	s.Run("retreat mirrors advance", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/retreat",
			models.BatchProgressRequest{RegistrationIDs: []string{regA.ID.String()}})
		rr := s.doAdmin(req)

		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[batchEnvelope](s.T(), rr)
		s.Require().Len(env.Data.Results, 1)
		s.Equal(models.OutcomeRetreated, env.Data.Results[0].Outcome)
	})

	s.Run("empty batch is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/advance",
			models.BatchProgressRequest{})
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *AdminSuite) TestRegistrationLookupAndFail() {
	s.createStep("change_credentials", models.ScopeUser, 1)
	reg, err := s.svc.GetOrCreate(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)

	s.Run("lookup", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registrations/"+reg.ID.String())
		rr := s.doAdmin(req)
		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[registrationEnvelope](s.T(), rr)
		s.Equal(reg.UserID.String(), env.Data.UserID)
		s.Equal("pending", env.Data.Status)
	})

	s.Run("unknown registration", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/registrations/"+id.NewRegistrationID().String())
		rr := s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("fail is terminal", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/admin/registrations/"+reg.ID.String()+"/fail")
		rr := s.doAdmin(req)
		testutil.AssertStatusOK(s.T(), rr)
		env := testutil.UnmarshalResponse[registrationEnvelope](s.T(), rr)
		s.Equal("failed", env.Data.Status)

		req = testutil.NewRequest(s.T(), http.MethodPost, "/admin/registrations/"+reg.ID.String()+"/fail")
		rr = s.doAdmin(req)
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})
}
