package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/daonbank/kcs/kcs-backend/internal/testutil"
)

// championArtifact is a one-stump GBDT export, enough for the registry
// to parse and serve.
const championArtifact = `{
	"version": "gbdt-2026.2",
	"features": ["cb_score"],
	"baseLogOdds": -2.0,
	"learningRate": 0.5,
	"trees": [[
		{"feature": 0, "threshold": 700, "left": 1, "right": 2},
		{"feature": -1, "value": 1.0},
		{"feature": -1, "value": -1.0}
	]]
}`

type adminStack struct {
	e        *echo.Echo
	h        *AdminHandler
	params   *testutil.MockRegulationParamRepository
	models   *testutil.MockModelVersionRepository
	store    *memObjectStore
	registry *service.ModelRegistry
	audit    *testutil.MockAuditLogRepository
	eqs      *testutil.MockEQGradeMasterRepository
	irgs     *testutil.MockIRGMasterRepository
}

func newAdminStack() *adminStack {
	st := &adminStack{
		e:        echo.New(),
		params:   testutil.NewMockRegulationParamRepository(),
		models:   testutil.NewMockModelVersionRepository(),
		store:    newMemObjectStore(),
		registry: service.NewModelRegistry(),
		audit:    testutil.NewMockAuditLogRepository(),
		eqs:      testutil.NewMockEQGradeMasterRepository(),
		irgs:     testutil.NewMockIRGMasterRepository(),
	}
	st.h = NewAdminHandler(
		service.NewParamService(st.params, nil, st.audit),
		service.NewModelService(st.models, st.store, st.registry, st.audit),
		st.eqs,
		st.irgs,
	)
	return st
}

func (st *adminStack) seedParam(key, category string, effectiveFrom time.Time, active bool) *domain.RegulationParam {
	param := &domain.RegulationParam{
		ParamKey:      key,
		Category:      category,
		Value:         domain.ParamValue{Kind: domain.KindScalar, Scalar: &domain.Scalar{Value: 20}},
		EffectiveFrom: effectiveFrom,
		IsActive:      active,
		ChangeReason:  "seed",
		CreatedBy:     "admin.park",
		ApprovedBy:    "cro.lee",
	}
	st.params.AddParam(param)
	return param
}

func decodeParam(t *testing.T, rec *httptest.ResponseRecorder) domain.RegulationParam {
	t.Helper()
	var param domain.RegulationParam
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &param))
	return param
}

func decodeModel(t *testing.T, rec *httptest.ResponseRecorder) domain.ModelVersion {
	t.Helper()
	var version domain.ModelVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	return version
}

func TestAdminHandler_CreateParam(t *testing.T) {
	st := newAdminStack()

	body := `{
		"paramKey": "dsr.limit.base",
		"category": "dsr",
		"value": {"kind": "limit_ratio", "limitRatio": {"maxRatio": 35}},
		"effectiveFrom": "2026-09-01T00:00:00Z",
		"legalBasis": "금융위 가계부채 관리방안",
		"changeReason": "연간 감독규정 개정 반영",
		"approvedBy": "cro.lee"
	}`
	req := authenticateAs(jsonRequest(http.MethodPost, "/api/v1/admin/params", body), "admin.park")
	rec := serve(t, st.e, st.h.CreateParam, req, "/api/v1/admin/params")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeParam(t, rec)
	assert.Equal(t, "dsr.limit.base", created.ParamKey)
	assert.Equal(t, "admin.park", created.CreatedBy)
	assert.Equal(t, "cro.lee", created.ApprovedBy)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.Value.LimitRatio)
	assert.Equal(t, 35.0, created.Value.LimitRatio.MaxRatio)

	assert.Contains(t, st.audit.Actions(), "param.create")
}

func TestAdminHandler_CreateParamGuards(t *testing.T) {
	st := newAdminStack()

	post := func(body, subject string) *httptest.ResponseRecorder {
		req := jsonRequest(http.MethodPost, "/api/v1/admin/params", body)
		if subject != "" {
			req = authenticateAs(req, subject)
		}
		return serve(t, st.e, st.h.CreateParam, req, "/api/v1/admin/params")
	}

	// Approver and author must be different people.
	rec := post(`{
		"paramKey": "dsr.limit.base",
		"category": "dsr",
		"value": {"kind": "limit_ratio", "limitRatio": {"maxRatio": 35}},
		"effectiveFrom": "2026-09-01T00:00:00Z",
		"changeReason": "개정 반영",
		"approvedBy": "admin.park"
	}`, "admin.park")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrorTypeConflict, decodeProblem(t, rec).Type)

	rec = post(`{
		"paramKey": "dsr.limit.base",
		"category": "dsr",
		"value": {"kind": "limit_ratio", "limitRatio": {"maxRatio": 35}},
		"effectiveFrom": "2026-09-01T00:00:00Z",
		"approvedBy": "cro.lee"
	}`, "admin.park")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrChangeReasonRequired.Error(), decodeProblem(t, rec).Detail)

	// Payload must match the declared kind.
	rec = post(`{
		"paramKey": "rate.base.internal",
		"category": "rate",
		"value": {"kind": "scalar", "limitRatio": {"maxRatio": 35}},
		"effectiveFrom": "2026-09-01T00:00:00Z",
		"changeReason": "개정 반영",
		"approvedBy": "cro.lee"
	}`, "admin.park")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "value", problem.Errors[0].Field)

	// Anonymous writes have no author to record.
	rec = post(`{
		"paramKey": "dsr.limit.base",
		"category": "dsr",
		"value": {"kind": "limit_ratio", "limitRatio": {"maxRatio": 35}},
		"effectiveFrom": "2026-09-01T00:00:00Z",
		"changeReason": "개정 반영",
		"approvedBy": "cro.lee"
	}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem = decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "createdBy", problem.Errors[0].Field)

	// Same key and effective instant is a version collision.
	valid := `{
		"paramKey": "ltv.limit.apartment",
		"category": "ltv",
		"value": {"kind": "limit_ratio", "limitRatio": {"maxRatio": 70, "multiOwnerDeduction": 10}},
		"effectiveFrom": "2026-10-01T00:00:00Z",
		"changeReason": "규제지역 해제",
		"approvedBy": "cro.lee"
	}`
	rec = post(valid, "admin.park")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = post(valid, "admin.park")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrDuplicateParam.Error(), decodeProblem(t, rec).Detail)
}

func TestAdminHandler_DeactivateParam(t *testing.T) {
	st := newAdminStack()
	param := st.seedParam("rate.max.statutory", "rate", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)

	req := authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "admin.park")
	rec := serve(t, st.e, st.h.DeactivateParam, req,
		"/api/v1/admin/params/:id/deactivate", "id", param.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeParam(t, rec)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.EffectiveTo)
	assert.Contains(t, st.audit.Actions(), "param.deactivate")

	rec = serve(t, st.e, st.h.DeactivateParam,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "admin.park"),
		"/api/v1/admin/params/:id/deactivate", "id", "not-a-uuid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "id", problem.Errors[0].Field)

	rec = serve(t, st.e, st.h.DeactivateParam,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "admin.park"),
		"/api/v1/admin/params/:id/deactivate", "id", uuid.NewString())
	require.Equal(t, http.StatusNotFound, rec.Code)

	// No subject, no actor to attribute the change to.
	other := st.seedParam("rate.max.statutory.v2", "rate", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), true)
	rec = serve(t, st.e, st.h.DeactivateParam,
		jsonRequest(http.MethodPost, "/", `{}`),
		"/api/v1/admin/params/:id/deactivate", "id", other.ID.String())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem = decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "actor", problem.Errors[0].Field)
}

func TestAdminHandler_ListParams(t *testing.T) {
	st := newAdminStack()
	st.seedParam("dsr.limit.base", "dsr", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)
	st.seedParam("dsr.limit.base", "dsr", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), false)
	st.seedParam("ltv.limit.apartment", "ltv", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)

	list := func(query string) []*domain.RegulationParam {
		t.Helper()
		rec := serve(t, st.e, st.h.ListParams,
			httptest.NewRequest(http.MethodGet, "/"+query, nil),
			"/api/v1/admin/params")
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []*domain.RegulationParam
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		return rows
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("?category=dsr"), 2)

	active := list("?category=dsr&activeOnly=true")
	require.Len(t, active, 1)
	assert.True(t, active[0].IsActive)
}

func TestAdminHandler_GetParamAndHistory(t *testing.T) {
	st := newAdminStack()
	older := st.seedParam("stress_dsr.metropolitan", "stress_dsr", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)
	newer := st.seedParam("stress_dsr.metropolitan", "stress_dsr", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), true)

	rec := serve(t, st.e, st.h.GetParam,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/:id", "id", older.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, older.ID, decodeParam(t, rec).ID)

	rec = serve(t, st.e, st.h.GetParam,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/:id", "id", uuid.NewString())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, st.e, st.h.GetParam,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/:id", "id", "17")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// History comes back newest first.
	rec = serve(t, st.e, st.h.GetParamHistory,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/key/:key", "key", "stress_dsr.metropolitan")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []*domain.RegulationParam
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, newer.ID, history[0].ID)
	assert.Equal(t, older.ID, history[1].ID)

	rec = serve(t, st.e, st.h.GetParamHistory,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/key/:key", "key", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler_ListParamKeys(t *testing.T) {
	st := newAdminStack()
	st.seedParam("ltv.limit.apartment", "ltv", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)
	st.seedParam("dsr.limit.base", "dsr", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), true)
	st.seedParam("dsr.limit.base", "dsr", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), true)

	rec := serve(t, st.e, st.h.ListParamKeys,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/params/keys")
	require.Equal(t, http.StatusOK, rec.Code)
	var keys []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Equal(t, []string{"dsr.limit.base", "ltv.limit.apartment"}, keys)
}

func TestAdminHandler_RegisterModel(t *testing.T) {
	st := newAdminStack()
	st.store.objects["models/gbdt-2026.2.json"] = []byte(championArtifact)

	body := `{
		"name": "application-gbdt",
		"scorecardType": "application",
		"version": "gbdt-2026.2",
		"artifactPath": "models/gbdt-2026.2.json",
		"giniTest": 0.47,
		"ksStatistic": 0.39,
		"featureCount": 1
	}`
	rec := serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/api/v1/admin/models", body),
		"/api/v1/admin/models")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeModel(t, rec)
	assert.Equal(t, domain.ModelDraft, created.Status)
	assert.False(t, created.IsChampion)
	assert.Equal(t, "gbdt-2026.2", created.Version)
	require.NotNil(t, created.GiniTest)
	assert.Equal(t, 0.47, *created.GiniTest)
	assert.Contains(t, st.audit.Actions(), "model.registered")

	// Registration never touches the serving registry.
	assert.Nil(t, st.registry.Current())
}

func TestAdminHandler_RegisterModelValidation(t *testing.T) {
	st := newAdminStack()
	st.store.objects["models/broken.json"] = []byte(`{"version": "broken"`)

	rec := serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/", `{"scorecardType":"application","version":"v1","artifactPath":"models/x.json"}`),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "name", problem.Errors[0].Field)

	rec = serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/", `{"name":"m","scorecardType":"application","version":"v1","artifactPath":""}`),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem = decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "artifactPath", problem.Errors[0].Field)

	// The artifact object has to exist at registration time.
	rec = serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/", `{"name":"m","scorecardType":"application","version":"v1","artifactPath":"models/missing.json"}`),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusNotFound, rec.Code)

	// A truncated export never reaches the repository.
	rec = serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/", `{"name":"m","scorecardType":"application","version":"broken","artifactPath":"models/broken.json"}`),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, st.models.Versions)
}

func TestAdminHandler_ModelLifecycle(t *testing.T) {
	st := newAdminStack()
	st.store.objects["models/gbdt-2026.2.json"] = []byte(championArtifact)

	rec := serve(t, st.e, st.h.RegisterModel,
		jsonRequest(http.MethodPost, "/", `{"name":"application-gbdt","scorecardType":"application","version":"gbdt-2026.2","artifactPath":"models/gbdt-2026.2.json"}`),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeModel(t, rec).ID.String()

	// Drafts cannot be promoted straight to champion.
	rec = serve(t, st.e, st.h.PromoteModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "cro.lee"),
		"/api/v1/admin/models/:id/promote", "id", id)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, st.e, st.h.ValidateModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "validator.park"),
		"/api/v1/admin/models/:id/validate", "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ModelValidated, decodeModel(t, rec).Status)
	assert.Contains(t, st.audit.Actions(), "model.validated")

	rec = serve(t, st.e, st.h.ValidateModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "validator.park"),
		"/api/v1/admin/models/:id/validate", "id", id)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Promotion needs an identified approver.
	rec = serve(t, st.e, st.h.PromoteModel,
		jsonRequest(http.MethodPost, "/", `{}`),
		"/api/v1/admin/models/:id/promote", "id", id)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "approvedBy", problem.Errors[0].Field)

	rec = serve(t, st.e, st.h.PromoteModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "cro.lee"),
		"/api/v1/admin/models/:id/promote", "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	promoted := decodeModel(t, rec)
	assert.Equal(t, domain.ModelChampion, promoted.Status)
	assert.True(t, promoted.IsChampion)
	require.NotNil(t, promoted.ApprovedBy)
	assert.Equal(t, "cro.lee", *promoted.ApprovedBy)
	assert.Contains(t, st.audit.Actions(), "model.promoted")

	// The artifact is now serving.
	require.NotNil(t, st.registry.Current())
	assert.Equal(t, "gbdt-2026.2", st.registry.Current().Version)

	rec = serve(t, st.e, st.h.GetChampionModel,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/models/champion/:scorecardType", "scorecardType", "application")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, promoted.ID, decodeModel(t, rec).ID)

	rec = serve(t, st.e, st.h.RetireModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "cro.lee"),
		"/api/v1/admin/models/:id/retire", "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ModelRetired, decodeModel(t, rec).Status)
	assert.Contains(t, st.audit.Actions(), "model.retired")

	// Serving falls back to the statistical scorecard.
	assert.Nil(t, st.registry.Current())

	rec = serve(t, st.e, st.h.GetChampionModel,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/models/champion/:scorecardType", "scorecardType", "application")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandler_PromoteDemotesPriorChampion(t *testing.T) {
	st := newAdminStack()
	st.store.objects["models/gbdt-2026.2.json"] = []byte(championArtifact)

	incumbent := &domain.ModelVersion{
		Name:          "application-gbdt",
		ScorecardType: "application",
		Version:       "gbdt-2025.1",
		ArtifactPath:  "models/gbdt-2025.1.json",
		Status:        domain.ModelChampion,
		IsChampion:    true,
	}
	st.models.AddVersion(incumbent)

	challenger := &domain.ModelVersion{
		Name:          "application-gbdt",
		ScorecardType: "application",
		Version:       "gbdt-2026.2",
		ArtifactPath:  "models/gbdt-2026.2.json",
		Status:        domain.ModelValidated,
	}
	st.models.AddVersion(challenger)

	rec := serve(t, st.e, st.h.PromoteModel,
		authenticateAs(jsonRequest(http.MethodPost, "/", `{}`), "cro.lee"),
		"/api/v1/admin/models/:id/promote", "id", challenger.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.ModelRetired, incumbent.Status)
	assert.False(t, incumbent.IsChampion)
	assert.Equal(t, domain.ModelChampion, challenger.Status)
	assert.True(t, challenger.IsChampion)
}

func TestAdminHandler_GetModelAndList(t *testing.T) {
	st := newAdminStack()
	application := &domain.ModelVersion{
		Name:          "application-gbdt",
		ScorecardType: "application",
		Version:       "gbdt-2025.1",
		ArtifactPath:  "models/gbdt-2025.1.json",
		Status:        domain.ModelRetired,
		CreatedAt:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	behavior := &domain.ModelVersion{
		Name:          "behavior-gbdt",
		ScorecardType: "behavior",
		Version:       "bss-2026.1",
		ArtifactPath:  "models/bss-2026.1.json",
		Status:        domain.ModelDraft,
		CreatedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	st.models.AddVersion(application)
	st.models.AddVersion(behavior)

	rec := serve(t, st.e, st.h.GetModel,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/models/:id", "id", behavior.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, behavior.ID, decodeModel(t, rec).ID)

	rec = serve(t, st.e, st.h.GetModel,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/models/:id", "id", uuid.NewString())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, st.e, st.h.ListModels,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusOK, rec.Code)
	var versions []*domain.ModelVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, behavior.ID, versions[0].ID)

	rec = serve(t, st.e, st.h.ListModels,
		httptest.NewRequest(http.MethodGet, "/?scorecardType=application", nil),
		"/api/v1/admin/models")
	require.Equal(t, http.StatusOK, rec.Code)
	versions = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, application.ID, versions[0].ID)
}

func TestAdminHandler_ListEQGrades(t *testing.T) {
	st := newAdminStack()
	mou := "MOU-DAON-001"
	st.eqs.AddMaster(&domain.EQGradeMaster{
		EmployerName:    "다온전자",
		Grade:           domain.EQGradeS,
		LimitMultiplier: 1.5,
		RateAdjustment:  -0.5,
		MOUCode:         &mou,
		IsActive:        true,
	})
	st.eqs.AddMaster(&domain.EQGradeMaster{
		EmployerName:    "한빛물산",
		Grade:           domain.EQGradeB,
		LimitMultiplier: 1.1,
		IsActive:        true,
	})
	st.eqs.AddMaster(&domain.EQGradeMaster{
		EmployerName:    "폐업상사",
		Grade:           domain.EQGradeD,
		LimitMultiplier: 1.0,
		IsActive:        false,
	})

	rec := serve(t, st.e, st.h.ListEQGrades,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/eq-grades")
	require.Equal(t, http.StatusOK, rec.Code)
	var masters []*domain.EQGradeMaster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &masters))
	require.Len(t, masters, 2)
	assert.Equal(t, "다온전자", masters[0].EmployerName)
	assert.Equal(t, domain.EQGradeS, masters[0].Grade)

	rec = serve(t, st.e, st.h.ListEQGrades,
		httptest.NewRequest(http.MethodGet, "/?activeOnly=false", nil),
		"/api/v1/admin/eq-grades")
	require.Equal(t, http.StatusOK, rec.Code)
	masters = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &masters))
	assert.Len(t, masters, 3)
}

func TestAdminHandler_ListIRGs(t *testing.T) {
	st := newAdminStack()
	ctx := context.Background()
	_, err := st.irgs.Create(ctx, &domain.IRGMaster{
		KSICCode:     "56111",
		IndustryName: "한식 일반음식점업",
		Grade:        domain.IRGHigh,
		PDAdjustment: 0.15,
		IsActive:     true,
	})
	require.NoError(t, err)
	_, err = st.irgs.Create(ctx, &domain.IRGMaster{
		KSICCode:     "26110",
		IndustryName: "전자집적회로 제조업",
		Grade:        domain.IRGLow,
		PDAdjustment: -0.10,
		IsActive:     true,
	})
	require.NoError(t, err)
	_, err = st.irgs.Create(ctx, &domain.IRGMaster{
		KSICCode:     "64999",
		IndustryName: "그외 기타 금융업",
		Grade:        domain.IRGVeryHigh,
		PDAdjustment: 0.30,
		IsActive:     false,
	})
	require.NoError(t, err)

	rec := serve(t, st.e, st.h.ListIRGs,
		httptest.NewRequest(http.MethodGet, "/", nil),
		"/api/v1/admin/irgs")
	require.Equal(t, http.StatusOK, rec.Code)
	var masters []*domain.IRGMaster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &masters))
	require.Len(t, masters, 2)
	assert.Equal(t, "26110", masters[0].KSICCode)
	assert.Equal(t, "56111", masters[1].KSICCode)

	rec = serve(t, st.e, st.h.ListIRGs,
		httptest.NewRequest(http.MethodGet, "/?activeOnly=false", nil),
		"/api/v1/admin/irgs")
	require.Equal(t, http.StatusOK, rec.Code)
	masters = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &masters))
	assert.Len(t, masters, 3)
}
