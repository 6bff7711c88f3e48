package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/testutil"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

const secondStumpArtifact = `{
	"version": "gbdt-2025.2",
	"features": ["cb_score"],
	"baseLogOdds": -2.2,
	"learningRate": 0.5,
	"trees": [[
		{"feature": 0, "threshold": 680, "left": 1, "right": 2},
		{"feature": -1, "value": 0.8},
		{"feature": -1, "value": -0.8}
	]]
}`

type memArtifactStore struct {
	objects map[string][]byte
}

func (s *memArtifactStore) Fetch(_ context.Context, path string) ([]byte, error) {
	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", path)
	}
	return data, nil
}

type modelStack struct {
	svc      *ModelService
	repo     *testutil.MockModelVersionRepository
	store    *memArtifactStore
	registry *ModelRegistry
	audit    *testutil.MockAuditLogRepository
	events   *testutil.MockEventPublisher
}

func setupModelService() *modelStack {
	ms := &modelStack{
		repo:     testutil.NewMockModelVersionRepository(),
		store:    &memArtifactStore{objects: make(map[string][]byte)},
		registry: NewModelRegistry(),
		audit:    testutil.NewMockAuditLogRepository(),
		events:   testutil.NewMockEventPublisher(),
	}
	ms.svc = NewModelService(ms.repo, ms.store, ms.registry, ms.audit)
	ms.svc.SetEventPublisher(ms.events)
	return ms
}

func registerInput(version, path string) RegisterModelInput {
	gini := 0.62
	return RegisterModelInput{
		Name:          "application-gbdt",
		ScorecardType: "application",
		Version:       version,
		ArtifactPath:  path,
		GiniOOT:       &gini,
	}
}

func registerChampion(t *testing.T, ms *modelStack, version, path, artifact string) *domain.ModelVersion {
	t.Helper()
	ms.store.objects[path] = []byte(artifact)
	created, err := ms.svc.Register(context.Background(), registerInput(version, path))
	require.NoError(t, err)
	_, err = ms.svc.MarkValidated(context.Background(), created.ID, "validator.park")
	require.NoError(t, err)
	promoted, err := ms.svc.Promote(context.Background(), created.ID, "cro.lee")
	require.NoError(t, err)
	return promoted
}

func TestModelService_RegisterParsesArtifactUpFront(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/gbdt-2025.1.json"] = []byte(stumpArtifact)

	created, err := ms.svc.Register(context.Background(), registerInput("gbdt-2025.1", "models/gbdt-2025.1.json"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.ModelDraft, created.Status)
	assert.False(t, created.IsChampion)
	assert.Contains(t, ms.audit.Actions(), "model.registered")
	assert.Nil(t, ms.registry.Current())
}

func TestModelService_RegisterRejectsBrokenArtifact(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/broken.json"] = []byte(`{"version": "gbdt-x"}`)

	_, err := ms.svc.Register(context.Background(), registerInput("gbdt-x", "models/broken.json"))
	require.Error(t, err)

	_, err = ms.svc.Register(context.Background(), registerInput("gbdt-y", "models/missing.json"))
	require.Error(t, err)

	assert.Empty(t, ms.repo.Versions)
}

func TestModelService_RegisterValidation(t *testing.T) {
	ms := setupModelService()

	noName := registerInput("gbdt-2025.1", "models/a.json")
	noName.Name = ""
	_, err := ms.svc.Register(context.Background(), noName)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noPath := registerInput("gbdt-2025.1", "")
	_, err = ms.svc.Register(context.Background(), noPath)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestModelService_PromoteDeploysChampion(t *testing.T) {
	ms := setupModelService()
	promoted := registerChampion(t, ms, "gbdt-2025.1", "models/gbdt-2025.1.json", stumpArtifact)

	assert.Equal(t, domain.ModelChampion, promoted.Status)
	assert.True(t, promoted.IsChampion)
	require.NotNil(t, promoted.ApprovedBy)
	assert.Equal(t, "cro.lee", *promoted.ApprovedBy)
	assert.NotNil(t, promoted.ApprovedAt)

	serving := ms.registry.Current()
	require.NotNil(t, serving)
	assert.Equal(t, "gbdt-2025.1", serving.Version)

	assert.Contains(t, ms.audit.Actions(), "model.validated")
	assert.Contains(t, ms.audit.Actions(), "model.promoted")

	opsEvents := ms.events.EventsFor(websocket.OpsChannel)
	require.Len(t, opsEvents, 1)
	assert.Equal(t, "model_version.promoted", opsEvents[0].Type)
}

func TestModelService_PromoteRetiresPreviousChampion(t *testing.T) {
	ms := setupModelService()
	first := registerChampion(t, ms, "gbdt-2025.1", "models/gbdt-2025.1.json", stumpArtifact)
	second := registerChampion(t, ms, "gbdt-2025.2", "models/gbdt-2025.2.json", secondStumpArtifact)

	assert.Equal(t, domain.ModelRetired, ms.repo.Versions[first.ID].Status)
	assert.False(t, ms.repo.Versions[first.ID].IsChampion)
	assert.True(t, ms.repo.Versions[second.ID].IsChampion)

	champion, err := ms.svc.Champion(context.Background(), "application")
	require.NoError(t, err)
	assert.Equal(t, second.ID, champion.ID)

	serving := ms.registry.Current()
	require.NotNil(t, serving)
	assert.Equal(t, "gbdt-2025.2", serving.Version)
}

func TestModelService_MarkValidatedGuards(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/gbdt-2025.1.json"] = []byte(stumpArtifact)
	created, err := ms.svc.Register(context.Background(), registerInput("gbdt-2025.1", "models/gbdt-2025.1.json"))
	require.NoError(t, err)

	_, err = ms.svc.MarkValidated(context.Background(), created.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ms.svc.MarkValidated(context.Background(), created.ID, "validator.park")
	require.NoError(t, err)

	_, err = ms.svc.MarkValidated(context.Background(), created.ID, "validator.park")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = ms.svc.MarkValidated(context.Background(), uuid.New(), "validator.park")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestModelService_PromoteGuards(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/gbdt-2025.1.json"] = []byte(stumpArtifact)
	created, err := ms.svc.Register(context.Background(), registerInput("gbdt-2025.1", "models/gbdt-2025.1.json"))
	require.NoError(t, err)

	_, err = ms.svc.Promote(context.Background(), created.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ms.svc.Promote(context.Background(), created.ID, "cro.lee")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = ms.svc.Promote(context.Background(), uuid.New(), "cro.lee")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestModelService_PromoteLeavesRowValidatedOnFetchFailure(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/gbdt-2025.1.json"] = []byte(stumpArtifact)
	created, err := ms.svc.Register(context.Background(), registerInput("gbdt-2025.1", "models/gbdt-2025.1.json"))
	require.NoError(t, err)
	_, err = ms.svc.MarkValidated(context.Background(), created.ID, "validator.park")
	require.NoError(t, err)

	delete(ms.store.objects, "models/gbdt-2025.1.json")

	_, err = ms.svc.Promote(context.Background(), created.ID, "cro.lee")
	require.Error(t, err)

	assert.Equal(t, domain.ModelValidated, ms.repo.Versions[created.ID].Status)
	assert.False(t, ms.repo.Versions[created.ID].IsChampion)
	assert.Nil(t, ms.registry.Current())
}

func TestModelService_RetireFallsBackToStatistical(t *testing.T) {
	ms := setupModelService()
	promoted := registerChampion(t, ms, "gbdt-2025.1", "models/gbdt-2025.1.json", stumpArtifact)

	retired, err := ms.svc.Retire(context.Background(), promoted.ID, "cro.lee")
	require.NoError(t, err)

	assert.Equal(t, domain.ModelRetired, retired.Status)
	assert.False(t, retired.IsChampion)
	assert.Nil(t, ms.registry.Current())
	assert.Contains(t, ms.audit.Actions(), "model.retired")

	_, err = ms.svc.Retire(context.Background(), promoted.ID, "cro.lee")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = ms.svc.Retire(context.Background(), promoted.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestModelService_LoadChampion(t *testing.T) {
	ms := setupModelService()

	require.NoError(t, ms.svc.LoadChampion(context.Background(), "application"))
	assert.Nil(t, ms.registry.Current())

	ms.store.objects["models/gbdt-2025.1.json"] = []byte(stumpArtifact)
	ms.repo.AddVersion(&domain.ModelVersion{
		Name:          "application-gbdt",
		ScorecardType: "application",
		Version:       "gbdt-2025.1",
		ArtifactPath:  "models/gbdt-2025.1.json",
		Status:        domain.ModelChampion,
		IsChampion:    true,
	})

	require.NoError(t, ms.svc.LoadChampion(context.Background(), "application"))
	serving := ms.registry.Current()
	require.NotNil(t, serving)
	assert.Equal(t, "gbdt-2025.1", serving.Version)

	delete(ms.store.objects, "models/gbdt-2025.1.json")
	assert.Error(t, ms.svc.LoadChampion(context.Background(), "application"))
}

func TestModelService_ListFiltersByScorecardType(t *testing.T) {
	ms := setupModelService()
	ms.store.objects["models/a.json"] = []byte(stumpArtifact)
	ms.store.objects["models/b.json"] = []byte(secondStumpArtifact)

	_, err := ms.svc.Register(context.Background(), registerInput("gbdt-2025.1", "models/a.json"))
	require.NoError(t, err)

	jeonse := registerInput("gbdt-2025.2", "models/b.json")
	jeonse.ScorecardType = "jeonse"
	_, err = ms.svc.Register(context.Background(), jeonse)
	require.NoError(t, err)

	all, err := ms.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	apps, err := ms.svc.List(context.Background(), "application")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "gbdt-2025.1", apps[0].Version)

	_, err = ms.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
