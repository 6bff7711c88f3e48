package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockApplicantRepository is a mock implementation of domain.ApplicantRepository
type MockApplicantRepository struct {
	Applicants map[uuid.UUID]*domain.Applicant
	ByToken    map[string]*domain.Applicant
	GetByIDFn  func(ctx context.Context, id uuid.UUID) (*domain.Applicant, error)
}

// NewMockApplicantRepository creates a new MockApplicantRepository
func NewMockApplicantRepository() *MockApplicantRepository {
	return &MockApplicantRepository{
		Applicants: make(map[uuid.UUID]*domain.Applicant),
		ByToken:    make(map[string]*domain.Applicant),
	}
}

// Create creates a new applicant
func (m *MockApplicantRepository) Create(ctx context.Context, applicant *domain.Applicant) (*domain.Applicant, error) {
	if _, ok := m.ByToken[applicant.IdentityToken]; ok {
		return nil, domain.ErrAlreadyExists
	}
	applicant.ID = uuid.New()
	applicant.CreatedAt = time.Now()
	applicant.UpdatedAt = applicant.CreatedAt
	m.Applicants[applicant.ID] = applicant
	m.ByToken[applicant.IdentityToken] = applicant
	return applicant, nil
}

// GetByID retrieves an applicant by ID
func (m *MockApplicantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Applicant, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if applicant, ok := m.Applicants[id]; ok {
		return applicant, nil
	}
	return nil, domain.ErrApplicantNotFound
}

// GetByIdentityToken retrieves an applicant by hashed identity token
func (m *MockApplicantRepository) GetByIdentityToken(ctx context.Context, token string) (*domain.Applicant, error) {
	if applicant, ok := m.ByToken[token]; ok {
		return applicant, nil
	}
	return nil, domain.ErrApplicantNotFound
}

// Update updates an existing applicant
func (m *MockApplicantRepository) Update(ctx context.Context, applicant *domain.Applicant) (*domain.Applicant, error) {
	if _, ok := m.Applicants[applicant.ID]; !ok {
		return nil, domain.ErrApplicantNotFound
	}
	applicant.UpdatedAt = time.Now()
	m.Applicants[applicant.ID] = applicant
	m.ByToken[applicant.IdentityToken] = applicant
	return applicant, nil
}

// AddApplicant adds an applicant to the mock repository (helper for tests)
func (m *MockApplicantRepository) AddApplicant(applicant *domain.Applicant) {
	if applicant.ID == uuid.Nil {
		applicant.ID = uuid.New()
	}
	m.Applicants[applicant.ID] = applicant
	m.ByToken[applicant.IdentityToken] = applicant
}

// MockApplicationRepository is a mock implementation of domain.ApplicationRepository
type MockApplicationRepository struct {
	Applications map[uuid.UUID]*domain.LoanApplication
	ByNo         map[string]*domain.LoanApplication
	NextNo       int
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
	UpdateFn     func(ctx context.Context, app *domain.LoanApplication) (*domain.LoanApplication, error)
}

// NewMockApplicationRepository creates a new MockApplicationRepository
func NewMockApplicationRepository() *MockApplicationRepository {
	return &MockApplicationRepository{
		Applications: make(map[uuid.UUID]*domain.LoanApplication),
		ByNo:         make(map[string]*domain.LoanApplication),
		NextNo:       1,
	}
}

// Create creates a new loan application
func (m *MockApplicationRepository) Create(ctx context.Context, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	app.ID = uuid.New()
	if app.ApplicationNo == "" {
		app.ApplicationNo = fmt.Sprintf("KCS-%08d", m.NextNo)
		m.NextNo++
	}
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	m.Applications[app.ID] = app
	m.ByNo[app.ApplicationNo] = app
	return app, nil
}

// GetByID retrieves an application by ID
func (m *MockApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if app, ok := m.Applications[id]; ok {
		return app, nil
	}
	return nil, domain.ErrApplicationNotFound
}

// GetByApplicationNo retrieves an application by its business number
func (m *MockApplicationRepository) GetByApplicationNo(ctx context.Context, applicationNo string) (*domain.LoanApplication, error) {
	if app, ok := m.ByNo[applicationNo]; ok {
		return app, nil
	}
	return nil, domain.ErrApplicationNotFound
}

// Update updates an existing application
func (m *MockApplicationRepository) Update(ctx context.Context, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, app)
	}
	if _, ok := m.Applications[app.ID]; !ok {
		return nil, domain.ErrApplicationNotFound
	}
	app.UpdatedAt = time.Now()
	m.Applications[app.ID] = app
	m.ByNo[app.ApplicationNo] = app
	return app, nil
}

// ListByApplicantID lists applications for one applicant
func (m *MockApplicationRepository) ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*domain.LoanApplication, error) {
	var apps []*domain.LoanApplication
	for _, app := range m.Applications {
		if app.ApplicantID == applicantID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

// ListByStatus lists applications in one status
func (m *MockApplicationRepository) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int32) ([]*domain.LoanApplication, error) {
	var apps []*domain.LoanApplication
	for _, app := range m.Applications {
		if app.Status == status {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	if limit > 0 && int32(len(apps)) > limit {
		apps = apps[:limit]
	}
	return apps, nil
}

// AddApplication adds an application to the mock repository (helper for tests)
func (m *MockApplicationRepository) AddApplication(app *domain.LoanApplication) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.ApplicationNo == "" {
		app.ApplicationNo = fmt.Sprintf("KCS-%08d", m.NextNo)
		m.NextNo++
	}
	m.Applications[app.ID] = app
	m.ByNo[app.ApplicationNo] = app
}

// MockCreditScoreRepository is a mock implementation of domain.CreditScoreRepository
type MockCreditScoreRepository struct {
	Scores   map[uuid.UUID]*domain.CreditScore
	ordered  []uuid.UUID
	CreateFn func(ctx context.Context, score *domain.CreditScore) (*domain.CreditScore, error)
}

// NewMockCreditScoreRepository creates a new MockCreditScoreRepository
func NewMockCreditScoreRepository() *MockCreditScoreRepository {
	return &MockCreditScoreRepository{
		Scores: make(map[uuid.UUID]*domain.CreditScore),
	}
}

// Create creates a new credit score
func (m *MockCreditScoreRepository) Create(ctx context.Context, score *domain.CreditScore) (*domain.CreditScore, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, score)
	}
	score.ID = uuid.New()
	score.CreatedAt = time.Now()
	m.Scores[score.ID] = score
	m.ordered = append(m.ordered, score.ID)
	return score, nil
}

// GetByID retrieves a score by ID
func (m *MockCreditScoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditScore, error) {
	if score, ok := m.Scores[id]; ok {
		return score, nil
	}
	return nil, domain.ErrScoreNotFound
}

// GetLatestByApplicationID retrieves the most recent score for an application
func (m *MockCreditScoreRepository) GetLatestByApplicationID(ctx context.Context, applicationID uuid.UUID) (*domain.CreditScore, error) {
	for i := len(m.ordered) - 1; i >= 0; i-- {
		score := m.Scores[m.ordered[i]]
		if score != nil && score.ApplicationID == applicationID {
			return score, nil
		}
	}
	return nil, domain.ErrScoreNotFound
}

// ListByApplicationID lists scores for an application, newest first
func (m *MockCreditScoreRepository) ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*domain.CreditScore, error) {
	var scores []*domain.CreditScore
	for i := len(m.ordered) - 1; i >= 0; i-- {
		score := m.Scores[m.ordered[i]]
		if score != nil && score.ApplicationID == applicationID {
			scores = append(scores, score)
		}
	}
	return scores, nil
}

// ListByApplicantID lists scores for an applicant, newest first
func (m *MockCreditScoreRepository) ListByApplicantID(ctx context.Context, applicantID uuid.UUID) ([]*domain.CreditScore, error) {
	var scores []*domain.CreditScore
	for i := len(m.ordered) - 1; i >= 0; i-- {
		score := m.Scores[m.ordered[i]]
		if score != nil && score.ApplicantID == applicantID {
			scores = append(scores, score)
		}
	}
	return scores, nil
}

// ListScoredBetween lists scores in a time window
func (m *MockCreditScoreRepository) ListScoredBetween(ctx context.Context, from, to time.Time, limit int32) ([]*domain.CreditScore, error) {
	var scores []*domain.CreditScore
	for _, id := range m.ordered {
		score := m.Scores[id]
		if score == nil {
			continue
		}
		if score.ScoredAt.Before(from) || score.ScoredAt.After(to) {
			continue
		}
		scores = append(scores, score)
		if limit > 0 && int32(len(scores)) >= limit {
			break
		}
	}
	return scores, nil
}

// AddScore adds a score to the mock repository (helper for tests)
func (m *MockCreditScoreRepository) AddScore(score *domain.CreditScore) {
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	m.Scores[score.ID] = score
	m.ordered = append(m.ordered, score.ID)
}

// MockRegulationParamRepository is a mock implementation of domain.RegulationParamRepository
type MockRegulationParamRepository struct {
	Params         map[uuid.UUID]*domain.RegulationParam
	ListActiveAtFn func(ctx context.Context, paramKey string, at time.Time) ([]*domain.RegulationParam, error)
}

// NewMockRegulationParamRepository creates a new MockRegulationParamRepository
func NewMockRegulationParamRepository() *MockRegulationParamRepository {
	return &MockRegulationParamRepository{
		Params: make(map[uuid.UUID]*domain.RegulationParam),
	}
}

// Create creates a new parameter row
func (m *MockRegulationParamRepository) Create(ctx context.Context, param *domain.RegulationParam) (*domain.RegulationParam, error) {
	for _, existing := range m.Params {
		if existing.ParamKey == param.ParamKey && existing.EffectiveFrom.Equal(param.EffectiveFrom) {
			return nil, domain.ErrDuplicateParam
		}
	}
	param.ID = uuid.New()
	param.CreatedAt = time.Now()
	param.UpdatedAt = param.CreatedAt
	m.Params[param.ID] = param
	return param, nil
}

// GetByID retrieves a parameter by ID
func (m *MockRegulationParamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RegulationParam, error) {
	if param, ok := m.Params[id]; ok {
		return param, nil
	}
	return nil, domain.ErrParamNotFound
}

// ListByKey lists all rows for a key, newest first
func (m *MockRegulationParamRepository) ListByKey(ctx context.Context, paramKey string) ([]*domain.RegulationParam, error) {
	var params []*domain.RegulationParam
	for _, param := range m.Params {
		if param.ParamKey == paramKey {
			params = append(params, param)
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].EffectiveFrom.After(params[j].EffectiveFrom) })
	return params, nil
}

// ListActiveAt lists active rows whose window covers the instant, newest window first
func (m *MockRegulationParamRepository) ListActiveAt(ctx context.Context, paramKey string, at time.Time) ([]*domain.RegulationParam, error) {
	if m.ListActiveAtFn != nil {
		return m.ListActiveAtFn(ctx, paramKey, at)
	}
	var params []*domain.RegulationParam
	for _, param := range m.Params {
		if param.ParamKey == paramKey && param.ActiveAt(at) {
			params = append(params, param)
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].EffectiveFrom.After(params[j].EffectiveFrom) })
	return params, nil
}

// List lists rows filtered by category and active flag
func (m *MockRegulationParamRepository) List(ctx context.Context, category string, activeOnly bool) ([]*domain.RegulationParam, error) {
	var params []*domain.RegulationParam
	for _, param := range m.Params {
		if category != "" && param.Category != category {
			continue
		}
		if activeOnly && !param.IsActive {
			continue
		}
		params = append(params, param)
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].ParamKey != params[j].ParamKey {
			return params[i].ParamKey < params[j].ParamKey
		}
		return params[i].EffectiveFrom.After(params[j].EffectiveFrom)
	})
	return params, nil
}

// ListKeys lists the distinct parameter keys
func (m *MockRegulationParamRepository) ListKeys(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	for _, param := range m.Params {
		if !seen[param.ParamKey] {
			seen[param.ParamKey] = true
			keys = append(keys, param.ParamKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Deactivate closes a parameter row
func (m *MockRegulationParamRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time, actor string) (*domain.RegulationParam, error) {
	param, ok := m.Params[id]
	if !ok {
		return nil, domain.ErrParamNotFound
	}
	param.IsActive = false
	param.EffectiveTo = &at
	param.ChangeReason = "[비활성화] 요청자: " + actor
	param.UpdatedAt = time.Now()
	return param, nil
}

// AddParam adds a parameter to the mock repository (helper for tests)
func (m *MockRegulationParamRepository) AddParam(param *domain.RegulationParam) {
	if param.ID == uuid.Nil {
		param.ID = uuid.New()
	}
	m.Params[param.ID] = param
}

// MockAuditLogRepository is a mock implementation of domain.AuditLogRepository
type MockAuditLogRepository struct {
	Entries []*domain.AuditLog
	NextID  int64
}

// NewMockAuditLogRepository creates a new MockAuditLogRepository
func NewMockAuditLogRepository() *MockAuditLogRepository {
	return &MockAuditLogRepository{NextID: 1}
}

// Create appends an audit entry
func (m *MockAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) (*domain.AuditLog, error) {
	entry.ID = m.NextID
	m.NextID++
	entry.CreatedAt = time.Now()
	m.Entries = append(m.Entries, entry)
	return entry, nil
}

// ListByEntity lists entries for one entity, newest first
func (m *MockAuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	for i := len(m.Entries) - 1; i >= 0; i-- {
		entry := m.Entries[i]
		if entry.EntityType == entityType && entry.EntityID == entityID {
			entries = append(entries, entry)
			if limit > 0 && int32(len(entries)) >= limit {
				break
			}
		}
	}
	return entries, nil
}

// ListByActor lists entries for one actor, newest first
func (m *MockAuditLogRepository) ListByActor(ctx context.Context, actorID string, limit int32) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	for i := len(m.Entries) - 1; i >= 0; i-- {
		entry := m.Entries[i]
		if entry.ActorID == actorID {
			entries = append(entries, entry)
			if limit > 0 && int32(len(entries)) >= limit {
				break
			}
		}
	}
	return entries, nil
}

// Actions returns the recorded action names in order (helper for tests)
func (m *MockAuditLogRepository) Actions() []string {
	actions := make([]string, 0, len(m.Entries))
	for _, entry := range m.Entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

// MockEQGradeMasterRepository is a mock implementation of domain.EQGradeMasterRepository
type MockEQGradeMasterRepository struct {
	Masters        map[uuid.UUID]*domain.EQGradeMaster
	ByMOUCode      map[string]*domain.EQGradeMaster
	ByHash         map[string]*domain.EQGradeMaster
	GetByMOUCodeFn func(ctx context.Context, mouCode string) (*domain.EQGradeMaster, error)
}

// NewMockEQGradeMasterRepository creates a new MockEQGradeMasterRepository
func NewMockEQGradeMasterRepository() *MockEQGradeMasterRepository {
	return &MockEQGradeMasterRepository{
		Masters:   make(map[uuid.UUID]*domain.EQGradeMaster),
		ByMOUCode: make(map[string]*domain.EQGradeMaster),
		ByHash:    make(map[string]*domain.EQGradeMaster),
	}
}

// Create creates a new EQ grade master row
func (m *MockEQGradeMasterRepository) Create(ctx context.Context, master *domain.EQGradeMaster) (*domain.EQGradeMaster, error) {
	master.ID = uuid.New()
	master.CreatedAt = time.Now()
	master.UpdatedAt = master.CreatedAt
	m.add(master)
	return master, nil
}

// List lists the master rows
func (m *MockEQGradeMasterRepository) List(ctx context.Context, activeOnly bool) ([]*domain.EQGradeMaster, error) {
	var masters []*domain.EQGradeMaster
	for _, master := range m.Masters {
		if activeOnly && !master.IsActive {
			continue
		}
		masters = append(masters, master)
	}
	sort.Slice(masters, func(i, j int) bool { return masters[i].EmployerName < masters[j].EmployerName })
	return masters, nil
}

// GetByMOUCode retrieves the master row for an MOU partner code
func (m *MockEQGradeMasterRepository) GetByMOUCode(ctx context.Context, mouCode string) (*domain.EQGradeMaster, error) {
	if m.GetByMOUCodeFn != nil {
		return m.GetByMOUCodeFn(ctx, mouCode)
	}
	if master, ok := m.ByMOUCode[mouCode]; ok {
		return master, nil
	}
	return nil, domain.ErrNotFound
}

// GetByEmployerHash retrieves the master row for a hashed employer registration number
func (m *MockEQGradeMasterRepository) GetByEmployerHash(ctx context.Context, hash string) (*domain.EQGradeMaster, error) {
	if master, ok := m.ByHash[hash]; ok {
		return master, nil
	}
	return nil, domain.ErrNotFound
}

// AddMaster adds a master row to the mock repository (helper for tests)
func (m *MockEQGradeMasterRepository) AddMaster(master *domain.EQGradeMaster) {
	if master.ID == uuid.Nil {
		master.ID = uuid.New()
	}
	m.add(master)
}

func (m *MockEQGradeMasterRepository) add(master *domain.EQGradeMaster) {
	m.Masters[master.ID] = master
	if master.MOUCode != nil {
		m.ByMOUCode[*master.MOUCode] = master
	}
	if master.EmployerRegistrationHash != nil {
		m.ByHash[*master.EmployerRegistrationHash] = master
	}
}

// MockIRGMasterRepository is a mock implementation of domain.IRGMasterRepository
type MockIRGMasterRepository struct {
	Masters map[string]*domain.IRGMaster
}

// NewMockIRGMasterRepository creates a new MockIRGMasterRepository
func NewMockIRGMasterRepository() *MockIRGMasterRepository {
	return &MockIRGMasterRepository{Masters: make(map[string]*domain.IRGMaster)}
}

// Create creates a new IRG master row
func (m *MockIRGMasterRepository) Create(ctx context.Context, master *domain.IRGMaster) (*domain.IRGMaster, error) {
	if _, ok := m.Masters[master.KSICCode]; ok {
		return nil, domain.ErrAlreadyExists
	}
	master.ID = uuid.New()
	master.CreatedAt = time.Now()
	master.UpdatedAt = master.CreatedAt
	m.Masters[master.KSICCode] = master
	return master, nil
}

// GetByKSIC retrieves the master row for a KSIC code
func (m *MockIRGMasterRepository) GetByKSIC(ctx context.Context, ksicCode string) (*domain.IRGMaster, error) {
	if master, ok := m.Masters[ksicCode]; ok {
		return master, nil
	}
	return nil, domain.ErrNotFound
}

// List lists the master rows
func (m *MockIRGMasterRepository) List(ctx context.Context, activeOnly bool) ([]*domain.IRGMaster, error) {
	var masters []*domain.IRGMaster
	for _, master := range m.Masters {
		if activeOnly && !master.IsActive {
			continue
		}
		masters = append(masters, master)
	}
	sort.Slice(masters, func(i, j int) bool { return masters[i].KSICCode < masters[j].KSICCode })
	return masters, nil
}

// MockModelVersionRepository is a mock implementation of domain.ModelVersionRepository
type MockModelVersionRepository struct {
	Versions map[uuid.UUID]*domain.ModelVersion
}

// NewMockModelVersionRepository creates a new MockModelVersionRepository
func NewMockModelVersionRepository() *MockModelVersionRepository {
	return &MockModelVersionRepository{Versions: make(map[uuid.UUID]*domain.ModelVersion)}
}

// Create registers a new model version
func (m *MockModelVersionRepository) Create(ctx context.Context, version *domain.ModelVersion) (*domain.ModelVersion, error) {
	version.ID = uuid.New()
	version.CreatedAt = time.Now()
	version.UpdatedAt = version.CreatedAt
	m.Versions[version.ID] = version
	return version, nil
}

// GetByID retrieves a version by ID
func (m *MockModelVersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	if version, ok := m.Versions[id]; ok {
		return version, nil
	}
	return nil, domain.ErrNotFound
}

// GetChampion retrieves the champion version for a scorecard type
func (m *MockModelVersionRepository) GetChampion(ctx context.Context, scorecardType string) (*domain.ModelVersion, error) {
	for _, version := range m.Versions {
		if version.ScorecardType == scorecardType && version.IsChampion {
			return version, nil
		}
	}
	return nil, domain.ErrNotFound
}

// List lists versions for a scorecard type, or all when the type is empty
func (m *MockModelVersionRepository) List(ctx context.Context, scorecardType string) ([]*domain.ModelVersion, error) {
	var versions []*domain.ModelVersion
	for _, version := range m.Versions {
		if scorecardType != "" && version.ScorecardType != scorecardType {
			continue
		}
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].CreatedAt.After(versions[j].CreatedAt) })
	return versions, nil
}

// Promote flips the champion flag, retiring the previous champion
func (m *MockModelVersionRepository) Promote(ctx context.Context, id uuid.UUID, approvedBy string) (*domain.ModelVersion, error) {
	version, ok := m.Versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, other := range m.Versions {
		if other.ID != version.ID && other.ScorecardType == version.ScorecardType && other.IsChampion {
			other.IsChampion = false
			other.Status = domain.ModelRetired
		}
	}
	now := time.Now()
	version.IsChampion = true
	version.Status = domain.ModelChampion
	version.ApprovedBy = &approvedBy
	version.ApprovedAt = &now
	version.UpdatedAt = now
	return version, nil
}

// SetStatus updates the governance status of a version
func (m *MockModelVersionRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ModelStatus) (*domain.ModelVersion, error) {
	version, ok := m.Versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	version.Status = status
	if status != domain.ModelChampion {
		version.IsChampion = false
	}
	version.UpdatedAt = time.Now()
	return version, nil
}

// AddVersion adds a version to the mock repository (helper for tests)
func (m *MockModelVersionRepository) AddVersion(version *domain.ModelVersion) {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	m.Versions[version.ID] = version
}

// MockOutcomeRepository is a mock implementation of domain.OutcomeRepository
type MockOutcomeRepository struct {
	Outcomes  []*domain.LoanOutcome
	Snapshots []*domain.PerformanceSnapshot
	CountFn   func(ctx context.Context) (int64, error)
}

// NewMockOutcomeRepository creates a new MockOutcomeRepository
func NewMockOutcomeRepository() *MockOutcomeRepository {
	return &MockOutcomeRepository{}
}

// Record stores a loan outcome
func (m *MockOutcomeRepository) Record(ctx context.Context, outcome *domain.LoanOutcome) (*domain.LoanOutcome, error) {
	outcome.ID = uuid.New()
	outcome.CreatedAt = time.Now()
	outcome.UpdatedAt = outcome.CreatedAt
	m.Outcomes = append(m.Outcomes, outcome)
	return outcome, nil
}

// Count returns the number of recorded outcomes
func (m *MockOutcomeRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx)
	}
	return int64(len(m.Outcomes)), nil
}

// ListBetween lists outcomes disbursed in a window
func (m *MockOutcomeRepository) ListBetween(ctx context.Context, from, to time.Time, limit int32) ([]*domain.LoanOutcome, error) {
	var outcomes []*domain.LoanOutcome
	for _, outcome := range m.Outcomes {
		if outcome.DisbursedAt.Before(from) || outcome.DisbursedAt.After(to) {
			continue
		}
		outcomes = append(outcomes, outcome)
		if limit > 0 && int32(len(outcomes)) >= limit {
			break
		}
	}
	return outcomes, nil
}

// AddSnapshot stores a performance snapshot
func (m *MockOutcomeRepository) AddSnapshot(ctx context.Context, snap *domain.PerformanceSnapshot) (*domain.PerformanceSnapshot, error) {
	snap.ID = uuid.New()
	snap.CreatedAt = time.Now()
	m.Snapshots = append(m.Snapshots, snap)
	return snap, nil
}

// ListSnapshotsForApplications lists snapshots for a set of applications
func (m *MockOutcomeRepository) ListSnapshotsForApplications(ctx context.Context, applicationIDs []uuid.UUID) ([]*domain.PerformanceSnapshot, error) {
	wanted := make(map[uuid.UUID]bool, len(applicationIDs))
	for _, id := range applicationIDs {
		wanted[id] = true
	}
	var snaps []*domain.PerformanceSnapshot
	for _, snap := range m.Snapshots {
		if wanted[snap.ApplicationID] {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// MockEWSEventRepository is a mock implementation of domain.EWSEventRepository
type MockEWSEventRepository struct {
	Events    map[uuid.UUID]*domain.EWSEvent
	ByEventID map[string]*domain.EWSEvent
}

// NewMockEWSEventRepository creates a new MockEWSEventRepository
func NewMockEWSEventRepository() *MockEWSEventRepository {
	return &MockEWSEventRepository{
		Events:    make(map[uuid.UUID]*domain.EWSEvent),
		ByEventID: make(map[string]*domain.EWSEvent),
	}
}

// Create persists a processed alert
func (m *MockEWSEventRepository) Create(ctx context.Context, event *domain.EWSEvent) (*domain.EWSEvent, error) {
	if _, ok := m.ByEventID[event.EventID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	m.Events[event.ID] = event
	m.ByEventID[event.EventID] = event
	return event, nil
}

// GetByEventID retrieves a processed alert by message event ID
func (m *MockEWSEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.EWSEvent, error) {
	if event, ok := m.ByEventID[eventID]; ok {
		return event, nil
	}
	return nil, domain.ErrNotFound
}

// ListByApplicant lists processed alerts for one applicant, newest first
func (m *MockEWSEventRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit int32) ([]*domain.EWSEvent, error) {
	var events []*domain.EWSEvent
	for _, event := range m.Events {
		if event.ApplicantID == applicantID {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ProcessedAt.After(events[j].ProcessedAt) })
	if limit > 0 && int32(len(events)) > limit {
		events = events[:limit]
	}
	return events, nil
}

// ListRecent lists processed alerts since a time, newest first
func (m *MockEWSEventRepository) ListRecent(ctx context.Context, since time.Time, limit int32) ([]*domain.EWSEvent, error) {
	var events []*domain.EWSEvent
	for _, event := range m.Events {
		if !event.ProcessedAt.Before(since) {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ProcessedAt.After(events[j].ProcessedAt) })
	if limit > 0 && int32(len(events)) > limit {
		events = events[:limit]
	}
	return events, nil
}

// MockAppealDocumentRepository is a mock implementation of domain.AppealDocumentRepository
type MockAppealDocumentRepository struct {
	Documents map[uuid.UUID]*domain.AppealDocument
	CreateFn  func(ctx context.Context, doc *domain.AppealDocument) (*domain.AppealDocument, error)
}

// NewMockAppealDocumentRepository creates a new MockAppealDocumentRepository
func NewMockAppealDocumentRepository() *MockAppealDocumentRepository {
	return &MockAppealDocumentRepository{Documents: make(map[uuid.UUID]*domain.AppealDocument)}
}

// Create stores a document record
func (m *MockAppealDocumentRepository) Create(ctx context.Context, doc *domain.AppealDocument) (*domain.AppealDocument, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, doc)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	m.Documents[doc.ID] = doc
	return doc, nil
}

// GetByID retrieves a document record by ID
func (m *MockAppealDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AppealDocument, error) {
	if doc, ok := m.Documents[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

// ListByApplicationID lists document records for an application
func (m *MockAppealDocumentRepository) ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*domain.AppealDocument, error) {
	var docs []*domain.AppealDocument
	for _, doc := range m.Documents {
		if doc.ApplicationID == applicationID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

// Delete removes a document record
func (m *MockAppealDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.Documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.Documents, id)
	return nil
}

// MockEventPublisher is a mock implementation of websocket.EventPublisher
// that records every published event for assertions.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events map[string][]websocket.Event
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{Events: make(map[string][]websocket.Event)}
}

// Publish records the event under its channel
func (m *MockEventPublisher) Publish(channel string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[channel] = append(m.Events[channel], event)
}

// EventsFor returns the events published to a channel (helper for tests)
func (m *MockEventPublisher) EventsFor(channel string) []websocket.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Events[channel]
}
