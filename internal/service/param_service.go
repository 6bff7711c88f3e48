package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

const (
	paramCacheTTL       = 5 * time.Minute
	defaultWarnInterval = time.Minute
)

// ParamCache is the short-lived lookup cache in front of the store.
// Invalidate drops every cached resolution of a parameter key; writes
// call it so superseded values never outlive the change.
type ParamCache interface {
	Get(ctx context.Context, key string) (*ResolvedParam, bool, error)
	Set(ctx context.Context, key string, value *ResolvedParam, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Resolution sources recorded for audit and degradation tracking.
const (
	ResolutionStore   = "store"
	ResolutionDefault = "default"
)

// ResolvedParam is the outcome of a parameter lookup: the winning value
// plus enough provenance to reproduce the decision later.
type ResolvedParam struct {
	Key           string              `json:"key"`
	Value         domain.ParamValue   `json:"value"`
	Condition     domain.ConditionMap `json:"condition,omitempty"`
	Source        string              `json:"source"`
	ParamID       *uuid.UUID          `json:"paramId,omitempty"`
	EffectiveFrom time.Time           `json:"effectiveFrom"`
}

// ParamService resolves versioned regulation parameters with a cache in
// front and compiled defaults behind, and owns the admin change flow.
type ParamService struct {
	repo  domain.RegulationParamRepository
	cache ParamCache
	audit domain.AuditLogRepository

	warnMu   sync.Mutex
	lastWarn map[string]time.Time
}

func NewParamService(repo domain.RegulationParamRepository, cache ParamCache, audit domain.AuditLogRepository) *ParamService {
	return &ParamService{
		repo:     repo,
		cache:    cache,
		audit:    audit,
		lastWarn: make(map[string]time.Time),
	}
}

// cacheKey buckets the effective time to the minute so repeated
// evaluations inside a window share an entry.
func cacheKey(key string, cond domain.ConditionMap, at time.Time) string {
	return "param:" + key + ":" + cond.Canonical() + ":" + at.UTC().Truncate(time.Minute).Format("200601021504")
}

// Resolve returns the parameter value governing `key` at `at` under the
// caller's condition context. Store rows win over compiled defaults;
// among matching rows the latest effectiveFrom wins.
func (s *ParamService) Resolve(ctx context.Context, key string, at time.Time, cond domain.ConditionMap) (*ResolvedParam, error) {
	ck := cacheKey(key, cond, at)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, ck)
		if err != nil {
			log.Warn().Err(err).Str("param_key", key).Msg("Parameter cache read failed, falling through to store")
		} else if ok {
			return cached, nil
		}
	}

	rows, err := s.repo.ListActiveAt(ctx, key, at)
	if err != nil {
		log.Error().Err(err).Str("param_key", key).Msg("Parameter store unavailable, attempting compiled default")
		return s.resolveDefault(key, at, cond, fmt.Errorf("list params for %s: %w", key, err))
	}

	matched := rows[:0:0]
	for _, row := range rows {
		if row.Matches(cond) {
			matched = append(matched, row)
		}
	}
	if len(matched) == 0 {
		return s.resolveDefault(key, at, cond, nil)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].EffectiveFrom.After(matched[j].EffectiveFrom)
	})
	winner := matched[0]

	resolved := &ResolvedParam{
		Key:           key,
		Value:         winner.Value,
		Condition:     winner.Condition,
		Source:        ResolutionStore,
		ParamID:       &winner.ID,
		EffectiveFrom: winner.EffectiveFrom,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, ck, resolved, paramCacheTTL); err != nil {
			log.Warn().Err(err).Str("param_key", key).Msg("Parameter cache write failed")
		}
	}
	return resolved, nil
}

// resolveDefault serves the compiled baseline, or surfaces the original
// failure when no default exists for the key.
func (s *ParamService) resolveDefault(key string, at time.Time, cond domain.ConditionMap, cause error) (*ResolvedParam, error) {
	value, ok := compiledDefault(key, at, cond)
	if !ok {
		if cause != nil {
			return nil, cause
		}
		return nil, fmt.Errorf("param %s: %w", key, domain.ErrParamNotFound)
	}
	s.warnDefaultOnce(key)
	return &ResolvedParam{
		Key:           key,
		Value:         value,
		Source:        ResolutionDefault,
		EffectiveFrom: at,
	}, nil
}

// warnDefaultOnce logs the default fallback at most once per key per
// minute to keep a hot path from flooding the log.
func (s *ParamService) warnDefaultOnce(key string) {
	now := time.Now()
	s.warnMu.Lock()
	defer s.warnMu.Unlock()
	if last, ok := s.lastWarn[key]; ok && now.Sub(last) < defaultWarnInterval {
		return
	}
	s.lastWarn[key] = now
	log.Warn().Str("param_key", key).Msg("No store row matched, serving compiled default")
}

// DSRLimit returns the DSR ceiling in percent. Product-specific rows
// win over the blanket limit.
func (s *ParamService) DSRLimit(ctx context.Context, at time.Time, product domain.ProductType) (float64, error) {
	cond := domain.ConditionMap{CondProductType: string(product)}
	rp, err := s.Resolve(ctx, ParamDSRLimit, at, cond)
	if err != nil {
		return 0, err
	}
	if rp.Value.LimitRatio == nil {
		return 0, fmt.Errorf("param %s: %w", ParamDSRLimit, domain.ErrInvalidInput)
	}
	return rp.Value.LimitRatio.MaxRatio, nil
}

// LTVLimit returns the LTV ceiling in percent for the collateral
// region, lowered for multi-property owners.
func (s *ParamService) LTVLimit(ctx context.Context, at time.Time, region domain.LTVRegionClass, ownedProperties int32) (float64, error) {
	rp, err := s.Resolve(ctx, ParamLTVPrefix+string(region), at, nil)
	if err != nil {
		return 0, err
	}
	if rp.Value.LimitRatio == nil {
		return 0, fmt.Errorf("param ltv.%s: %w", region, domain.ErrInvalidInput)
	}
	limit := rp.Value.LimitRatio.MaxRatio
	if ownedProperties >= 2 {
		limit -= rp.Value.LimitRatio.MultiOwnerDeduction
	}
	if limit < 0 {
		limit = 0
	}
	return limit, nil
}

// StressAdd returns the effective stress DSR add-on in percentage
// points for the region and rate structure.
func (s *ParamService) StressAdd(ctx context.Context, at time.Time, region domain.StressDSRRegion, rateType domain.RateType) (float64, error) {
	cond := domain.ConditionMap{CondRateType: string(rateType)}
	rp, err := s.Resolve(ctx, ParamStressPrefix+string(region), at, cond)
	if err != nil {
		return 0, err
	}
	if rp.Value.StressRate == nil {
		return 0, fmt.Errorf("param stress_dsr.%s: %w", region, domain.ErrInvalidInput)
	}
	return rp.Value.StressRate.Effective(), nil
}

// IRGAdjustment returns the multiplicative PD bump for an industry
// risk grade. The adjusted PD is raw * (1 + adjustment).
func (s *ParamService) IRGAdjustment(ctx context.Context, at time.Time, grade domain.IRGGrade) (float64, error) {
	return s.scalar(ctx, ParamIRGPrefix+string(grade), at)
}

// BaseRate returns the internal base rate in percent.
func (s *ParamService) BaseRate(ctx context.Context, at time.Time) (float64, error) {
	return s.scalar(ctx, ParamBaseRate, at)
}

// StatutoryRateCap returns the legal maximum interest rate in percent.
func (s *ParamService) StatutoryRateCap(ctx context.Context, at time.Time) (float64, error) {
	return s.scalar(ctx, ParamMaxInterest, at)
}

func (s *ParamService) scalar(ctx context.Context, key string, at time.Time) (float64, error) {
	rp, err := s.Resolve(ctx, key, at, nil)
	if err != nil {
		return 0, err
	}
	if rp.Value.Scalar == nil {
		return 0, fmt.Errorf("param %s: %w", key, domain.ErrInvalidInput)
	}
	return rp.Value.Scalar.Value, nil
}

// IncomeMultiplier returns the income-to-limit multiplier for the
// employment kind. Kinds without a seeded row fall back to 1.0.
func (s *ParamService) IncomeMultiplier(ctx context.Context, at time.Time, kind domain.EmploymentKind) (float64, error) {
	cond := domain.ConditionMap{CondEmploymentKind: string(kind)}
	rp, err := s.Resolve(ctx, ParamIncomeMult, at, cond)
	if err != nil {
		return 0, err
	}
	if rp.Value.IncomeMultiplier == nil {
		return 0, fmt.Errorf("param %s: %w", ParamIncomeMult, domain.ErrInvalidInput)
	}
	return rp.Value.IncomeMultiplier.Times, nil
}

// EQBenefit returns the employer-grade benefit terms.
func (s *ParamService) EQBenefit(ctx context.Context, at time.Time, grade domain.EQGrade) (*domain.EQBenefit, error) {
	rp, err := s.Resolve(ctx, ParamEQPrefix+string(grade), at, nil)
	if err != nil {
		return nil, err
	}
	if rp.Value.EQBenefit == nil {
		return nil, fmt.Errorf("param eq_grade.benefit.%s: %w", grade, domain.ErrInvalidInput)
	}
	return rp.Value.EQBenefit, nil
}

// SegmentBenefit returns preferential terms for a segment code.
// Unknown codes return ErrParamNotFound; callers treat that as no
// benefit rather than a failure.
func (s *ParamService) SegmentBenefit(ctx context.Context, at time.Time, code string) (*domain.SegmentBenefit, error) {
	rp, err := s.Resolve(ctx, ParamSegmentPrefix+domain.SegmentParamCode(code), at, nil)
	if err != nil {
		return nil, err
	}
	if rp.Value.SegmentBenefit == nil {
		return nil, fmt.Errorf("param segment.benefit.%s: %w", code, domain.ErrInvalidInput)
	}
	return rp.Value.SegmentBenefit, nil
}

// CCF returns the credit conversion factor for undrawn revolving lines.
// A per-product override row wins over the portfolio default.
func (s *ParamService) CCF(ctx context.Context, at time.Time, product domain.ProductType) (float64, error) {
	override, err := s.Resolve(ctx, "ccf.revolving."+string(product), at, nil)
	if err == nil && override.Value.CreditConversion != nil {
		return override.Value.CreditConversion.Ratio, nil
	}
	rp, err := s.Resolve(ctx, ParamCCFRevolving, at, nil)
	if err != nil {
		return 0, err
	}
	if rp.Value.CreditConversion == nil {
		return 0, fmt.Errorf("param %s: %w", ParamCCFRevolving, domain.ErrInvalidInput)
	}
	return rp.Value.CreditConversion.Ratio, nil
}

// Create inserts a new parameter version after validating the
// two-person rule, then drops cached resolutions of the key.
func (s *ParamService) Create(ctx context.Context, param *domain.RegulationParam) (*domain.RegulationParam, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, param)
	if err != nil {
		log.Error().Err(err).Str("param_key", param.ParamKey).Msg("Failed to create regulation parameter")
		return nil, err
	}
	s.invalidate(ctx, created.ParamKey)

	s.recordAudit(ctx, "regulation_param", created.ID.String(), "param.create", created.CreatedBy, map[string]any{
		"param_key":      created.ParamKey,
		"effective_from": created.EffectiveFrom,
		"change_reason":  created.ChangeReason,
		"approved_by":    created.ApprovedBy,
	})

	log.Info().
		Str("param_key", created.ParamKey).
		Time("effective_from", created.EffectiveFrom).
		Str("created_by", created.CreatedBy).
		Str("approved_by", created.ApprovedBy).
		Msg("Regulation parameter created")
	return created, nil
}

// Deactivate retires a row immediately: is_active drops and the window
// closes at now.
func (s *ParamService) Deactivate(ctx context.Context, id uuid.UUID, actor string) (*domain.RegulationParam, error) {
	if actor == "" {
		return nil, domain.NewValidationError("actor", "actor is required")
	}
	now := time.Now().UTC()
	updated, err := s.repo.Deactivate(ctx, id, now, actor)
	if err != nil {
		log.Error().Err(err).Str("param_id", id.String()).Msg("Failed to deactivate regulation parameter")
		return nil, err
	}
	s.invalidate(ctx, updated.ParamKey)

	s.recordAudit(ctx, "regulation_param", id.String(), "param.deactivate", actor, map[string]any{
		"param_key":    updated.ParamKey,
		"effective_to": now,
	})

	log.Info().Str("param_key", updated.ParamKey).Str("param_id", id.String()).Msg("Regulation parameter deactivated")
	return updated, nil
}

// ListByKey returns the full version history for a key.
func (s *ParamService) ListByKey(ctx context.Context, key string) ([]*domain.RegulationParam, error) {
	return s.repo.ListByKey(ctx, key)
}

// List returns parameter rows filtered by category and active flag. An
// empty category returns all rows.
func (s *ParamService) List(ctx context.Context, category string, activeOnly bool) ([]*domain.RegulationParam, error) {
	return s.repo.List(ctx, category, activeOnly)
}

// ListKeys returns all distinct parameter keys in the store.
func (s *ParamService) ListKeys(ctx context.Context) ([]string, error) {
	return s.repo.ListKeys(ctx)
}

// GetByID returns one parameter row.
func (s *ParamService) GetByID(ctx context.Context, id uuid.UUID) (*domain.RegulationParam, error) {
	return s.repo.GetByID(ctx, id)
}

// invalidate drops cached resolutions of a key after a write. A failed
// invalidation degrades to the TTL bound instead of failing the change.
func (s *ParamService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn().Err(err).Str("param_key", key).Msg("Parameter cache invalidation failed")
	}
}

// recordAudit appends an audit entry without failing the caller.
func (s *ParamService) recordAudit(ctx context.Context, entityType, entityID, action, actor string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor,
		ActorType:  domain.ActorUser,
		Changes:    changes,
	}
	if _, err := s.audit.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Str("entity_id", entityID).Msg("Failed to write audit entry")
	}
}
