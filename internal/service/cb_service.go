package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/util"
)

// BureauClient performs the actual pull against one bureau. A nil
// client makes the service serve deterministic simulated reports,
// which is how development and test environments run.
type BureauClient interface {
	FetchReport(ctx context.Context, bureau domain.CBSource, identityToken string) (*domain.CBReport, error)
}

// CBCache stores recent reports so bureau outages degrade to stale
// data instead of the conservative default.
type CBCache interface {
	Get(ctx context.Context, key string) (*domain.CBReport, bool, error)
	Set(ctx context.Context, key string, report *domain.CBReport, ttl time.Duration) error
}

// CBConfig tunes bureau calls and the fallback cache.
type CBConfig struct {
	BureauTimeout  time.Duration
	CacheTimeout   time.Duration
	MaxRetries     int
	RetryBackoffMs int
	CacheTTL       time.Duration
}

// DefaultCBConfig returns the production call budget: 3s per bureau,
// 100ms per cache operation, one hour of staleness tolerance.
func DefaultCBConfig() CBConfig {
	return CBConfig{
		BureauTimeout:  3 * time.Second,
		CacheTimeout:   100 * time.Millisecond,
		MaxRetries:     2,
		RetryBackoffMs: 200,
		CacheTTL:       time.Hour,
	}
}

// CBService pulls bureau reports with failover: NICE first, then KCB,
// then the cache, then a conservative default. Scoring never blocks on
// bureau availability.
type CBService struct {
	config CBConfig
	client BureauClient
	cache  CBCache
}

func NewCBService(config CBConfig, client BureauClient, cache CBCache) *CBService {
	if config.BureauTimeout <= 0 {
		config.BureauTimeout = 3 * time.Second
	}
	if config.CacheTimeout <= 0 {
		config.CacheTimeout = 100 * time.Millisecond
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	return &CBService{config: config, client: client, cache: cache}
}

func cbCacheKey(identityToken string) string {
	return "cb:" + util.CacheFragment(identityToken)
}

// FetchReport returns the freshest report obtainable under the call
// budget. The returned report's Source and IsFallback fields tell the
// caller how degraded the pull was.
func (s *CBService) FetchReport(ctx context.Context, identityToken string, consented bool) (*domain.CBReport, error) {
	if identityToken == "" {
		return nil, domain.NewValidationError("identityToken", "identity token is required")
	}
	if !consented {
		return nil, domain.ErrConsentRequired
	}

	for _, bureau := range []domain.CBSource{domain.CBSourceNICE, domain.CBSourceKCB} {
		report, err := s.pullBureau(ctx, bureau, identityToken)
		if err == nil {
			s.storeCache(ctx, identityToken, report)
			return report, nil
		}
		log.Warn().Err(err).Str("bureau", string(bureau)).Msg("Bureau pull failed, trying next source")
	}

	if cached := s.readCache(ctx, identityToken); cached != nil {
		log.Warn().Str("identity", util.CacheFragment(identityToken)).Msg("All bureaus unavailable, serving cached report")
		cached.Source = domain.CBSourceCache
		return cached, nil
	}

	log.Warn().Str("identity", util.CacheFragment(identityToken)).Msg("All bureaus and cache unavailable, serving conservative default")
	return domain.FallbackCBReport(identityToken, time.Now().UTC()), nil
}

// pullBureau calls one bureau with retries and exponential backoff.
func (s *CBService) pullBureau(ctx context.Context, bureau domain.CBSource, identityToken string) (*domain.CBReport, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(s.config.RetryBackoffMs) * time.Millisecond * (1 << uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.config.BureauTimeout)
		report, err := s.fetch(callCtx, bureau, identityToken)
		cancel()
		if err == nil {
			report.Source = bureau
			report.IsFallback = false
			return report, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("bureau %s exhausted %d retries: %w", bureau, s.config.MaxRetries, lastErr)
}

func (s *CBService) fetch(ctx context.Context, bureau domain.CBSource, identityToken string) (*domain.CBReport, error) {
	if s.client != nil {
		return s.client.FetchReport(ctx, bureau, identityToken)
	}
	return simulateReport(bureau, identityToken), nil
}

func (s *CBService) readCache(ctx context.Context, identityToken string) *domain.CBReport {
	if s.cache == nil {
		return nil
	}
	cacheCtx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()
	report, ok, err := s.cache.Get(cacheCtx, cbCacheKey(identityToken))
	if err != nil {
		log.Warn().Err(err).Msg("CB cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	return report
}

func (s *CBService) storeCache(ctx context.Context, identityToken string, report *domain.CBReport) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()
	if err := s.cache.Set(cacheCtx, cbCacheKey(identityToken), report, s.config.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("CB cache write failed")
	}
}

// simulateReport derives a reproducible report from the identity token
// hash so development environments behave deterministically.
func simulateReport(bureau domain.CBSource, identityToken string) *domain.CBReport {
	h := sha256.Sum256([]byte(string(bureau) + identityToken))
	score := 500 + int(binary.BigEndian.Uint32(h[:4])%451)

	delinq := 0
	worst := 0
	if score < 620 {
		delinq = int(h[5] % 3)
		if delinq > 0 {
			worst = 1 + int(h[6]%2)
		}
	}

	return &domain.CBReport{
		IdentityToken:          identityToken,
		Source:                 bureau,
		Score:                  score,
		Grade:                  cbGradeForScore(score),
		Delinquencies12M:       delinq,
		WorstDelinquencyStatus: worst,
		Inquiries3M:            int(h[7] % 4),
		OpenLoans:              int(h[8] % 6),
		RetrievedAt:            time.Now().UTC(),
	}
}

func cbGradeForScore(score int) string {
	switch {
	case score >= 900:
		return "AA"
	case score >= 800:
		return "A"
	case score >= 700:
		return "BB"
	case score >= 600:
		return "B"
	case score >= 500:
		return "CC"
	default:
		return "C"
	}
}
