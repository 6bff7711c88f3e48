package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/config"
	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/repository/postgres"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Seeds the regulatory baseline and the EQ/IRG master tables. Safe to
// run repeatedly: rows that already exist are skipped, never updated,
// so operator changes made through the admin API survive a re-seed.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	paramRepo := postgres.NewRegulationParamRepository(pool)
	eqGradeRepo := postgres.NewEQGradeMasterRepository(pool)
	irgRepo := postgres.NewIRGMasterRepository(pool)

	var inserted, skipped int
	for _, row := range service.SeedParams() {
		if _, err := paramRepo.Create(ctx, row); err != nil {
			if errors.Is(err, domain.ErrDuplicateParam) {
				skipped++
				continue
			}
			log.Fatal().Err(err).Str("param_key", row.ParamKey).Msg("Failed to seed parameter")
		}
		inserted++
	}
	log.Info().Int("inserted", inserted).Int("skipped", skipped).Msg("Regulation parameters seeded")

	inserted, skipped = 0, 0
	for _, master := range seedEQGradeMasters() {
		if _, err := eqGradeRepo.Create(ctx, master); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				skipped++
				continue
			}
			log.Fatal().Err(err).Str("employer", master.EmployerName).Msg("Failed to seed EQ grade master")
		}
		inserted++
	}
	log.Info().Int("inserted", inserted).Int("skipped", skipped).Msg("EQ grade masters seeded")

	inserted, skipped = 0, 0
	for _, master := range seedIRGMasters() {
		if _, err := irgRepo.Create(ctx, master); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				skipped++
				continue
			}
			log.Fatal().Err(err).Str("ksic", master.KSICCode).Msg("Failed to seed IRG master")
		}
		inserted++
	}
	log.Info().Int("inserted", inserted).Int("skipped", skipped).Msg("IRG masters seeded")
}

// seedEQGradeMasters returns the MOU partner employers. Grades follow
// the partnership agreements; the special rate replaces the standard
// MOU segment discount when present.
func seedEQGradeMasters() []*domain.EQGradeMaster {
	type partner struct {
		name        string
		grade       domain.EQGrade
		limitMult   float64
		rateAdj     float64
		mouCode     string
		specialRate float64
	}
	partners := []partner{
		{"삼성전자", domain.EQGradeS, 2.0, -0.5, "SEC001", -0.5},
		{"현대자동차", domain.EQGradeS, 2.0, -0.5, "HMC001", -0.5},
		{"카카오", domain.EQGradeA, 1.8, -0.3, "KKO001", -0.3},
		{"네이버", domain.EQGradeA, 1.8, -0.3, "NVR001", -0.3},
		{"국책은행", domain.EQGradeS, 2.0, -0.5, "GOV001", -0.5},
	}

	source := "seed"
	masters := make([]*domain.EQGradeMaster, 0, len(partners))
	for _, p := range partners {
		mouCode := p.mouCode
		special := p.specialRate
		masters = append(masters, &domain.EQGradeMaster{
			EmployerName:    p.name,
			Grade:           p.grade,
			LimitMultiplier: p.limitMult,
			RateAdjustment:  p.rateAdj,
			MOUCode:         &mouCode,
			MOUSpecialRate:  &special,
			GradeSource:     &source,
			IsActive:        true,
		})
	}
	return masters
}

// seedIRGMasters returns the industry risk baseline keyed by KSIC
// section. PD adjustments are multiplicative bumps on the raw PD.
func seedIRGMasters() []*domain.IRGMaster {
	type industry struct {
		ksic  string
		name  string
		grade domain.IRGGrade
	}
	industries := []industry{
		{"J62", "IT/소프트웨어", domain.IRGLow},
		{"M72", "의료/바이오", domain.IRGLow},
		{"K64", "금융/보험", domain.IRGMedium},
		{"C26", "제조업(일반)", domain.IRGMedium},
		{"F41", "건설업", domain.IRGHigh},
		{"L68", "부동산업", domain.IRGHigh},
		{"I56", "요식/숙박업", domain.IRGVeryHigh},
		{"K66-9", "가상자산/코인", domain.IRGVeryHigh},
	}

	masters := make([]*domain.IRGMaster, 0, len(industries))
	for _, ind := range industries {
		masters = append(masters, &domain.IRGMaster{
			KSICCode:     ind.ksic,
			IndustryName: ind.name,
			Grade:        ind.grade,
			PDAdjustment: ind.grade.PDAdjustment(),
			IsActive:     true,
		})
	}
	return masters
}
