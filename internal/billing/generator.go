// Package billing turns platform rosters into monthly charges and keeps those
// rosters consistent while they are edited.
package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/metrics"
	"subsplit_app_echo/internal/models"
)

// Generator creates the charges owed for a billing period.
type Generator struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewGenerator(db *gorm.DB, log zerolog.Logger) *Generator {
	return &Generator{
		db:  db,
		log: log.With().Str("component", "charge_generator").Logger(),
	}
}

// GenerateMonthlyCharges inserts the charges for every platform for
// (month, year) and returns how many were created.
//
// A platform whose roster cannot be loaded or whose insert fails is logged
// and skipped; the others still get their charges. Running it twice for the
// same period creates a second set of charges.
func (g *Generator) GenerateMonthlyCharges(ctx context.Context, month, year int) (int, error) {
	if month < 1 || month > 12 {
		return 0, apperr.Validation("month must be between 1 and 12, got %d", month)
	}
	if year < 1 {
		return 0, apperr.Validation("year must be positive, got %d", year)
	}

	var platforms []models.Platform
	if err := g.db.WithContext(ctx).Order("id").Find(&platforms).Error; err != nil {
		return 0, apperr.Wrap(err, apperr.CodeInternal, "loading platforms")
	}

	total := 0
	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		log := g.log.With().
			Uint("platform_id", platform.ID).
			Str("platform", platform.Name).
			Str("strategy", string(platform.PaymentStrategy)).
			Logger()

		var subs []models.Subscription
		if err := g.db.WithContext(ctx).Where("platform_id = ?", platform.ID).Find(&subs).Error; err != nil {
			log.Error().Err(err).Msg("loading subscriptions, skipping platform")
			metrics.PlatformGenerationFailures.Inc()
			continue
		}
		if len(subs) == 0 {
			continue
		}

		charges := buildCharges(platform, subs, month, year)
		if len(charges) == 0 {
			continue
		}

		if err := g.db.WithContext(ctx).Create(&charges).Error; err != nil {
			log.Error().Err(err).Int("charges", len(charges)).Msg("inserting charges, skipping platform")
			metrics.PlatformGenerationFailures.Inc()
			continue
		}

		metrics.ChargesGenerated.WithLabelValues(string(platform.PaymentStrategy)).Add(float64(len(charges)))
		log.Debug().Int("charges", len(charges)).Msg("charges generated")
		total += len(charges)
	}

	g.log.Info().Int("month", month).Int("year", year).Int("created", total).Msg("monthly charges generated")
	return total, nil
}

// buildCharges computes the rows for one platform without touching storage.
func buildCharges(platform models.Platform, subs []models.Subscription, month, year int) []models.Charge {
	due := platform.DueDate(time.Month(month), year)

	newCharge := func(memberID uint) models.Charge {
		return models.Charge{
			MemberID:   memberID,
			PlatformID: platform.ID,
			Month:      month,
			Year:       year,
			DueDate:    due,
			Status:     models.ChargeStatusPending,
		}
	}

	switch platform.PaymentStrategy {
	case models.PaymentStrategyRotation:
		payer, ok := NewRotationList(subs).PayerFor(month, year)
		if !ok {
			return nil
		}
		c := newCharge(payer)
		c.Amount = platform.Cost
		return []models.Charge{c}

	default:
		share := EqualShare(platform.Cost, len(subs))
		charges := make([]models.Charge, 0, len(subs))
		for _, s := range subs {
			c := newCharge(s.MemberID)
			c.Amount = share
			charges = append(charges, c)
		}
		return charges
	}
}
