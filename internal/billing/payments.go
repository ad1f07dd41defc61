package billing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/models"
)

const (
	DefaultPaymentMethod = "manual"
	DefaultPaymentNotes  = "Pago registrado desde Dashboard"
)

// PaymentInput describes how a charge was settled.
type PaymentInput struct {
	Method string `json:"method" validate:"omitempty,max=50"`
	Notes  string `json:"notes" validate:"omitempty,max=500"`
}

// ChargeFilter narrows ListCharges. Zero values match everything.
type ChargeFilter struct {
	Status     models.ChargeStatus `query:"status"`
	MemberID   uint                `query:"member_id"`
	PlatformID uint                `query:"platform_id"`
	Month      int                 `query:"month"`
	Year       int                 `query:"year"`
}

// PaymentService manages the charge lifecycle after generation.
type PaymentService struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewPaymentService(db *gorm.DB, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		db:  db,
		log: log.With().Str("component", "payments").Logger(),
		now: time.Now,
	}
}

// ListCharges returns charges ordered by due date with member and platform loaded.
func (s *PaymentService) ListCharges(ctx context.Context, filter ChargeFilter) ([]models.Charge, error) {
	q := s.db.WithContext(ctx).Preload("Member").Preload("Platform")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.MemberID != 0 {
		q = q.Where("member_id = ?", filter.MemberID)
	}
	if filter.PlatformID != 0 {
		q = q.Where("platform_id = ?", filter.PlatformID)
	}
	if filter.Month != 0 {
		q = q.Where("month = ?", filter.Month)
	}
	if filter.Year != 0 {
		q = q.Where("year = ?", filter.Year)
	}

	var charges []models.Charge
	if err := q.Order("due_date ASC").Order("id ASC").Find(&charges).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "listing charges")
	}
	return charges, nil
}

// GetCharge loads one charge with its member and platform.
func (s *PaymentService) GetCharge(ctx context.Context, chargeID uint) (*models.Charge, error) {
	var charge models.Charge
	if err := s.db.WithContext(ctx).Preload("Member").Preload("Platform").First(&charge, chargeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("charge %d not found", chargeID)
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading charge")
	}
	return &charge, nil
}

// MarkPaid settles a pending charge and records the payment. The status
// change and the history row commit together or not at all.
func (s *PaymentService) MarkPaid(ctx context.Context, chargeID uint, input PaymentInput) (*models.PaymentHistory, error) {
	if input.Method == "" {
		input.Method = DefaultPaymentMethod
	}
	if input.Notes == "" {
		input.Notes = DefaultPaymentNotes
	}

	var history models.PaymentHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge models.Charge
		if err := tx.First(&charge, chargeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("charge %d not found", chargeID)
			}
			return apperr.Wrap(err, apperr.CodeInternal, "loading charge")
		}
		if charge.Status == models.ChargeStatusPaid {
			return apperr.Conflict("charge %d is already paid", chargeID)
		}

		res := tx.Model(&models.Charge{}).
			Where("id = ? AND status = ?", chargeID, models.ChargeStatusPending).
			Update("status", models.ChargeStatusPaid)
		if res.Error != nil {
			return apperr.Wrap(res.Error, apperr.CodeInternal, "updating charge")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("charge %d is already paid", chargeID)
		}

		history = models.PaymentHistory{
			ChargeID:    chargeID,
			AmountPaid:  charge.Amount,
			PaymentDate: s.now().UTC(),
			Method:      input.Method,
			Notes:       input.Notes,
		}
		if err := tx.Omit("Charge").Create(&history).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "recording payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("charge_id", chargeID).
		Str("amount", history.AmountPaid.StringFixed(2)).
		Str("method", history.Method).
		Msg("charge marked as paid")
	return &history, nil
}

// DeleteCharge removes a charge, for example one created by a duplicate generation run.
func (s *PaymentService) DeleteCharge(ctx context.Context, chargeID uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Charge{}, chargeID)
	if res.Error != nil {
		return apperr.Wrap(res.Error, apperr.CodeInternal, "deleting charge")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("charge %d not found", chargeID)
	}
	s.log.Info().Uint("charge_id", chargeID).Msg("charge deleted")
	return nil
}

// ListPaymentHistory returns the most recent payments first.
func (s *PaymentService) ListPaymentHistory(ctx context.Context, limit int) ([]models.PaymentHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.PaymentHistory
	err := s.db.WithContext(ctx).
		Preload("Charge").Preload("Charge.Member").Preload("Charge.Platform").
		Order("payment_date DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "listing payment history")
	}
	return rows, nil
}
