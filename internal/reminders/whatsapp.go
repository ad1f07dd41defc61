package reminders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
)

// PendingSummary is everything a member currently owes.
type PendingSummary struct {
	Member  models.Member   `json:"member"`
	Charges []models.Charge `json:"charges"`
	Total   decimal.Decimal `json:"total"`
	DueDate time.Time       `json:"due_date"`
}

// LoadPendingSummary collects the member's pending charges, earliest first.
func LoadPendingSummary(ctx context.Context, db *gorm.DB, memberID uint) (*PendingSummary, error) {
	var member models.Member
	if err := db.WithContext(ctx).First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("member %d not found", memberID)
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading member")
	}

	var charges []models.Charge
	err := db.WithContext(ctx).
		Preload("Platform").
		Where("member_id = ? AND status = ?", memberID, models.ChargeStatusPending).
		Order("due_date ASC").Order("id ASC").
		Find(&charges).Error
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading pending charges")
	}

	b := Batch{Member: member, Charges: charges}
	return &PendingSummary{
		Member:  member,
		Charges: charges,
		Total:   b.Total(),
		DueDate: b.EarliestDue(),
	}, nil
}

// WhatsAppMessage renders the chat reminder for a member's pending charges.
func WhatsAppMessage(s PendingSummary) string {
	lines := make([]string, 0, len(s.Charges))
	for _, c := range s.Charges {
		lines = append(lines, fmt.Sprintf("• *%s:* %s", c.Platform.Name, FormatCurrency(c.Amount)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌟 *%s - RECORDATORIO DE PAGO* 🌟\n\n", strings.ToUpper(BrandName))
	fmt.Fprintf(&b, "Hola *%s*, esperamos que estés muy bien. 😊\n\n", s.Member.Name)
	b.WriteString("Te escribimos para recordarte tus suscripciones activas:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💎 *TOTAL PENDIENTE: %s*\n", FormatCurrency(s.Total))
	if !s.DueDate.IsZero() {
		fmt.Fprintf(&b, "📅 *FECHA LÍMITE: %s*\n", FormatDate(s.DueDate))
	}
	b.WriteString("\nRecuerda realizar tu pago para seguir disfrutando del servicio sin interrupciones. 🚀\n\n")
	b.WriteString("_Si ya realizaste el pago, por favor haz caso omiso_")
	return b.String()
}

// WhatsAppLink builds a click-to-chat wa.me link with the message prefilled.
func WhatsAppLink(phone, text string) (string, error) {
	digits := services.NormalizePhone(phone, services.DefaultCountryCode)
	if digits == "" {
		return "", apperr.Validation("member has no phone number")
	}
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, escaped), nil
}
