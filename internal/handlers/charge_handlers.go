package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/reminders"
)

// ChatSender delivers a WhatsApp message. *services.WahaService satisfies it.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type ChargeHandler struct {
	db        *gorm.DB
	generator *billing.Generator
	payments  *billing.PaymentService
	chat      ChatSender
	log       zerolog.Logger
}

func NewChargeHandler(db *gorm.DB, generator *billing.Generator, payments *billing.PaymentService, chat ChatSender, log zerolog.Logger) *ChargeHandler {
	return &ChargeHandler{db: db, generator: generator, payments: payments, chat: chat, log: log}
}

// GenerateCharges creates the charges for a billing period
func (h *ChargeHandler) GenerateCharges(c echo.Context) error {
	var req GenerateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	created, err := h.generator.GenerateMonthlyCharges(c.Request().Context(), req.Month, req.Year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"month":   req.Month,
		"year":    req.Year,
		"created": created,
	})
}

// ListCharges filters charges by status, member, platform and period
func (h *ChargeHandler) ListCharges(c echo.Context) error {
	var filter billing.ChargeFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return apperr.Wrap(err, apperr.CodeValidation, "invalid filter")
	}
	charges, err := h.payments.ListCharges(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, charges)
}

// GetCharge returns one charge
func (h *ChargeHandler) GetCharge(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	charge, err := h.payments.GetCharge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, charge)
}

// MarkPaid settles a charge and records it in the payment history
func (h *ChargeHandler) MarkPaid(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req billing.PaymentInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	history, err := h.payments.MarkPaid(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// DeleteCharge removes a charge
func (h *ChargeHandler) DeleteCharge(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.payments.DeleteCharge(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPaymentHistory returns recent payments
func (h *ChargeHandler) ListPaymentHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rows, err := h.payments.ListPaymentHistory(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *ChargeHandler) whatsAppSummary(c echo.Context) (*reminders.PendingSummary, string, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, "", err
	}
	charge, err := h.payments.GetCharge(c.Request().Context(), id)
	if err != nil {
		return nil, "", err
	}
	summary, err := reminders.LoadPendingSummary(c.Request().Context(), h.db, charge.MemberID)
	if err != nil {
		return nil, "", err
	}
	if len(summary.Charges) == 0 {
		return nil, "", apperr.Conflict("member %d has no pending charges", charge.MemberID)
	}
	return summary, reminders.WhatsAppMessage(*summary), nil
}

// WhatsAppLink builds a wa.me link with the member's pending summary
func (h *ChargeHandler) WhatsAppLink(c echo.Context) error {
	summary, message, err := h.whatsAppSummary(c)
	if err != nil {
		return err
	}
	link, err := reminders.WhatsAppLink(summary.Member.Phone, message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WhatsAppLinkResponse{URL: link, Message: message})
}

// SendWhatsApp sends the member's pending summary through WAHA
func (h *ChargeHandler) SendWhatsApp(c echo.Context) error {
	if h.chat == nil {
		return apperr.New(apperr.CodeDependency, "WhatsApp gateway is not configured")
	}
	summary, message, err := h.whatsAppSummary(c)
	if err != nil {
		return err
	}
	if summary.Member.Phone == "" {
		return apperr.Validation("member has no phone number")
	}

	if err := h.chat.SendMessage(c.Request().Context(), summary.Member.Phone, message); err != nil {
		return apperr.Wrap(err, apperr.CodeDependency, "Failed to send WhatsApp message")
	}
	h.log.Info().Uint("member_id", summary.Member.ID).Msg("whatsapp reminder sent")
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": message})
}
