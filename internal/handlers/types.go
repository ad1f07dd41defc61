package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/models"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as a validation error.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Validation("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return apperr.Wrap(err, apperr.CodeValidation, "invalid request")
}

func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(err, apperr.CodeValidation, "malformed request body")
	}
	return c.Validate(dst)
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// MemberRequest creates or updates a member.
type MemberRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"omitempty,email,max=255"`
	Phone  string `json:"phone" validate:"omitempty,max=50"`
	Active *bool  `json:"active"`
}

func (r MemberRequest) apply(m *models.Member) {
	m.Name = strings.TrimSpace(r.Name)
	m.Email = strings.TrimSpace(r.Email)
	m.Phone = strings.TrimSpace(r.Phone)
	if r.Active != nil {
		m.Active = *r.Active
	}
}

// PlatformRequest creates or updates a platform.
type PlatformRequest struct {
	Name            string                 `json:"name" validate:"required,max=255"`
	Cost            decimal.Decimal        `json:"cost"`
	BillingCycleDay int                    `json:"billing_cycle_day" validate:"min=1,max=31"`
	PaymentStrategy models.PaymentStrategy `json:"payment_strategy" validate:"required,oneof=equal rotation"`
	TotalSlots      int                    `json:"total_slots" validate:"min=0"`
	Icon            string                 `json:"icon" validate:"omitempty,max=255"`
}

func (r PlatformRequest) check() error {
	if !r.Cost.IsPositive() {
		return apperr.Validation("cost must be greater than zero")
	}
	return nil
}

// MemberIDRequest names a single member.
type MemberIDRequest struct {
	MemberID uint `json:"member_id" validate:"required"`
}

// MemberIDsRequest is an ordered member list.
type MemberIDsRequest struct {
	MemberIDs []uint `json:"member_ids" validate:"dive,required"`
}

// MoveRequest moves a subscriber to a 1-based rotation position.
type MoveRequest struct {
	MemberID uint `json:"member_id" validate:"required"`
	Position int  `json:"position" validate:"required,min=1"`
}

// GenerateRequest selects the period to bill.
type GenerateRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=9999"`
}

// WhatsAppLinkResponse carries a click-to-chat link and the message it opens with.
type WhatsAppLinkResponse struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}
