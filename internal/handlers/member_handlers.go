package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/reminders"
)

type MemberHandler struct {
	db     *gorm.DB
	roster *billing.RosterManager
	log    zerolog.Logger
}

func NewMemberHandler(db *gorm.DB, roster *billing.RosterManager, log zerolog.Logger) *MemberHandler {
	return &MemberHandler{db: db, roster: roster, log: log}
}

func (h *MemberHandler) find(c echo.Context) (*models.Member, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	var member models.Member
	if err := h.db.WithContext(c.Request().Context()).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("member %d not found", id)
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading member")
	}
	return &member, nil
}

// ListMembers returns all members by name
func (h *MemberHandler) ListMembers(c echo.Context) error {
	var members []models.Member
	if err := h.db.WithContext(c.Request().Context()).Order("name").Find(&members).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to fetch members")
	}
	return c.JSON(http.StatusOK, members)
}

// GetMember returns one member with its subscriptions
func (h *MemberHandler) GetMember(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var member models.Member
	err = h.db.WithContext(c.Request().Context()).Preload("Subscriptions.Platform").First(&member, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("member %d not found", id)
		}
		return apperr.Wrap(err, apperr.CodeInternal, "loading member")
	}
	return c.JSON(http.StatusOK, member)
}

// StoreMember handles the creation of a new member
func (h *MemberHandler) StoreMember(c echo.Context) error {
	var req MemberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member := models.Member{Active: true}
	req.apply(&member)
	if err := h.db.WithContext(c.Request().Context()).Create(&member).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to create member")
	}

	h.log.Info().Uint("member_id", member.ID).Msg("member created")
	return c.JSON(http.StatusCreated, member)
}

// UpdateMember handles member updates
func (h *MemberHandler) UpdateMember(c echo.Context) error {
	member, err := h.find(c)
	if err != nil {
		return err
	}
	var req MemberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	req.apply(member)
	err = h.db.WithContext(c.Request().Context()).Model(member).Select("name", "email", "phone", "active").Updates(member).Error
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to update member")
	}
	return c.JSON(http.StatusOK, member)
}

// DeleteMember removes a member from every roster and soft-deletes it.
// Charges already generated are kept.
func (h *MemberHandler) DeleteMember(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.roster.DeleteMember(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PendingSummary returns what the member currently owes
func (h *MemberHandler) PendingSummary(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	summary, err := reminders.LoadPendingSummary(c.Request().Context(), h.db, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
