package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/models"
)

type PlatformHandler struct {
	db     *gorm.DB
	roster *billing.RosterManager
}

func NewPlatformHandler(db *gorm.DB, roster *billing.RosterManager) *PlatformHandler {
	return &PlatformHandler{db: db, roster: roster}
}

// ListPlatforms returns platforms with their subscriber counts
func (h *PlatformHandler) ListPlatforms(c echo.Context) error {
	var platforms []models.Platform
	if err := h.db.WithContext(c.Request().Context()).Order("name").Find(&platforms).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to fetch platforms")
	}
	return c.JSON(http.StatusOK, platforms)
}

// GetPlatform returns a platform with its roster in rotation order
func (h *PlatformHandler) GetPlatform(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var platform models.Platform
	if err := h.db.WithContext(c.Request().Context()).First(&platform, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("platform %d not found", id)
		}
		return apperr.Wrap(err, apperr.CodeInternal, "loading platform")
	}

	roster, err := h.roster.Roster(c.Request().Context(), id)
	if err != nil {
		return err
	}
	platform.Subscriptions = roster
	return c.JSON(http.StatusOK, platform)
}

// StorePlatform handles the creation of a new platform
func (h *PlatformHandler) StorePlatform(c echo.Context) error {
	var req PlatformRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}

	platform := models.Platform{
		Name:            req.Name,
		Cost:            req.Cost,
		BillingCycleDay: req.BillingCycleDay,
		PaymentStrategy: req.PaymentStrategy,
		TotalSlots:      req.TotalSlots,
		Icon:            req.Icon,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&platform).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "Failed to create platform")
	}
	return c.JSON(http.StatusCreated, platform)
}

// UpdatePlatform edits a platform and re-derives share costs
func (h *PlatformHandler) UpdatePlatform(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req PlatformRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}

	platform, err := h.roster.UpdatePlatform(c.Request().Context(), id, billing.PlatformChanges{
		Name:            req.Name,
		Cost:            req.Cost,
		BillingCycleDay: req.BillingCycleDay,
		PaymentStrategy: req.PaymentStrategy,
		TotalSlots:      req.TotalSlots,
		Icon:            req.Icon,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, platform)
}

// DeletePlatform removes a platform and its roster
func (h *PlatformHandler) DeletePlatform(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.roster.DeletePlatform(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSubscriptions returns the roster in rotation order
func (h *PlatformHandler) ListSubscriptions(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	roster, err := h.roster.Roster(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roster)
}

func (h *PlatformHandler) respondRoster(c echo.Context, platformID uint, status int) error {
	roster, err := h.roster.Roster(c.Request().Context(), platformID)
	if err != nil {
		return err
	}
	return c.JSON(status, roster)
}

// AddSubscription subscribes one member
func (h *PlatformHandler) AddSubscription(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req MemberIDRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.roster.AddMember(c.Request().Context(), id, req.MemberID); err != nil {
		return err
	}
	return h.respondRoster(c, id, http.StatusCreated)
}

// RemoveSubscription unsubscribes one member
func (h *PlatformHandler) RemoveSubscription(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	memberID, err := parseIDParam(c, "memberId")
	if err != nil {
		return err
	}
	if err := h.roster.RemoveMember(c.Request().Context(), id, memberID); err != nil {
		return err
	}
	return h.respondRoster(c, id, http.StatusOK)
}

// SetSubscriptions replaces the whole roster
func (h *PlatformHandler) SetSubscriptions(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req MemberIDsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.roster.SetRoster(c.Request().Context(), id, req.MemberIDs); err != nil {
		return err
	}
	return h.respondRoster(c, id, http.StatusOK)
}

// ReorderRotation rewrites the rotation sequence
func (h *PlatformHandler) ReorderRotation(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req MemberIDsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.roster.Reorder(c.Request().Context(), id, req.MemberIDs); err != nil {
		return err
	}
	return h.respondRoster(c, id, http.StatusOK)
}

// MoveInRotation moves one subscriber to a new position
func (h *PlatformHandler) MoveInRotation(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req MoveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.roster.MoveMember(c.Request().Context(), id, req.MemberID, req.Position); err != nil {
		return err
	}
	return h.respondRoster(c, id, http.StatusOK)
}
