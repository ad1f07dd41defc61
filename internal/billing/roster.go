package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/services"
)

const defaultRosterLockTTL = 30 * time.Second

// RosterManager edits platform rosters. Every mutation runs in one
// transaction that also recomputes equal shares and active_slots, and bumps
// the platform version so concurrent editors cannot interleave.
type RosterManager struct {
	db      *gorm.DB
	locker  services.Locker
	lockTTL time.Duration
	log     zerolog.Logger
}

func NewRosterManager(db *gorm.DB, locker services.Locker, log zerolog.Logger) *RosterManager {
	if locker == nil {
		locker = services.NoopLocker{}
	}
	return &RosterManager{
		db:      db,
		locker:  locker,
		lockTTL: defaultRosterLockTTL,
		log:     log.With().Str("component", "roster").Logger(),
	}
}

// Roster returns a platform's subscriptions in rotation sequence.
func (m *RosterManager) Roster(ctx context.Context, platformID uint) ([]models.Subscription, error) {
	if _, err := m.loadPlatform(m.db.WithContext(ctx), platformID); err != nil {
		return nil, err
	}

	var subs []models.Subscription
	if err := m.db.WithContext(ctx).Preload("Member").Where("platform_id = ?", platformID).Find(&subs).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading roster")
	}

	byMember := make(map[uint]models.Subscription, len(subs))
	for _, s := range subs {
		byMember[s.MemberID] = s
	}
	ordered := make([]models.Subscription, 0, len(subs))
	for _, id := range NewRotationList(subs).MemberIDs() {
		ordered = append(ordered, byMember[id])
	}
	return ordered, nil
}

// AddMember subscribes memberID to the platform, at the end of the rotation.
func (m *RosterManager) AddMember(ctx context.Context, platformID, memberID uint) error {
	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if list.Contains(memberID) {
			return apperr.Conflict("member %d is already subscribed to %s", memberID, p.Name)
		}
		if err := checkCapacity(p, list.Len()+1); err != nil {
			return err
		}
		if err := ensureMembers(tx, []uint{memberID}); err != nil {
			return err
		}
		return insertSubscriptions(tx, p, list, []uint{memberID})
	})
}

// PlatformChanges are the editable fields of a platform.
type PlatformChanges struct {
	Name            string
	Cost            decimal.Decimal
	BillingCycleDay int
	PaymentStrategy models.PaymentStrategy
	TotalSlots      int
	Icon            string
}

// UpdatePlatform edits a platform and re-derives its roster state: share
// costs follow the new cost or strategy, and switching to rotation gives every
// subscriber an order.
func (m *RosterManager) UpdatePlatform(ctx context.Context, platformID uint, changes PlatformChanges) (*models.Platform, error) {
	err := m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if err := checkCapacity(&models.Platform{Name: changes.Name, TotalSlots: changes.TotalSlots}, list.Len()); err != nil {
			return err
		}

		res := tx.Model(&models.Platform{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"name":              changes.Name,
			"cost":              changes.Cost,
			"billing_cycle_day": changes.BillingCycleDay,
			"payment_strategy":  changes.PaymentStrategy,
			"total_slots":       changes.TotalSlots,
			"icon":              changes.Icon,
		})
		if res.Error != nil {
			return apperr.Wrap(res.Error, apperr.CodeInternal, "updating platform")
		}

		switchedToRotation := p.PaymentStrategy != models.PaymentStrategyRotation &&
			changes.PaymentStrategy == models.PaymentStrategyRotation
		p.Cost = changes.Cost
		p.PaymentStrategy = changes.PaymentStrategy

		if switchedToRotation {
			return writeOrders(tx, p.ID, list.Reindex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.loadPlatform(m.db.WithContext(ctx), platformID)
}

// DeletePlatform removes a platform and its roster. Charges already generated stay.
func (m *RosterManager) DeletePlatform(ctx context.Context, platformID uint) error {
	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if err := deleteSubscriptions(tx, p.ID, list.MemberIDs()); err != nil {
			return err
		}
		for _, id := range list.MemberIDs() {
			list.Remove(id)
		}
		if err := tx.Delete(&models.Platform{}, p.ID).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "deleting platform")
		}
		return nil
	})
}

// RemoveMember drops memberID from the platform. Existing charges are kept.
func (m *RosterManager) RemoveMember(ctx context.Context, platformID, memberID uint) error {
	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if !list.Remove(memberID) {
			return apperr.NotFound("member %d is not subscribed to %s", memberID, p.Name)
		}
		return deleteSubscriptions(tx, p.ID, []uint{memberID})
	})
}

// DeleteMember unsubscribes memberID from every platform and soft-deletes the
// member in one transaction, so later generations neither bill the member nor
// count them in equal splits. Existing charges are kept.
func (m *RosterManager) DeleteMember(ctx context.Context, memberID uint) error {
	var member models.Member
	if err := m.db.WithContext(ctx).First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("member %d not found", memberID)
		}
		return apperr.Wrap(err, apperr.CodeInternal, "loading member")
	}

	var platformIDs []uint
	if err := m.db.WithContext(ctx).Model(&models.Subscription{}).
		Joins("JOIN platforms ON platforms.id = subscriptions.platform_id AND platforms.deleted_at IS NULL").
		Where("subscriptions.member_id = ?", memberID).
		Distinct().Pluck("subscriptions.platform_id", &platformIDs).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "loading member subscriptions")
	}

	release, err := m.lockPlatforms(ctx, platformIDs)
	if err != nil {
		return err
	}
	defer release()

	unsubscribe := func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if !list.Remove(memberID) {
			return nil
		}
		return deleteSubscriptions(tx, p.ID, []uint{memberID})
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range platformIDs {
			if err := m.apply(tx, id, unsubscribe); err != nil {
				return err
			}
		}
		// rows left on soft-deleted platforms
		if err := tx.Where("member_id = ?", memberID).Delete(&models.Subscription{}).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "removing subscriptions")
		}
		if err := tx.Delete(&models.Member{}, memberID).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "deleting member")
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info().Uint("member_id", memberID).Int("platforms", len(platformIDs)).Msg("member deleted")
	return nil
}

// SetRoster makes memberIDs the exact roster of the platform. Members already
// subscribed keep their rotation order; new ones are appended in the given order.
func (m *RosterManager) SetRoster(ctx context.Context, platformID uint, memberIDs []uint) error {
	wanted := dedupe(memberIDs)

	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if err := checkCapacity(p, len(wanted)); err != nil {
			return err
		}

		keep := make(map[uint]bool, len(wanted))
		var toAdd []uint
		for _, id := range wanted {
			keep[id] = true
			if !list.Contains(id) {
				toAdd = append(toAdd, id)
			}
		}
		var toRemove []uint
		for _, id := range list.MemberIDs() {
			if !keep[id] {
				toRemove = append(toRemove, id)
			}
		}

		if err := ensureMembers(tx, toAdd); err != nil {
			return err
		}
		for _, id := range toRemove {
			list.Remove(id)
		}
		if err := deleteSubscriptions(tx, p.ID, toRemove); err != nil {
			return err
		}
		return insertSubscriptions(tx, p, list, toAdd)
	})
}

// Reorder replaces the rotation sequence. memberIDs must list every current
// subscriber exactly once; orders are rewritten as 1..N.
func (m *RosterManager) Reorder(ctx context.Context, platformID uint, memberIDs []uint) error {
	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if err := list.Arrange(memberIDs); err != nil {
			return apperr.Wrap(err, apperr.CodeValidation, "invalid rotation order")
		}
		return writeOrders(tx, p.ID, list.Reindex())
	})
}

// MoveMember moves one subscriber to a 1-based position in the rotation.
func (m *RosterManager) MoveMember(ctx context.Context, platformID, memberID uint, position int) error {
	return m.mutate(ctx, platformID, func(tx *gorm.DB, p *models.Platform, list *RotationList) error {
		if err := list.Move(memberID, position); err != nil {
			return apperr.Wrap(err, apperr.CodeValidation, "invalid rotation move")
		}
		return writeOrders(tx, p.ID, list.Reindex())
	})
}

type rosterChange func(tx *gorm.DB, p *models.Platform, list *RotationList) error

func (m *RosterManager) mutate(ctx context.Context, platformID uint, change rosterChange) error {
	release, err := m.lockPlatforms(ctx, []uint{platformID})
	if err != nil {
		return err
	}
	defer release()

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return m.apply(tx, platformID, change)
	})
	if err != nil {
		return err
	}

	m.log.Info().Uint("platform_id", platformID).Msg("roster updated")
	return nil
}

// apply runs change against one platform's roster inside tx and re-derives
// its share costs, active_slots and version.
func (m *RosterManager) apply(tx *gorm.DB, platformID uint, change rosterChange) error {
	platform, err := m.loadPlatform(tx, platformID)
	if err != nil {
		return err
	}

	var subs []models.Subscription
	if err := tx.Where("platform_id = ?", platformID).Find(&subs).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "loading roster")
	}
	list := NewRotationList(subs)

	if err := change(tx, platform, list); err != nil {
		return err
	}
	return syncPlatform(tx, platform)
}

// lockPlatforms takes the roster lock of every platform in ascending id
// order. On failure the locks already held are released.
func (m *RosterManager) lockPlatforms(ctx context.Context, platformIDs []uint) (func(), error) {
	ids := append([]uint(nil), platformIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var held []services.ReleaseFunc
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i](context.WithoutCancel(ctx)); err != nil {
				m.log.Warn().Err(err).Msg("releasing roster lock")
			}
		}
	}

	for _, id := range ids {
		unlock, ok, err := m.locker.TryLock(ctx, fmt.Sprintf("platform:%d", id), m.lockTTL)
		if err != nil {
			release()
			return nil, apperr.Wrap(err, apperr.CodeDependency, "acquiring roster lock")
		}
		if !ok {
			release()
			return nil, apperr.Conflict("platform %d is being edited, try again", id)
		}
		held = append(held, unlock)
	}
	return release, nil
}

func (m *RosterManager) loadPlatform(db *gorm.DB, platformID uint) (*models.Platform, error) {
	var platform models.Platform
	if err := db.First(&platform, platformID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("platform %d not found", platformID)
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "loading platform")
	}
	return &platform, nil
}

// syncPlatform recomputes derived roster state and advances the version.
func syncPlatform(tx *gorm.DB, p *models.Platform) error {
	var count int64
	if err := tx.Model(&models.Subscription{}).Where("platform_id = ?", p.ID).Count(&count).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "counting subscriptions")
	}

	if count > 0 {
		share := p.Cost
		if p.PaymentStrategy == models.PaymentStrategyEqual {
			share = EqualShare(p.Cost, int(count))
		}
		if err := tx.Model(&models.Subscription{}).Where("platform_id = ?", p.ID).
			Update("share_cost", share).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "updating share costs")
		}
	}

	// unscoped so a platform deleted in this transaction still gets its final version
	res := tx.Unscoped().Model(&models.Platform{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"active_slots": int(count),
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return apperr.Wrap(res.Error, apperr.CodeInternal, "updating platform")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("platform %d was modified concurrently, try again", p.ID)
	}
	return nil
}

// checkCapacity enforces total_slots; zero means no limit.
func checkCapacity(p *models.Platform, size int) error {
	if p.TotalSlots > 0 && size > p.TotalSlots {
		return apperr.New(apperr.CodeCapacity,
			fmt.Sprintf("%s has %d slots, cannot hold %d members", p.Name, p.TotalSlots, size))
	}
	return nil
}

func ensureMembers(tx *gorm.DB, memberIDs []uint) error {
	if len(memberIDs) == 0 {
		return nil
	}
	var found int64
	if err := tx.Model(&models.Member{}).Where("id IN ?", memberIDs).Count(&found).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "checking members")
	}
	if int(found) != len(memberIDs) {
		return apperr.NotFound("one or more members do not exist: %v", memberIDs)
	}
	return nil
}

func insertSubscriptions(tx *gorm.DB, p *models.Platform, list *RotationList, memberIDs []uint) error {
	if len(memberIDs) == 0 {
		return nil
	}

	subs := make([]models.Subscription, 0, len(memberIDs))
	next := list.NextOrder()
	for _, id := range memberIDs {
		sub := models.Subscription{MemberID: id, PlatformID: p.ID}
		if p.PaymentStrategy == models.PaymentStrategyRotation {
			order := next
			next++
			sub.RotationOrder = &order
			sub.ShareCost = p.Cost
		}
		list.Append(id, sub.RotationOrder)
		subs = append(subs, sub)
	}

	if err := tx.Omit("Member", "Platform").Create(&subs).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "adding subscriptions")
	}
	return nil
}

func deleteSubscriptions(tx *gorm.DB, platformID uint, memberIDs []uint) error {
	if len(memberIDs) == 0 {
		return nil
	}
	if err := tx.Where("platform_id = ? AND member_id IN ?", platformID, memberIDs).
		Delete(&models.Subscription{}).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "removing subscriptions")
	}
	return nil
}

func writeOrders(tx *gorm.DB, platformID uint, orders map[uint]int) error {
	for memberID, order := range orders {
		if err := tx.Model(&models.Subscription{}).
			Where("platform_id = ? AND member_id = ?", platformID, memberID).
			Update("rotation_order", order).Error; err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "writing rotation order")
		}
	}
	return nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
