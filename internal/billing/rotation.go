package billing

import (
	"fmt"
	"sort"

	"subsplit_app_echo/internal/models"
)

// PayerIndex returns the position in a rotation of n members that pays for
// (month, year). The global month index makes the choice independent of when
// generation runs; changing the roster shifts later assignments.
func PayerIndex(month, year, n int) int {
	if n <= 0 {
		return -1
	}
	globalMonthIndex := year*12 + (month - 1)
	idx := globalMonthIndex % n
	if idx < 0 {
		idx += n
	}
	return idx
}

type rotationEntry struct {
	memberID uint
	order    *int
}

// RotationList is a platform roster in rotation sequence.
type RotationList struct {
	entries []rotationEntry
}

// NewRotationList orders subscriptions by rotation order ascending. Members
// without an order go last; ties are broken by member id so the sequence is stable.
func NewRotationList(subs []models.Subscription) *RotationList {
	entries := make([]rotationEntry, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, rotationEntry{memberID: s.MemberID, order: s.RotationOrder})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.order == nil && b.order == nil:
			return a.memberID < b.memberID
		case a.order == nil:
			return false
		case b.order == nil:
			return true
		case *a.order != *b.order:
			return *a.order < *b.order
		default:
			return a.memberID < b.memberID
		}
	})
	return &RotationList{entries: entries}
}

func (l *RotationList) Len() int { return len(l.entries) }

// MemberIDs returns the members in rotation sequence.
func (l *RotationList) MemberIDs() []uint {
	ids := make([]uint, len(l.entries))
	for i, e := range l.entries {
		ids[i] = e.memberID
	}
	return ids
}

func (l *RotationList) indexOf(memberID uint) int {
	for i, e := range l.entries {
		if e.memberID == memberID {
			return i
		}
	}
	return -1
}

func (l *RotationList) Contains(memberID uint) bool {
	return l.indexOf(memberID) >= 0
}

// NextOrder is one past the highest assigned order, or 1 for an unordered list.
func (l *RotationList) NextOrder() int {
	highest := 0
	for _, e := range l.entries {
		if e.order != nil && *e.order > highest {
			highest = *e.order
		}
	}
	return highest + 1
}

// Append adds a member at the end of the sequence.
func (l *RotationList) Append(memberID uint, order *int) {
	l.entries = append(l.entries, rotationEntry{memberID: memberID, order: order})
}

// Remove drops a member, leaving the orders of the others untouched.
func (l *RotationList) Remove(memberID uint) bool {
	idx := l.indexOf(memberID)
	if idx < 0 {
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	return true
}

// Move places memberID at the 1-based position, shifting the others.
func (l *RotationList) Move(memberID uint, position int) error {
	idx := l.indexOf(memberID)
	if idx < 0 {
		return fmt.Errorf("member %d is not in the rotation", memberID)
	}
	if position < 1 || position > len(l.entries) {
		return fmt.Errorf("position %d out of range 1..%d", position, len(l.entries))
	}

	entry := l.entries[idx]
	rest := append(append([]rotationEntry{}, l.entries[:idx]...), l.entries[idx+1:]...)

	target := position - 1
	moved := make([]rotationEntry, 0, len(l.entries))
	moved = append(moved, rest[:target]...)
	moved = append(moved, entry)
	moved = append(moved, rest[target:]...)
	l.entries = moved
	return nil
}

// Arrange replaces the sequence with memberIDs, which must be a permutation of the roster.
func (l *RotationList) Arrange(memberIDs []uint) error {
	if len(memberIDs) != len(l.entries) {
		return fmt.Errorf("expected %d members, got %d", len(l.entries), len(memberIDs))
	}
	seen := make(map[uint]bool, len(memberIDs))
	arranged := make([]rotationEntry, 0, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return fmt.Errorf("member %d listed twice", id)
		}
		seen[id] = true

		idx := l.indexOf(id)
		if idx < 0 {
			return fmt.Errorf("member %d is not in the rotation", id)
		}
		arranged = append(arranged, l.entries[idx])
	}
	l.entries = arranged
	return nil
}

// Reindex renumbers the sequence densely 1..N and returns member id -> order.
func (l *RotationList) Reindex() map[uint]int {
	orders := make(map[uint]int, len(l.entries))
	for i := range l.entries {
		n := i + 1
		l.entries[i].order = &n
		orders[l.entries[i].memberID] = n
	}
	return orders
}

// PayerFor returns the member charged for (month, year).
func (l *RotationList) PayerFor(month, year int) (uint, bool) {
	idx := PayerIndex(month, year, len(l.entries))
	if idx < 0 {
		return 0, false
	}
	return l.entries[idx].memberID, true
}
