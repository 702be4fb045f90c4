package domain

import (
	"github.com/fedilist/fedilist/internal/errors"
)

// Ordering arithmetic for one list's items. Positions are 1-based and the
// multiset of positions is always exactly {1..k} over all items, pending
// included. Callers are responsible for serializing mutations per list;
// storage applies the returned position maps in a single transaction.

// NextPosition returns the append slot for a list: max position + 1, or 1
// when the list is empty.
func NextPosition(items []ListItem) int {
	max := 0
	for _, item := range items {
		if item.Position > max {
			max = item.Position
		}
	}
	return max + 1
}

// CompactAfterRemove returns the position changes needed after removing
// itemID: every item past the removed slot moves back by one, restoring
// contiguity 1..k over the remaining items. The removed item is not in the
// result.
func CompactAfterRemove(items []ListItem, itemID string) (map[string]int, error) {
	removed, err := findItem(items, itemID)
	if err != nil {
		return nil, err
	}
	changes := make(map[string]int)
	for _, item := range items {
		if item.ID == itemID {
			continue
		}
		if item.Position > removed.Position {
			changes[item.ID] = item.Position - 1
		}
	}
	return changes, nil
}

// Reposition returns the position changes that move itemID to target,
// shifting the intervening items by exactly one slot. Moving to the item's
// current position yields an empty change set. A target outside [1, k] is
// an error; callers that want clamping must clamp before calling.
func Reposition(items []ListItem, itemID string, target int) (map[string]int, error) {
	moved, err := findItem(items, itemID)
	if err != nil {
		return nil, err
	}
	if target < 1 || target > len(items) {
		return nil, errors.Newf(errors.CodeInvalidPosition, "target position %d outside [1, %d]", target, len(items))
	}

	changes := make(map[string]int)
	if target == moved.Position {
		return changes, nil
	}

	if target < moved.Position {
		// Moving earlier: occupants of [target, old-1] slide down by one.
		for _, item := range items {
			if item.ID == itemID {
				continue
			}
			if item.Position >= target && item.Position < moved.Position {
				changes[item.ID] = item.Position + 1
			}
		}
	} else {
		// Moving later: occupants of (old, target] slide up by one.
		for _, item := range items {
			if item.ID == itemID {
				continue
			}
			if item.Position > moved.Position && item.Position <= target {
				changes[item.ID] = item.Position - 1
			}
		}
	}
	changes[itemID] = target
	return changes, nil
}

func findItem(items []ListItem, itemID string) (ListItem, error) {
	for _, item := range items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return ListItem{}, errors.Newf(errors.CodeNotFound, "item %s not found in list", itemID)
}
