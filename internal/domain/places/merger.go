package places

import (
	"maps"
	"reflect"
	"slices"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// MergeRecord overlays a canonical update onto a stored record field by field.
// Nil fields in the update leave the existing value untouched, so a merge can
// only grow or update what is known about a place, never erase it. ID,
// Location and CreatedAt are never modified. The second return reports whether
// anything changed; callers use it to skip pointless write-backs.
//
// Idempotent: merging the same update twice yields the same record.
func MergeRecord(existing types.PlaceRecord, update types.CanonicalFields) (types.PlaceRecord, bool) {
	if update.Empty() {
		return existing, false
	}

	out := existing
	changed := false

	if update.Name != nil && *update.Name != out.Name {
		out.Name = *update.Name
		changed = true
	}

	a := &out.Attributes
	u := update.Attributes

	a.Address = overlayPtr(a.Address, u.Address, &changed)
	a.PhoneNumber = overlayPtr(a.PhoneNumber, u.PhoneNumber, &changed)
	a.Website = overlayPtr(a.Website, u.Website, &changed)
	a.Rating = overlayPtr(a.Rating, u.Rating, &changed)
	a.UserRatingCount = overlayPtr(a.UserRatingCount, u.UserRatingCount, &changed)
	a.PriceLevel = overlayPtr(a.PriceLevel, u.PriceLevel, &changed)
	a.PrimaryType = overlayPtr(a.PrimaryType, u.PrimaryType, &changed)
	a.OpenNow = overlayPtr(a.OpenNow, u.OpenNow, &changed)
	a.Takeout = overlayPtr(a.Takeout, u.Takeout, &changed)
	a.Delivery = overlayPtr(a.Delivery, u.Delivery, &changed)
	a.DineIn = overlayPtr(a.DineIn, u.DineIn, &changed)
	a.CurbsidePickup = overlayPtr(a.CurbsidePickup, u.CurbsidePickup, &changed)
	a.Reservable = overlayPtr(a.Reservable, u.Reservable, &changed)
	a.OutdoorSeating = overlayPtr(a.OutdoorSeating, u.OutdoorSeating, &changed)
	a.LiveMusic = overlayPtr(a.LiveMusic, u.LiveMusic, &changed)
	a.GoodForGroups = overlayPtr(a.GoodForGroups, u.GoodForGroups, &changed)
	a.GoodForChildren = overlayPtr(a.GoodForChildren, u.GoodForChildren, &changed)
	a.AllowsDogs = overlayPtr(a.AllowsDogs, u.AllowsDogs, &changed)
	a.EditorialSummary = overlayPtr(a.EditorialSummary, u.EditorialSummary, &changed)
	a.ReviewSummary = overlayPtr(a.ReviewSummary, u.ReviewSummary, &changed)

	if len(u.Types) > 0 && !slices.Equal(a.Types, u.Types) {
		a.Types = slices.Clone(u.Types)
		changed = true
	}
	if len(u.Images) > 0 && !slices.Equal(a.Images, u.Images) {
		a.Images = slices.Clone(u.Images)
		changed = true
	}
	if len(u.OpeningHours) > 0 && !maps.Equal(a.OpeningHours, u.OpeningHours) {
		a.OpeningHours = maps.Clone(u.OpeningHours)
		changed = true
	}

	if len(u.Extra) > 0 {
		merged := maps.Clone(a.Extra)
		if merged == nil {
			merged = make(map[string]any, len(u.Extra))
		}
		for k, v := range u.Extra {
			if old, ok := merged[k]; !ok || !reflect.DeepEqual(old, v) {
				merged[k] = v
				changed = true
			}
		}
		if changed {
			a.Extra = merged
		}
	}

	return out, changed
}

// overlayPtr returns update when it carries a value, otherwise existing. It
// flags a change only when the effective value differs.
func overlayPtr[T comparable](existing, update *T, changed *bool) *T {
	if update == nil {
		return existing
	}
	if existing == nil || *existing != *update {
		*changed = true
	}
	return update
}
