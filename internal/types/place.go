package types

import (
	"time"
)

// Coordinates is a WGS84 point. Latitude in [-90, 90], longitude in [-180, 180].
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are inside their WGS84 ranges.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// BoundingBox is a rectangular latitude/longitude window used as a cheap
// admissibility prefilter before exact distance checks.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// PlaceAttributes holds the enrichment fields of a place. Every known field is
// an explicit optional; nil means "never observed". Fields the provider adds
// before they are promoted here land in Extra.
type PlaceAttributes struct {
	Address         *string           `json:"address,omitempty"`
	PhoneNumber     *string           `json:"phone_number,omitempty"`
	Website         *string           `json:"website,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	UserRatingCount *int              `json:"user_rating_count,omitempty"`
	PriceLevel      *int              `json:"price_level,omitempty"`
	PrimaryType     *string           `json:"primary_type,omitempty"`
	Types           []string          `json:"types,omitempty"`
	OpeningHours    map[string]string `json:"opening_hours,omitempty"`
	OpenNow         *bool             `json:"open_now,omitempty"`

	// Service options
	Takeout        *bool `json:"takeout,omitempty"`
	Delivery       *bool `json:"delivery,omitempty"`
	DineIn         *bool `json:"dine_in,omitempty"`
	CurbsidePickup *bool `json:"curbside_pickup,omitempty"`
	Reservable     *bool `json:"reservable,omitempty"`

	// Ambience
	OutdoorSeating  *bool `json:"outdoor_seating,omitempty"`
	LiveMusic       *bool `json:"live_music,omitempty"`
	GoodForGroups   *bool `json:"good_for_groups,omitempty"`
	GoodForChildren *bool `json:"good_for_children,omitempty"`
	AllowsDogs      *bool `json:"allows_dogs,omitempty"`

	// Summaries and media
	EditorialSummary *string  `json:"editorial_summary,omitempty"`
	ReviewSummary    *string  `json:"review_summary,omitempty"`
	Images           []string `json:"images,omitempty"`

	// Provider fields not yet promoted to first-class columns
	Extra map[string]any `json:"extra,omitempty"`
}

// PlaceRecord is the canonical cached entity, one row per external place id.
type PlaceRecord struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Location        *Coordinates    `json:"location,omitempty"`
	Attributes      PlaceAttributes `json:"attributes"`
	LastRefreshedAt *time.Time      `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PlaceWithDistance pairs a record with its exact distance from a query center.
type PlaceWithDistance struct {
	PlaceRecord
	DistanceMeters float64 `json:"distance_meters"`
}

// CanonicalFields is the normalized shape produced from a raw provider
// response, ready to merge into a stored record. Nil fields mean "provider did
// not report this"; merging treats them as leave-untouched.
type CanonicalFields struct {
	Name       *string         `json:"name,omitempty"`
	Location   *Coordinates    `json:"location,omitempty"`
	Attributes PlaceAttributes `json:"attributes"`
}

// Empty reports whether the update carries no usable data at all.
func (c CanonicalFields) Empty() bool {
	return c.Name == nil && c.Location == nil && c.Attributes.isZero()
}

func (a PlaceAttributes) isZero() bool {
	return a.Address == nil && a.PhoneNumber == nil && a.Website == nil &&
		a.Rating == nil && a.UserRatingCount == nil && a.PriceLevel == nil &&
		a.PrimaryType == nil && len(a.Types) == 0 && len(a.OpeningHours) == 0 &&
		a.OpenNow == nil && a.Takeout == nil && a.Delivery == nil &&
		a.DineIn == nil && a.CurbsidePickup == nil && a.Reservable == nil &&
		a.OutdoorSeating == nil && a.LiveMusic == nil && a.GoodForGroups == nil &&
		a.GoodForChildren == nil && a.AllowsDogs == nil &&
		a.EditorialSummary == nil && a.ReviewSummary == nil &&
		len(a.Images) == 0 && len(a.Extra) == 0
}

// ResolveStatus tags the per-id outcome of a batch resolve.
type ResolveStatus string

const (
	ResolveStatusCached    ResolveStatus = "cached"
	ResolveStatusRefreshed ResolveStatus = "refreshed"
	ResolveStatusFailed    ResolveStatus = "failed"
)

// ResolveResult is one entry of a batch resolve, in input order. Failed
// entries carry Err; Record is nil only for failures.
type ResolveResult struct {
	ID     string        `json:"id"`
	Status ResolveStatus `json:"status"`
	Record *PlaceRecord  `json:"record,omitempty"`
	Error  string        `json:"error,omitempty"`
	Err    error         `json:"-"`
}
