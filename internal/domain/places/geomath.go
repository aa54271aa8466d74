package places

import (
	"math"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// earthRadiusMeters is the mean Earth radius used for all distance math.
const earthRadiusMeters = 6371000.0

// minCosLat bounds the longitude-delta divisor near the poles, where
// cos(lat) approaches zero and the naive delta diverges.
const minCosLat = 1e-6

// HaversineMeters returns the great-circle distance between two points in
// meters. Symmetric; zero for identical points.
func HaversineMeters(a, b types.Coordinates) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := phi2 - phi1
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// BoundingBox returns a latitude/longitude window that is a superset of the
// circle of radiusMeters around center: it never excludes a point the
// Haversine distance would include. Callers must post-filter with
// HaversineMeters; the box alone is only an admissibility prefilter.
func BoundingBox(center types.Coordinates, radiusMeters float64) types.BoundingBox {
	latDelta := (radiusMeters / earthRadiusMeters) * (180 / math.Pi)

	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	lngDelta := (radiusMeters / (earthRadiusMeters * cosLat)) * (180 / math.Pi)

	box := types.BoundingBox{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: center.Longitude - lngDelta,
		MaxLng: center.Longitude + lngDelta,
	}

	// Clamp latitude to the valid range; near the poles the longitude window
	// degenerates to the full span rather than an empty box.
	if box.MinLat < -90 {
		box.MinLat = -90
	}
	if box.MaxLat > 90 {
		box.MaxLat = 90
	}
	if box.MaxLng-box.MinLng >= 360 {
		box.MinLng = -180
		box.MaxLng = 180
	}

	return box
}

// Contains reports whether p falls inside the box. Used by tests and the
// in-memory store double; the SQL store filters in the database.
func Contains(box types.BoundingBox, p types.Coordinates) bool {
	return p.Latitude >= box.MinLat && p.Latitude <= box.MaxLat &&
		p.Longitude >= box.MinLng && p.Longitude <= box.MaxLng
}
