package types

// SearchQuery is an ephemeral radius query; it is never persisted.
type SearchQuery struct {
	Center       Coordinates `json:"center"`
	RadiusMeters float64     `json:"radius_meters"`
	Page         int         `json:"page"`
}

// NearbyPlacesRequest is the body of POST /nearby-places.
type NearbyPlacesRequest struct {
	Location     Coordinates `json:"location"`
	RadiusMeters float64     `json:"radius_meters,omitempty"`
	Page         int         `json:"page,omitempty"`
	Limit        int         `json:"limit,omitempty"`
	// RefreshStale enriches stale or never-enriched results inline before
	// responding. Off by default to keep the endpoint cheap.
	RefreshStale bool `json:"refresh_stale,omitempty"`
}

// NearbyPlace is one entry of a nearby response. Error is set when an inline
// refresh for this place failed; the entry still carries the cached record.
type NearbyPlace struct {
	PlaceWithDistance
	Refreshed bool   `json:"refreshed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NearbyPlacesResponse is the response of POST /nearby-places.
type NearbyPlacesResponse struct {
	Places       []NearbyPlace `json:"places"`
	TotalFound   int           `json:"total_found"`
	UpdatedCount int           `json:"updated_count"`
}

// ResolveRequest is the body of POST /places:resolve.
type ResolveRequest struct {
	IDs []string `json:"ids"`
}

// ResolveResponse is the response of POST /places:resolve, one result per
// requested id in request order.
type ResolveResponse struct {
	Results []ResolveResult `json:"results"`
}
