package googleplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-places-engine/internal/domain/places"
	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

var _ places.EnrichmentProvider = (*Client)(nil)

// fieldMask lists everything the details endpoint should return; requesting
// less keeps the call cheap and the quota low.
var fieldMask = strings.Join([]string{
	"id",
	"displayName",
	"location",
	"formattedAddress",
	"internationalPhoneNumber",
	"websiteUri",
	"photos.name",
	"photos.heightPx",
	"regularOpeningHours",
	"currentOpeningHours.openNow",
	"takeout",
	"delivery",
	"dineIn",
	"curbsidePickup",
	"reservable",
	"outdoorSeating",
	"liveMusic",
	"goodForGroups",
	"goodForChildren",
	"allowsDogs",
	"editorialSummary",
	"reviewSummary",
	"rating",
	"userRatingCount",
	"priceLevel",
	"primaryType",
	"types",
}, ",")

// priceLevels maps the provider's price vocabulary onto the 0-4 scale the
// cache stores.
var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// Config holds provider client settings.
type Config struct {
	BaseURL        string
	APIKey         string
	MaxPhotos      int
	MinPhotoHeight int
}

// Client fetches place details from a Places-API-v1-style details endpoint
// and normalizes the nested payload into flat canonical fields.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("places api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://places.googleapis.com/v1"
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 8
	}
	if cfg.MinPhotoHeight <= 0 {
		cfg.MinPhotoHeight = 400
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger:     logger,
		httpClient: httpClient,
		cfg:        cfg,
	}, nil
}

// detailsResponse mirrors the slice of the provider payload the engine cares
// about.
type detailsResponse struct {
	ID          string `json:"id"`
	DisplayName *struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	FormattedAddress         *string `json:"formattedAddress"`
	InternationalPhoneNumber *string `json:"internationalPhoneNumber"`
	WebsiteURI               *string `json:"websiteUri"`
	Photos                   []struct {
		Name     string `json:"name"`
		HeightPx int    `json:"heightPx"`
	} `json:"photos"`
	RegularOpeningHours *struct {
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	CurrentOpeningHours *struct {
		OpenNow *bool `json:"openNow"`
	} `json:"currentOpeningHours"`
	Takeout          *bool `json:"takeout"`
	Delivery         *bool `json:"delivery"`
	DineIn           *bool `json:"dineIn"`
	CurbsidePickup   *bool `json:"curbsidePickup"`
	Reservable       *bool `json:"reservable"`
	OutdoorSeating   *bool `json:"outdoorSeating"`
	LiveMusic        *bool `json:"liveMusic"`
	GoodForGroups    *bool `json:"goodForGroups"`
	GoodForChildren  *bool `json:"goodForChildren"`
	AllowsDogs       *bool `json:"allowsDogs"`
	EditorialSummary *struct {
		Overview string `json:"overview"`
	} `json:"editorialSummary"`
	ReviewSummary *struct {
		Text struct {
			Text string `json:"text"`
		} `json:"text"`
	} `json:"reviewSummary"`
	Rating          *float64 `json:"rating"`
	UserRatingCount *int     `json:"userRatingCount"`
	PriceLevel      string   `json:"priceLevel"`
	PrimaryType     *string  `json:"primaryType"`
	Types           []string `json:"types"`
}

func (c *Client) FetchDetails(ctx context.Context, id string) (types.CanonicalFields, error) {
	ctx, span := otel.Tracer("GooglePlacesClient").Start(ctx, "FetchDetails", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	if id == "" {
		return types.CanonicalFields{}, fmt.Errorf("fetch details: empty place id: %w", types.ErrBadRequest)
	}

	url := fmt.Sprintf("%s/places/%s", c.cfg.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.CanonicalFields{}, fmt.Errorf("build details request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "details request failed")
		return types.CanonicalFields{}, fmt.Errorf("details request for %q: %w: %w", id, types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		return types.CanonicalFields{}, fmt.Errorf("read details response for %q: %w: %w", id, types.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		span.SetStatus(codes.Error, "place gone upstream")
		return types.CanonicalFields{}, fmt.Errorf("place %q gone upstream: %w", id, types.ErrNotFound)
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		span.SetStatus(codes.Error, "upstream unavailable")
		return types.CanonicalFields{}, fmt.Errorf("details request for %q: upstream status %d: %w", id, resp.StatusCode, types.ErrProviderUnavailable)
	default:
		span.SetStatus(codes.Error, "details request rejected")
		return types.CanonicalFields{}, fmt.Errorf("details request for %q: upstream status %d: %w", id, resp.StatusCode, types.ErrBadRequest)
	}

	var details detailsResponse
	if err := json.Unmarshal(body, &details); err != nil {
		span.RecordError(err)
		return types.CanonicalFields{}, fmt.Errorf("decode details response for %q: %w: %w", id, types.ErrProviderUnavailable, err)
	}

	fields := c.normalize(details)
	span.SetStatus(codes.Ok, "details fetched")
	return fields, nil
}

// normalize flattens the nested provider payload into canonical fields; only
// what the provider actually reported is set.
func (c *Client) normalize(d detailsResponse) types.CanonicalFields {
	var fields types.CanonicalFields

	if d.DisplayName != nil && d.DisplayName.Text != "" {
		name := d.DisplayName.Text
		fields.Name = &name
	}
	if d.Location != nil {
		fields.Location = &types.Coordinates{
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
		}
	}

	a := &fields.Attributes
	a.Address = d.FormattedAddress
	a.PhoneNumber = d.InternationalPhoneNumber
	a.Website = d.WebsiteURI
	a.Rating = d.Rating
	a.UserRatingCount = d.UserRatingCount
	a.PrimaryType = d.PrimaryType
	a.Types = d.Types
	a.Takeout = d.Takeout
	a.Delivery = d.Delivery
	a.DineIn = d.DineIn
	a.CurbsidePickup = d.CurbsidePickup
	a.Reservable = d.Reservable
	a.OutdoorSeating = d.OutdoorSeating
	a.LiveMusic = d.LiveMusic
	a.GoodForGroups = d.GoodForGroups
	a.GoodForChildren = d.GoodForChildren
	a.AllowsDogs = d.AllowsDogs

	if level, ok := priceLevels[d.PriceLevel]; ok {
		a.PriceLevel = &level
	}
	if d.CurrentOpeningHours != nil {
		a.OpenNow = d.CurrentOpeningHours.OpenNow
	}
	if d.RegularOpeningHours != nil && len(d.RegularOpeningHours.WeekdayDescriptions) > 0 {
		hours := make(map[string]string, len(d.RegularOpeningHours.WeekdayDescriptions))
		for _, desc := range d.RegularOpeningHours.WeekdayDescriptions {
			day, schedule, found := strings.Cut(desc, ": ")
			if !found {
				continue
			}
			hours[day] = schedule
		}
		if len(hours) > 0 {
			a.OpeningHours = hours
		}
	}
	if d.EditorialSummary != nil && d.EditorialSummary.Overview != "" {
		overview := d.EditorialSummary.Overview
		a.EditorialSummary = &overview
	}
	if d.ReviewSummary != nil && d.ReviewSummary.Text.Text != "" {
		summary := d.ReviewSummary.Text.Text
		a.ReviewSummary = &summary
	}

	// Photo names become stable media URLs; small photos are dropped the same
	// way the consumer UI would drop them.
	for _, p := range d.Photos {
		if p.Name == "" || p.HeightPx < c.cfg.MinPhotoHeight {
			continue
		}
		a.Images = append(a.Images, fmt.Sprintf("%s/%s/media?maxHeightPx=%d", c.cfg.BaseURL, p.Name, max(c.cfg.MinPhotoHeight, 800)))
		if len(a.Images) >= c.cfg.MaxPhotos {
			break
		}
	}

	return fields
}
