package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPlacesURL = "https://maps.googleapis.com/maps/api/place"

	MaxPlaces         = 10
	placeDetailFanout = 5
	placesTimeout     = 15 * time.Second
)

var (
	ErrPlacesDenied = errors.New("google maps api key is invalid or the places api is not enabled")
	ignoredTypes    = map[string]bool{"point_of_interest": true, "establishment": true}
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a normalised business record from a places search.
type Place struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Phone            *string  `json:"phone"`
	Website          *string  `json:"website"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Types            []string `json:"types"`
	PlaceID          string   `json:"place_id"`
	Location         *LatLng  `json:"location,omitempty"`
	BusinessStatus   string   `json:"business_status,omitempty"`
}

type PlacesQuery struct {
	Query    string
	Location string
	Radius   int
	Type     string
}

// Places is a Google Places (legacy web service) client.
type Places struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPlaces(apiKey string) *Places {
	return &Places{apiKey: apiKey, baseURL: DefaultPlacesURL, client: &http.Client{Timeout: placesTimeout}}
}

func (p *Places) WithBaseURL(baseURL string) *Places {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		Types            []string `json:"types"`
		BusinessStatus   string   `json:"business_status"`
		Geometry         *struct {
			Location LatLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type detailsResponse struct {
	Result struct {
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		Website              string `json:"website"`
	} `json:"result"`
}

// Search runs a text search and enriches up to MaxPlaces hits with phone and
// website details. Per-place detail failures are ignored.
func (p *Places) Search(ctx context.Context, q PlacesQuery) ([]Place, error) {
	query := q.Query
	if q.Location != "" {
		query = q.Query + " in " + q.Location
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", p.apiKey)
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Radius > 0 {
		params.Set("radius", strconv.Itoa(q.Radius))
	}

	var search textSearchResponse
	if err := p.get(ctx, "/textsearch/json?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("places text search: %w", err)
	}
	switch search.Status {
	case "REQUEST_DENIED":
		return nil, ErrPlacesDenied
	case "ZERO_RESULTS":
		return []Place{}, nil
	}

	hits := search.Results
	if len(hits) > MaxPlaces {
		hits = hits[:MaxPlaces]
	}
	places := make([]Place, len(hits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(placeDetailFanout)
	for i, hit := range hits {
		place := Place{
			ID:               hit.PlaceID,
			Name:             hit.Name,
			Address:          hit.FormattedAddress,
			Rating:           hit.Rating,
			UserRatingsTotal: hit.UserRatingsTotal,
			Types:            filterTypes(hit.Types),
			PlaceID:          hit.PlaceID,
			BusinessStatus:   hit.BusinessStatus,
		}
		if hit.Geometry != nil {
			loc := hit.Geometry.Location
			place.Location = &loc
		}
		places[i] = place

		g.Go(func() error {
			phone, website := p.details(gctx, hit.PlaceID)
			places[i].Phone = phone
			places[i].Website = website
			return nil
		})
	}
	_ = g.Wait()
	return places, nil
}

func (p *Places) details(ctx context.Context, placeID string) (*string, *string) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "formatted_phone_number,website,opening_hours")
	params.Set("key", p.apiKey)

	var out detailsResponse
	if err := p.get(ctx, "/details/json?"+params.Encode(), &out); err != nil {
		return nil, nil
	}
	return nonEmpty(out.Result.FormattedPhoneNumber), nonEmpty(out.Result.Website)
}

func (p *Places) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func filterTypes(types []string) []string {
	out := make([]string, 0, 3)
	for _, t := range types {
		if ignoredTypes[t] {
			continue
		}
		out = append(out, t)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
