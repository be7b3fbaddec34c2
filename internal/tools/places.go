package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/tool"
)

const (
	placesEndpoint    = "https://places.googleapis.com/v1/places:searchText"
	placesMaxResults  = 5
	placesHTTPTimeout = 10 * time.Second
)

// PlacesTool searches for nearby places through the Google Places text
// search API. Output carries maps links, so it is delivered raw.
type PlacesTool struct {
	apiKey string
	client *http.Client
	logger *zap.Logger
}

func NewPlacesTool(apiKey string, logger *zap.Logger) *PlacesTool {
	return &PlacesTool{
		apiKey: apiKey,
		client: &http.Client{Timeout: placesHTTPTimeout},
		logger: logger,
	}
}

func (t *PlacesTool) Name() string       { return "places" }
func (t *PlacesTool) Commands() []string { return []string{"/places", "/nearby"} }
func (t *PlacesTool) DirectOutput() bool { return true }
func (t *PlacesTool) Description() string {
	return "Find places such as cafes, restaurants or hospitals, with ratings and map links"
}

func (t *PlacesTool) Spec() tool.Spec {
	spec := tool.Spec{
		Name:        t.Name(),
		Description: "Search for places such as cafes, restaurants, hospitals or ATMs near a location, with ratings and opening hours. Example: 'coffee shop near Siam'",
		Parameters: tool.ArgsParameters(
			"What to search for, including the area, e.g. 'restaurant near Sukhumvit'"),
	}
	spec.Parameters.Required = []string{"args"}
	return spec
}

type placesResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string  `json:"formattedAddress"`
		Rating           float64 `json:"rating"`
		UserRatingCount  int     `json:"userRatingCount"`
		GoogleMapsURI    string  `json:"googleMapsUri"`
	} `json:"places"`
}

func (t *PlacesTool) Execute(ctx context.Context, userID, args string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("Google Maps API key is not configured — set MAPS_API_KEY")
	}

	query := strings.TrimSpace(args)
	if query == "" {
		return "🔍 Tell me what to look for, e.g. /places coffee shop near Siam", nil
	}

	body, err := json.Marshal(map[string]any{
		"textQuery":      query,
		"maxResultCount": placesMaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode places request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, placesEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build places request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", t.apiKey)
	req.Header.Set("X-Goog-FieldMask",
		"places.displayName,places.formattedAddress,places.rating,places.userRatingCount,places.googleMapsUri")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("places search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("places API returned status %d", resp.StatusCode)
	}

	var parsed placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse places response: %w", err)
	}

	if len(parsed.Places) == 0 {
		return fmt.Sprintf("No places found for %q.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 Results for %q:\n", query)
	for i, place := range parsed.Places {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, place.DisplayName.Text)
		if place.Rating > 0 {
			fmt.Fprintf(&b, "   ⭐ %.1f (%d reviews)\n", place.Rating, place.UserRatingCount)
		}
		if place.FormattedAddress != "" {
			fmt.Fprintf(&b, "   %s\n", place.FormattedAddress)
		}
		mapsLink := place.GoogleMapsURI
		if mapsLink == "" {
			mapsLink = "https://www.google.com/maps/search/?api=1&query=" +
				url.QueryEscape(place.DisplayName.Text+" "+place.FormattedAddress)
		}
		fmt.Fprintf(&b, "   %s\n", mapsLink)
	}

	t.logger.Debug("Places search", zap.String("query", query), zap.Int("results", len(parsed.Places)))
	return b.String(), nil
}
