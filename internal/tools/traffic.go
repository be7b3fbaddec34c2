package tools

import (
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
	directionsEndpoint = "https://maps.googleapis.com/maps/api/directions/json"
	trafficHTTPTimeout = 10 * time.Second
)

// routeSeparators split "origin to destination" phrasings.
var routeSeparators = []string{" to ", "→", "➡", "|"}

// TrafficTool checks the route and real-time travel duration between two
// points through the Google Directions API. The reply embeds a maps link,
// so it is delivered raw.
type TrafficTool struct {
	apiKey string
	client *http.Client
	logger *zap.Logger
}

func NewTrafficTool(apiKey string, logger *zap.Logger) *TrafficTool {
	return &TrafficTool{
		apiKey: apiKey,
		client: &http.Client{Timeout: trafficHTTPTimeout},
		logger: logger,
	}
}

func (t *TrafficTool) Name() string       { return "traffic" }
func (t *TrafficTool) Commands() []string { return []string{"/traffic", "/route"} }
func (t *TrafficTool) DirectOutput() bool { return true }
func (t *TrafficTool) Description() string {
	return "Check the route, distance and live travel time between two places"
}

func (t *TrafficTool) Spec() tool.Spec {
	spec := tool.Spec{
		Name:        t.Name(),
		Description: "Check the route, distance, travel time and live traffic between two places via Google Maps, e.g. 'Siam to Silom'",
		Parameters: tool.ArgsParameters(
			"Origin and destination separated by 'to', e.g. 'MBK to Asiatique'"),
	}
	spec.Parameters.Required = []string{"args"}
	return spec
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
			DurationInTraffic struct {
				Text string `json:"text"`
			} `json:"duration_in_traffic"`
		} `json:"legs"`
	} `json:"routes"`
}

func (t *TrafficTool) Execute(ctx context.Context, userID, args string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("Google Maps API key is not configured — set MAPS_API_KEY")
	}

	origin, destination, ok := splitRoute(args)
	if !ok {
		return "🚗 Tell me origin and destination, e.g. /traffic Siam to Silom", nil
	}

	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("departure_time", "now")
	params.Set("key", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		directionsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build directions request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("directions API returned status %d", resp.StatusCode)
	}

	var parsed directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse directions response: %w", err)
	}

	if parsed.Status != "OK" || len(parsed.Routes) == 0 || len(parsed.Routes[0].Legs) == 0 {
		return "", fmt.Errorf("no route found from %q to %q (status %s)", origin, destination, parsed.Status)
	}

	route := parsed.Routes[0]
	leg := route.Legs[0]

	duration := leg.Duration.Text
	if leg.DurationInTraffic.Text != "" {
		duration = leg.DurationInTraffic.Text + " in current traffic"
	}

	mapsLink := "https://www.google.com/maps/dir/?api=1&origin=" + url.QueryEscape(origin) +
		"&destination=" + url.QueryEscape(destination)

	var b strings.Builder
	fmt.Fprintf(&b, "🚗 %s → %s\n", origin, destination)
	if route.Summary != "" {
		fmt.Fprintf(&b, "Via %s\n", route.Summary)
	}
	fmt.Fprintf(&b, "Distance: %s\n", leg.Distance.Text)
	fmt.Fprintf(&b, "Duration: %s\n", duration)
	fmt.Fprintf(&b, "%s\n", mapsLink)

	t.logger.Debug("Traffic lookup",
		zap.String("origin", origin),
		zap.String("destination", destination))
	return b.String(), nil
}

// splitRoute parses "origin <sep> destination" args.
func splitRoute(args string) (origin, destination string, ok bool) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", "", false
	}

	for _, sep := range routeSeparators {
		if before, after, found := strings.Cut(args, sep); found {
			origin = strings.TrimSpace(before)
			destination = strings.TrimSpace(after)
			if origin != "" && destination != "" {
				return origin, destination, true
			}
		}
	}
	return "", "", false
}
