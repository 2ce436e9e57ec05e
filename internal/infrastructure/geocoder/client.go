package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/config"
	"github.com/quickcart/order-service/internal/domain"
)

// HTTPGeocoder resolves addresses against a Nominatim-compatible forward
// geocoding API. Results are cached by normalized address; warehouse
// customers cluster around the same cities, so the hit rate is high.
type HTTPGeocoder struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
}

func NewHTTPGeocoder(cfg config.GeocoderConfig) application.Geocoder {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &HTTPGeocoder{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
		cache: gocache.New(ttl, 2*ttl),
	}
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	cacheKey := normalizeAddress(address)
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(domain.Coordinates), nil
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(address))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Coordinates{}, fmt.Errorf("error decoding json response: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocoding result for address %q", address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid latitude in geocoding result: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid longitude in geocoding result: %w", err)
	}

	coords := domain.Coordinates{Lat: lat, Lng: lng}
	g.cache.Set(cacheKey, coords, gocache.DefaultExpiration)
	return coords, nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
