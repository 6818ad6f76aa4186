package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
)

const (
	defaultGeoIPEndpoint     = "http://ip-api.com/json"
	defaultNominatimEndpoint = "https://nominatim.openstreetmap.org/reverse"

	providerUserAgent = "locationd/1.0"

	// ipFixAccuracyMeters is the nominal accuracy of a network fix. IP
	// positioning is city-level regardless of the requested accuracy.
	ipFixAccuracyMeters = 5000.0
)

var providerHTTPClient = &http.Client{Timeout: 10 * time.Second}

type geoIPProvider struct {
	geoipURL     string
	nominatimURL string
	httpClient   *http.Client

	mu        sync.RWMutex
	lastFix   *model.Coordinate
	lastFixAt time.Time
}

// NewGeoIPProvider returns the bundled network-positioning provider. Fixes
// come from the ip-api JSON endpoint, addresses from the Nominatim reverse
// endpoint; both can be overridden through the configuration.
func NewGeoIPProvider(cfg dto.Config) LocationProvider {
	geoipURL := cfg.GeoIPEndpoint
	if geoipURL == "" {
		geoipURL = defaultGeoIPEndpoint
	}
	nominatimURL := cfg.NominatimEndpoint
	if nominatimURL == "" {
		nominatimURL = defaultNominatimEndpoint
	}

	return &geoIPProvider{
		geoipURL:     geoipURL,
		nominatimURL: nominatimURL,
		httpClient:   providerHTTPClient,
	}
}

// RequestPermission always grants: network positioning needs no OS prompt.
func (p *geoIPProvider) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

// LastKnownPosition serves the provider's own most recent successful fix,
// filtered by maxAge.
func (p *geoIPProvider) LastKnownPosition(_ context.Context, maxAge time.Duration, _ model.Accuracy) (*model.Coordinate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lastFix == nil || time.Since(p.lastFixAt) > maxAge {
		return nil, nil
	}
	fix := *p.lastFix
	return &fix, nil
}

// CurrentPosition queries the GeoIP endpoint. The requested accuracy level
// has no effect on a network fix; it is recorded for diagnostics only.
func (p *geoIPProvider) CurrentPosition(ctx context.Context, accuracy model.Accuracy) (*model.Coordinate, error) {
	logrus.Debugf("GeoIP position requested (accuracy=%s)", accuracy)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.geoipURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}
	req.Header.Set("User-Agent", providerUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: geoip endpoint returned %s", dto.ErrInternalFailure, resp.Status)
	}

	var payload struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("%w: geoip lookup failed: %s", dto.ErrInternalFailure, payload.Message)
	}

	acc := ipFixAccuracyMeters
	fix := &model.Coordinate{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Accuracy:  &acc,
	}

	p.mu.Lock()
	p.lastFix = fix
	p.lastFixAt = time.Now()
	p.mu.Unlock()

	return fix, nil
}

// ReverseGeocode resolves a coordinate through the Nominatim reverse
// endpoint.
func (p *geoIPProvider) ReverseGeocode(ctx context.Context, coord model.Coordinate) (*model.Address, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	query.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.nominatimURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}
	req.Header.Set("User-Agent", providerUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reverse geocode endpoint returned %s", dto.ErrInternalFailure, resp.Status)
	}

	var payload struct {
		Address struct {
			Road        string `json:"road"`
			Suburb      string `json:"suburb"`
			City        string `json:"city"`
			Town        string `json:"town"`
			Village     string `json:"village"`
			State       string `json:"state"`
			Postcode    string `json:"postcode"`
			Country     string `json:"country"`
			CountryCode string `json:"country_code"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err)
	}

	city := payload.Address.City
	if city == "" {
		city = payload.Address.Town
	}
	if city == "" {
		city = payload.Address.Village
	}

	addr := model.Address{
		Street:      payload.Address.Road,
		District:    payload.Address.Suburb,
		City:        city,
		Region:      payload.Address.State,
		PostalCode:  payload.Address.Postcode,
		Country:     payload.Address.Country,
		CountryCode: payload.Address.CountryCode,
	}
	if addr.Empty() {
		return nil, nil
	}
	return &addr, nil
}
