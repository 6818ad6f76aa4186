package dto

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/GabrielLeandroBS/locationd/internal/model"
)

// Defaults for every recognized option.
const (
	DefaultCacheTTL                   = 5 * time.Minute
	DefaultLastKnownMaxAge            = time.Minute
	DefaultSignificantChangeThreshold = 0.0001
	DefaultListenAddr                 = ":8091"
)

// Config carries the recognized options of the engine plus the wiring knobs
// of the daemon. Sessions receive a Config value each; the composition root
// builds the shared services from the same value.
type Config struct {
	// CacheTTL bounds the validity of cached locations and geocode entries.
	CacheTTL time.Duration
	// LastKnownMaxAge is the oldest last-known fix the race will accept.
	LastKnownMaxAge time.Duration
	// InitialAccuracy is requested by the race's fresh fetch.
	InitialAccuracy model.Accuracy
	// RefinedAccuracy is requested by the refinement pipeline.
	RefinedAccuracy model.Accuracy
	// EnableRefinement toggles the background accuracy upgrade.
	EnableRefinement bool
	// SignificantChangeThreshold is the strict per-axis degree delta above
	// which a refined fix replaces the primary one.
	SignificantChangeThreshold float64
	// AutoFetch makes a session fetch on Start.
	AutoFetch bool

	// StorePath is the durable store file. Empty disables persistence.
	StorePath string
	// ListenAddr is the daemon's HTTP listen address.
	ListenAddr string
	// GeoIPEndpoint and NominatimEndpoint override the bundled provider's
	// upstream URLs. Empty selects the public defaults.
	GeoIPEndpoint     string
	NominatimEndpoint string
	// LogLevel is a logrus level name.
	LogLevel string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:                   DefaultCacheTTL,
		LastKnownMaxAge:            DefaultLastKnownMaxAge,
		InitialAccuracy:            model.AccuracyLow,
		RefinedAccuracy:            model.AccuracyHigh,
		EnableRefinement:           true,
		SignificantChangeThreshold: DefaultSignificantChangeThreshold,
		AutoFetch:                  true,
		ListenAddr:                 DefaultListenAddr,
		LogLevel:                   "info",
	}
}

// LoadConfig reads the environment on top of the defaults. Call
// godotenv.Load first when a .env file should participate.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.CacheTTL, err = millisEnv("CACHE_TTL_MS", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.LastKnownMaxAge, err = millisEnv("LAST_KNOWN_MAX_AGE_MS", cfg.LastKnownMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.InitialAccuracy, err = accuracyEnv("INITIAL_ACCURACY", cfg.InitialAccuracy); err != nil {
		return Config{}, err
	}
	if cfg.RefinedAccuracy, err = accuracyEnv("REFINED_ACCURACY", cfg.RefinedAccuracy); err != nil {
		return Config{}, err
	}
	if cfg.EnableRefinement, err = boolEnv("ENABLE_REFINEMENT", cfg.EnableRefinement); err != nil {
		return Config{}, err
	}
	if cfg.SignificantChangeThreshold, err = floatEnv("SIGNIFICANT_CHANGE_THRESHOLD", cfg.SignificantChangeThreshold); err != nil {
		return Config{}, err
	}
	if cfg.AutoFetch, err = boolEnv("AUTO_FETCH", cfg.AutoFetch); err != nil {
		return Config{}, err
	}

	cfg.StorePath = stringEnv("STORE_PATH", cfg.StorePath)
	cfg.ListenAddr = stringEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.GeoIPEndpoint = stringEnv("GEOIP_ENDPOINT", cfg.GeoIPEndpoint)
	cfg.NominatimEndpoint = stringEnv("NOMINATIM_ENDPOINT", cfg.NominatimEndpoint)
	cfg.LogLevel = stringEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects option values the engine cannot operate with.
func (c Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.CacheTTL)
	}
	if c.LastKnownMaxAge <= 0 {
		return fmt.Errorf("last-known max age must be positive, got %v", c.LastKnownMaxAge)
	}
	if c.SignificantChangeThreshold < 0 {
		return fmt.Errorf("significant change threshold must not be negative, got %v", c.SignificantChangeThreshold)
	}
	if c.InitialAccuracy < model.AccuracyLowest || c.InitialAccuracy > model.AccuracyBestForNavigation {
		return fmt.Errorf("initial accuracy out of range: %d", c.InitialAccuracy)
	}
	if c.RefinedAccuracy < model.AccuracyLowest || c.RefinedAccuracy > model.AccuracyBestForNavigation {
		return fmt.Errorf("refined accuracy out of range: %d", c.RefinedAccuracy)
	}
	return nil
}

func stringEnv(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func millisEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func boolEnv(name string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %v", name, err)
	}
	return b, nil
}

func floatEnv(name string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	return f, nil
}

func accuracyEnv(name string, fallback model.Accuracy) (model.Accuracy, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	a, err := model.ParseAccuracy(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	return a, nil
}
