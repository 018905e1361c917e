package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all command settings, populated from environment variables
// (optionally seeded from a .env file in the working directory).
type Config struct {
	DBPath          string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream HTTP behaviour shared by every client.
	RequestTimeout    time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration

	// Météo-France DPClim API.
	MeteoFranceAPIKey        string
	MeteoFranceBaseURL       string
	MeteoFranceRatePerMinute int
	WeatherFirstYear         int
	WeatherLastYear          int

	// geo.api.gouv.fr commune lookup.
	GeoAPIBaseURL       string
	GeoAPIRatePerSecond int
	GeoCacheSize        int

	CultureAPIURL string

	// Optional publication of monthly averages.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("RETRY_INITIAL_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parsePositiveInt("RETRY_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	meteoRate, err := parsePositiveInt("METEO_FRANCE_RATE_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	geoRate, err := parsePositiveInt("GEO_API_RATE_PER_SECOND", 50)
	if err != nil {
		return nil, err
	}
	firstYear, err := parsePositiveInt("WEATHER_FIRST_YEAR", 2020)
	if err != nil {
		return nil, err
	}
	lastYear, err := parsePositiveInt("WEATHER_LAST_YEAR", 2025)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DBPath:          sharedcfg.EnvOrDefault("DB_PATH", "nodes.db"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		RequestTimeout:    requestTimeout,
		RetryMaxAttempts:  retryAttempts,
		RetryInitialDelay: retryDelay,

		MeteoFranceAPIKey:        strings.TrimSpace(os.Getenv("METEO_FRANCE_API_KEY")),
		MeteoFranceBaseURL:       sharedcfg.EnvOrDefault("METEO_FRANCE_BASE_URL", "https://public-api.meteofrance.fr/public/DPClim/v1"),
		MeteoFranceRatePerMinute: meteoRate,
		WeatherFirstYear:         firstYear,
		WeatherLastYear:          lastYear,

		GeoAPIBaseURL:       sharedcfg.EnvOrDefault("GEO_API_BASE_URL", "https://geo.api.gouv.fr"),
		GeoAPIRatePerSecond: geoRate,
		GeoCacheSize:        parseCacheSize(),

		CultureAPIURL: sharedcfg.EnvOrDefault("CULTURE_API_URL",
			"https://data.culture.gouv.fr/api/explore/v2.1/catalog/datasets/liste-et-localisation-des-musees-de-france/records"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-monthly-averages"),
	}

	if cfg.WeatherLastYear < cfg.WeatherFirstYear {
		return nil, errors.New("WEATHER_LAST_YEAR must not be before WEATHER_FIRST_YEAR")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	return cfg, nil
}

// RequireMeteoFranceKey fails when the Météo-France credential is absent.
func (c *Config) RequireMeteoFranceKey() error {
	if c.MeteoFranceAPIKey == "" {
		return errors.New("METEO_FRANCE_API_KEY is required (set it in the environment or a .env file)")
	}
	return nil
}

// WeatherYears lists every calendar year to fetch, oldest first.
func (c *Config) WeatherYears() []int {
	years := make([]int, 0, c.WeatherLastYear-c.WeatherFirstYear+1)
	for y := c.WeatherFirstYear; y <= c.WeatherLastYear; y++ {
		years = append(years, y)
	}
	return years
}

// KafkaEnabled reports whether monthly averages should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEO_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
