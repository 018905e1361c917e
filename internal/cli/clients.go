package cli

import (
	"github.com/couchcryptid/transit-weather-etl/internal/adapter/culture"
	"github.com/couchcryptid/transit-weather-etl/internal/adapter/geoapi"
	"github.com/couchcryptid/transit-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/transit-weather-etl/internal/adapter/meteofrance"
	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
	"github.com/couchcryptid/transit-weather-etl/internal/retry"
)

// RetryPolicy is the configured backoff for transient upstream errors.
func (e *Env) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = e.Config.RetryMaxAttempts
	p.InitialDelay = e.Config.RetryInitialDelay
	return p
}

// MeteoFrance builds the DPClim client. It fails without an API key.
func (e *Env) MeteoFrance() (*meteofrance.Client, error) {
	if err := e.Config.RequireMeteoFranceKey(); err != nil {
		return nil, err
	}
	return meteofrance.NewClient(meteofrance.Options{
		APIKey:         e.Config.MeteoFranceAPIKey,
		BaseURL:        e.Config.MeteoFranceBaseURL,
		RatePerMinute:  e.Config.MeteoFranceRatePerMinute,
		RequestTimeout: e.Config.RequestTimeout,
		Retry:          e.RetryPolicy(),
	}, e.Metrics, e.Logger), nil
}

// CommuneLocator builds the cached geo.api.gouv.fr locator.
func (e *Env) CommuneLocator() domain.CommuneLocator {
	client := geoapi.NewClient(e.Config.GeoAPIBaseURL, e.Config.GeoAPIRatePerSecond, e.Config.RequestTimeout, e.RetryPolicy(), e.Metrics, e.Logger)
	return geoapi.NewCachedLocator(client, e.Config.GeoCacheSize, e.Metrics)
}

// Culture builds the museums dataset client.
func (e *Env) Culture() *culture.Client {
	return culture.NewClient(e.Config.CultureAPIURL, e.Config.RequestTimeout, e.Metrics, e.Logger)
}

// Publisher returns the Kafka publisher when KAFKA_BROKERS is set, or nil.
// The returned close func is always safe to call.
func (e *Env) Publisher() (pipeline.Publisher, func()) {
	if !e.Config.KafkaEnabled() {
		e.Logger.Info("kafka publication disabled")
		return nil, func() {}
	}
	w := kafka.NewWriter(e.Config, e.RunID, e.Logger)
	e.Logger.Info("kafka publication enabled", "brokers", e.Config.KafkaBrokers, "topic", e.Config.KafkaTopic)
	return w, func() {
		if err := w.Close(); err != nil {
			e.Logger.Error("kafka writer close error", "error", err)
		}
	}
}
