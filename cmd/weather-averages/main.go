// Command weather-averages matches every enriched node to its nearest open
// weather station in the same department, downloads the station's monthly
// records for WEATHER_FIRST_YEAR..WEATHER_LAST_YEAR, and stores twelve
// per-month averages per node. With KAFKA_BROKERS set, stored rows are also
// published to KAFKA_TOPIC.
//
// Usage:
//
//	weather-averages [-db nodes.db] [-failures report.json]
package main

import (
	"context"
	"flag"
	"os"

	"github.com/couchcryptid/transit-weather-etl/internal/cli"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default $DB_PATH)")
	failures := flag.String("failures", "", "write a JSON report of failed nodes and station-years to this path")
	flag.Parse()

	os.Exit(cli.Run("weather-averages", cli.Options{DBPath: *dbPath, FailuresPath: *failures},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			client, err := env.MeteoFrance()
			if err != nil {
				return nil, err
			}

			store, err := env.OpenStore(ctx, false)
			if err != nil {
				return nil, err
			}
			defer env.CloseStore(store)

			publisher, closePublisher := env.Publisher()
			defer closePublisher()

			years := env.Config.WeatherYears()
			env.Logger.Info("weather window", "first_year", years[0], "last_year", years[len(years)-1])

			p := pipeline.NewWeatherPipeline(client, store, publisher, years, env.Metrics, env.Logger)
			return p.Run(ctx)
		}))
}
