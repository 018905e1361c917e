// Command ingest-museums stores the number of museums per postal code from
// the data.culture.gouv.fr museums dataset.
//
// Usage:
//
//	ingest-museums [-db nodes.db]
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
	flag.Parse()

	os.Exit(cli.Run("ingest-museums", cli.Options{DBPath: *dbPath},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			store, err := env.OpenStore(ctx, true)
			if err != nil {
				return nil, err
			}
			defer env.CloseStore(store)

			return pipeline.IngestMuseums(ctx, env.Culture(), store, env.Metrics, env.Logger)
		}))
}
