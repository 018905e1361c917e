// Command ingest-nodes loads transit nodes from a JSON file into the SQLite
// store, upserting by SNCF identifier.
//
// Usage:
//
//	ingest-nodes [-db nodes.db] [-failures report.json] [nodes.json]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/transit-weather-etl/internal/cli"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default $DB_PATH)")
	failures := flag.String("failures", "", "write a JSON report of skipped entries to this path")
	flag.Parse()

	input := "nodes.json"
	if flag.NArg() > 0 {
		input = flag.Arg(0)
	}

	os.Exit(cli.Run("ingest-nodes", cli.Options{DBPath: *dbPath, FailuresPath: *failures},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			f, err := os.Open(input)
			if err != nil {
				return nil, fmt.Errorf("open nodes file: %w", err)
			}
			defer f.Close()

			store, err := env.OpenStore(ctx, true)
			if err != nil {
				return nil, err
			}
			defer env.CloseStore(store)

			env.Logger.Info("reading nodes", "file", input)
			return pipeline.IngestNodes(ctx, f, store, env.Metrics, env.Logger)
		}))
}
