// Command ingest-stations stores the Météo-France stations of each
// department. Departments default to those of already-enriched nodes.
//
// Usage:
//
//	ingest-stations [-db nodes.db] [-departments 13,75,69] [-failures report.json]
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/couchcryptid/transit-weather-etl/internal/cli"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default $DB_PATH)")
	departments := flag.String("departments", "", "comma-separated department codes (default: departments in t_insee)")
	failures := flag.String("failures", "", "write a JSON report of failed departments to this path")
	flag.Parse()

	depts := splitList(*departments)

	os.Exit(cli.Run("ingest-stations", cli.Options{DBPath: *dbPath, FailuresPath: *failures},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			client, err := env.MeteoFrance()
			if err != nil {
				return nil, err
			}

			// An explicit list needs no prior enrichment, so the store may be new.
			store, err := env.OpenStore(ctx, len(depts) > 0)
			if err != nil {
				return nil, err
			}
			defer env.CloseStore(store)

			return pipeline.IngestStations(ctx, client, store, depts, env.Metrics, env.Logger)
		}))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
