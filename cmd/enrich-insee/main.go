// Command enrich-insee resolves the commune (INSEE code, department, region,
// population, postal codes) of every transit node through geo.api.gouv.fr.
//
// Without arguments it reads t_nodes and writes t_insee. Given an input file
// it works on files instead:
//
//	enrich-insee [-db nodes.db] [-only-missing] [-failures report.json]
//	enrich-insee [-failures report.json] nodes.json [nodes_enriched.json]
//
// In file mode the output defaults to <input>_enriched.json and the failure
// report to <output>_failures.json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/transit-weather-etl/internal/cli"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default $DB_PATH)")
	failures := flag.String("failures", "", "write a JSON report of failed lookups to this path")
	onlyMissing := flag.Bool("only-missing", false, "only look up nodes without a successful lookup")
	flag.Parse()

	if flag.NArg() == 0 {
		os.Exit(cli.Run("enrich-insee", cli.Options{DBPath: *dbPath, FailuresPath: *failures},
			func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
				store, err := env.OpenStore(ctx, false)
				if err != nil {
					return nil, err
				}
				defer env.CloseStore(store)

				e := pipeline.NewEnricher(env.CommuneLocator(), env.Metrics, env.Logger)
				return e.EnrichStore(ctx, store, *onlyMissing)
			}))
	}

	if err := checkFileModeFlags(*onlyMissing); err != nil {
		fmt.Fprintln(os.Stderr, "enrich-insee:", err)
		flag.Usage()
		os.Exit(2)
	}

	input := flag.Arg(0)
	output := pipeline.SiblingPath(input, "_enriched")
	if flag.NArg() > 1 {
		output = flag.Arg(1)
	}
	report := *failures
	if report == "" {
		report = pipeline.SiblingPath(output, "_failures")
	}

	os.Exit(cli.Run("enrich-insee", cli.Options{FailuresPath: report},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			in, err := os.Open(input)
			if err != nil {
				return nil, fmt.Errorf("open input: %w", err)
			}
			defer in.Close()
			env.MarkStarted()

			out, err := os.Create(output)
			if err != nil {
				return nil, fmt.Errorf("create output: %w", err)
			}
			defer out.Close()

			env.Logger.Info("enriching file", "input", input, "output", output)
			e := pipeline.NewEnricher(env.CommuneLocator(), env.Metrics, env.Logger)
			summary, err := e.EnrichFile(ctx, in, out)
			if err != nil {
				return summary, err
			}
			if err := out.Close(); err != nil {
				return summary, fmt.Errorf("close output: %w", err)
			}
			return summary, nil
		}))
}

// checkFileModeFlags rejects database-only flags when enriching a file.
func checkFileModeFlags(onlyMissing bool) error {
	if onlyMissing {
		return errors.New("-only-missing applies to the database mode only")
	}
	return nil
}
