// Command validate performs integrity checks on the SQLite store produced by
// the ingestion commands. It verifies that natural keys are unique, that
// every averaged node has twelve months, and that each node's station is the
// nearest open station of its department.
//
// Usage:
//
//	validate [-db nodes.db]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/transit-weather-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/transit-weather-etl/internal/cli"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
)

// maxPrinted caps the detailed errors listed per phase.
const maxPrinted = 20

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default $DB_PATH)")
	flag.Parse()

	os.Exit(cli.Run("validate", cli.Options{DBPath: *dbPath},
		func(ctx context.Context, env *cli.Env) (*pipeline.Summary, error) {
			store, err := env.OpenStore(ctx, false)
			if err != nil {
				return nil, err
			}
			defer env.CloseStore(store)

			phases, err := pipeline.ValidateStore(ctx, store)
			if err != nil {
				return nil, err
			}
			printReport(ctx, store, phases)

			summary := pipeline.PhaseSummary(phases, env.Metrics)
			if summary.Errored > 0 {
				return summary, errors.New("validation failed")
			}
			return summary, nil
		}))
}

func printReport(ctx context.Context, store *sqlite.Store, phases []*pipeline.Phase) {
	fmt.Println("=== Transit Weather Store Validation ===")
	fmt.Println()

	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.Errors))
		}
		fmt.Printf("  %-42s %s\n", p.Name, status)
	}

	fmt.Println()
	fmt.Print("Rows:")
	for _, table := range []string{sqlite.TableNodes, sqlite.TableInsee, sqlite.TableWeatherStation, sqlite.TableMuseum, sqlite.TableWeatherData} {
		n, err := store.Count(ctx, table)
		if err != nil {
			fmt.Printf(" %s=?", table)
			continue
		}
		fmt.Printf(" %s=%d", table, n)
	}
	fmt.Println()

	for _, p := range phases {
		if p.Passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.Name)
		for i, e := range p.Errors {
			if i == maxPrinted {
				fmt.Printf("  ... %d more\n", len(p.Errors)-maxPrinted)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
}
