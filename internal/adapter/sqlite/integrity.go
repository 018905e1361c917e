package sqlite

import (
	"context"
	"fmt"
)

// naturalKeys maps each table to the column set that identifies a row.
// Databases created by older tooling may lack the UNIQUE constraints.
var naturalKeys = []struct {
	table string
	key   string
}{
	{TableNodes, "sncf_id"},
	{TableInsee, "node_id"},
	{TableWeatherStation, "station_id"},
	{TableMuseum, "postal_code"},
	{TableWeatherData, "node_id, month"},
}

// DuplicateNaturalKeys returns, per table, how many natural-key values occur
// more than once. Tables without duplicates are absent.
func (s *Store) DuplicateNaturalKeys(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, nk := range naturalKeys {
		var n int
		// Table and column names come from the fixed list above.
		q := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s GROUP BY %s HAVING COUNT(*) > 1)", nk.table, nk.key)
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("check duplicate keys in %s: %w", nk.table, err)
		}
		if n > 0 {
			out[nk.table] = n
		}
	}
	return out, nil
}
