package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

// A failed lookup clears previous commune fields: the row always reflects the
// latest attempt.
const upsertInseeSQL = `INSERT INTO t_insee
    (node_id, insee_code, city_name, department_code, region_code, population, postal_codes, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (node_id) DO UPDATE
SET insee_code = excluded.insee_code,
    city_name = excluded.city_name,
    department_code = excluded.department_code,
    region_code = excluded.region_code,
    population = excluded.population,
    postal_codes = excluded.postal_codes,
    error_message = excluded.error_message`

// UpsertInseeRecords writes one commune lookup outcome per node.
func (s *Store) UpsertInseeRecords(ctx context.Context, records []domain.InseeRecord) (int, error) {
	return upsertEach(ctx, s, TableInsee, upsertInseeSQL, records, inseeArgs)
}

func inseeArgs(r domain.InseeRecord) []any {
	if !r.Found() {
		return []any{r.NodeID, nil, nil, nil, nil, nil, nil, r.ErrorMessage}
	}
	c := r.Commune
	postal, _ := json.Marshal(nonNil(c.PostalCodes))
	return []any{
		r.NodeID,
		nullIfEmpty(c.Code),
		nullIfEmpty(c.Name),
		nullIfEmpty(c.DepartmentCode),
		nullIfEmpty(c.RegionCode),
		c.Population,
		string(postal),
		nil,
	}
}

// DepartmentCodes lists the distinct department codes found by commune
// lookups, sorted.
func (s *Store) DepartmentCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT department_code
FROM t_insee
WHERE department_code IS NOT NULL AND department_code <> ''
ORDER BY department_code`)
	if err != nil {
		return nil, fmt.Errorf("query department codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan department code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
