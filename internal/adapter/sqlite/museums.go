package sqlite

import (
	"context"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

const upsertMuseumSQL = `INSERT INTO t_museum (postal_code, museum_count)
VALUES (?, ?)
ON CONFLICT (postal_code) DO UPDATE
SET museum_count = excluded.museum_count`

// UpsertMuseums writes museum counts keyed by postal code.
func (s *Store) UpsertMuseums(ctx context.Context, counts []domain.MuseumCount) (int, error) {
	return upsertEach(ctx, s, TableMuseum, upsertMuseumSQL, counts, func(m domain.MuseumCount) []any {
		return []any{m.PostalCode, m.Count}
	})
}
