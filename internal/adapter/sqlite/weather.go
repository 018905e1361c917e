package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

const upsertMonthlySQL = `INSERT INTO t_weather_data
    (node_id, weather_station_id, month, precipitation, average_temp, sunny_days)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (node_id, month) DO UPDATE
SET weather_station_id = excluded.weather_station_id,
    precipitation = excluded.precipitation,
    average_temp = excluded.average_temp,
    sunny_days = excluded.sunny_days`

// UpsertMonthlyAverages writes one row per (node, month), replacing any
// previous value for the pair. Nil fields are stored as NULL.
func (s *Store) UpsertMonthlyAverages(ctx context.Context, rows []domain.MonthlyAverage) (int, error) {
	return upsertEach(ctx, s, TableWeatherData, upsertMonthlySQL, rows, func(m domain.MonthlyAverage) []any {
		return []any{m.NodeID, m.StationID, m.Month, nullFloat(m.Precipitation), nullFloat(m.AverageTemp), nullFloat(m.SunnyDays)}
	})
}

// MonthlyAverages returns every stored monthly row ordered by node then month.
func (s *Store) MonthlyAverages(ctx context.Context) ([]domain.MonthlyAverage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT node_id, weather_station_id, month, precipitation, average_temp, sunny_days
FROM t_weather_data
ORDER BY node_id, month`)
	if err != nil {
		return nil, fmt.Errorf("query monthly averages: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlyAverage
	for rows.Next() {
		var (
			m                   domain.MonthlyAverage
			precip, temp, sunny sql.NullFloat64
		)
		if err := rows.Scan(&m.NodeID, &m.StationID, &m.Month, &precip, &temp, &sunny); err != nil {
			return nil, fmt.Errorf("scan monthly average: %w", err)
		}
		m.Precipitation = floatPtr(precip)
		m.AverageTemp = floatPtr(temp)
		m.SunnyDays = floatPtr(sunny)
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
