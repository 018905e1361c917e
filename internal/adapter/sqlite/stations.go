package sqlite

import (
	"context"
	"fmt"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

const upsertStationSQL = `INSERT INTO t_weather_station
    (station_id, nom, department_code, poste_ouvert, type_poste, lon, lat, alt, poste_public)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (station_id) DO UPDATE
SET nom = excluded.nom,
    department_code = excluded.department_code,
    poste_ouvert = excluded.poste_ouvert,
    type_poste = excluded.type_poste,
    lon = excluded.lon,
    lat = excluded.lat,
    alt = excluded.alt,
    poste_public = excluded.poste_public`

// UpsertStations writes stations keyed by their Météo-France identifier.
func (s *Store) UpsertStations(ctx context.Context, stations []domain.WeatherStation) (int, error) {
	return upsertEach(ctx, s, TableWeatherStation, upsertStationSQL, stations, func(st domain.WeatherStation) []any {
		return []any{st.StationID, st.Name, st.DepartmentCode, st.Open, st.Type, st.Lon, st.Lat, st.Alt, st.Public}
	})
}

// OpenStations returns the stations flagged open, in insertion order. The
// order is what makes nearest-station ties deterministic across runs.
func (s *Store) OpenStations(ctx context.Context) ([]domain.WeatherStation, error) {
	return s.queryStations(ctx, `
SELECT id, station_id, nom, department_code, poste_ouvert, type_poste, lat, lon, alt, poste_public
FROM t_weather_station
WHERE poste_ouvert = 1
ORDER BY id`)
}

// ListStations returns every stored station, open or not, ordered by id.
func (s *Store) ListStations(ctx context.Context) ([]domain.WeatherStation, error) {
	return s.queryStations(ctx, `
SELECT id, station_id, nom, department_code, poste_ouvert, type_poste, lat, lon, alt, poste_public
FROM t_weather_station
ORDER BY id`)
}

func (s *Store) queryStations(ctx context.Context, query string) ([]domain.WeatherStation, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []domain.WeatherStation
	for rows.Next() {
		var st domain.WeatherStation
		if err := rows.Scan(&st.ID, &st.StationID, &st.Name, &st.DepartmentCode, &st.Open, &st.Type,
			&st.Lat, &st.Lon, &st.Alt, &st.Public); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
