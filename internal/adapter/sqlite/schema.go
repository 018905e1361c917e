package sqlite

import (
	"context"
	"fmt"
)

// Table names.
const (
	TableNodes          = "t_nodes"
	TableInsee          = "t_insee"
	TableWeatherStation = "t_weather_station"
	TableMuseum         = "t_museum"
	TableWeatherData    = "t_weather_data"
)

func knownTable(name string) bool {
	switch name {
	case TableNodes, TableInsee, TableWeatherStation, TableMuseum, TableWeatherData:
		return true
	}
	return false
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS t_nodes (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		sncf_id TEXT UNIQUE NOT NULL,
		name    TEXT NOT NULL,
		lat     REAL NOT NULL,
		lon     REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_coords ON t_nodes(lat, lon)`,

	`CREATE TABLE IF NOT EXISTS t_insee (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id         INTEGER NOT NULL UNIQUE REFERENCES t_nodes(id),
		insee_code      TEXT,
		city_name       TEXT,
		department_code TEXT,
		region_code     TEXT,
		population      INTEGER,
		postal_codes    TEXT,
		error_message   TEXT,
		created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_insee_department ON t_insee(department_code)`,

	`CREATE TABLE IF NOT EXISTS t_weather_station (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id      TEXT UNIQUE NOT NULL,
		nom             TEXT NOT NULL,
		department_code TEXT NOT NULL,
		poste_ouvert    BOOLEAN NOT NULL,
		type_poste      INTEGER NOT NULL,
		lon             REAL NOT NULL,
		lat             REAL NOT NULL,
		alt             INTEGER NOT NULL,
		poste_public    BOOLEAN NOT NULL,
		created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_station_coords ON t_weather_station(lat, lon)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_station_dept ON t_weather_station(department_code)`,

	`CREATE TABLE IF NOT EXISTS t_museum (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		postal_code  TEXT UNIQUE NOT NULL,
		museum_count INTEGER NOT NULL,
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS t_weather_data (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id            INTEGER NOT NULL REFERENCES t_nodes(id),
		weather_station_id INTEGER NOT NULL REFERENCES t_weather_station(id),
		month              INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		precipitation      REAL,
		average_temp       REAL,
		sunny_days         REAL,
		created_at         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(node_id, month)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_data_node ON t_weather_data(node_id)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_data_station ON t_weather_data(weather_station_id)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_data_month ON t_weather_data(month)`,
}

// Migrate creates every table and index that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
