package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nodes.db"), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(v float64) *float64 { return &v }

func count(t *testing.T, s *Store, table string) int {
	t.Helper()
	n, err := s.Count(context.Background(), table)
	require.NoError(t, err)
	return n
}

var testNodes = []domain.Node{
	{SNCFID: "87751008", Name: "Marseille Saint-Charles", Lat: 43.3026, Lon: 5.3806},
	{SNCFID: "87686006", Name: "Paris Gare de Lyon", Lat: 48.8443, Lon: 2.3744},
	{SNCFID: "87722025", Name: "Lyon Part-Dieu", Lat: 45.7606, Lon: 4.8594},
}

func seedNodes(t *testing.T, s *Store) []domain.Node {
	t.Helper()
	_, err := s.UpsertNodes(context.Background(), testNodes)
	require.NoError(t, err)
	nodes, err := s.ListNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, len(testNodes))
	return nodes
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.db")
	metrics := observability.NewMetricsForTesting()

	s, err := Open(context.Background(), path, metrics)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	s, err = OpenExisting(context.Background(), path, metrics)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpenExisting_MissingFile(t *testing.T) {
	_, err := OpenExisting(context.Background(), filepath.Join(t.TempDir(), "absent.db"), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, ErrDatabaseNotFound)
}

func TestCount_UnknownTable(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Count(context.Background(), "sqlite_master; DROP TABLE t_nodes")
	require.Error(t, err)
}

func TestUpsertNodes_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertNodes(ctx, testNodes)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	first, err := s.ListNodes(ctx)
	require.NoError(t, err)

	_, err = s.UpsertNodes(ctx, testNodes)
	require.NoError(t, err)
	second, err := s.ListNodes(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, count(t, s, TableNodes))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-run changed nodes (-first +second):\n%s", diff)
	}
	assert.InDelta(t, 6, testutil.ToFloat64(s.metrics.RowsUpserted.WithLabelValues(TableNodes)), 0)
}

func TestUpsertNodes_UpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := seedNodes(t, s)

	moved := testNodes[0]
	moved.Name = "Marseille St-Charles"
	moved.Lat = 43.3030
	_, err := s.UpsertNodes(ctx, []domain.Node{moved})
	require.NoError(t, err)

	after, err := s.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, nodes[0].ID, after[0].ID, "row id must survive an update")
	assert.Equal(t, "Marseille St-Charles", after[0].Name)
	assert.Equal(t, 43.3030, after[0].Lat)
}

func TestUpsertNodes_Empty(t *testing.T) {
	s := openTestStore(t)
	n, err := s.UpsertNodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsee_LocatedNodesAndDepartments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := seedNodes(t, s)

	records := []domain.InseeRecord{
		{NodeID: nodes[0].ID, Commune: domain.Commune{Code: "13055", Name: "Marseille", DepartmentCode: "13", RegionCode: "93", Population: 873076, PostalCodes: []string{"13001"}}},
		{NodeID: nodes[1].ID, Commune: domain.Commune{Code: "75056", Name: "Paris", DepartmentCode: "75", RegionCode: "11"}},
		{NodeID: nodes[2].ID, ErrorMessage: "HTTP 502: Bad Gateway"},
	}
	n, err := s.UpsertInseeRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	located, err := s.LocatedNodes(ctx)
	require.NoError(t, err)
	require.Len(t, located, 2)
	assert.Equal(t, "87751008", located[0].SNCFID)
	assert.Equal(t, "13", located[0].DepartmentCode)
	assert.Equal(t, "75", located[1].DepartmentCode)

	depts, err := s.DepartmentCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"13", "75"}, depts)

	missing, err := s.ListNodesWithoutCommune(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "87722025", missing[0].SNCFID)
}

func TestInsee_ReRunReplacesNodeRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := seedNodes(t, s)

	_, err := s.UpsertInseeRecords(ctx, []domain.InseeRecord{{NodeID: nodes[2].ID, ErrorMessage: "timeout"}})
	require.NoError(t, err)
	_, err = s.UpsertInseeRecords(ctx, []domain.InseeRecord{{NodeID: nodes[2].ID, Commune: domain.Commune{Code: "69123", DepartmentCode: "69"}}})
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, s, TableInsee))
	located, err := s.LocatedNodes(ctx)
	require.NoError(t, err)
	require.Len(t, located, 1)
	assert.Equal(t, "69", located[0].DepartmentCode)
}

func TestStations_OpenOnlyAndIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stations := []domain.WeatherStation{
		{StationID: "13054001", Name: "MARIGNANE", DepartmentCode: "13", Open: true, Lat: 43.44, Lon: 5.22, Alt: 9, Public: true},
		{StationID: "13055001", Name: "MARSEILLE", DepartmentCode: "13", Open: false, Lat: 43.30, Lon: 5.40, Alt: 75},
		{StationID: "75114001", Name: "PARIS-MONTSOURIS", DepartmentCode: "75", Open: true, Type: 0, Lat: 48.82, Lon: 2.34, Alt: 75, Public: true},
	}
	_, err := s.UpsertStations(ctx, stations)
	require.NoError(t, err)
	_, err = s.UpsertStations(ctx, stations)
	require.NoError(t, err)
	assert.Equal(t, 3, count(t, s, TableWeatherStation))

	open, err := s.OpenStations(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "13054001", open[0].StationID)
	assert.Equal(t, "75114001", open[1].StationID)
	assert.NotZero(t, open[0].ID)
	assert.True(t, open[0].Open)
	assert.True(t, open[0].Public)
	assert.Equal(t, "13", open[0].DepartmentCode)
}

func TestMuseums_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMuseums(ctx, []domain.MuseumCount{{PostalCode: "75001", Count: 12}, {PostalCode: "13002", Count: 3}})
	require.NoError(t, err)
	_, err = s.UpsertMuseums(ctx, []domain.MuseumCount{{PostalCode: "75001", Count: 13}})
	require.NoError(t, err)

	assert.Equal(t, 2, count(t, s, TableMuseum))
}

func TestMonthlyAverages_ReplaceAndNulls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes := seedNodes(t, s)

	_, err := s.UpsertStations(ctx, []domain.WeatherStation{
		{StationID: "13054001", Name: "MARIGNANE", DepartmentCode: "13", Open: true, Lat: 43.44, Lon: 5.22},
	})
	require.NoError(t, err)
	stations, err := s.OpenStations(ctx)
	require.NoError(t, err)
	stationID := stations[0].ID

	rows := make([]domain.MonthlyAverage, 0, 12)
	for m := 1; m <= 12; m++ {
		rows = append(rows, domain.MonthlyAverage{NodeID: nodes[0].ID, StationID: stationID, Month: m})
	}
	rows[0].MonthlyFields = domain.MonthlyFields{Precipitation: ptr(7.75), AverageTemp: ptr(8.6), SunnyDays: ptr(3)}

	_, err = s.UpsertMonthlyAverages(ctx, rows)
	require.NoError(t, err)

	rows[0].Precipitation = ptr(9.0)
	rows[0].SunnyDays = nil
	_, err = s.UpsertMonthlyAverages(ctx, rows)
	require.NoError(t, err)

	assert.Equal(t, 12, count(t, s, TableWeatherData))

	got, err := s.MonthlyAverages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 12)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("monthly rows mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got[5].Precipitation, "NULL must read back as nil, not 0")
}

func TestMonthlyAverages_RejectsUnknownNode(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpsertMonthlyAverages(context.Background(), []domain.MonthlyAverage{{NodeID: 999, StationID: 999, Month: 1}})
	require.Error(t, err, "foreign keys are enforced")
	assert.Equal(t, 0, count(t, s, TableWeatherData))
}

func TestListStations_IncludesClosed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertStations(ctx, []domain.WeatherStation{
		{StationID: "13054001", Name: "MARIGNANE", DepartmentCode: "13", Open: true},
		{StationID: "13055001", Name: "MARSEILLE", DepartmentCode: "13", Open: false},
	})
	require.NoError(t, err)

	all, err := s.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].Open)
}

func TestDuplicateNaturalKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedNodes(t, s)

	dups, err := s.DuplicateNaturalKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, dups)

	// Simulate a legacy table created without the UNIQUE constraint.
	_, err = s.db.ExecContext(ctx, `DROP TABLE t_museum`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE TABLE t_museum (id INTEGER PRIMARY KEY, postal_code TEXT, museum_count INTEGER)`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO t_museum (postal_code, museum_count) VALUES ('75001', 1), ('75001', 2), ('13001', 1)`)
	require.NoError(t, err)

	dups, err = s.DuplicateNaturalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{TableMuseum: 1}, dups)
}
