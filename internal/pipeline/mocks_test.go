package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- store ---

type fakeStore struct {
	nodes          []domain.Node
	missing        []domain.Node
	located        []domain.LocatedNode
	stations       []domain.WeatherStation
	departments    []string
	storedNodes    []domain.Node
	insee          [][]domain.InseeRecord
	storedStations []domain.WeatherStation
	museums        []domain.MuseumCount
	monthly        [][]domain.MonthlyAverage
	closed         []domain.WeatherStation
	dups           map[string]int
	upsertErr      error
}

func (f *fakeStore) UpsertNodes(_ context.Context, nodes []domain.Node) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.storedNodes = append(f.storedNodes, nodes...)
	return len(nodes), nil
}

func (f *fakeStore) ListNodes(context.Context) ([]domain.Node, error) { return f.nodes, nil }

func (f *fakeStore) ListNodesWithoutCommune(context.Context) ([]domain.Node, error) {
	return f.missing, nil
}

func (f *fakeStore) UpsertInseeRecords(_ context.Context, records []domain.InseeRecord) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.insee = append(f.insee, append([]domain.InseeRecord(nil), records...))
	return len(records), nil
}

func (f *fakeStore) DepartmentCodes(context.Context) ([]string, error) { return f.departments, nil }

func (f *fakeStore) UpsertStations(_ context.Context, stations []domain.WeatherStation) (int, error) {
	f.storedStations = append(f.storedStations, stations...)
	return len(stations), nil
}

func (f *fakeStore) UpsertMuseums(_ context.Context, counts []domain.MuseumCount) (int, error) {
	f.museums = append(f.museums, counts...)
	return len(counts), nil
}

func (f *fakeStore) OpenStations(context.Context) ([]domain.WeatherStation, error) {
	return f.stations, nil
}

func (f *fakeStore) LocatedNodes(context.Context) ([]domain.LocatedNode, error) {
	return f.located, nil
}

func (f *fakeStore) UpsertMonthlyAverages(_ context.Context, rows []domain.MonthlyAverage) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.monthly = append(f.monthly, append([]domain.MonthlyAverage(nil), rows...))
	return len(rows), nil
}

func (f *fakeStore) allMonthly() []domain.MonthlyAverage {
	var out []domain.MonthlyAverage
	for _, b := range f.monthly {
		out = append(out, b...)
	}
	return out
}

// --- locator ---

type mockLocator struct {
	communes map[float64]domain.Commune // keyed by latitude
	calls    int
}

func (m *mockLocator) LocateCommune(_ context.Context, lat, _ float64) (domain.Commune, error) {
	m.calls++
	c, ok := m.communes[lat]
	if !ok {
		return domain.Commune{}, domain.ErrCommuneNotFound
	}
	return c, nil
}

// --- weather fetcher ---

type fetchKey struct {
	station string
	year    int
}

type countingFetcher struct {
	data  map[fetchKey]string
	errs  map[fetchKey]error
	calls map[fetchKey]int
	// cancel is invoked when cancelOn is requested, to simulate a signal.
	cancel   context.CancelFunc
	cancelOn string
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		data:  map[fetchKey]string{},
		errs:  map[fetchKey]error{},
		calls: map[fetchKey]int{},
	}
}

func (f *countingFetcher) FetchYear(ctx context.Context, stationID string, year int) (string, error) {
	k := fetchKey{stationID, year}
	f.calls[k]++
	if f.cancel != nil && stationID == f.cancelOn {
		f.cancel()
		return "", ctx.Err()
	}
	if err, ok := f.errs[k]; ok {
		return "", err
	}
	if d, ok := f.data[k]; ok {
		return d, nil
	}
	return "", fmt.Errorf("no fixture for %s/%d", stationID, year)
}

func (f *countingFetcher) totalCalls() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// --- publisher ---

type recordingPublisher struct {
	batches [][]domain.MonthlyAverage
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, rows []domain.MonthlyAverage) error {
	p.batches = append(p.batches, append([]domain.MonthlyAverage(nil), rows...))
	return p.err
}

var errBoom = errors.New("boom")

func (f *fakeStore) DuplicateNaturalKeys(context.Context) (map[string]int, error) {
	return f.dups, nil
}

func (f *fakeStore) ListStations(context.Context) ([]domain.WeatherStation, error) {
	return append(append([]domain.WeatherStation(nil), f.stations...), f.closed...), nil
}

func (f *fakeStore) MonthlyAverages(context.Context) ([]domain.MonthlyAverage, error) {
	return f.allMonthly(), nil
}
