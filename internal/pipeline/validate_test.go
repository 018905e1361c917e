package pipeline_test

import (
	"context"
	"testing"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twelveMonths(nodeID, stationID int64) []domain.MonthlyAverage {
	rows := make([]domain.MonthlyAverage, 12)
	for i := range rows {
		rows[i] = domain.MonthlyAverage{NodeID: nodeID, StationID: stationID, Month: i + 1}
	}
	return rows
}

func phaseByName(t *testing.T, phases []*pipeline.Phase, name string) *pipeline.Phase {
	t.Helper()
	for _, p := range phases {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no phase %q", name)
	return nil
}

func TestValidateStore_CleanRun(t *testing.T) {
	fetcher := newCountingFetcher()
	stationFixtures(fetcher, s1.StationID)
	stationFixtures(fetcher, s2.StationID)
	store := &fakeStore{
		stations: []domain.WeatherStation{s1, s2, s3},
		located:  []domain.LocatedNode{marseille, blancarde, ajaccio},
	}
	_, err := newWeatherPipeline(fetcher, store, nil, observability.NewMetricsForTesting()).Run(context.Background())
	require.NoError(t, err)

	phases, err := pipeline.ValidateStore(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, phases, 3)
	for _, p := range phases {
		assert.True(t, p.Passed(), "%s: %v", p.Name, p.Errors)
	}

	summary := pipeline.PhaseSummary(phases, observability.NewMetricsForTesting())
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Errored)
}

func TestValidateStore_DetectsProblems(t *testing.T) {
	closed := domain.WeatherStation{ID: 9, StationID: "13000009", DepartmentCode: "13", Open: false, Lat: 43.30, Lon: 5.38}
	// marseille uses s2 although s1 is nearer; blancarde uses a station of
	// another department; node 99 has no department and lacks December.
	rows := twelveMonths(marseille.ID, s2.ID)
	rows = append(rows, twelveMonths(blancarde.ID, s3.ID)...)
	rows = append(rows, twelveMonths(99, closed.ID)[:11]...)

	store := &fakeStore{
		stations: []domain.WeatherStation{s1, s2, s3},
		closed:   []domain.WeatherStation{closed},
		located:  []domain.LocatedNode{marseille, blancarde},
		monthly:  [][]domain.MonthlyAverage{rows},
		dups:     map[string]int{"t_insee": 2},
	}

	phases, err := pipeline.ValidateStore(context.Background(), store)
	require.NoError(t, err)

	keys := phaseByName(t, phases, "Natural keys unique")
	assert.Equal(t, []string{"t_insee: 2 duplicated keys"}, keys.Errors)

	months := phaseByName(t, phases, "Twelve months per node")
	assert.Equal(t, []string{"node 99: month 12 missing"}, months.Errors)

	st := phaseByName(t, phases, "Nearest open station in department")
	require.Len(t, st.Errors, 3)
	assert.Contains(t, st.Errors[0], "node 10 (87751008): station 13054001 at")
	assert.Contains(t, st.Errors[0], "but 13055029 is at")
	assert.Contains(t, st.Errors[1], "station 84031001 is in department 84, node in 13")
	assert.Equal(t, "node 99: has weather rows but no department", st.Errors[2])

	summary := pipeline.PhaseSummary(phases, observability.NewMetricsForTesting())
	assert.Equal(t, 3, summary.Errored)
	assert.Equal(t, "Natural keys unique", summary.Failures[0].Identifier)
}
