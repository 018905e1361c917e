package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
	"github.com/couchcryptid/transit-weather-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodesFile = `[
  ["stop_area:SNCF:87751008", {"id": "87751008", "name": "Marseille Saint-Charles", "lat": "43.3026", "lon": "5.3806"}],
  ["stop_area:SNCF:87686006", {"id": "87686006", "name": "Paris Gare de Lyon", "lat": 48.8443, "lon": 2.3744}],
  ["stop_area:SNCF:empty", {}],
  ["stop_area:SNCF:null", null],
  ["lonely"],
  ["stop_area:SNCF:nolat", {"id": "1", "name": "No lat", "lon": 2.0}],
  ["stop_area:SNCF:badlon", {"id": "2", "name": "Bad lon", "lat": 48.0, "lon": "east"}],
  ["stop_area:SNCF:numeric", {"id": 87722025, "name": "Lyon Part-Dieu", "lat": 45.7606, "lon": 4.8594}]
]`

func TestParseNodes(t *testing.T) {
	parsed, err := pipeline.ParseNodes(strings.NewReader(nodesFile))
	require.NoError(t, err)

	want := []domain.Node{
		{SNCFID: "87751008", Name: "Marseille Saint-Charles", Lat: 43.3026, Lon: 5.3806},
		{SNCFID: "87686006", Name: "Paris Gare de Lyon", Lat: 48.8443, Lon: 2.3744},
		{SNCFID: "87722025", Name: "Lyon Part-Dieu", Lat: 45.7606, Lon: 4.8594},
	}
	if diff := cmp.Diff(want, parsed.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 8, parsed.Entries)

	got := make(map[int]string, len(parsed.Failures))
	for _, f := range parsed.Failures {
		got[f.Index] = f.Reason
	}
	want2 := map[int]string{
		2: "empty entry",
		3: "empty entry",
		4: "empty entry",
		5: "missing lat",
		6: `invalid lon "east"`,
	}
	if diff := cmp.Diff(want2, got); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "stop_area:SNCF:nolat", parsed.Failures[3].Identifier)
}

func TestParseNodes_NotAnArray(t *testing.T) {
	_, err := pipeline.ParseNodes(strings.NewReader(`{"id": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode nodes file")
}

func TestIngestNodes(t *testing.T) {
	store := &fakeStore{}
	metrics := observability.NewMetricsForTesting()

	summary, err := pipeline.IngestNodes(context.Background(), strings.NewReader(nodesFile), store, metrics, discardLogger())
	require.NoError(t, err)

	assert.Len(t, store.storedNodes, 3)
	assert.Equal(t, 8, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 5, summary.Skipped)
	assert.Zero(t, summary.Errored)
	assert.InDelta(t, 5, testutil.ToFloat64(metrics.Items.WithLabelValues(pipeline.JobIngestNodes, "skipped")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.Items.WithLabelValues(pipeline.JobIngestNodes, "ok")), 0)
}

func TestIngestNodes_StoreError(t *testing.T) {
	store := &fakeStore{upsertErr: errBoom}
	_, err := pipeline.IngestNodes(context.Background(), strings.NewReader(nodesFile), store, observability.NewMetricsForTesting(), discardLogger())
	require.ErrorIs(t, err, errBoom)
}

func TestParseNodes_FailuresAreTimestamped(t *testing.T) {
	parsed, err := pipeline.ParseNodes(strings.NewReader(`[["k", null]]`))
	require.NoError(t, err)
	require.Len(t, parsed.Failures, 1)
	assert.False(t, parsed.Failures[0].At.IsZero())
	assert.Empty(t, cmp.Diff(domain.Failure{Index: 0, Identifier: "k", Reason: "empty entry"}, parsed.Failures[0],
		cmpopts.IgnoreFields(domain.Failure{}, "At")))
}
