package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// JobValidate is the job name of the store integrity check.
const JobValidate = "validate"

// distanceTolerance absorbs float noise when comparing two haversine results.
const distanceTolerance = 1e-9

// ValidationStore is the read side needed to check the weather tables.
type ValidationStore interface {
	DuplicateNaturalKeys(ctx context.Context) (map[string]int, error)
	LocatedNodes(ctx context.Context) ([]domain.LocatedNode, error)
	ListStations(ctx context.Context) ([]domain.WeatherStation, error)
	OpenStations(ctx context.Context) ([]domain.WeatherStation, error)
	MonthlyAverages(ctx context.Context) ([]domain.MonthlyAverage, error)
}

// Phase tracks pass/fail for one validation phase.
type Phase struct {
	Name   string
	Errors []string
}

func (p *Phase) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase found no problem.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// ValidateStore checks that natural keys are unique, that every averaged
// node has exactly the twelve months, and that each node's station is an
// open station of its department with no closer one available.
func ValidateStore(ctx context.Context, store ValidationStore) ([]*Phase, error) {
	dups, err := store.DuplicateNaturalKeys(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := store.LocatedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load located nodes: %w", err)
	}
	all, err := store.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	open, err := store.OpenStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open stations: %w", err)
	}
	rows, err := store.MonthlyAverages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load monthly averages: %w", err)
	}

	byNode := groupByNode(rows)
	return []*Phase{
		validateNaturalKeys(dups),
		validateMonths(byNode),
		validateStations(byNode, nodes, all, open),
	}, nil
}

// PhaseSummary turns validation phases into a job summary, one unit per phase.
func PhaseSummary(phases []*Phase, metrics *observability.Metrics) *Summary {
	t := newTally(JobValidate, metrics)
	for i, p := range phases {
		if p.Passed() {
			t.ok()
			continue
		}
		t.errored(domain.NewFailure(i, p.Name, fmt.Sprintf("%d errors, first: %s", len(p.Errors), p.Errors[0])))
	}
	return t.summary
}

func groupByNode(rows []domain.MonthlyAverage) map[int64][]domain.MonthlyAverage {
	out := make(map[int64][]domain.MonthlyAverage)
	for _, r := range rows {
		out[r.NodeID] = append(out[r.NodeID], r)
	}
	return out
}

func sortedNodeIDs(byNode map[int64][]domain.MonthlyAverage) []int64 {
	ids := make([]int64, 0, len(byNode))
	for id := range byNode {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func validateNaturalKeys(dups map[string]int) *Phase {
	p := &Phase{Name: "Natural keys unique"}
	tables := make([]string, 0, len(dups))
	for table := range dups {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		p.errorf("%s: %d duplicated keys", table, dups[table])
	}
	return p
}

func validateMonths(byNode map[int64][]domain.MonthlyAverage) *Phase {
	p := &Phase{Name: "Twelve months per node"}
	for _, id := range sortedNodeIDs(byNode) {
		var seen [13]bool
		for _, r := range byNode[id] {
			if r.Month < 1 || r.Month > 12 {
				p.errorf("node %d: invalid month %d", id, r.Month)
				continue
			}
			seen[r.Month] = true
		}
		for m := 1; m <= 12; m++ {
			if !seen[m] {
				p.errorf("node %d: month %d missing", id, m)
			}
		}
	}
	return p
}

func validateStations(byNode map[int64][]domain.MonthlyAverage, nodes []domain.LocatedNode, all, open []domain.WeatherStation) *Phase {
	p := &Phase{Name: "Nearest open station in department"}

	located := make(map[int64]domain.LocatedNode, len(nodes))
	for _, n := range nodes {
		located[n.ID] = n
	}
	stations := make(map[int64]domain.WeatherStation, len(all))
	for _, st := range all {
		stations[st.ID] = st
	}
	best := domain.MatchNearest(domain.NewStationIndex(open), nodes).Matches

	for _, id := range sortedNodeIDs(byNode) {
		rows := byNode[id]
		stationID := rows[0].StationID
		for _, r := range rows[1:] {
			if r.StationID != stationID {
				p.errorf("node %d: months use different stations (%d, %d)", id, stationID, r.StationID)
				break
			}
		}

		node, ok := located[id]
		if !ok {
			p.errorf("node %d: has weather rows but no department", id)
			continue
		}
		st, ok := stations[stationID]
		if !ok {
			p.errorf("node %d: unknown station %d", id, stationID)
			continue
		}
		if st.DepartmentCode != node.DepartmentCode {
			p.errorf("node %d (%s): station %s is in department %s, node in %s",
				id, node.SNCFID, st.StationID, st.DepartmentCode, node.DepartmentCode)
			continue
		}
		if !st.Open {
			p.errorf("node %d (%s): station %s is closed", id, node.SNCFID, st.StationID)
			continue
		}

		want, ok := best[id]
		if !ok {
			continue
		}
		got := domain.Distance(node.Lat, node.Lon, st.Lat, st.Lon)
		if math.Abs(got-want.DistanceKm) > distanceTolerance {
			p.errorf("node %d (%s): station %s at %.3f km, but %s is at %.3f km",
				id, node.SNCFID, st.StationID, got, want.Station.StationID, want.DistanceKm)
		}
	}
	return p
}
