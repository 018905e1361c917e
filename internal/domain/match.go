package domain

import "math"

// StationIndex buckets weather stations by department code.
type StationIndex map[string][]WeatherStation

// NewStationIndex groups stations by department. Stations without a department
// code are left out and therefore unreachable by lookup. Within a bucket,
// stations keep their input order.
func NewStationIndex(stations []WeatherStation) StationIndex {
	idx := make(StationIndex)
	for _, st := range stations {
		if st.DepartmentCode == "" {
			continue
		}
		idx[st.DepartmentCode] = append(idx[st.DepartmentCode], st)
	}
	return idx
}

// Lookup returns the stations of a department, or nil.
func (idx StationIndex) Lookup(departmentCode string) []WeatherStation {
	return idx[departmentCode]
}

// Size returns the number of indexed stations.
func (idx StationIndex) Size() int {
	n := 0
	for _, bucket := range idx {
		n += len(bucket)
	}
	return n
}

// MatchResult maps node IDs to their closest station. Unmatched counts nodes
// whose department had no station; they are absent from Matches.
type MatchResult struct {
	Matches   map[int64]Match
	Unmatched int
}

// MatchNearest selects, for every node, the station of its department bucket
// with the smallest haversine distance. Ties keep the first station in bucket
// order.
func MatchNearest(idx StationIndex, nodes []LocatedNode) MatchResult {
	res := MatchResult{Matches: make(map[int64]Match, len(nodes))}

	for _, n := range nodes {
		m, ok := nearest(idx.Lookup(n.DepartmentCode), n)
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matches[n.ID] = m
	}
	return res
}

func nearest(bucket []WeatherStation, n LocatedNode) (Match, bool) {
	best := Match{NodeID: n.ID, DistanceKm: math.Inf(1)}
	found := false

	for _, st := range bucket {
		d := Distance(n.Lat, n.Lon, st.Lat, st.Lon)
		if d < best.DistanceKm {
			best.Station = st
			best.DistanceKm = d
			found = true
		}
	}
	return best, found
}
