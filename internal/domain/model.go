package domain

import "time"

// Node is a transit stop uniquely identified by its SNCF identifier.
type Node struct {
	ID     int64   `json:"-"`
	SNCFID string  `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// LocatedNode is a node whose commune lookup produced a department code.
type LocatedNode struct {
	Node
	DepartmentCode string
}

// Commune is the administrative metadata of the commune containing a point.
type Commune struct {
	Code           string   `json:"code"`
	Name           string   `json:"nom"`
	DepartmentCode string   `json:"codeDepartement"`
	RegionCode     string   `json:"codeRegion"`
	Population     int      `json:"population"`
	PostalCodes    []string `json:"codesPostaux"`
}

// InseeRecord is the outcome of one commune lookup for a node. ErrorMessage is
// set (and Commune left empty) when the lookup failed.
type InseeRecord struct {
	NodeID       int64
	Commune      Commune
	ErrorMessage string
}

// Found reports whether the lookup produced commune metadata.
func (r InseeRecord) Found() bool {
	return r.ErrorMessage == ""
}

// WeatherStation is a Météo-France observation station.
type WeatherStation struct {
	ID             int64   `json:"-"`
	StationID      string  `json:"id"`
	Name           string  `json:"nom"`
	DepartmentCode string  `json:"-"`
	Open           bool    `json:"posteOuvert"`
	Type           int     `json:"typePoste"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Alt            int     `json:"alt"`
	Public         bool    `json:"postePublic"`
}

// Match pairs a node with its closest in-department station.
type Match struct {
	NodeID     int64
	Station    WeatherStation
	DistanceKm float64
}

// MonthlyFields holds the three averaged weather fields for one calendar month.
// A nil field means no source sample existed for it.
type MonthlyFields struct {
	Precipitation *float64 `json:"precipitation"`
	AverageTemp   *float64 `json:"average_temp"`
	SunnyDays     *float64 `json:"sunny_days"`
}

// MonthlyAverage is the persisted climatology of one node for one month.
type MonthlyAverage struct {
	NodeID    int64 `json:"node_id"`
	StationID int64 `json:"weather_station_id"`
	Month     int   `json:"month"`
	MonthlyFields
}

// MuseumCount is the number of museums registered under one postal code.
type MuseumCount struct {
	PostalCode string
	Count      int
}

// MuseumCensus is one museum aggregation: counts per postal code, the groups
// that could not be stored, and how many groups the source reported.
type MuseumCensus struct {
	Counts      []MuseumCount
	SkippedNull int
	// NullCounts lists postal codes whose group came back without a count.
	NullCounts  []string
	TotalCount  int
}

// Failure describes one unit of work that was skipped, for post-hoc triage.
type Failure struct {
	Index      int       `json:"index"`
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// NewFailure stamps a failure with the current time.
func NewFailure(index int, identifier, reason string) Failure {
	return Failure{
		Index:      index,
		Identifier: identifier,
		Reason:     reason,
		At:         clock.Now().UTC(),
	}
}
