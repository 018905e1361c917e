package domain

import "github.com/umahmood/haversine"

// Distance returns the great-circle distance in kilometres between two points
// given in decimal degrees, using the haversine formula (Earth radius 6371 km).
// Invalid input is not rejected; NaN propagates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lon1},
		haversine.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}
