package domain

import (
	"context"
	"errors"
)

// ErrCommuneNotFound is returned when no commune contains the given point.
var ErrCommuneNotFound = errors.New("API returned empty result")

// CommuneLocator resolves coordinates to the commune that contains them.
type CommuneLocator interface {
	LocateCommune(ctx context.Context, lat, lon float64) (Commune, error)
}
