package domain

import (
	"context"
	"log/slog"
)

// EnrichNode looks up the commune of a node. Lookup failures do not abort the
// caller: the returned record carries the error message instead of metadata.
func EnrichNode(ctx context.Context, node Node, locator CommuneLocator, logger *slog.Logger) InseeRecord {
	rec := InseeRecord{NodeID: node.ID}

	commune, err := locator.LocateCommune(ctx, node.Lat, node.Lon)
	if err != nil {
		logger.Warn("commune lookup failed",
			"node_id", node.ID,
			"sncf_id", node.SNCFID,
			"name", node.Name,
			"error", err,
		)
		rec.ErrorMessage = err.Error()
		return rec
	}
	if commune.Code == "" && commune.DepartmentCode == "" {
		rec.ErrorMessage = ErrCommuneNotFound.Error()
		return rec
	}

	rec.Commune = commune
	return rec
}
