package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// inseeCommitEvery is how many lookups are buffered between commits and
// progress lines.
const inseeCommitEvery = 50

// InseeStore reads nodes and persists their commune lookups.
type InseeStore interface {
	ListNodes(ctx context.Context) ([]domain.Node, error)
	ListNodesWithoutCommune(ctx context.Context) ([]domain.Node, error)
	UpsertInseeRecords(ctx context.Context, records []domain.InseeRecord) (int, error)
}

// Enricher attaches commune metadata to transit nodes.
type Enricher struct {
	locator domain.CommuneLocator
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewEnricher creates an Enricher backed by locator.
func NewEnricher(locator domain.CommuneLocator, metrics *observability.Metrics, logger *slog.Logger) *Enricher {
	return &Enricher{locator: locator, metrics: metrics, logger: logger}
}

// EnrichStore looks up every stored node (or, with onlyMissing, every node
// without a successful lookup) and writes one t_insee row per node. Failed
// lookups are stored with their error message. Rows are committed in groups
// of fifty so an interrupted run keeps its progress.
func (e *Enricher) EnrichStore(ctx context.Context, store InseeStore, onlyMissing bool) (*Summary, error) {
	t := newTally(JobEnrichInsee, e.metrics)

	list := store.ListNodes
	if onlyMissing {
		list = store.ListNodesWithoutCommune
	}
	nodes, err := list(ctx)
	if err != nil {
		return t.summary, fmt.Errorf("load nodes: %w", err)
	}
	e.logger.Info("enriching nodes", "nodes", len(nodes), "only_missing", onlyMissing)

	pending := make([]domain.InseeRecord, 0, inseeCommitEvery)
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if _, err := store.UpsertInseeRecords(ctx, pending); err != nil {
			return fmt.Errorf("store commune lookups: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	err = e.enrich(ctx, nodes, t, func(_ domain.Node, rec domain.InseeRecord) error {
		pending = append(pending, rec)
		if len(pending) >= inseeCommitEvery {
			return flush(ctx)
		}
		return nil
	})
	// Keep what was already looked up even when the run was interrupted.
	if ferr := flush(context.WithoutCancel(ctx)); err == nil {
		err = ferr
	}
	return t.summary, err
}

// EnrichFile reads nodes in the ingest-nodes JSON format from in and writes
// them, enriched with commune metadata, as a JSON array to out.
func (e *Enricher) EnrichFile(ctx context.Context, in io.Reader, out io.Writer) (*Summary, error) {
	t := newTally(JobEnrichInsee, e.metrics)

	parsed, err := ParseNodes(in)
	if err != nil {
		return t.summary, err
	}
	for _, f := range parsed.Failures {
		t.skipped(f)
	}

	enriched := make([]enrichedNode, 0, len(parsed.Nodes))
	err = e.enrich(ctx, parsed.Nodes, t, func(n domain.Node, rec domain.InseeRecord) error {
		enriched = append(enriched, newEnrichedNode(n, rec))
		return nil
	})
	if err != nil {
		return t.summary, err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(enriched); err != nil {
		return t.summary, fmt.Errorf("write enriched nodes: %w", err)
	}
	return t.summary, nil
}

// enrich runs one lookup per node and hands each record to sink. It stops
// without recording the in-flight node when ctx is cancelled.
func (e *Enricher) enrich(ctx context.Context, nodes []domain.Node, t *tally, sink func(domain.Node, domain.InseeRecord) error) error {
	for i, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := domain.EnrichNode(ctx, node, e.locator, e.logger)
		if err := ctx.Err(); err != nil {
			return err
		}

		if rec.Found() {
			t.ok()
		} else {
			t.errored(domain.NewFailure(i, node.SNCFID, rec.ErrorMessage))
		}
		if err := sink(node, rec); err != nil {
			return err
		}

		if (i+1)%inseeCommitEvery == 0 {
			e.logger.Info("enrichment progress",
				"done", i+1,
				"total", len(nodes),
				"enriched", t.summary.Succeeded,
				"errors", t.summary.Errored,
			)
		}
	}
	return nil
}

// enrichedNode is one element of the file-mode output.
type enrichedNode struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	InseeCode      string   `json:"insee_code,omitempty"`
	CityName       string   `json:"city_name,omitempty"`
	DepartmentCode string   `json:"department_code,omitempty"`
	RegionCode     string   `json:"region_code,omitempty"`
	Population     int      `json:"population,omitempty"`
	PostalCodes    []string `json:"postal_codes,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

func newEnrichedNode(n domain.Node, rec domain.InseeRecord) enrichedNode {
	return enrichedNode{
		ID:             n.SNCFID,
		Name:           n.Name,
		Lat:            n.Lat,
		Lon:            n.Lon,
		InseeCode:      rec.Commune.Code,
		CityName:       rec.Commune.Name,
		DepartmentCode: rec.Commune.DepartmentCode,
		RegionCode:     rec.Commune.RegionCode,
		Population:     rec.Commune.Population,
		PostalCodes:    rec.Commune.PostalCodes,
		ErrorMessage:   rec.ErrorMessage,
	}
}
