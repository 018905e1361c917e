package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/couchcryptid/transit-weather-etl/internal/observability"
)

// NodeStore persists transit nodes.
type NodeStore interface {
	UpsertNodes(ctx context.Context, nodes []domain.Node) (int, error)
}

// ParsedNodes is the result of reading a nodes file.
type ParsedNodes struct {
	Nodes    []domain.Node
	Entries  int
	Failures []domain.Failure
}

// ParseNodes reads a JSON array of [key, {id, name, lat, lon}] pairs.
// Coordinates may be JSON numbers or numeric strings. Empty entries and
// entries with a missing id or unusable coordinates are skipped and reported.
func ParseNodes(r io.Reader) (ParsedNodes, error) {
	var entries []json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return ParsedNodes{}, fmt.Errorf("decode nodes file: %w", err)
	}

	out := ParsedNodes{Entries: len(entries), Nodes: make([]domain.Node, 0, len(entries))}
	for i, raw := range entries {
		node, err := parseNodeEntry(raw)
		if err != nil {
			out.Failures = append(out.Failures, domain.NewFailure(i, entryKey(raw), err.Error()))
			continue
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out, nil
}

var errEmptyEntry = errors.New("empty entry")

func parseNodeEntry(raw json.RawMessage) (domain.Node, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return domain.Node{}, fmt.Errorf("entry is not a [key, node] pair: %w", err)
	}
	if len(pair) < 2 || isEmptyJSON(pair[1]) {
		return domain.Node{}, errEmptyEntry
	}

	var n nodeJSON
	if err := json.Unmarshal(pair[1], &n); err != nil {
		return domain.Node{}, fmt.Errorf("decode node: %w", err)
	}
	if n.ID == "" {
		return domain.Node{}, errors.New("missing id")
	}
	lat, err := n.Lat.float("lat")
	if err != nil {
		return domain.Node{}, err
	}
	lon, err := n.Lon.float("lon")
	if err != nil {
		return domain.Node{}, err
	}
	return domain.Node{SNCFID: string(n.ID), Name: n.Name, Lat: lat, Lon: lon}, nil
}

func isEmptyJSON(b json.RawMessage) bool {
	switch string(bytes.TrimSpace(b)) {
	case "", "null", "{}", `""`, "[]":
		return true
	}
	return false
}

// entryKey returns the first element of a pair, for failure reports.
func entryKey(raw json.RawMessage) string {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
		return ""
	}
	var key scalar
	if err := json.Unmarshal(pair[0], &key); err != nil {
		return ""
	}
	return string(key)
}

type nodeJSON struct {
	ID   scalar `json:"id"`
	Name string `json:"name"`
	Lat  scalar `json:"lat"`
	Lon  scalar `json:"lon"`
}

// scalar accepts a JSON string or number and keeps its text.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = scalar(num.String())
	return nil
}

func (s scalar) float(name string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %q", name, string(s))
	}
	return f, nil
}

// IngestNodes parses a nodes file and upserts every usable node by SNCF id.
func IngestNodes(ctx context.Context, r io.Reader, store NodeStore, metrics *observability.Metrics, logger *slog.Logger) (*Summary, error) {
	t := newTally(JobIngestNodes, metrics)

	parsed, err := ParseNodes(r)
	if err != nil {
		return t.summary, err
	}
	for _, f := range parsed.Failures {
		logger.Debug("node entry skipped", "index", f.Index, "key", f.Identifier, "reason", f.Reason)
		t.skipped(f)
	}

	n, err := store.UpsertNodes(ctx, parsed.Nodes)
	if err != nil {
		return t.summary, fmt.Errorf("store nodes: %w", err)
	}
	for range n {
		t.ok()
	}

	logger.Info("nodes ingested",
		"entries", parsed.Entries,
		"inserted", n,
		"skipped", len(parsed.Failures),
	)
	return t.summary, nil
}
