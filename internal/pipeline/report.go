package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

// Report is the JSON failure report written at the end of a run.
type Report struct {
	RunID       string           `json:"run_id"`
	Job         string           `json:"job"`
	GeneratedAt time.Time        `json:"generated_at"`
	Processed   int              `json:"processed"`
	Succeeded   int              `json:"succeeded"`
	Errored     int              `json:"errored"`
	Skipped     int              `json:"skipped"`
	Failures    []domain.Failure `json:"failures"`
}

// NewReport builds a report from a finished job summary.
func NewReport(runID string, s *Summary, generatedAt time.Time) Report {
	failures := s.Failures
	if failures == nil {
		failures = []domain.Failure{}
	}
	return Report{
		RunID:       runID,
		Job:         s.Job,
		GeneratedAt: generatedAt.UTC(),
		Processed:   s.Processed,
		Succeeded:   s.Succeeded,
		Errored:     s.Errored,
		Skipped:     s.Skipped,
		Failures:    failures,
	}
}

// WriteReport writes the report as indented JSON to path.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode failure report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write failure report: %w", err)
	}
	return nil
}

// SiblingPath derives "<dir>/<stem><suffix>.json" from path, e.g.
// SiblingPath("nodes.json", "_enriched") is "nodes_enriched.json".
func SiblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ".json"
}
