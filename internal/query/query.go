// Package query builds the declarative pipeline descriptors understood
// by the remote feature-query service, and carries a reference
// evaluator with the same semantics for offline use and tests.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

// Stage operations. The backend evaluates stages in order; filters
// apply to flat collections, sort and aggregate_line apply per group
// once a group_by stage has run.
const (
	OpFilterDate    = "filter_date"
	OpFilterEq      = "filter_eq"
	OpSort          = "sort"
	OpGroupBy       = "group_by"
	OpAggregateLine = "aggregate_line"
)

// Stage is one step of a pipeline. Only the fields relevant to the
// operation are populated; the rest are omitted on the wire.
type Stage struct {
	Op        string    `json:"op"`
	Field     string    `json:"field,omitempty"`
	Value     any       `json:"value,omitempty"`
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
	Ascending bool      `json:"ascending,omitzero"`
	// Stable asks the backend to preserve input order for equal sort
	// keys, matching the reference evaluator. Tie-break order is
	// otherwise backend-defined.
	Stable bool `json:"stable,omitzero"`
}

// Pipeline is a filter-and-transform descriptor over a named dataset,
// evaluated server-side.
type Pipeline struct {
	Dataset string  `json:"dataset"`
	Stages  []Stage `json:"stages"`
}

// FilterDate keeps features whose timestamp field falls in [start, end).
func FilterDate(field string, start, end time.Time) Stage {
	return Stage{Op: OpFilterDate, Field: field, Start: start, End: end}
}

// FilterEq keeps features whose property equals value.
func FilterEq(field string, value any) Stage {
	return Stage{Op: OpFilterEq, Field: field, Value: value}
}

// SortAsc orders features by field, ascending, preserving input order
// for equal keys.
func SortAsc(field string) Stage {
	return Stage{Op: OpSort, Field: field, Ascending: true, Stable: true}
}

// GroupBy partitions features by a string property. Features missing
// the property are dropped.
func GroupBy(field string) Stage {
	return Stage{Op: OpGroupBy, Field: field}
}

// AggregateLine connects each group's point coordinates, in the order
// established by a preceding sort stage, into one LineString feature.
func AggregateLine() Stage {
	return Stage{Op: OpAggregateLine}
}

// YearRange returns the half-open UTC interval [year-01-01, year+1-01-01).
func YearRange(year int) (start, end time.Time) {
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// PointsForYear selects a year's raw point observations.
func PointsForYear(dataset string, year int) Pipeline {
	start, end := YearRange(year)
	return Pipeline{
		Dataset: dataset,
		Stages:  []Stage{FilterDate(domain.PropTimestamp, start, end)},
	}
}

// TracksForYear synthesizes one track line per storm observed in the
// year: filter to the date range, group by storm id, sort each group
// by timestamp ascending, and connect the coordinates.
func TracksForYear(dataset string, year int) Pipeline {
	start, end := YearRange(year)
	return Pipeline{
		Dataset: dataset,
		Stages: []Stage{
			FilterDate(domain.PropTimestamp, start, end),
			GroupBy(domain.PropStormID),
			SortAsc(domain.PropTimestamp),
			AggregateLine(),
		},
	}
}

// Fingerprint returns a deterministic hash of the pipeline, used as a
// cache key. Identical pipelines always produce identical fingerprints
// because Stage serialization is field-ordered.
func (p Pipeline) Fingerprint() string {
	data, err := json.Marshal(p)
	if err != nil {
		// Pipelines are built from plain values; marshal cannot fail in
		// practice. Fall back to an uncacheable key.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
