package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

// Evaluate runs a pipeline against an in-memory collection with the
// same semantics the backend applies server-side. It backs the offline
// export mode and stands in for the backend in tests.
//
// Equal sort keys keep their input order (sort.SliceStable), which is
// the behavior a conforming backend applies when a sort stage sets
// Stable.
func Evaluate(fc domain.FeatureCollection, p Pipeline) (domain.FeatureCollection, error) {
	// Stages filter and sort in place; work on a copy so the caller's
	// collection survives repeated evaluations.
	state := evalState{flat: append([]domain.Feature(nil), fc.Features...)}

	for i, stage := range p.Stages {
		var err error
		switch stage.Op {
		case OpFilterDate:
			err = state.filterDate(stage)
		case OpFilterEq:
			err = state.filterEq(stage)
		case OpSort:
			err = state.sortBy(stage)
		case OpGroupBy:
			err = state.groupBy(stage)
		case OpAggregateLine:
			err = state.aggregateLine()
		default:
			err = fmt.Errorf("unknown op %q", stage.Op)
		}
		if err != nil {
			return domain.FeatureCollection{}, fmt.Errorf("stage %d (%s): %w", i, stage.Op, err)
		}
	}

	if state.grouped {
		return domain.FeatureCollection{}, fmt.Errorf("pipeline ends grouped; add an aggregate stage")
	}

	out := domain.NewFeatureCollection()
	out.Features = append(out.Features, state.flat...)
	return out, nil
}

// evalState is either a flat feature list or an ordered set of groups.
// Groups preserve first-seen key order so output is deterministic.
type evalState struct {
	flat    []domain.Feature
	grouped bool
	keys    []string
	groups  map[string][]domain.Feature
}

func (s *evalState) filterDate(stage Stage) error {
	if s.grouped {
		return fmt.Errorf("filter after group_by is not supported")
	}
	if !stage.Start.Before(stage.End) {
		return fmt.Errorf("empty date range [%s, %s)", stage.Start, stage.End)
	}

	kept := s.flat[:0]
	for _, f := range s.flat {
		ts, err := f.Timestamp()
		if err != nil {
			// Untimestamped features cannot match a date filter.
			continue
		}
		if !ts.Before(stage.Start) && ts.Before(stage.End) {
			kept = append(kept, f)
		}
	}
	s.flat = kept
	return nil
}

func (s *evalState) filterEq(stage Stage) error {
	if s.grouped {
		return fmt.Errorf("filter after group_by is not supported")
	}

	kept := s.flat[:0]
	for _, f := range s.flat {
		if propEqual(f.Properties[stage.Field], stage.Value) {
			kept = append(kept, f)
		}
	}
	s.flat = kept
	return nil
}

// propEqual compares a property against a filter value, normalizing
// numeric types so int filter values match float64 JSON numbers.
func propEqual(prop, value any) bool {
	if pn, ok := asFloat(prop); ok {
		vn, vok := asFloat(value)
		return vok && pn == vn
	}
	return prop == value
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (s *evalState) sortBy(stage Stage) error {
	if stage.Field == "" {
		return fmt.Errorf("sort requires a field")
	}
	if s.grouped {
		for _, k := range s.keys {
			sortFeatures(s.groups[k], stage)
		}
		return nil
	}
	sortFeatures(s.flat, stage)
	return nil
}

func sortFeatures(fs []domain.Feature, stage Stage) {
	sort.SliceStable(fs, func(i, j int) bool {
		less := featureLess(fs[i], fs[j], stage.Field)
		if stage.Ascending {
			return less
		}
		return featureLess(fs[j], fs[i], stage.Field)
	})
}

// featureLess orders by timestamp when sorting on the timestamp field,
// otherwise numerically, otherwise lexically.
func featureLess(a, b domain.Feature, field string) bool {
	if field == domain.PropTimestamp {
		ta, errA := a.Timestamp()
		tb, errB := b.Timestamp()
		if errA == nil && errB == nil {
			return ta.Before(tb)
		}
	}
	if na, ok := a.FloatProp(field); ok {
		if nb, ok := b.FloatProp(field); ok {
			return na < nb
		}
	}
	return strings.Compare(a.StringProp(field), b.StringProp(field)) < 0
}

func (s *evalState) groupBy(stage Stage) error {
	if s.grouped {
		return fmt.Errorf("already grouped")
	}
	if stage.Field == "" {
		return fmt.Errorf("group_by requires a field")
	}

	s.grouped = true
	s.groups = make(map[string][]domain.Feature)
	for _, f := range s.flat {
		key := f.StringProp(stage.Field)
		if key == "" {
			continue
		}
		if _, seen := s.groups[key]; !seen {
			s.keys = append(s.keys, key)
		}
		s.groups[key] = append(s.groups[key], f)
	}
	s.flat = nil
	return nil
}

func (s *evalState) aggregateLine() error {
	if !s.grouped {
		return fmt.Errorf("aggregate_line requires a preceding group_by")
	}

	lines := make([]domain.Feature, 0, len(s.keys))
	for _, key := range s.keys {
		group := s.groups[key]

		positions := make([]domain.Position, 0, len(group))
		name := ""
		for _, f := range group {
			pos, err := f.Geometry.Point()
			if err != nil {
				continue
			}
			positions = append(positions, pos)
			if name == "" {
				name = f.StringProp(domain.PropName)
			}
		}

		lines = append(lines, domain.NewLineFeature(key, positions, map[string]any{
			domain.PropStormID:    key,
			domain.PropName:       name,
			domain.PropPointCount: len(positions),
		}))
	}

	s.grouped = false
	s.keys = nil
	s.groups = nil
	s.flat = lines
	return nil
}
