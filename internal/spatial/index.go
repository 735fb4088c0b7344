// Package spatial provides an R-tree index over point features for
// viewport (bounding-box) queries.
package spatial

import (
	"fmt"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance gives degenerate point rectangles a small extent,
	// which rtreego requires.
	pointTolerance = 0.0001
)

// item wraps a point feature for R-tree insertion. Coordinates are
// indexed as (lon, lat).
type item struct {
	feature domain.Feature
	rect    *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect { return it.rect }

// Index is a thread-safe R-tree over point features.
type Index struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	count int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
}

// Load replaces the index contents with the point features of the
// collection. Non-point features are ignored.
func (ix *Index) Load(fc domain.FeatureCollection) {
	items := make([]rtreego.Spatial, 0, fc.Len())
	for _, f := range fc.Features {
		pos, err := f.Geometry.Point()
		if err != nil {
			continue
		}
		p := rtreego.Point{pos.Lon(), pos.Lat()}
		items = append(items, &item{feature: f, rect: p.ToRect(pointTolerance)})
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	for _, it := range items {
		ix.tree.Insert(it)
	}
	ix.count = len(items)
}

// SearchBox returns the features inside the bounding box, corners
// inclusive.
func (ix *Index) SearchBox(minLon, minLat, maxLon, maxLat float64) ([]domain.Feature, error) {
	if maxLon < minLon || maxLat < minLat {
		return nil, fmt.Errorf("invalid bounding box")
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bounds, err := rtreego.NewRect(
		rtreego.Point{minLon, minLat},
		[]float64{maxLon - minLon + pointTolerance, maxLat - minLat + pointTolerance},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	results := ix.tree.SearchIntersect(bounds)
	features := make([]domain.Feature, 0, len(results))
	for _, res := range results {
		it, ok := res.(*item)
		if !ok {
			continue
		}
		// The tolerance padding can pull in near-edge neighbors; verify
		// the point really is inside the box.
		pos, err := it.feature.Geometry.Point()
		if err != nil {
			continue
		}
		if pos.Lon() >= minLon && pos.Lon() <= maxLon && pos.Lat() >= minLat && pos.Lat() <= maxLat {
			features = append(features, it.feature)
		}
	}
	return features, nil
}

// Size returns the number of indexed features.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}
