package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHTML(t *testing.T) {
	fc := sampleCollection()
	tracks, err := NewLayer("storm-tracks", fc, DefaultTrackStyle())
	require.NoError(t, err)
	points, err := NewLayer("storm-points", fc, DefaultPointStyle())
	require.NoError(t, err)

	v := NewView(36, -53, 3)
	v.AddLayer(tracks)
	v.AddLayer(points)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, v, "Storm Tracks 2017"))

	page := buf.String()
	assert.Contains(t, page, "<title>Storm Tracks 2017</title>")
	assert.Contains(t, page, "storm-tracks")
	assert.Contains(t, page, "storm-points")
	assert.Contains(t, page, "deck.gl")
	assert.Contains(t, page, "AL112017")

	// Tracks must be listed before points so they paint underneath.
	assert.Less(t, strings.Index(page, "storm-tracks"), strings.Index(page, "storm-points"))
}

func TestWriteHTML_Minified(t *testing.T) {
	layer, err := NewLayer("points", sampleCollection(), DefaultPointStyle())
	require.NoError(t, err)

	v := NewView(0, 0, 1)
	v.AddLayer(layer)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, v, "t"))

	// The minifier lowercases the doctype and strips inter-tag
	// whitespace in the head.
	page := buf.String()
	assert.True(t, strings.HasPrefix(page, "<!doctype html>"))
	assert.Contains(t, page, "<meta charset=utf-8>")
}
