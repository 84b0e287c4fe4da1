package main

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseStyle = `{
  "version": 8,
  "name": "winter",
  "sources": {
    "osm": {"type": "vector", "url": "https://tiles.example.com/osm.json"}
  },
  "layers": [
    {"id": "background", "type": "background"},
    {"id": "slopes-fill", "type": "fill", "source": "osm", "source-layer": "landuse"},
    {"id": "labels", "type": "symbol", "source": "osm", "source-layer": "place"}
  ]
}`

func newTestController(t *testing.T, cfg LayerConfig) (*LayerController, *Registry, *Metrics) {
	t.Helper()
	p, metrics := newTestProtocol(t, &fakeSource{enc: Terrarium, size: testSize, elev: flat(0)}, Terrarium, true)
	reg := NewRegistry()
	return NewLayerController(reg, p, cfg, metrics), reg, metrics
}

func TestAddLayerBeforeAnchor(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)
	c, reg, _ := newTestController(t, LayerConfig{BeforeID: "slopes-fill", MaxZoom: 15})

	require.NoError(t, c.AddLayer(style))
	assert.True(t, reg.Registered("slope"))
	assert.Equal(t, []string{"background", "slope-angle", "slopes-fill", "labels"}, style.LayerIDs())

	v, ok := style.Visibility("slope-angle")
	require.True(t, ok)
	assert.Equal(t, Hidden, v)

	src := style.doc.Sources["slope"]
	assert.Equal(t, "raster", src.Type)
	assert.Equal(t, []string{"slope://{z}/{x}/{y}"}, src.Tiles)
	assert.Equal(t, testSize, src.TileSize)
	assert.Equal(t, 15, src.MaxZoom)
}

func TestAddLayerIdempotent(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)
	c, reg, _ := newTestController(t, LayerConfig{BeforeID: "slopes-fill"})

	require.NoError(t, c.AddLayer(style))
	require.NoError(t, c.AddLayer(style))
	assert.Len(t, style.LayerIDs(), 4)
	assert.Len(t, style.doc.Sources, 2)
	assert.Equal(t, []string{"slope"}, reg.Schemes())
}

func TestAddLayerWithoutAnchorGoesOnTop(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)
	c, _, _ := newTestController(t, LayerConfig{LayerID: "steepness", BeforeID: "missing"})

	require.NoError(t, c.AddLayer(style))
	ids := style.LayerIDs()
	assert.Equal(t, "steepness", ids[len(ids)-1])
	assert.Equal(t, "steepness", c.LayerID())
}

func TestToggleVisibility(t *testing.T) {
	style := NewStyle("test")
	c, _, metrics := newTestController(t, LayerConfig{})

	assert.False(t, c.ToggleVisibility(style))

	require.NoError(t, c.AddLayer(style))
	assert.True(t, c.ToggleVisibility(style))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LayerVisible))
	v, _ := style.Visibility("slope-angle")
	assert.Equal(t, Visible, v)

	assert.False(t, c.ToggleVisibility(style))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LayerVisible))
	v, _ = style.Visibility("slope-angle")
	assert.Equal(t, Hidden, v)
}

func TestStyleAddLayerErrors(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)

	assert.Error(t, style.AddLayer(StyleLayer{ID: "labels", Type: "symbol"}, ""))
	assert.Error(t, style.AddLayer(StyleLayer{ID: "x", Type: "raster", Source: "nope"}, ""))
	assert.Error(t, style.AddSource("osm", StyleSource{Type: "vector"}))
	assert.Error(t, style.SetVisibility("nope", Visible))
}

func TestStyleVisibilityDefaultsToVisible(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)
	v, ok := style.Visibility("labels")
	assert.True(t, ok)
	assert.Equal(t, Visible, v)

	_, ok = style.Visibility("nope")
	assert.False(t, ok)
}

func TestStyleMarshalForRewritesProtocolTiles(t *testing.T) {
	style, err := ParseStyle([]byte(baseStyle))
	require.NoError(t, err)
	c, _, _ := newTestController(t, LayerConfig{BeforeID: "slopes-fill"})
	require.NoError(t, c.AddLayer(style))

	data, err := style.MarshalFor("http://localhost:8080/", []string{"slope"})
	require.NoError(t, err)

	var doc struct {
		Version int                    `json:"version"`
		Sources map[string]StyleSource `json:"sources"`
		Layers  []StyleLayer           `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 8, doc.Version)
	assert.Equal(t, []string{"http://localhost:8080/tiles/slope/{z}/{x}/{y}.png"}, doc.Sources["slope"].Tiles)
	assert.Equal(t, "https://tiles.example.com/osm.json", doc.Sources["osm"].URL)
	assert.Nil(t, doc.Sources["osm"].Tiles)
	assert.Equal(t, "none", doc.Layers[1].Layout["visibility"])

	// the in-memory style keeps the protocol URL
	assert.Equal(t, []string{"slope://{z}/{x}/{y}"}, style.doc.Sources["slope"].Tiles)
}

func TestParseStyleRejectsGarbage(t *testing.T) {
	_, err := ParseStyle([]byte("{"))
	assert.Error(t, err)
}

const terrainStyle = `{
  "version": 8,
  "name": "backcountry",
  "glyphs": "https://fonts.example.com/{fontstack}/{range}.pbf",
  "sprite": [{"id": "default", "url": "https://sprites.example.com/base"}],
  "terrain": {"source": "dem", "exaggeration": 1.5},
  "sky": {"sky-color": "#88c6fc"},
  "metadata": {"editor": "maputnik"},
  "sources": {
    "dem": {
      "type": "raster-dem",
      "tiles": ["https://dem.example.com/{z}/{x}/{y}.png"],
      "scheme": "tms",
      "bounds": [5.9, 45.8, 10.5, 47.8],
      "encoding": "terrarium",
      "tileSize": 256
    },
    "peaks": {
      "type": "geojson",
      "data": {"type": "FeatureCollection", "features": [
        {"type": "Feature", "properties": {"name": "Piz Bernina"}, "geometry": {"type": "Point", "coordinates": [9.908, 46.382]}}
      ]},
      "cluster": true
    }
  },
  "layers": [
    {"id": "hills", "type": "hillshade", "source": "dem", "metadata": {"group": "relief"}},
    {"id": "peaks", "type": "circle", "source": "peaks", "paint": {"circle-radius": 4}}
  ]
}`

func TestStyleKeepsUnmodeledMembers(t *testing.T) {
	style, err := ParseStyle([]byte(terrainStyle))
	require.NoError(t, err)
	c, _, _ := newTestController(t, LayerConfig{BeforeID: "peaks"})
	require.NoError(t, c.AddLayer(style))

	data, err := style.MarshalFor("http://h", []string{"slope"})
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `{"source": "dem", "exaggeration": 1.5}`, string(doc["terrain"]))
	assert.JSONEq(t, `{"sky-color": "#88c6fc"}`, string(doc["sky"]))
	assert.JSONEq(t, `{"editor": "maputnik"}`, string(doc["metadata"]))
	assert.JSONEq(t, `[{"id": "default", "url": "https://sprites.example.com/base"}]`, string(doc["sprite"]))
	assert.Contains(t, doc, "glyphs")

	var sources map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["sources"], &sources))
	assert.JSONEq(t, `"tms"`, string(sources["dem"]["scheme"]))
	assert.JSONEq(t, `[5.9, 45.8, 10.5, 47.8]`, string(sources["dem"]["bounds"]))
	assert.JSONEq(t, `"terrarium"`, string(sources["dem"]["encoding"]))
	assert.JSONEq(t, `true`, string(sources["peaks"]["cluster"]))
	assert.Contains(t, string(sources["peaks"]["data"]), "Piz Bernina")
	assert.JSONEq(t, `["http://h/tiles/slope/{z}/{x}/{y}.png"]`, string(sources["slope"]["tiles"]))

	var layers []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["layers"], &layers))
	require.Len(t, layers, 3)
	assert.JSONEq(t, `"slope-angle"`, string(layers[1]["id"]))
	assert.JSONEq(t, `{"group": "relief"}`, string(layers[0]["metadata"]))
	assert.JSONEq(t, `{"circle-radius": 4}`, string(layers[2]["paint"]))

	// a second parse of the served document is stable
	again, err := ParseStyle(data)
	require.NoError(t, err)
	data2, err := again.MarshalFor("http://h", nil)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}
