package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"
	"sync"
)

// StyleSource is a source entry of a map style. Members it does not model,
// like geojson data or a tms scheme, are kept in Extra.
type StyleSource struct {
	Type        string   `json:"type"`
	URL         string   `json:"url,omitempty"`
	Tiles       []string `json:"tiles,omitempty"`
	TileSize    int      `json:"tileSize,omitempty"`
	MinZoom     int      `json:"minzoom,omitempty"`
	MaxZoom     int      `json:"maxzoom,omitempty"`
	Encoding    string   `json:"encoding,omitempty"`
	Attribution string   `json:"attribution,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var sourceKeys = []string{"type", "url", "tiles", "tileSize", "minzoom", "maxzoom", "encoding", "attribution"}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StyleSource) UnmarshalJSON(data []byte) error {
	type plain StyleSource
	p := plain(*s)
	extra, err := decodeWithExtra(data, &p, sourceKeys)
	if err != nil {
		return err
	}
	*s = StyleSource(p)
	s.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s StyleSource) MarshalJSON() ([]byte, error) {
	type plain StyleSource
	return encodeWithExtra(plain(s), s.Extra)
}

// StyleLayer is a layer entry of a map style. Unmodeled members go to Extra.
type StyleLayer struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source,omitempty"`
	SourceLayer string                 `json:"source-layer,omitempty"`
	MinZoom     float64                `json:"minzoom,omitempty"`
	MaxZoom     float64                `json:"maxzoom,omitempty"`
	Filter      json.RawMessage        `json:"filter,omitempty"`
	Layout      map[string]interface{} `json:"layout,omitempty"`
	Paint       map[string]interface{} `json:"paint,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var layerKeys = []string{"id", "type", "source", "source-layer", "minzoom", "maxzoom", "filter", "layout", "paint"}

// UnmarshalJSON implements json.Unmarshaler.
func (l *StyleLayer) UnmarshalJSON(data []byte) error {
	type plain StyleLayer
	p := plain(*l)
	extra, err := decodeWithExtra(data, &p, layerKeys)
	if err != nil {
		return err
	}
	*l = StyleLayer(p)
	l.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l StyleLayer) MarshalJSON() ([]byte, error) {
	type plain StyleLayer
	return encodeWithExtra(plain(l), l.Extra)
}

// Style is an in-memory map style document. It implements MapHost.
type Style struct {
	mu  sync.RWMutex
	doc styleDoc
}

// styleDoc models the members the overlay touches. glyphs, sprite, terrain,
// sky and the rest travel untouched in Extra.
type styleDoc struct {
	Version int                    `json:"version"`
	Name    string                 `json:"name,omitempty"`
	Sources map[string]StyleSource `json:"sources"`
	Layers  []StyleLayer           `json:"layers"`

	Extra map[string]json.RawMessage `json:"-"`
}

var docKeys = []string{"version", "name", "sources", "layers"}

func (d *styleDoc) UnmarshalJSON(data []byte) error {
	type plain styleDoc
	p := plain(*d)
	extra, err := decodeWithExtra(data, &p, docKeys)
	if err != nil {
		return err
	}
	*d = styleDoc(p)
	d.Extra = extra
	return nil
}

func (d styleDoc) MarshalJSON() ([]byte, error) {
	type plain styleDoc
	return encodeWithExtra(plain(d), d.Extra)
}

// decodeWithExtra decodes data into v and returns the object members whose
// names are not in known.
func decodeWithExtra(data []byte, v interface{}, known []string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeWithExtra encodes v and merges in the extra members. Modeled fields win.
func encodeWithExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}

// NewStyle returns an empty style named name.
func NewStyle(name string) *Style {
	return &Style{doc: styleDoc{Version: 8, Name: name, Sources: map[string]StyleSource{}, Layers: []StyleLayer{}}}
}

// LoadStyle reads a style JSON document from path.
func LoadStyle(path string) (*Style, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style: %w", err)
	}
	return ParseStyle(data)
}

// ParseStyle decodes a style JSON document.
func ParseStyle(data []byte) (*Style, error) {
	s := NewStyle("")
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse style: %w", err)
	}
	if s.doc.Sources == nil {
		s.doc.Sources = map[string]StyleSource{}
	}
	if s.doc.Layers == nil {
		s.doc.Layers = []StyleLayer{}
	}
	return s, nil
}

// HasSource implements MapHost.
func (s *Style) HasSource(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doc.Sources[id]
	return ok
}

// AddSource implements MapHost.
func (s *Style) AddSource(id string, src StyleSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	s.doc.Sources[id] = src
	return nil
}

func (s *Style) layerIndex(id string) int {
	for i, l := range s.doc.Layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// HasLayer implements MapHost.
func (s *Style) HasLayer(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layerIndex(id) >= 0
}

// AddLayer implements MapHost.
func (s *Style) AddLayer(layer StyleLayer, beforeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layerIndex(layer.ID) >= 0 {
		return fmt.Errorf("layer %q already exists", layer.ID)
	}
	if layer.Source != "" {
		if _, ok := s.doc.Sources[layer.Source]; !ok {
			return fmt.Errorf("layer %q references unknown source %q", layer.ID, layer.Source)
		}
	}
	i := -1
	if beforeID != "" {
		i = s.layerIndex(beforeID)
	}
	if i < 0 {
		s.doc.Layers = append(s.doc.Layers, layer)
		return nil
	}
	s.doc.Layers = append(s.doc.Layers, StyleLayer{})
	copy(s.doc.Layers[i+1:], s.doc.Layers[i:])
	s.doc.Layers[i] = layer
	return nil
}

// Visibility implements MapHost. Layers without a visibility property are visible.
func (s *Style) Visibility(layerID string) (Visibility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.layerIndex(layerID)
	if i < 0 {
		return "", false
	}
	if v, ok := s.doc.Layers[i].Layout["visibility"].(string); ok && v == string(Hidden) {
		return Hidden, true
	}
	return Visible, true
}

// SetVisibility implements MapHost.
func (s *Style) SetVisibility(layerID string, v Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.layerIndex(layerID)
	if i < 0 {
		return fmt.Errorf("layer %q not found", layerID)
	}
	layout := make(map[string]interface{}, len(s.doc.Layers[i].Layout)+1)
	for k, val := range s.doc.Layers[i].Layout {
		layout[k] = val
	}
	layout["visibility"] = string(v)
	s.doc.Layers[i].Layout = layout
	return nil
}

// LayerIDs lists the layers in paint order.
func (s *Style) LayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.doc.Layers))
	for i, l := range s.doc.Layers {
		ids[i] = l.ID
	}
	return ids
}

// MarshalFor encodes the style, rewriting tile URLs of the given protocol
// schemes to the HTTP tile endpoint under baseURL.
func (s *Style) MarshalFor(baseURL string, schemes []string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.doc
	doc.Sources = make(map[string]StyleSource, len(s.doc.Sources))
	base := strings.TrimSuffix(baseURL, "/")
	for id, src := range s.doc.Sources {
		tiles := make([]string, len(src.Tiles))
		for i, t := range src.Tiles {
			tiles[i] = t
			for _, scheme := range schemes {
				if strings.HasPrefix(t, scheme+"://") {
					tiles[i] = base + "/tiles/" + scheme + "/" + strings.TrimPrefix(t, scheme+"://") + "." + PNG
				}
			}
		}
		if src.Tiles != nil {
			src.Tiles = tiles
		}
		doc.Sources[id] = src
	}
	return json.Marshal(doc)
}
