package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Visibility is the layout visibility of a style layer.
type Visibility string

// Layer visibility values.
const (
	Hidden  Visibility = "none"
	Visible Visibility = "visible"
)

// MapHost is the map-rendering host the overlay is attached to.
type MapHost interface {
	HasSource(id string) bool
	AddSource(id string, src StyleSource) error
	HasLayer(id string) bool
	// AddLayer inserts layer before the layer named beforeID, or on top when
	// beforeID is empty or unknown.
	AddLayer(layer StyleLayer, beforeID string) error
	Visibility(layerID string) (Visibility, bool)
	SetVisibility(layerID string, v Visibility) error
}

// LayerConfig names the overlay source and layer in the host.
type LayerConfig struct {
	SourceID string
	LayerID  string
	BeforeID string
	MaxZoom  int
}

// LayerController attaches the slope overlay to a host and toggles it.
type LayerController struct {
	registry *Registry
	protocol *SlopeProtocol
	cfg      LayerConfig
	metrics  *Metrics
}

// NewLayerController binds protocol to registry for the hosts it is added to.
func NewLayerController(registry *Registry, protocol *SlopeProtocol, cfg LayerConfig, metrics *Metrics) *LayerController {
	if cfg.SourceID == "" {
		cfg.SourceID = "slope"
	}
	if cfg.LayerID == "" {
		cfg.LayerID = "slope-angle"
	}
	return &LayerController{registry: registry, protocol: protocol, cfg: cfg, metrics: metrics}
}

// LayerID of the overlay layer.
func (c *LayerController) LayerID() string { return c.cfg.LayerID }

// AddLayer registers the protocol handler and adds the overlay source and a
// hidden raster layer to host. Repeated calls change nothing.
func (c *LayerController) AddLayer(host MapHost) error {
	c.protocol.Register(c.registry)

	if !host.HasSource(c.cfg.SourceID) {
		src := StyleSource{
			Type:     "raster",
			Tiles:    []string{c.protocol.Scheme() + "://{z}/{x}/{y}"},
			TileSize: c.protocol.renderer.Size(),
			MaxZoom:  c.cfg.MaxZoom,
		}
		if err := host.AddSource(c.cfg.SourceID, src); err != nil {
			return fmt.Errorf("add source %s: %w", c.cfg.SourceID, err)
		}
	}
	if !host.HasLayer(c.cfg.LayerID) {
		layer := StyleLayer{
			ID:     c.cfg.LayerID,
			Type:   "raster",
			Source: c.cfg.SourceID,
			Layout: map[string]interface{}{"visibility": string(Hidden)},
		}
		if err := host.AddLayer(layer, c.cfg.BeforeID); err != nil {
			return fmt.Errorf("add layer %s: %w", c.cfg.LayerID, err)
		}
		log.Infof("slope layer %s added before %q", c.cfg.LayerID, c.cfg.BeforeID)
	}
	return nil
}

// ToggleVisibility flips the overlay between hidden and visible and returns
// whether it is now visible. Without the layer it returns false.
func (c *LayerController) ToggleVisibility(host MapHost) bool {
	current, ok := host.Visibility(c.cfg.LayerID)
	if !ok {
		return false
	}
	next := Visible
	if current == Visible {
		next = Hidden
	}
	if err := host.SetVisibility(c.cfg.LayerID, next); err != nil {
		log.Warnf("toggle %s error ~ %s", c.cfg.LayerID, err)
		return current == Visible
	}
	if c.metrics != nil {
		if next == Visible {
			c.metrics.LayerVisible.Set(1)
		} else {
			c.metrics.LayerVisible.Set(0)
		}
	}
	return next == Visible
}
