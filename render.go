package main

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/jonboulle/clockwork"
)

// Renderer turns a tile address into a slope raster.
type Renderer struct {
	fetcher *NeighborFetcher
	palette *Palette
	smooth  bool
	size    int
	clock   clockwork.Clock
	metrics *Metrics
}

// RenderOptions configure a Renderer.
type RenderOptions struct {
	Source   ElevationSource
	Encoding Encoding
	TileSize int
	Palette  *Palette
	Smooth   bool
	Clock    clockwork.Clock
	Metrics  *Metrics
}

// NewRenderer wires the pipeline stages from opts, filling defaults.
func NewRenderer(opts RenderOptions) *Renderer {
	if opts.TileSize <= 0 {
		opts.TileSize = TileSize
	}
	if opts.Palette == nil {
		opts.Palette = DefaultPalette()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Renderer{
		fetcher: &NeighborFetcher{
			Source:   opts.Source,
			Encoding: opts.Encoding,
			Size:     opts.TileSize,
			metrics:  opts.Metrics,
		},
		palette: opts.Palette,
		smooth:  opts.Smooth,
		size:    opts.TileSize,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
}

// Size is the edge length of rendered tiles.
func (r *Renderer) Size() int { return r.size }

// Render computes the slope tile for addr. Neighbor failures degrade to
// zero-filled regions and are reported through the returned count.
func (r *Renderer) Render(ctx context.Context, addr TileAddress) (*image.NRGBA, int) {
	start := r.clock.Now()
	if r.metrics != nil {
		defer func() { r.metrics.RenderDuration.Observe(r.clock.Since(start).Seconds()) }()
	}

	nb := r.fetcher.Fetch(ctx, addr)
	field := Assemble(nb)
	if r.smooth {
		field = Smooth(field)
	}
	res := GroundResolution(addr.Z, addr.Latitude(), r.size)
	angles := SlopeAngles(field, r.size, res)
	return r.classify(angles), nb.Failed
}

func (r *Renderer) classify(angles []float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.size, r.size))
	for i, deg := range angles {
		c := r.palette.Classify(deg)
		o := i * 4
		img.Pix[o] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = c.A
	}
	return img
}

// encodePNG encodes img as PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// transparentTile returns the PNG bytes of a fully transparent size*size tile.
func transparentTile(size int) ([]byte, error) {
	return encodePNG(image.NewNRGBA(image.Rect(0, 0, size, size)))
}
