package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Neighborhood holds the decoded 3x3 block of elevation sub-grids around a
// tile, indexed (dy+1)*3 + (dx+1). Failed neighbors are all zero.
type Neighborhood struct {
	Size   int
	Tiles  [9][]float64
	Failed int
}

// NeighborFetcher issues the nine neighbor fetches for a center tile.
type NeighborFetcher struct {
	Source   ElevationSource
	Encoding Encoding
	Size     int
	metrics  *Metrics
}

// Fetch loads and decodes the neighborhood of center. It only returns once all
// nine fetches have settled; individual failures never abort the others.
func (f *NeighborFetcher) Fetch(ctx context.Context, center TileAddress) *Neighborhood {
	nb := &Neighborhood{Size: f.Size}
	failed := make([]bool, 9)

	var g errgroup.Group
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			i := (dy+1)*3 + (dx + 1)
			addr, ok := center.Neighbor(dx, dy)
			g.Go(func() error {
				var grid []float64
				var err error
				if ok {
					grid, err = f.fetchOne(ctx, addr)
				} else {
					err = fmt.Errorf("neighbor (%d,%d) of %v outside the grid", dx, dy, center)
				}
				if err != nil {
					log.WithField("tile", center.String()).Debugf("neighbor fetch failed, zero filling ~ %s", err)
					grid = make([]float64, f.Size*f.Size)
					failed[i] = true
				}
				nb.Tiles[i] = grid
				return nil
			})
		}
	}
	g.Wait() //nolint:errcheck // goroutines never fail

	for _, bad := range failed {
		if bad {
			nb.Failed++
		}
	}
	if f.metrics != nil && nb.Failed > 0 {
		f.metrics.NeighborFailures.Add(float64(nb.Failed))
	}
	return nb
}

func (f *NeighborFetcher) fetchOne(ctx context.Context, addr TileAddress) ([]float64, error) {
	data, err := f.Source.FetchTile(ctx, addr.Tile())
	if err != nil {
		return nil, err
	}
	return decodeTile(data, f.Encoding, f.Size)
}

// decodeTile decodes an encoded terrain image into a size*size elevation grid.
// Images with a different edge length are resampled nearest-neighbor, which
// keeps the packed channels intact.
func decodeTile(data []byte, enc Encoding, size int) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode elevation tile: %w", err)
	}
	px, ok := img.(*image.NRGBA)
	if !ok || img.Bounds().Dx() != size || img.Bounds().Dy() != size {
		px = image.NewNRGBA(image.Rect(0, 0, size, size))
		draw.NearestNeighbor.Scale(px, px.Bounds(), img, img.Bounds(), draw.Src, nil)
	}
	b := px.Bounds()
	grid := make([]float64, size*size)
	for y := 0; y < size; y++ {
		row := px.Pix[px.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < size; x++ {
			o := x * 4
			grid[y*size+x] = enc.Decode(row[o], row[o+1], row[o+2])
		}
	}
	return grid, nil
}
