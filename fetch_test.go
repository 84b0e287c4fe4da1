package main

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchNeighborhood(t *testing.T) {
	const size = 8
	center := TileAddress{Z: 5, X: 10, Y: 12}
	src := &fakeSource{
		enc:  Terrarium,
		size: size,
		elev: func(tl maptile.Tile, _, _ int) float64 {
			// encode the offset from the center tile into the height
			return float64((int(tl.Y)-center.Y+1)*3 + int(tl.X) - center.X + 1)
		},
	}
	f := &NeighborFetcher{Source: src, Encoding: Terrarium, Size: size}

	nb := f.Fetch(context.Background(), center)
	assert.Equal(t, 0, nb.Failed)
	assert.Equal(t, 9, src.calls())
	for i, sub := range nb.Tiles {
		require.Len(t, sub, size*size)
		assert.InDelta(t, float64(i), sub[0], 1e-9)
		assert.InDelta(t, float64(i), sub[size*size-1], 1e-9)
	}
}

func TestFetchZeroFillsFailures(t *testing.T) {
	const size = 4
	center := TileAddress{Z: 5, X: 10, Y: 12}
	metrics := NewMetricsForTesting()
	src := &fakeSource{
		enc:  Mapbox,
		size: size,
		elev: flat(1500),
		fail: func(tl maptile.Tile) bool { return int(tl.X) == center.X+1 },
	}
	f := &NeighborFetcher{Source: src, Encoding: Mapbox, Size: size, metrics: metrics}

	nb := f.Fetch(context.Background(), center)
	assert.Equal(t, 3, nb.Failed)
	for i, sub := range nb.Tiles {
		want := 1500.0
		if i%3 == 2 {
			want = 0
		}
		for _, v := range sub {
			assert.InDelta(t, want, v, 0.1, "block %d", i)
		}
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.NeighborFailures))
}

func TestFetchPolarRowsAreFailures(t *testing.T) {
	src := &fakeSource{enc: Terrarium, size: 2, elev: flat(100)}
	f := &NeighborFetcher{Source: src, Encoding: Terrarium, Size: 2}

	nb := f.Fetch(context.Background(), TileAddress{Z: 1, X: 0, Y: 0})
	assert.Equal(t, 3, nb.Failed)
	assert.Equal(t, 6, src.calls())
	for i := 0; i < 3; i++ {
		assert.Equal(t, []float64{0, 0, 0, 0}, nb.Tiles[i])
	}
}

func TestFetchWrapsAntimeridian(t *testing.T) {
	src := &fakeSource{enc: Terrarium, size: 2, elev: flat(100)}
	f := &NeighborFetcher{Source: src, Encoding: Terrarium, Size: 2}

	nb := f.Fetch(context.Background(), TileAddress{Z: 2, X: 0, Y: 1})
	assert.Equal(t, 0, nb.Failed)
	assert.Contains(t, src.fetched, maptile.New(3, 1, 2))
}

func TestFetchCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{enc: Terrarium, size: 2, elev: flat(100)}
	f := &NeighborFetcher{Source: src, Encoding: Terrarium, Size: 2}

	nb := f.Fetch(ctx, TileAddress{Z: 3, X: 3, Y: 3})
	assert.Equal(t, 9, nb.Failed)
}

func TestDecodeTileResamples(t *testing.T) {
	data := mustEncodeElevation(t, Terrarium, 512, 1234.5)
	grid, err := decodeTile(data, Terrarium, 256)
	require.NoError(t, err)
	require.Len(t, grid, 256*256)
	for _, v := range grid {
		assert.InDelta(t, 1234.5, v, Terrarium.Resolution())
	}
}

func TestDecodeTileConvertsRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	r, g, b := Mapbox.Encode(321)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}
	data, err := encodePNG(img)
	require.NoError(t, err)

	grid, err := decodeTile(data, Mapbox, 2)
	require.NoError(t, err)
	for _, v := range grid {
		assert.InDelta(t, 321.0, v, Mapbox.Resolution())
	}
}

func TestDecodeTileRejectsGarbage(t *testing.T) {
	_, err := decodeTile([]byte("not an image"), Mapbox, 4)
	assert.Error(t, err)
}
