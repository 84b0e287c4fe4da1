package main

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"
)

var errFakeUpstream = errors.New("upstream unavailable")

// elevationFunc gives the height in meters of pixel (px, py) of tile t.
type elevationFunc func(t maptile.Tile, px, py int) float64

// fakeSource encodes tiles on the fly from an elevationFunc.
type fakeSource struct {
	enc  Encoding
	size int
	elev elevationFunc
	fail func(t maptile.Tile) bool

	mu      sync.Mutex
	fetched []maptile.Tile
}

func (s *fakeSource) FetchTile(ctx context.Context, t maptile.Tile) ([]byte, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, t)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.fail != nil && s.fail(t) {
		return nil, errFakeUpstream
	}
	return encodeElevation(s.enc, s.size, func(px, py int) float64 { return s.elev(t, px, py) })
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

// encodeElevation renders a terrain PNG of the given size.
func encodeElevation(enc Encoding, size int, elev func(px, py int) float64) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b := enc.Encode(elev(x, y))
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, 255
		}
	}
	return encodePNG(img)
}

func flat(meters float64) elevationFunc {
	return func(maptile.Tile, int, int) float64 { return meters }
}

func mustEncodeElevation(t *testing.T, enc Encoding, size int, meters float64) []byte {
	t.Helper()
	data, err := encodeElevation(enc, size, func(int, int) float64 { return meters })
	require.NoError(t, err)
	return data
}
