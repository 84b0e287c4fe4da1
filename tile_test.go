package main

import (
	"math"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
)

func TestTileAddressValid(t *testing.T) {
	assert.True(t, TileAddress{Z: 0, X: 0, Y: 0}.Valid())
	assert.True(t, TileAddress{Z: 3, X: 7, Y: 7}.Valid())
	assert.False(t, TileAddress{Z: 3, X: 8, Y: 0}.Valid())
	assert.False(t, TileAddress{Z: 3, X: 0, Y: 8}.Valid())
	assert.False(t, TileAddress{Z: ZoomMax + 1}.Valid())
}

func TestTileAddressNeighbor(t *testing.T) {
	a := TileAddress{Z: 2, X: 0, Y: 1}

	n, ok := a.Neighbor(-1, 0)
	assert.True(t, ok)
	assert.Equal(t, TileAddress{Z: 2, X: 3, Y: 1}, n)

	n, ok = TileAddress{Z: 2, X: 3, Y: 1}.Neighbor(1, 1)
	assert.True(t, ok)
	assert.Equal(t, TileAddress{Z: 2, X: 0, Y: 2}, n)

	_, ok = TileAddress{Z: 2, X: 1, Y: 0}.Neighbor(0, -1)
	assert.False(t, ok)
	_, ok = TileAddress{Z: 2, X: 1, Y: 3}.Neighbor(1, 1)
	assert.False(t, ok)
}

func TestTileAddressTile(t *testing.T) {
	assert.Equal(t, maptile.New(5, 6, 7), TileAddress{Z: 7, X: 5, Y: 6}.Tile())
	assert.Equal(t, "7/5/6", TileAddress{Z: 7, X: 5, Y: 6}.String())
}

func TestTileAddressLatitude(t *testing.T) {
	assert.InDelta(t, 0.0, TileAddress{Z: 0}.Latitude(), 1e-9)
	// rows mirror around the equator
	north := TileAddress{Z: 4, X: 0, Y: 3}.Latitude()
	south := TileAddress{Z: 4, X: 0, Y: 12}.Latitude()
	assert.Greater(t, north, 0.0)
	assert.InDelta(t, north, -south, 1e-9)
}

func TestGroundResolution(t *testing.T) {
	// 156543.03 m/px at zoom 0 on the equator for 256 px tiles
	assert.InDelta(t, 156543.03392, GroundResolution(0, 0, 256), 1e-4)
	assert.InDelta(t, 156543.03392/1024, GroundResolution(10, 0, 256), 1e-6)
	assert.InDelta(t, 156543.03392/2, GroundResolution(0, 60, 256), 1e-4)
	assert.InDelta(t, GroundResolution(3, 0, 256)*2, GroundResolution(3, 0, 128), 1e-9)
	assert.InDelta(t, 0.0, GroundResolution(0, 90, 256), 1e-6)
	assert.False(t, math.IsNaN(GroundResolution(24, 85, 512)))
}

func TestFlipY(t *testing.T) {
	assert.Equal(t, uint32(0), flipY(maptile.New(0, 7, 3)))
	assert.Equal(t, uint32(5), Tile{T: maptile.New(1, 2, 3)}.flipY())
}
