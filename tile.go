package main

import (
	"fmt"
	"math"

	"github.com/paulmach/orb/maptile"
)

//TileSize default tile edge length in pixels
const TileSize = 256

//ZoomMax deepest zoom level an address may carry
const ZoomMax = 24

//EarthRadius WGS84 semi-major axis in meters, as used by web mercator
const EarthRadius = 6378137.0

//TileAddress one tile of the XYZ quad-tree scheme
type TileAddress struct {
	Z int
	X int
	Y int
}

func (a TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// Valid reports whether the address lies inside the tile grid of its zoom.
func (a TileAddress) Valid() bool {
	if a.Z < 0 || a.Z > ZoomMax {
		return false
	}
	n := 1 << uint(a.Z)
	return a.X >= 0 && a.X < n && a.Y >= 0 && a.Y < n
}

//Tile orb tile for the address
func (a TileAddress) Tile() maptile.Tile {
	return maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Z))
}

// Neighbor returns the tile offset by (dx, dy). Columns wrap around the
// antimeridian; rows past the poles have no tile and report false.
func (a TileAddress) Neighbor(dx, dy int) (TileAddress, bool) {
	n := 1 << uint(a.Z)
	y := a.Y + dy
	if y < 0 || y >= n {
		return TileAddress{}, false
	}
	x := ((a.X+dx)%n + n) % n
	return TileAddress{Z: a.Z, X: x, Y: y}, true
}

// Latitude of the tile's center row in degrees.
func (a TileAddress) Latitude() float64 {
	n := math.Pow(2, float64(a.Z))
	return mercatorToLat(math.Pi * (1 - 2*(float64(a.Y)+0.5)/n))
}

// mercatorToLat converts a web mercator y (radians) to latitude in degrees.
func mercatorToLat(mercatorY float64) float64 {
	return 180.0 / math.Pi * math.Atan(math.Sinh(mercatorY))
}

// GroundResolution is the ground distance in meters covered by one pixel of a
// tile with the given edge length at zoom z and latitude lat.
func GroundResolution(z int, lat float64, tileSize int) float64 {
	return 2 * math.Pi * EarthRadius * math.Cos(lat*math.Pi/180) / (float64(tileSize) * math.Pow(2, float64(z)))
}

//Tile raw tile payload
type Tile struct {
	T maptile.Tile
	C []byte
}

func (tile Tile) flipY() uint32 {
	return flipY(tile.T)
}

func flipY(t maptile.Tile) uint32 {
	return (1 << uint32(t.Z)) - t.Y - 1
}

// Constants representing TileFormat types
const (
	PNG  = "png"
	WEBP = "webp"
)
