package main

import (
	"fmt"
	"math"
	"strings"
)

// Encoding identifies how a terrain raster packs elevation into RGB.
type Encoding int

const (
	// Mapbox is the terrain-rgb scheme: -10000 + (R*65536 + G*256 + B) * 0.1.
	Mapbox Encoding = iota
	// Terrarium is the AWS/Mapzen scheme: R*256 + G + B/256 - 32768.
	Terrarium
)

// ParseEncoding maps a configuration name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mapbox", "terrain-rgb", "terrainrgb":
		return Mapbox, nil
	case "terrarium":
		return Terrarium, nil
	}
	return 0, fmt.Errorf("unknown elevation encoding %q", name)
}

func (e Encoding) String() string {
	switch e {
	case Mapbox:
		return "mapbox"
	case Terrarium:
		return "terrarium"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Resolution is the quantization step of the encoding in meters.
func (e Encoding) Resolution() float64 {
	if e == Terrarium {
		return 1.0 / 256
	}
	return 0.1
}

// Decode converts one pixel's channels into meters.
func (e Encoding) Decode(r, g, b uint8) float64 {
	if e == Terrarium {
		return float64(r)*256 + float64(g) + float64(b)/256 - 32768
	}
	return -10000 + float64(int(r)<<16|int(g)<<8|int(b))*0.1
}

// Encode is the inverse of Decode, clamped to the encodable range.
func (e Encoding) Encode(meters float64) (r, g, b uint8) {
	if e == Terrarium {
		v := math.Round((meters + 32768) * 256)
		v = math.Max(0, math.Min(v, 1<<24-1))
		n := int(v)
		return uint8(n >> 16), uint8(n >> 8), uint8(n)
	}
	v := math.Round((meters + 10000) * 10)
	v = math.Max(0, math.Min(v, 1<<24-1))
	n := int(v)
	return uint8(n >> 16), uint8(n >> 8), uint8(n)
}
