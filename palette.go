package main

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorStop pins a color to a slope angle.
type ColorStop struct {
	Angle float64
	Color color.NRGBA
}

// Palette is an ordered list of stops with strictly increasing angles.
// Angles below the first stop are transparent; angles past the last stop
// take the last stop's color.
type Palette struct {
	stops []ColorStop
}

// NewPalette validates stops and returns a Palette.
func NewPalette(stops []ColorStop) (*Palette, error) {
	if len(stops) == 0 {
		return nil, errors.New("palette needs at least one stop")
	}
	for i := 1; i < len(stops); i++ {
		if !(stops[i].Angle > stops[i-1].Angle) {
			return nil, fmt.Errorf("palette angles must increase strictly: %g after %g", stops[i].Angle, stops[i-1].Angle)
		}
	}
	s := make([]ColorStop, len(stops))
	copy(s, stops)
	return &Palette{stops: s}, nil
}

// DefaultPalette is the conventional avalanche slope scale.
func DefaultPalette() *Palette {
	p, _ := NewPalette([]ColorStop{
		{27, color.NRGBA{255, 255, 255, 0}},
		{30, color.NRGBA{0, 200, 0, 200}},   // green
		{34, color.NRGBA{255, 220, 0, 210}}, // yellow
		{38, color.NRGBA{255, 120, 0, 215}}, // orange
		{42, color.NRGBA{220, 0, 0, 215}},   // red
		{45, color.NRGBA{160, 0, 160, 215}}, // violet
		{50, color.NRGBA{0, 0, 200, 215}},   // blue
	})
	return p
}

// Stops returns a copy of the palette's stops.
func (p *Palette) Stops() []ColorStop {
	s := make([]ColorStop, len(p.stops))
	copy(s, p.stops)
	return s
}

// Classify maps a slope angle to a color.
func (p *Palette) Classify(deg float64) color.NRGBA {
	stops := p.stops
	if math.IsNaN(deg) || deg < stops[0].Angle {
		return color.NRGBA{}
	}
	// first stop with Angle >= deg
	i := sort.Search(len(stops), func(i int) bool { return stops[i].Angle >= deg })
	if i == len(stops) {
		return stops[len(stops)-1].Color
	}
	if i == 0 || stops[i].Angle == deg {
		return stops[i].Color
	}
	a, b := stops[i-1], stops[i]
	t := (deg - a.Angle) / (b.Angle - a.Angle)
	return color.NRGBA{
		R: lerp8(a.Color.R, b.Color.R, t),
		G: lerp8(a.Color.G, b.Color.G, t),
		B: lerp8(a.Color.B, b.Color.B, t),
		A: lerp8(a.Color.A, b.Color.A, t),
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

//PaletteEntry palette stop as written in the config file
type PaletteEntry struct {
	Angle float64
	Color string
	Alpha float64
}

// PaletteFromEntries builds a Palette from config entries. Colors are hex
// strings; Alpha is in [0,1].
func PaletteFromEntries(entries []PaletteEntry) (*Palette, error) {
	stops := make([]ColorStop, 0, len(entries))
	for _, e := range entries {
		c, err := colorful.Hex(e.Color)
		if err != nil {
			return nil, fmt.Errorf("palette stop %g: %w", e.Angle, err)
		}
		if e.Alpha < 0 || e.Alpha > 1 {
			return nil, fmt.Errorf("palette stop %g: alpha %g out of [0,1]", e.Angle, e.Alpha)
		}
		r, g, b := c.RGB255()
		stops = append(stops, ColorStop{
			Angle: e.Angle,
			Color: color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(e.Alpha * 255))},
		})
	}
	return NewPalette(stops)
}
