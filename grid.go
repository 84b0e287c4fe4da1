package main

// ElevationField is a square grid of elevations in meters, row-major.
type ElevationField struct {
	Size int
	Data []float64
}

// NewElevationField allocates a zero field with the given edge length.
func NewElevationField(size int) *ElevationField {
	return &ElevationField{Size: size, Data: make([]float64, size*size)}
}

// At returns the sample at (x, y) clamped to the field bounds.
func (f *ElevationField) At(x, y int) float64 {
	return f.Data[clamp(y, f.Size)*f.Size+clamp(x, f.Size)]
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Assemble stitches the nine sub-grids of a neighborhood into one field of
// edge 3*Size with the requested tile in the center block. No resampling:
// all neighbors share the center tile's zoom.
func Assemble(nb *Neighborhood) *ElevationField {
	s := nb.Size
	field := NewElevationField(3 * s)
	for i, sub := range nb.Tiles {
		if len(sub) != s*s {
			continue
		}
		ox, oy := (i%3)*s, (i/3)*s
		for y := 0; y < s; y++ {
			copy(field.Data[(oy+y)*field.Size+ox:(oy+y)*field.Size+ox+s], sub[y*s:(y+1)*s])
		}
	}
	return field
}

var gauss5 = [25]float64{
	1, 4, 7, 4, 1,
	4, 16, 26, 16, 4,
	7, 26, 41, 26, 7,
	4, 16, 26, 16, 4,
	1, 4, 7, 4, 1,
}

const gauss5Sum = 273

// Smooth applies a normalized 5x5 Gaussian to the whole field. Samples past
// the border reuse the nearest in-range sample.
func Smooth(src *ElevationField) *ElevationField {
	n := src.Size
	dst := NewElevationField(n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			var acc float64
			for ky := -2; ky <= 2; ky++ {
				row := clamp(y+ky, n) * n
				for kx := -2; kx <= 2; kx++ {
					acc += src.Data[row+clamp(x+kx, n)] * gauss5[(ky+2)*5+kx+2]
				}
			}
			dst.Data[y*n+x] = acc / gauss5Sum
		}
	}
	return dst
}
