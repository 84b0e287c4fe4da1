package main

import "math"

// SlopeAngles returns the slope in degrees for every pixel of the center
// size*size block of field, using a Sobel gradient and res meters per sample.
func SlopeAngles(field *ElevationField, size int, res float64) []float64 {
	angles := make([]float64, size*size)
	n := field.Size
	off := (n - size) / 2
	z := field.Data
	for py := 0; py < size; py++ {
		gy := off + py
		for px := 0; px < size; px++ {
			gx := off + px
			tl := z[(gy-1)*n+gx-1]
			tc := z[(gy-1)*n+gx]
			tr := z[(gy-1)*n+gx+1]
			ml := z[gy*n+gx-1]
			mr := z[gy*n+gx+1]
			bl := z[(gy+1)*n+gx-1]
			bc := z[(gy+1)*n+gx]
			br := z[(gy+1)*n+gx+1]

			dzdx := ((tr + 2*mr + br) - (tl + 2*ml + bl)) / (8 * res)
			dzdy := ((bl + 2*bc + br) - (tl + 2*tc + tr)) / (8 * res)
			angles[py*size+px] = math.Atan(math.Sqrt(dzdx*dzdx+dzdy*dzdy)) * 180 / math.Pi
		}
	}
	return angles
}
