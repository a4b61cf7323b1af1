package lookup

import "math"

// NamedColor is a reference color for nearest-name matching.
type NamedColor struct {
	Name    string
	R, G, B int
}

var NamedColors = []NamedColor{
	{"red", 255, 0, 0},
	{"green", 0, 255, 0},
	{"blue", 0, 0, 255},
	{"black", 0, 0, 0},
	{"white", 255, 255, 255},
	{"yellow", 255, 255, 0},
	{"purple", 128, 0, 128},
	{"orange", 255, 165, 0},
	{"pink", 255, 192, 203},
	{"gray", 128, 128, 128},
	{"brown", 165, 42, 42},
	{"silver", 192, 192, 192},
	{"gold", 255, 215, 0},
}

// ColorName returns the reference color nearest to r, g, b by Euclidean
// distance in RGB space.
func ColorName(r, g, b int) string {
	best := ""
	bestDist := math.MaxFloat64
	for _, c := range NamedColors {
		dr, dg, db := float64(r-c.R), float64(g-c.G), float64(b-c.B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	return best
}
