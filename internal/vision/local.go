package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/raine/auction-bot/internal/lookup"
	"github.com/raine/auction-bot/internal/ocr"
)

const (
	maxDimension      = 1500
	colorClusters     = 5
	kmeansIterations  = 20
	kmeansSampleLimit = 20000
	edgeMagnitude     = 100
	reflectiveVar     = 3000
	textHeavyDensity  = 0.1
	minBlobShare      = 0.01
)

// LocalAnalyzer inspects an image file without any remote service: dominant
// colors, overall shape and a few coarse texture and blob heuristics.
type LocalAnalyzer struct {
	CropFraction float64
}

func NewLocalAnalyzer() *LocalAnalyzer {
	return &LocalAnalyzer{CropFraction: 0.05}
}

// Analyze implements Analyzer.
func (a *LocalAnalyzer) Analyze(_ context.Context, path, _ string) (*Result, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return a.AnalyzeImage(img), nil
}

// AnalyzeImage runs the heuristics on a decoded image.
func (a *LocalAnalyzer) AnalyzeImage(img image.Image) *Result {
	img = imaging.Fit(img, maxDimension, maxDimension, imaging.Box)
	img = ocr.CropBottom(img, a.CropFraction)
	nrgba := imaging.Clone(img)
	res := &Result{}

	for _, c := range dominantColors(nrgba, colorClusters, 3) {
		res.Colors = append(res.Colors, lookup.ColorName(c[0], c[1], c[2]))
	}

	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	res.Objects = append(res.Objects, shapeTag(w, h))

	gray := ocr.Grayscale(nrgba)
	edges := ocr.Sobel(ocr.Grayscale(imaging.Blur(gray, 1.0)))

	shapes := countShapes(gray)
	if shapes.rectangles > 2 {
		res.Objects = append(res.Objects, "electronic_device")
	}
	if shapes.circles > 3 {
		res.Objects = append(res.Objects, "mechanical_object")
	}
	if shapes.triangles > 2 {
		res.Objects = append(res.Objects, "structured_object")
	}
	if variance(gray) > reflectiveVar {
		res.Objects = append(res.Objects, "reflective_object")
	}
	if edgeDensity(edges) > textHeavyDensity {
		res.Objects = append(res.Objects, "text_heavy_object")
	}
	return res
}

func shapeTag(w, h int) string {
	if h == 0 {
		return "square_item"
	}
	ratio := float64(w) / float64(h)
	switch {
	case ratio > 1.5:
		return "wide_item"
	case ratio < 0.67:
		return "tall_item"
	}
	return "square_item"
}

// dominantColors clusters the pixels of img with k-means and returns the
// centers of the n largest clusters, largest first. Centers are seeded from
// evenly spaced samples so the result is deterministic.
func dominantColors(img *image.NRGBA, k, n int) [][3]int {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return nil
	}
	step := max(1, total/kmeansSampleLimit)
	samples := make([][3]float64, 0, total/step+1)
	for i := 0; i < total; i += step {
		x, y := i%b.Dx(), i/b.Dx()
		o := y*img.Stride + x*4
		samples = append(samples, [3]float64{float64(img.Pix[o]), float64(img.Pix[o+1]), float64(img.Pix[o+2])})
	}
	k = min(k, len(samples))

	centers := make([][3]float64, k)
	for i := range centers {
		centers[i] = samples[i*len(samples)/k]
	}
	labels := make([]int, len(samples))
	counts := make([]int, k)

	for iter := 0; iter < kmeansIterations; iter++ {
		for i := range counts {
			counts[i] = 0
		}
		sums := make([][3]float64, k)
		for i, s := range samples {
			best, bestDist := 0, math.MaxFloat64
			for c, center := range centers {
				if d := sqDist(s, center); d < bestDist {
					best, bestDist = c, d
				}
			}
			labels[i] = best
			counts[best]++
			for j := 0; j < 3; j++ {
				sums[best][j] += s[j]
			}
		}

		var moved float64
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			var next [3]float64
			for j := 0; j < 3; j++ {
				next[j] = sums[c][j] / float64(counts[c])
			}
			moved = math.Max(moved, sqDist(next, centers[c]))
			centers[c] = next
		}
		if moved < 0.04 {
			break
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	var out [][3]int
	for _, c := range order[:min(n, k)] {
		if counts[c] == 0 {
			continue
		}
		out = append(out, [3]int{int(centers[c][0]), int(centers[c][1]), int(centers[c][2])})
	}
	return out
}

func sqDist(a, b [3]float64) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

func variance(g *image.Gray) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w*h == 0 {
		return 0
	}
	var sum, sq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := float64(g.Pix[y*g.Stride+x])
			sum += p
			sq += p * p
		}
	}
	n := float64(w * h)
	mean := sum / n
	return sq/n - mean*mean
}

// edgeDensity is the share of pixels whose gradient magnitude marks an edge.
func edgeDensity(edges *image.Gray) float64 {
	w, h := edges.Rect.Dx(), edges.Rect.Dy()
	if w*h == 0 {
		return 0
	}
	var n int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*edges.Stride+x] >= edgeMagnitude {
				n++
			}
		}
	}
	return float64(n) / float64(w*h)
}

type shapeCounts struct {
	rectangles, circles, triangles int
}

// countShapes splits the image into dark and light regions around its mean
// level and classifies every region covering at least 1% of the image that
// does not touch the border. The share of the bounding box a region fills
// tells the shapes apart: about 1 for rectangles, pi/4 for circles and 1/2
// for triangles.
func countShapes(g *image.Gray) shapeCounts {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	var counts shapeCounts
	if w*h == 0 {
		return counts
	}

	var sum int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += int(g.Pix[y*g.Stride+x])
		}
	}
	mean := uint8(sum / (w * h))
	fg := func(x, y int) bool { return g.Pix[y*g.Stride+x] > mean }

	visited := make([]bool, w*h)
	stack := make([]int, 0, 64)
	minArea := int(float64(w*h) * minBlobShare)

	for start := 0; start < w*h; start++ {
		if visited[start] {
			continue
		}
		sx, sy := start%w, start/w
		want := fg(sx, sy)
		visited[start] = true
		stack = append(stack[:0], start)

		area := 0
		minX, minY, maxX, maxY := sx, sy, sx, sy
		border := false
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w
			area++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				border = true
			}
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				q := ny*w + nx
				if !visited[q] && fg(nx, ny) == want {
					visited[q] = true
					stack = append(stack, q)
				}
			}
		}

		if border || area < minArea {
			continue
		}
		bw, bh := maxX-minX+1, maxY-minY+1
		extent := float64(area) / float64(bw*bh)
		aspect := float64(bw) / float64(bh)
		switch {
		case extent > 0.9:
			if aspect > 0.5 && aspect < 2.0 {
				counts.rectangles++
			}
		case extent > 0.7 && extent <= 0.85 && aspect > 0.8 && aspect < 1.25:
			counts.circles++
		case extent > 0.4 && extent < 0.6:
			counts.triangles++
		}
	}
	return counts
}
