package ocr

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// BinaryThreshold is the gray level above which a pixel becomes white.
const BinaryThreshold = 150

// Variant is one preprocessed rendition of an image handed to OCR.
type Variant struct {
	Name  string
	Image image.Image
}

// VariantOptions selects the optional preprocessing variants.
type VariantOptions struct {
	Adaptive bool
	Edges    bool
}

// CropBottom removes the bottom fraction of img.
func CropBottom(img image.Image, fraction float64) image.Image {
	if fraction <= 0 {
		return img
	}
	b := img.Bounds()
	h := int(float64(b.Dy()) * (1 - fraction))
	if h <= 0 {
		return img
	}
	return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+h))
}

// Grayscale returns a single channel copy of img.
func Grayscale(img image.Image) *image.Gray {
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Pix[y*gray.Stride+x] = nrgba.Pix[y*nrgba.Stride+x*4]
		}
	}
	return gray
}

// Threshold maps pixels above t to white and the rest to black.
func Threshold(g *image.Gray, t uint8) *image.Gray {
	return mapGray(g, func(p uint8) uint8 {
		if p > t {
			return 255
		}
		return 0
	})
}

// Contrast applies px*1.5-50, clamped to [0, 255].
func Contrast(g *image.Gray) *image.Gray {
	return mapGray(g, func(p uint8) uint8 {
		return clamp(float64(p)*1.5 - 50)
	})
}

// AdaptiveThreshold compares each pixel with the mean of its block-sized
// neighbourhood minus c.
func AdaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	r := block / 2
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(g.Pix[y*g.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// Sobel returns the gradient magnitude of g, clamped to 255.
func Sobel(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return float64(g.Pix[y*g.Stride+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) + at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			out.Pix[y*out.Stride+x] = clamp(math.Hypot(gx, gy))
		}
	}
	return out
}

// Variants returns the renditions to OCR for a grayscale image: binary
// threshold and contrast stretch, plus the optional ones.
func Variants(g *image.Gray, opts VariantOptions) []Variant {
	out := []Variant{
		{Name: "threshold", Image: Threshold(g, BinaryThreshold)},
		{Name: "contrast", Image: Contrast(g)},
	}
	if opts.Adaptive {
		out = append(out, Variant{Name: "adaptive", Image: AdaptiveThreshold(g, 31, 10)})
	}
	if opts.Edges {
		// dark strokes on white
		out = append(out, Variant{Name: "edges", Image: invert(Sobel(g))})
	}
	return out
}

func invert(g *image.Gray) *image.Gray {
	return mapGray(g, func(p uint8) uint8 { return 255 - p })
}

func mapGray(g *image.Gray, f func(uint8) uint8) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for y := 0; y < g.Rect.Dy(); y++ {
		for x := 0; x < g.Rect.Dx(); x++ {
			out.Pix[y*out.Stride+x] = f(g.Pix[y*g.Stride+x])
		}
	}
	return out
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
