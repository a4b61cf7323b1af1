package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/raine/auction-bot/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloader_Success(t *testing.T) {
	imageData := []byte{0x89, 0x50, 0x4E, 0x47} // PNG magic bytes
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	}))
	defer ts.Close()

	data, err := NewDownloader().WithUserAgent("test-agent").Download(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestDownloader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		maxSize int64
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>"))
			},
		},
		{
			name:    "too large",
			maxSize: 10,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				w.Write(make([]byte, 100))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			d := NewDownloader()
			if tt.maxSize > 0 {
				d.WithMaxSize(tt.maxSize)
			}
			_, err := d.Download(context.Background(), ts.URL)
			assert.Error(t, err)
		})
	}
}

func TestDownloader_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been canceled")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDownloader().Download(ctx, ts.URL)
	assert.Error(t, err)
}

func grayImage(w, h int, f func(x, y int) uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.SetGray(x, y, color.Gray{Y: f(x, y)})
		}
	}
	return g
}

func TestThresholdAndContrast(t *testing.T) {
	g := grayImage(3, 1, func(x, _ int) uint8 { return []uint8{100, 150, 151}[x] })

	th := Threshold(g, BinaryThreshold)
	assert.Equal(t, []uint8{0, 0, 255}, th.Pix)

	c := Contrast(g)
	assert.Equal(t, []uint8{100, 175, 176}, c.Pix)

	bright := Contrast(grayImage(1, 1, func(int, int) uint8 { return 250 }))
	assert.Equal(t, uint8(255), bright.Pix[0])
	dark := Contrast(grayImage(1, 1, func(int, int) uint8 { return 10 }))
	assert.Equal(t, uint8(0), dark.Pix[0])
}

func TestCropBottom(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 100))
	assert.Equal(t, 95, CropBottom(img, 0.05).Bounds().Dy())
	assert.Equal(t, 100, CropBottom(img, 0).Bounds().Dy())
}

func TestSobel_FlatImageHasNoEdges(t *testing.T) {
	s := Sobel(grayImage(5, 5, func(int, int) uint8 { return 80 }))
	for _, p := range s.Pix {
		assert.Equal(t, uint8(0), p)
	}
}

func TestVariants(t *testing.T) {
	g := grayImage(4, 4, func(x, _ int) uint8 { return uint8(x * 60) })
	assert.Len(t, Variants(g, VariantOptions{}), 2)
	assert.Len(t, Variants(g, VariantOptions{Adaptive: true, Edges: true}), 4)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Model XR-55 $20 50% #a/b", CleanText("  Model\n XR-55 \t $20 50% #a/b "))
	assert.Equal(t, "hello world", CleanText("hello ™ world"))
}

func TestFilterFragments(t *testing.T) {
	assert.Equal(t, []string{"exactly 11c"}, FilterFragments([]string{"short", "exactly 11c", "ten chars!"}))
}

func TestEnhancedDescription(t *testing.T) {
	t.Run("brands first when missing from description", func(t *testing.T) {
		got := EnhancedDescription("55 inch television", "SAMSUNG UN55 smart tv!", []string{"samsung"}, []string{"un55"})
		assert.Equal(t, "samsung un55 55 inch television SAMSUNG UN55 smart tv", got)
	})
	t.Run("description first when it already names them", func(t *testing.T) {
		got := EnhancedDescription("Samsung TV", "samsung label", []string{"samsung"}, nil)
		assert.Equal(t, "Samsung TV samsung label", got)
	})
	t.Run("no ocr", func(t *testing.T) {
		assert.Equal(t, "Lamp with shade", EnhancedDescription("Lamp  with (shade)", "", nil, nil))
	})
}

type fakePaths struct{ dir string }

func (p fakePaths) ImagePath(lotID string, n int, suffix string) string {
	return filepath.Join(p.dir, fmt.Sprintf("item_%s_image_%d%s.jpg", lotID, n, suffix))
}

type fakeEngine struct {
	texts []string
	calls int
	err   error
}

func (f *fakeEngine) Recognize(context.Context, image.Image) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	t := f.texts[f.calls%len(f.texts)]
	f.calls++
	return t, nil
}

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
}

func TestEnricher_Enrich(t *testing.T) {
	ts := pngServer(t)
	defer ts.Close()
	dir := t.TempDir()

	engine := &fakeEngine{texts: []string{"DEWALT Model: DCD771 cordless", "noise"}}
	e := NewEnricher(NewDownloader(), engine, fakePaths{dir}, Options{CropFraction: 0.05})

	in := item.Item{
		LotNumber:   "Lot #9",
		Description: "Lot #9: Cordless drill",
		Images:      []string{ts.URL + "/a.png", ts.URL + "/missing.png"},
	}
	out := e.Enrich(context.Background(), in)

	assert.Equal(t, []string{"dewalt"}, out.OCRBrands)
	assert.Contains(t, out.OCRModelNumbers, "dcd771")
	assert.Contains(t, out.OCRText, "DEWALT Model DCD771 cordless")
	assert.Contains(t, out.EnhancedDescription, "dewalt")
	assert.Contains(t, out.EnhancedDescription, "Cordless drill")
	assert.Empty(t, in.OCRBrands, "input must not be modified")

	_, err := os.Stat(filepath.Join(dir, "item_Lot_9_image_1.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "item_Lot_9_image_1_gray.jpg"))
	assert.NoError(t, err)
}

func TestEnricher_NoImages(t *testing.T) {
	e := NewEnricher(NewDownloader(), &fakeEngine{err: errors.New("unused")}, fakePaths{t.TempDir()}, Options{})
	out := e.Enrich(context.Background(), item.Item{Description: "Lot #1: Old lamp!"})

	assert.Equal(t, "Old lamp", out.EnhancedDescription)
	assert.Equal(t, []string{}, out.OCRBrands)
	assert.Equal(t, []string{}, out.OCRModelNumbers)
	assert.Empty(t, out.OCRText)
}

func TestEnricher_SkipLastImage(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	e := NewEnricher(NewDownloader(), nil, fakePaths{t.TempDir()}, Options{SkipLastImage: true})
	e.Enrich(context.Background(), item.Item{Images: []string{ts.URL + "/1", ts.URL + "/2", ts.URL + "/3"}})
	assert.Equal(t, 2, hits)
}
