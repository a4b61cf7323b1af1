// Package ocr downloads lot photos, preprocesses them and runs OCR to
// build an enhanced description with brands and model numbers.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ImagePather names the files an image is saved under.
type ImagePather interface {
	ImagePath(lotID string, n int, suffix string) string
}

// Options tunes the enricher.
type Options struct {
	// SkipLastImage leaves out the final photo, usually a standard
	// auction info footer.
	SkipLastImage bool
	// CropFraction is the bottom share of each photo removed before OCR.
	CropFraction float64
	Variants     VariantOptions
	ImageDelay   time.Duration
}

// Enricher runs the image and OCR stage.
type Enricher struct {
	downloader *Downloader
	engine     Engine
	paths      ImagePather
	opts       Options
}

// NewEnricher creates an enricher. engine may be nil, in which case images
// are still downloaded and saved but no text is extracted.
func NewEnricher(downloader *Downloader, engine Engine, paths ImagePather, opts Options) *Enricher {
	return &Enricher{downloader: downloader, engine: engine, paths: paths, opts: opts}
}

// Enrich implements item.Stage.
func (e *Enricher) Enrich(ctx context.Context, in item.Item) item.Item {
	it := in.Clone()
	cleanDesc := it.CleanDescription()

	urls := it.Images
	if e.opts.SkipLastImage && len(urls) > 1 {
		urls = urls[:len(urls)-1]
	}
	if len(urls) == 0 {
		log.Warn().Str("lot", it.LotNumber).Msg("no images to process")
	}

	lotID := it.LotID()
	var fragments, brands, models []string
	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && e.opts.ImageDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.opts.ImageDelay):
			}
		}

		text, err := e.processImage(ctx, lotID, i+1, url)
		if err != nil {
			metrics.ImagesProcessed.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("lot", it.LotNumber).Int("image", i+1).Msg("failed to process image")
			continue
		}
		metrics.ImagesProcessed.WithLabelValues("ok").Inc()
		if text == "" {
			log.Debug().Int("image", i+1).Msg("no text extracted")
			continue
		}

		f := Analyze(text)
		for _, b := range f.Brands {
			log.Info().Int("image", i+1).Str("brand", b).Msg("found brand in image")
		}
		fragments = append(fragments, f.Text)
		brands = append(brands, f.Brands...)
		models = append(models, f.ModelNumbers...)
	}

	brands = item.Dedupe(brands)
	models = item.Dedupe(models)
	it.OCRBrands = brands
	it.OCRModelNumbers = models
	if it.OCRBrands == nil {
		it.OCRBrands = []string{}
	}
	if it.OCRModelNumbers == nil {
		it.OCRModelNumbers = []string{}
	}

	if len(fragments) == 0 {
		log.Warn().Str("lot", it.LotNumber).Msg("no OCR text extracted from any images")
		it.EnhancedDescription = EnhancedDescription(cleanDesc, "", nil, nil)
		return it
	}

	it.OCRText = strings.Join(FilterFragments(fragments), " ")
	it.EnhancedDescription = EnhancedDescription(cleanDesc, it.OCRText, brands, models)
	log.Info().Str("lot", it.LotNumber).Str("enhanced", truncate(it.EnhancedDescription, 100)).Msg("enhanced description with OCR text")
	return it
}

// processImage downloads and saves one photo and returns its cleaned OCR
// text, which is empty when nothing was recognized.
func (e *Enricher) processImage(ctx context.Context, lotID string, n int, url string) (string, error) {
	data, err := e.downloader.Download(ctx, url)
	if err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if err := imaging.Save(img, e.paths.ImagePath(lotID, n, "")); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	gray := Grayscale(CropBottom(img, e.opts.CropFraction))
	if err := imaging.Save(gray, e.paths.ImagePath(lotID, n, "_gray")); err != nil {
		log.Warn().Err(err).Msg("failed to save grayscale image")
	}

	if e.engine == nil {
		return "", nil
	}

	var outputs []string
	for _, v := range Variants(gray, e.opts.Variants) {
		text, err := e.engine.Recognize(ctx, v.Image)
		if err != nil {
			log.Warn().Err(err).Str("variant", v.Name).Msg("ocr failed")
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			outputs = append(outputs, t)
		}
	}
	return CleanText(strings.Join(outputs, " ")), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
