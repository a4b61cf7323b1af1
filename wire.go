package main

import (
	"context"
	"fmt"
	"time"

	"github.com/raine/auction-bot/config"
	"github.com/raine/auction-bot/internal/files"
	"github.com/raine/auction-bot/internal/identify"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/llm"
	"github.com/raine/auction-bot/internal/ocr"
	"github.com/raine/auction-bot/internal/pricing"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/raine/auction-bot/internal/vision"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// searchInterval spaces outbound price searches.
const searchInterval = 2 * time.Second

// newEnrichStage chains OCR, object detection and product identification.
func newEnrichStage(cfg *config.Config, layout files.Layout) item.Stage {
	var engine ocr.Engine
	tess := ocr.NewTesseract(cfg.TesseractPath, cfg.TesseractArgs)
	if tess.Available() {
		engine = tess
	} else {
		log.Warn().Str("path", cfg.TesseractPath).Msg("tesseract not found, OCR disabled")
	}
	enricher := ocr.NewEnricher(ocr.NewDownloader(), engine, layout, ocr.Options{
		SkipLastImage: cfg.OCRSkipLastImage,
		CropFraction:  cfg.OCRCropFraction,
		ImageDelay:    cfg.ImageDelay,
	})
	stages := []item.Stage{enricher.Enrich}

	if cfg.ObjectDetectionEnabled {
		var analyzers []vision.Analyzer
		if cfg.CloudVisionEnabled {
			analyzers = append(analyzers, vision.NewCloudVision(cfg.GoogleAPIKey, ""))
		}
		local := vision.NewLocalAnalyzer()
		local.CropFraction = cfg.OCRCropFraction
		analyzers = append(analyzers, local)
		stages = append(stages, vision.NewDetector(layout, cfg.ImageDelay, analyzers...).Enrich)
	}

	var catalog identify.Catalog
	if cfg.ProductSearchEnabled {
		catalog = identify.KeywordCatalog{}
	}
	stages = append(stages, identify.New(catalog).Identify)

	return item.Chain(stages...)
}

func newQueryGenerator(ctx context.Context, cfg *config.Config) (llm.QueryGenerator, error) {
	var c llm.Completer
	switch cfg.LLMProvider {
	case "gemini":
		g, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini: %w", err)
		}
		c = g
	default:
		c = llm.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, "")
	}
	log.Info().Str("provider", cfg.LLMProvider).Msg("llm query generation enabled")
	return llm.NewGenerator(c), nil
}

// newFinder builds the price finder. store may be nil, which disables the
// LLM and price caches.
func newFinder(ctx context.Context, cfg *config.Config, layout files.Layout, store *storage.SQLiteStore) (*pricing.Finder, error) {
	opts := pricing.Options{
		Scraper: pricing.NewResultsScraper(""),
		Limiter: rate.NewLimiter(rate.Every(searchInterval), 1),
	}
	if cfg.LLMEnabled {
		gen, err := newQueryGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts.LLM = gen
		if store != nil {
			opts.LLM = llm.NewCachedGenerator(gen, store)
		}
	}
	if cfg.UseGoogleAPI {
		opts.SearchAPI = pricing.NewSearchAPI(cfg.GoogleAPIKey, cfg.GoogleCX, "")
	}
	if cfg.RetailSearchEnabled {
		opts.Retail = pricing.NewRetailSearcher(cfg.RetailSearchURL, layout.SaveHTML)
	}
	if store != nil {
		opts.Cache = store
	}
	return pricing.NewFinder(opts), nil
}
