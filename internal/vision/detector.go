// Package vision detects objects, logos, model numbers and colors in lot
// photos and turns them into a richer search query.
package vision

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/rs/zerolog/log"
)

const maxRichQueryLength = 200

// Result is what one analyzer found in one image.
type Result struct {
	Objects   []string
	Brands    []string
	ModelInfo []string
	Colors    []string
	Text      []string
}

// Analyzer inspects the image stored at path. url is where the image was
// downloaded from and may be empty.
type Analyzer interface {
	Analyze(ctx context.Context, path, url string) (*Result, error)
}

// ImagePather names the local file an item's nth image was saved under.
type ImagePather interface {
	ImagePath(lotID string, n int, suffix string) string
}

// Detection is the merged result for one image.
type Detection struct {
	Result
	Confidence float64
}

type Detector struct {
	analyzers []Analyzer
	paths     ImagePather
	delay     time.Duration
}

// NewDetector creates a detector that consults every analyzer for each
// image. A nil analyzer is ignored.
func NewDetector(paths ImagePather, delay time.Duration, analyzers ...Analyzer) *Detector {
	d := &Detector{paths: paths, delay: delay}
	for _, a := range analyzers {
		if a != nil {
			d.analyzers = append(d.analyzers, a)
		}
	}
	return d
}

// Detect runs all analyzers on one image and merges what they found. An
// analyzer that fails is logged and skipped.
func (d *Detector) Detect(ctx context.Context, path, url string) Detection {
	var merged Result
	for _, a := range d.analyzers {
		r, err := a.Analyze(ctx, path, url)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msgf("%T failed", a)
			continue
		}
		merged.merge(r)
	}
	merged.dedupe()
	return Detection{Result: merged, Confidence: Confidence(len(merged.Objects) + len(merged.Brands) + len(merged.ModelInfo))}
}

// Confidence scales a detection count to [0.1, 0.9], or 0 for nothing.
func Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return min(0.9, float64(n)/10+0.1)
}

// Enrich implements item.Stage. It analyzes every saved image except the
// trailing footer photo and sets the object detection and rich query.
func (d *Detector) Enrich(ctx context.Context, in item.Item) item.Item {
	it := in.Clone()
	if len(it.Images) == 0 {
		log.Warn().Str("lot", it.LotNumber).Msg("no images for object detection")
		return it
	}

	images := it.Images
	if len(images) > 1 {
		images = images[:len(images)-1]
	}

	lotID := it.LotID()
	var all Result
	for i, url := range images {
		if ctx.Err() != nil {
			break
		}
		path := d.paths.ImagePath(lotID, i+1, "")
		if _, err := os.Stat(path); err != nil {
			log.Warn().Str("path", path).Msg("image file not found")
			continue
		}

		det := d.Detect(ctx, path, url)
		log.Info().
			Int("image", i+1).
			Int("objects", len(det.Objects)).
			Int("brands", len(det.Brands)).
			Msg("detection results")
		all.merge(&det.Result)

		if d.delay > 0 && i < len(images)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(d.delay):
			}
		}
	}
	all.dedupe()

	it.ObjectDetection = &item.Detection{
		Objects:        all.Objects,
		Brands:         all.Brands,
		ModelNumbers:   all.ModelInfo,
		Colors:         all.Colors,
		AdditionalText: strings.Join(all.Text, " "),
		Confidence:     Confidence(len(all.Objects) + len(all.Brands) + len(all.ModelInfo)),
	}
	it.RichSearchQuery = RichQuery(it)
	log.Info().Str("lot", it.LotNumber).Str("query", it.RichSearchQuery).Msg("generated rich search query")
	return it
}

// RichQuery combines detected brands, model numbers, the top three objects
// and top two colors with the start of the description. Without detections
// it is the cleaned description alone.
func RichQuery(it item.Item) string {
	desc := it.EnhancedDescription
	if desc == "" {
		desc = it.Description
	}
	desc = item.StripLotPrefix(desc)

	det := it.ObjectDetection
	if det == nil {
		return desc
	}

	var parts []string
	add := func(values []string, limit int) {
		if len(values) > limit {
			values = values[:limit]
		}
		if s := strings.TrimSpace(strings.Join(values, " ")); s != "" {
			parts = append(parts, s)
		}
	}
	add(det.Brands, len(det.Brands))
	add(det.ModelNumbers, len(det.ModelNumbers))
	add(det.Objects, 3)
	add(det.Colors, 2)
	if len(parts) == 0 {
		return desc
	}

	words := 50
	if len(parts) > 2 {
		words = 30
	}
	descWords := strings.Fields(desc)
	if len(descWords) > words {
		descWords = descWords[:words]
	}

	query := strings.Join(strings.Fields(strings.Join(parts, " ")+" "+strings.Join(descWords, " ")), " ")
	if len(query) > maxRichQueryLength {
		query = query[:maxRichQueryLength]
	}
	return query
}

func (r *Result) merge(o *Result) {
	if o == nil {
		return
	}
	r.Objects = append(r.Objects, o.Objects...)
	r.Brands = append(r.Brands, o.Brands...)
	r.ModelInfo = append(r.ModelInfo, o.ModelInfo...)
	r.Colors = append(r.Colors, o.Colors...)
	r.Text = append(r.Text, o.Text...)
}

func (r *Result) dedupe() {
	r.Objects = item.Dedupe(r.Objects)
	r.Brands = item.Dedupe(r.Brands)
	r.ModelInfo = item.Dedupe(r.ModelInfo)
	r.Colors = item.Dedupe(r.Colors)
	r.Text = item.Dedupe(r.Text)
}
