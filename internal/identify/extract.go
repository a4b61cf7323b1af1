package identify

import (
	"regexp"
	"strings"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/lookup"
	"github.com/rs/zerolog/log"
)

var (
	dimensions3Re = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)`)
	diagonalRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:in|inch|inches|cm)\s*(?:diagonal|screen)`)
	storageRe     = regexp.MustCompile(`(\d+)\s*(?:gb|tb|gigabyte|terabyte)`)
	weightRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:lbs?|pounds?|kg|kilograms?|g|grams?)\b`)
	powerRe       = regexp.MustCompile(`(\d+)\s*(?:v|volts?|w|watts?)\b`)
)

// ExtractStructured pulls brand, model, category and specifications out of
// the item's text. Brand and model read by OCR take precedence; when both
// are present and the model is substantial the text is not scanned at all.
func ExtractStructured(it item.Item) item.ProductInfo {
	var info item.ProductInfo
	if len(it.OCRBrands) > 0 {
		info.Brand = lookup.TitleCase(it.OCRBrands[0])
	}
	if len(it.OCRModelNumbers) > 0 {
		info.Model = strings.ToUpper(it.OCRModelNumbers[0])
	}
	if info.Brand != "" && len(info.Model) >= 4 {
		log.Debug().Str("brand", info.Brand).Str("model", info.Model).Msg("using OCR brand and model")
		return info
	}

	sources := []string{it.Description, it.EnhancedDescription, it.OCRText}
	if it.ObjectDetection != nil && it.ObjectDetection.AdditionalText != "" {
		sources = append(sources, it.ObjectDetection.AdditionalText)
	}
	text := strings.ToLower(strings.Join(sources, " "))

	if info.Brand == "" {
		if b, ok := lookup.FirstBrand(text); ok {
			info.Brand = lookup.TitleCase(b)
		}
	}
	if info.Model == "" {
		if m, ok := lookup.FindTextModel(text); ok {
			info.Model = m
		}
	}
	info.Category = lookup.CategorizeText(text)
	info.Specifications = extractSpecs(text)
	return info
}

func extractSpecs(text string) map[string]string {
	specs := map[string]string{}
	if m := dimensions3Re.FindStringSubmatch(text); m != nil {
		specs["dimensions"] = m[1] + "x" + m[2] + "x" + m[3]
	} else if m := diagonalRe.FindStringSubmatch(text); m != nil {
		specs["dimensions"] = m[1]
	}
	if m := storageRe.FindStringSubmatch(text); m != nil {
		specs["storage"] = m[1] + " GB"
	}
	if m := weightRe.FindStringSubmatch(text); m != nil {
		specs["weight"] = m[1]
	}
	if m := powerRe.FindStringSubmatch(text); m != nil {
		specs["power"] = m[1] + "V/W"
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}
