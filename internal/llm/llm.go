// Package llm asks a language model to identify an auction lot from its
// noisy text and to suggest web and retail search queries for it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/lookup"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrNoInput is returned when an item has no text to send to the model.
var ErrNoInput = errors.New("no input text available")

// Result is the model's identification of a lot.
type Result struct {
	ProductType string
	Brand       string
	Model       string
	Attributes  string
	GoogleQuery string
	AmazonQuery string
	// Insufficient is set when the model could not name the product type,
	// brand and model, or gave no queries. Such lots are not worth pricing.
	Insufficient bool
}

// ProductInfo converts the result for storage on an item.
func (r *Result) ProductInfo() *item.LLMProductInfo {
	return &item.LLMProductInfo{
		ProductType: r.ProductType,
		Brand:       r.Brand,
		Model:       r.Model,
		Attributes:  r.Attributes,
	}
}

// QueryGenerator produces search queries for an item.
type QueryGenerator interface {
	GenerateSearchQuery(ctx context.Context, it item.Item) (*Result, error)
}

// Completer sends a single user prompt to a chat model and returns the reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator implements QueryGenerator on top of any Completer.
type Generator struct {
	completer Completer
}

func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c}
}

// GenerateSearchQuery implements QueryGenerator.
func (g *Generator) GenerateSearchQuery(ctx context.Context, it item.Item) (*Result, error) {
	input := BuildInput(it)
	if strings.TrimSpace(input) == "" {
		return nil, ErrNoInput
	}

	text, err := g.completer.Complete(ctx, BuildPrompt(input))
	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	res, err := ParseResponse(text)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	if res.Insufficient {
		metrics.LLMRequests.WithLabelValues("insufficient").Inc()
		log.Warn().
			Str("brand", res.Brand).
			Str("model", res.Model).
			Str("type", res.ProductType).
			Msg("llm could not confidently identify item")
	} else {
		metrics.LLMRequests.WithLabelValues("ok").Inc()
		log.Info().
			Str("brand", res.Brand).
			Str("model", res.Model).
			Str("type", res.ProductType).
			Str("googleQuery", res.GoogleQuery).
			Str("amazonQuery", res.AmazonQuery).
			Msg("llm identified item")
	}
	return res, nil
}

// BuildInput collects the item's text into labelled sections.
func BuildInput(it item.Item) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}

	add("ITEM DESCRIPTION", it.Description)
	if it.EnhancedDescription != it.Description {
		add("ENHANCED DESCRIPTION", it.EnhancedDescription)
	}
	add("OCR TEXT", it.OCRText)
	add("DETECTED BRANDS", strings.Join(it.OCRBrands, ", "))
	add("DETECTED MODEL NUMBERS", strings.Join(it.OCRModelNumbers, ", "))

	if det := it.ObjectDetection; det != nil {
		var objects []string
		for _, obj := range det.Objects {
			if !lookup.GenericObjects[obj] {
				objects = append(objects, obj)
			}
		}
		add("DETECTED OBJECTS", strings.Join(objects, ", "))
		add("CV DETECTED BRANDS", strings.Join(det.Brands, ", "))
		add("CV DETECTED MODEL NUMBERS", strings.Join(det.ModelNumbers, ", "))
		add("DETECTED COLORS", strings.Join(det.Colors, ", "))
	}

	return strings.Join(parts, "\n\n")
}

// BuildPrompt embeds input into the identification prompt.
func BuildPrompt(input string) string {
	return strings.Replace(queryPrompt, "{input_text}", input, 1)
}

type response struct {
	ProductType string `json:"identified_product_type"`
	Brand       string `json:"brand"`
	Model       string `json:"model_name_number"`
	Attributes  string `json:"other_relevant_attributes"`
	GoogleQuery string `json:"google_search_query"`
	AmazonQuery string `json:"amazon_search_query"`
}

// ParseResponse decodes the JSON object in a model reply.
func ParseResponse(text string) (*Result, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	// missing fields count as Unknown
	resp := response{ProductType: "Unknown", Brand: "Unknown", Model: "Unknown", Attributes: "N/A"}
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}

	res := &Result{
		ProductType: resp.ProductType,
		Brand:       resp.Brand,
		Model:       resp.Model,
		Attributes:  resp.Attributes,
		GoogleQuery: resp.GoogleQuery,
		AmazonQuery: resp.AmazonQuery,
	}
	res.Insufficient = unidentified(res.ProductType) || unidentified(res.Brand) || unidentified(res.Model) ||
		res.GoogleQuery == "" || res.AmazonQuery == ""
	return res, nil
}

func unidentified(v string) bool {
	return v == "" || v == "Unknown" || v == "unclear"
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", truncate(text, 100))
	}
	return text[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var queryPrompt = strings.TrimSpace(dedent.Dedent(`
	You are an AI assistant specialized in analyzing noisy text from auction item descriptions to accurately identify products.

	Context: You will be given raw text extracted via Optical Character Recognition (OCR) from images or descriptions on auction websites. This text is often imperfect and may contain:
	- OCR errors (misspelled words, incorrect characters)
	- Nonsense words or character strings
	- Irrelevant information (lot numbers, auction terms like "AS IS", "Untested", location details, seller notes)
	- Poor formatting

	Primary Goal: Your main objective is to meticulously analyze the input text, filter out the noise, identify the core product being sold, and extract its key identifying information, particularly the brand and model/specific identifier.

	Instructions:
	1. Analyze Input: Carefully read the entire [Input OCR Text] provided below.
	2. Filter Noise: Identify and disregard irrelevant text. This includes:
	   - Obvious OCR errors and gibberish.
	   - Common auction terms and conditions (e.g., "Sold As Is", "No Reserve", "Buyer's Premium", "Lot #").
	   - Generic descriptions not specific to the product (e.g., "Good condition", "See photos").
	   - Focus only on the words and numbers that describe the actual item.
	3. Identify Product: Determine the most likely type of product being described (e.g., Laptop, Coffee Maker, Wristwatch, Collectible Figurine, Power Tool).
	4. Extract Key Details: Search the filtered text for specific identifiers:
	   - Brand Name: Look for known manufacturer names (e.g., Apple, Keurig, Seiko, Funko, Milwaukee). If multiple potential brands appear, choose the most likely one associated with the product type. If none is clear, you MUST state "Unknown" (not "unclear" or empty string).
	   - Model Name/Number: Look for specific model names, model numbers, or series identifiers (e.g., MacBook Air M1, K-Supreme, SKX007, Pop! #54, M18 Fuel). If none is clear, you MUST state "Unknown" (not "unclear" or empty string).
	   - Other Critical Attributes: Note any other highly relevant details necessary for identification (e.g., Size, Color, Year, Capacity, Part Number) but keep it concise. Omit if not clearly present or essential.
	5. Generate Search Queries: Based only on the reliably identified Brand, Model, and Product Type, formulate concise and effective search query strings suitable for:
	   - A general web search (like Google).
	   - An e-commerce search (like Amazon). Prioritize Brand + Model + Product Type.

	IMPORTANT: When you cannot confidently identify the product, brand, or model (confidence below 70%), you MUST mark it as "Unknown". DO NOT guess at specifics when uncertain. If the input is too vague, marking fields as "Unknown" is the correct response.

	Input OCR Text:
	{input_text}

	Output Format:
	Please provide your analysis STRICTLY in the following JSON format:
	{
	  "identified_product_type": "Specific type of product identified or Unknown",
	  "brand": "Identified Brand Name or Unknown",
	  "model_name_number": "Identified Model Name/Number or Unknown",
	  "other_relevant_attributes": "Concise list of other key details, or N/A",
	  "google_search_query": "Optimized search string for Google Search, or empty string if too uncertain",
	  "amazon_search_query": "Optimized search string for Amazon Search, or empty string if too uncertain"
	}
`))
