package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/raine/auction-bot/internal/lookup"
)

const CloudVisionBaseURL = "https://vision.googleapis.com/v1"

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type imageSource struct {
	ImageURI string `json:"imageUri"`
}

type annotateImage struct {
	Content string       `json:"content,omitempty"`
	Source  *imageSource `json:"source,omitempty"`
}

type annotateRequest struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateBody struct {
	Requests []annotateRequest `json:"requests"`
}

type annotation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type annotateResponse struct {
	Responses []struct {
		LocalizedObjectAnnotations []annotation `json:"localizedObjectAnnotations"`
		LogoAnnotations            []annotation `json:"logoAnnotations"`
		TextAnnotations            []annotation `json:"textAnnotations"`
		ImagePropertiesAnnotation  struct {
			DominantColors struct {
				Colors []struct {
					Color struct {
						Red   float64 `json:"red"`
						Green float64 `json:"green"`
						Blue  float64 `json:"blue"`
					} `json:"color"`
				} `json:"colors"`
			} `json:"dominantColors"`
		} `json:"imagePropertiesAnnotation"`
	} `json:"responses"`
}

var defaultFeatures = []annotateFeature{
	{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
	{Type: "LOGO_DETECTION", MaxResults: 5},
	{Type: "TEXT_DETECTION", MaxResults: 20},
	{Type: "LABEL_DETECTION", MaxResults: 10},
	{Type: "IMAGE_PROPERTIES", MaxResults: 5},
}

// CloudVision annotates images with the Google Cloud Vision REST API.
type CloudVision struct {
	httpClient *resty.Client
	apiKey     string
}

func NewCloudVision(apiKey, baseURL string) *CloudVision {
	if baseURL == "" {
		baseURL = CloudVisionBaseURL
	}
	return &CloudVision{
		apiKey: apiKey,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeaders(map[string]string{
				"Content-Type": "application/json",
				"Accept":       "application/json",
			}),
	}
}

// Analyze implements Analyzer. The remote URL is sent as the image source
// when given; otherwise the file at path is uploaded inline.
func (c *CloudVision) Analyze(ctx context.Context, path, url string) (*Result, error) {
	var img annotateImage
	if url != "" {
		img.Source = &imageSource{ImageURI: url}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		img.Content = base64.StdEncoding.EncodeToString(data)
	}

	var resp annotateResponse
	_, err := handleError(c.httpClient.NewRequest().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(annotateBody{Requests: []annotateRequest{{Image: img, Features: defaultFeatures}}}).
		SetResult(&resp).
		Post("/images:annotate"))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if len(resp.Responses) == 0 {
		return res, nil
	}
	r := resp.Responses[0]
	for _, o := range r.LocalizedObjectAnnotations {
		res.Objects = append(res.Objects, strings.ToLower(o.Name))
	}
	for _, l := range r.LogoAnnotations {
		res.Brands = append(res.Brands, strings.ToLower(l.Description))
	}
	// the first text annotation is the whole text block
	if len(r.TextAnnotations) > 1 {
		for _, t := range r.TextAnnotations[1:] {
			text := strings.ToLower(t.Description)
			if lookup.IsModelNumber(text) {
				res.ModelInfo = append(res.ModelInfo, text)
			} else {
				res.Text = append(res.Text, text)
			}
		}
	}
	colors := r.ImagePropertiesAnnotation.DominantColors.Colors
	for i := 0; i < len(colors) && i < 3; i++ {
		c := colors[i].Color
		res.Colors = append(res.Colors, lookup.ColorName(int(c.Red), int(c.Green), int(c.Blue)))
	}
	return res, nil
}

// handleError turns a failing response (>399 status code) into an error.
// The request URL is left out because it carries the API key.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("vision request failed (status: %d): %s", res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return res, nil
}
