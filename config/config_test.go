package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUCTION_URL", "https://www.bidrl.com/auction/123")
	t.Setenv("MAX_ITEMS", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("CLOUD_VISION_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxItems, cfg.MaxItems)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultOCRCrop, cfg.OCRCropFraction)
	assert.False(t, cfg.CloudVisionEnabled, "cloud vision needs an api key")
	assert.False(t, cfg.UseGoogleAPI)
	assert.True(t, cfg.RetailSearchEnabled)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("MAX_ITEMS", "lots")
	_, err := Load()
	assert.ErrorContains(t, err, "MAX_ITEMS")
}

func TestLoad_InvalidCrop(t *testing.T) {
	t.Setenv("OCR_CROP_FRACTION", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_GoogleAPIRequiresCX(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("GOOGLE_CX", "")
	t.Setenv("USE_GOOGLE_API", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.UseGoogleAPI)
}

func TestCheckRequired(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "complete",
			cfg:  Config{AuctionURL: "u", CheckIP: true, HomeIP: "1.2.3.4"},
			want: nil,
		},
		{
			name: "missing url and home ip",
			cfg:  Config{CheckIP: true},
			want: []string{"AUCTION_URL", "HOME_IP"},
		},
		{
			name: "ip check disabled",
			cfg:  Config{AuctionURL: "u"},
			want: nil,
		},
		{
			name: "openrouter without key",
			cfg:  Config{AuctionURL: "u", LLMEnabled: true, LLMProvider: "openrouter"},
			want: []string{"OPENROUTER_API_KEY"},
		},
		{
			name: "gemini without key",
			cfg:  Config{AuctionURL: "u", LLMEnabled: true, LLMProvider: "gemini"},
			want: []string{"GEMINI_API_KEY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.CheckRequired())
		})
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "yes")
	assert.True(t, envBool("X_FLAG", false))
	t.Setenv("X_FLAG", "off")
	assert.False(t, envBool("X_FLAG", true))
	t.Setenv("X_FLAG", "maybe")
	assert.True(t, envBool("X_FLAG", true))
}
