// Package ipcheck verifies that traffic is not leaving through the home
// connection before any scraping starts.
package ipcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const EchoURL = "https://api.ipify.org"

// ErrUnsafeIP means the public IP matches the configured home IP.
var ErrUnsafeIP = errors.New("public ip matches home ip, is the VPN up?")

type Checker struct {
	httpClient *resty.Client
	url        string
}

// New creates a checker using the IP echo service at url, or EchoURL when
// url is empty.
func New(url string) *Checker {
	if url == "" {
		url = EchoURL
	}
	return &Checker{
		httpClient: resty.New().SetTimeout(15 * time.Second),
		url:        url,
	}
}

// PublicIP returns the address the echo service sees.
func (c *Checker) PublicIP(ctx context.Context) (string, error) {
	res, err := c.httpClient.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return "", fmt.Errorf("failed to check ip: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("ip check failed (status: %d)", res.StatusCode())
	}
	ip := strings.TrimSpace(res.String())
	if ip == "" {
		return "", errors.New("ip check returned an empty body")
	}
	return ip, nil
}

// Verify returns ErrUnsafeIP when the public IP equals homeIP.
func (c *Checker) Verify(ctx context.Context, homeIP string) error {
	ip, err := c.PublicIP(ctx)
	if err != nil {
		return err
	}
	if ip == strings.TrimSpace(homeIP) {
		log.Error().Str("ip", ip).Msg("using home ip")
		return ErrUnsafeIP
	}
	log.Info().Str("ip", ip).Msg("ip check passed")
	return nil
}
