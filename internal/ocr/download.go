package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxImageSize caps a single photo at 10MB.
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// Downloader fetches lot photos.
type Downloader struct {
	httpClient *resty.Client
	maxSize    int64
}

func NewDownloader() *Downloader {
	return &Downloader{
		httpClient: resty.New().SetTimeout(DefaultDownloadTimeout),
		maxSize:    DefaultMaxImageSize,
	}
}

// WithMaxSize sets the largest accepted photo in bytes.
func (d *Downloader) WithMaxSize(maxSize int64) *Downloader {
	d.maxSize = maxSize
	return d
}

// WithUserAgent sets the User-Agent header sent with every request.
func (d *Downloader) WithUserAgent(ua string) *Downloader {
	d.httpClient.SetHeader("User-Agent", ua)
	return d
}

// Download returns the bytes of the photo at url. Responses that are not
// images or exceed the size limit are rejected.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	res, err := d.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("image download failed (status: %d)", res.StatusCode())
	}
	if ct := res.Header().Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %s", ct)
	}
	if res.RawResponse.ContentLength > d.maxSize {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", res.RawResponse.ContentLength, d.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("image exceeds %d bytes", d.maxSize)
	}
	return data, nil
}
