// Package files lays out the data directory and reads and writes the
// artifacts stored in it: progress snapshots, raw HTML and image files.
package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/rs/zerolog/log"
)

// Layout is the directory tree under the data directory.
type Layout struct {
	Root     string
	Logs     string
	Images   string
	HTML     string
	Progress string
	Output   string
}

// NewLayout returns the layout rooted at dataDir. Nothing is created.
func NewLayout(dataDir string) Layout {
	return Layout{
		Root:     dataDir,
		Logs:     filepath.Join(dataDir, "logs"),
		Images:   filepath.Join(dataDir, "images"),
		HTML:     filepath.Join(dataDir, "html"),
		Progress: filepath.Join(dataDir, "progress"),
		Output:   filepath.Join(dataDir, "output"),
	}
}

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Root, l.Logs, l.Images, l.HTML, l.Progress, l.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// CachePath is the SQLite cache database path.
func (l Layout) CachePath() string {
	return filepath.Join(l.Root, "cache.db")
}

// ReportPath is the default spreadsheet path.
func (l Layout) ReportPath() string {
	return filepath.Join(l.Output, "auction_opportunities.xlsx")
}

// LogPath is the run log file path.
func (l Layout) LogPath() string {
	return filepath.Join(l.Logs, "auction-bot.log")
}

// ImagePath returns the path for image n (1-based) of a lot. suffix is
// appended before the extension, e.g. "_gray".
func (l Layout) ImagePath(lotID string, n int, suffix string) string {
	return filepath.Join(l.Images, fmt.Sprintf("item_%s_image_%d%s.jpg", lotID, n, suffix))
}

// SaveHTML writes raw page HTML to <prefix>_<unix>.html and returns the path.
func (l Layout) SaveHTML(prefix, html string) (string, error) {
	path := filepath.Join(l.HTML, fmt.Sprintf("%s_%d.html", prefix, time.Now().Unix()))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to save html: %w", err)
	}
	log.Debug().Str("path", path).Msg("saved html")
	return path, nil
}

// Snapshot names.
func ProgressName(i, n int) string      { return fmt.Sprintf("progress_%d_of_%d.json", i, n) }
func PriceProgressName(i, n int) string { return fmt.Sprintf("price_progress_%d_of_%d.json", i, n) }
func InterruptedName(t time.Time) string {
	return fmt.Sprintf("interrupted_progress_%d.json", t.Unix())
}

// SaveItems overwrites a snapshot in the progress directory.
func (l Layout) SaveItems(name string, items []item.Item) (string, error) {
	path := filepath.Join(l.Progress, name)
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// LoadItems reads a snapshot. name may be a bare file name inside the
// progress directory or a path.
func (l Layout) LoadItems(name string) ([]item.Item, error) {
	path := name
	if filepath.Base(name) == name {
		if _, err := os.Stat(name); err != nil {
			path = filepath.Join(l.Progress, name)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var items []item.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return items, nil
}
