package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_SnapshotRoundTrip(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.Ensure())

	items := []item.Item{
		{LotNumber: "Lot #1", Description: "Lamp", CurrentBid: "$5.00", OCRBrands: []string{"ikea"}},
		{LotNumber: "Lot #2", MarketPrice: 42.5, SkipForProcessing: true},
	}

	path, err := l.SaveItems(ProgressName(2, 10), items)
	require.NoError(t, err)
	assert.Equal(t, "progress_2_of_10.json", filepath.Base(path))

	got, err := l.LoadItems("progress_2_of_10.json")
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestLayout_SaveHTML(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.Ensure())

	path, err := l.SaveHTML("page_structure", "<html></html>")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "page_structure_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "price_progress_3_of_4.json", PriceProgressName(3, 4))
	assert.Equal(t, "interrupted_progress_1700000000.json", InterruptedName(time.Unix(1700000000, 0)))

	l := NewLayout("data")
	assert.Equal(t, filepath.Join("data", "images", "item_Lot_1_image_2_gray.jpg"), l.ImagePath("Lot_1", 2, "_gray"))
}

func TestLoadItems_Missing(t *testing.T) {
	l := NewLayout(t.TempDir())
	_, err := l.LoadItems("nope.json")
	assert.Error(t, err)
}
