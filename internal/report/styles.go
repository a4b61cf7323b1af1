package report

import (
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	currencyFormat = `"$"#,##0.00`
	percentFormat  = `0.00"%"`
)

// Column numbers of the opportunities sheet, starting at 1.
const (
	colCurrentBid = 4
	colMarket     = 5
	colProfit     = 6
	colMargin     = 7
	colROI        = 8
	colItemURL    = 10
	colSearchLink = 11
	colRetailLink = 12
)

var numberFormats = map[int]string{
	colCurrentBid: currencyFormat,
	colMarket:     currencyFormat,
	colProfit:     currencyFormat,
	colMargin:     percentFormat,
	colROI:        percentFormat,
}

var linkColumns = []int{colItemURL, colSearchLink, colRetailLink}

type styleKey struct {
	numFmt string
	fill   string
	link   bool
}

// styler applies cell styles to one sheet. Failures are logged and the
// cell is left unstyled.
type styler struct {
	f      *excelize.File
	sheet  string
	styles map[styleKey]int
}

func newStyler(f *excelize.File, sheet string) *styler {
	return &styler{f: f, sheet: sheet, styles: make(map[styleKey]int)}
}

func (s *styler) style(k styleKey) (int, bool) {
	if id, ok := s.styles[k]; ok {
		return id, true
	}
	st := &excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top"},
	}
	if k.numFmt != "" {
		numFmt := k.numFmt
		st.CustomNumFmt = &numFmt
	}
	if k.fill != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{k.fill}}
	}
	if k.link {
		st.Font = &excelize.Font{Color: "0563C1", Underline: "single"}
	}
	id, err := s.f.NewStyle(st)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create cell style")
		return 0, false
	}
	s.styles[k] = id
	return id, true
}

func (s *styler) apply(cell string, k styleKey) {
	id, ok := s.style(k)
	if !ok {
		return
	}
	if err := s.f.SetCellStyle(s.sheet, cell, cell, id); err != nil {
		log.Warn().Err(err).Str("cell", cell).Msg("failed to style cell")
	}
}

func (s *styler) header(columns int) {
	id, err := s.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create header style")
		return
	}
	last, _ := excelize.CoordinatesToCellName(columns, 1)
	if err := s.f.SetCellStyle(s.sheet, "A1", last, id); err != nil {
		log.Warn().Err(err).Msg("failed to style header")
	}
}

// rowFill picks the margin band color, or shading on every other row.
func rowFill(rowNum int, margin float64) string {
	if fill, ok := bandFills[MarginBand(margin)]; ok {
		return fill
	}
	if rowNum%2 == 1 {
		return alternateFill
	}
	return ""
}

func (s *styler) row(rowNum int, r Row) {
	fill := rowFill(rowNum, r.Margin)
	for col := 1; col <= len(headers); col++ {
		cell, _ := excelize.CoordinatesToCellName(col, rowNum)
		s.apply(cell, styleKey{numFmt: numberFormats[col], fill: fill})
	}

	links := map[int]string{
		colItemURL:    r.ItemURL,
		colSearchLink: r.SearchLink,
		colRetailLink: r.RetailLink,
	}
	for _, col := range linkColumns {
		link := links[col]
		if link == "" {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col, rowNum)
		if err := s.f.SetCellHyperLink(s.sheet, cell, link, "External"); err != nil {
			log.Warn().Err(err).Str("cell", cell).Msg("failed to set hyperlink")
			continue
		}
		s.apply(cell, styleKey{fill: fill, link: true})
	}
}

// layout sets column widths and freezes the header row.
func (s *styler) layout() {
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := s.f.SetColWidth(s.sheet, col, col, w); err != nil {
			log.Warn().Err(err).Str("column", col).Msg("failed to set column width")
		}
	}
	err := s.f.SetPanes(s.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to freeze header row")
	}
}
