package lookup

import (
	"regexp"
	"strings"
	"unicode"
)

var modelNumberPatterns = compileAll(
	`^[A-Za-z]{1,4}-?\d{2,6}$`,
	`^[A-Za-z]{2,4}\d{2,4}[A-Za-z]?$`,
	`^[A-Z]{2,8}\d{4,8}$`,
	`^\d{1,4}[A-Za-z]{1,3}\d{1,4}$`,
	`^[A-Za-z]\d{1,2}-\d{1,4}[A-Za-z]?$`,
	`^[A-Za-z]{2,4}-[A-Za-z]\d{1,4}$`,
	`^(UN|QN|LN)\d{2}[A-Z]\d{4}[A-Z]$`,
	`^[A-Z]{2}-[A-Z]\d{4}[A-Z]$`,
	`^(MH|ML|MS|MP)\d{2,4}[A-Z]?$`,
	`^[A-Z]{3}\d{4}[A-Z]{1,2}$`,
	`^[A-Z]{2}\d{2,4}[A-Z]{0,2}$`,
	`^(SM-[A-Z]\d{3,4}[A-Z]?|Galaxy\s?S\d{1,2})$`,
	`^iPhone\s?\d{1,2}$`,
	`^[A-Z]{1,2}\d{1,3}-(BT|XT|LT)$`,
	`^[A-Z]{2,4}-\d{2,4}[A-Z]?-[A-Z]{1,2}$`,
	`^([A-Z]{2,3}-\d{3,5}|\d{2,3}-\d{3})$`,
	`^\d{12,13}$`,
	`^\d{3}-\d{3}-\d{4}$`,
)

var alnumRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// IsModelNumber reports whether text looks like a model number, SKU or UPC.
// Spaces are ignored. Tokens shorter than three characters never qualify.
func IsModelNumber(text string) bool {
	text = strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if len(text) < 3 {
		return false
	}
	for _, re := range modelNumberPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	if !alnumRe.MatchString(text) {
		return false
	}

	var letters, digits int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	ratio := float64(letters) / float64(len(text))
	return letters >= 2 && digits >= 2 && ratio >= 0.2 && ratio <= 0.8
}

// ocrModelPatterns extract model-like tokens from cleaned OCR text. Each
// pattern has exactly one capture group.
var ocrModelPatterns = compileAll(
	`model[: ]?([a-z0-9\-]{3,15})`,
	`part[.: #]?([a-z0-9\-]{3,15})`,
	`series[: ]?([a-z0-9\-]{2,10})`,
	`type[: ]?([a-z0-9\-]{2,10})`,
	`\b([a-z]{1,4}[0-9]{2,6})\b`,
	`\b([a-z]{1,4}-[0-9]{2,6})\b`,
	`\b([0-9]{1,4}[a-z]{1,4})\b`,
	`\b(v[0-9]{1,3})\b`,
	`#\s?([a-z0-9]{5,12})\b`,
	`sku[: ]?([a-z0-9\-]{4,15})`,
	`upc[: ]?([0-9\-]{10,15})`,
	`ean[: ]?([0-9\-]{10,15})`,
)

// FindOCRModelNumbers returns deduplicated model-like tokens of at least
// three characters found in lowercase OCR text.
func FindOCRModelNumbers(text string) []string {
	text = strings.ToLower(text)
	seen := make(map[string]bool)
	var out []string
	for _, re := range ocrModelPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			tok := m[1]
			if len(tok) < 3 || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// textModelPatterns are tried in order against free text. Patterns with a
// capture group yield the group, the rest yield the whole match.
var textModelPatterns = compileAll(
	`\bmodel[:\s]+([a-z0-9\-]{3,15})\b`,
	`\bpart[:\s#]+([a-z0-9\-]{3,15})\b`,
	`\bsku[:\s]+([a-z0-9\-]{4,15})\b`,
	`\b[A-Za-z]{1,4}-\d{2,6}\b`,
	`\b[A-Za-z]{2,4}\d{2,4}[A-Za-z]?\b`,
	`\b[A-Z]{2,8}\d{4,8}\b`,
	`\b\d{1,4}[A-Za-z]{1,3}\d{1,4}\b`,
	`\biphone\s*\d{1,2}(?:\s*pro)?\b`,
	`\bgalaxy\s*s\d{1,2}(?:\s*plus)?\b`,
	`\bmacbook\s*(?:pro|air)?\s*\d{1,2}(?:\s*inch)?\b`,
	`\bps\d\b`,
	`\bxbox\s*(?:one|series\s*[xs])\b`,
	`\bv\d{1,2}\b`,
	`\b([a-z]{1,3}\d{3,5}[a-z]{0,2})\b`,
)

// FindTextModel returns the first substantial (four characters or more)
// model string in text, upper-cased. Only the first match of each pattern is
// considered.
func FindTextModel(text string) (string, bool) {
	for _, re := range textModelPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		match := m[0]
		if len(m) > 1 {
			match = m[1]
		}
		if len(match) >= 4 {
			return strings.ToUpper(match), true
		}
	}
	return "", false
}
