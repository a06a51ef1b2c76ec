package rules

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// currencyMarkers are stripped from amount strings before parsing.
var currencyMarkers = []string{"USD", "EUR", "GBP", "JPY", "INR", "AED", "$", "€", "£", "¥"}

// ParseAmount parses a document amount: currency markers, commas and
// surrounding whitespace are ignored.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	upper := strings.ToUpper(cleaned)
	for _, m := range currencyMarkers {
		upper = strings.ReplaceAll(upper, m, "")
	}
	upper = strings.ReplaceAll(upper, ",", "")
	upper = strings.TrimSpace(upper)
	if upper == "" {
		return 0, eris.Errorf("rules: empty amount %q", s)
	}

	v, err := strconv.ParseFloat(upper, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "rules: parse amount %q", s)
	}
	return v, nil
}

// dateLayouts are tried in order. Day-first layouts come before
// month-first, matching the documents the extraction patterns target.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02/01/06",
	"2006/01/02",
	"060102",
}

// ParseDate parses a document date against the known layouts.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, eris.New("rules: empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("rules: unparsable date %q", s)
}

// normalizer strips diacritics after NFD decomposition.
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips diacritics and collapses runs of
// whitespace so cosmetic differences do not count against similarity.
func NormalizeText(s string) string {
	out, _, err := transform.String(normalizer, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Similarity returns the normalized Levenshtein similarity of two
// descriptions in [0, 1], computed over their normalized forms.
func Similarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == "" && nb == "" {
		return 1
	}
	return levenshtein.Similarity(na, nb, levenshtein.NewParams())
}
