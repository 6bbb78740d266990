// Package barcode normalizes raw scanned codes into NDC-compatible records.
// Classification is deterministic and never fails: unknown shapes come back
// with an empty NDC and SymbologyUnknown.
package barcode

import (
	"regexp"
	"strings"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

// The three dash-separated NDC segment layouts (4-4-2, 5-3-2, 5-4-1).
var ndcPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{2}$|^\d{5}-\d{3}-\d{2}$|^\d{5}-\d{4}-\d{1}$`)

var (
	upcPattern      = regexp.MustCompile(`^\d{12}$`)
	ean13Pattern    = regexp.MustCompile(`^\d{13}$`)
	ean8Pattern     = regexp.MustCompile(`^\d{8}$`)
	alphanumPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// Classify derives a BarcodeRecord from one raw scanned string.
func Classify(raw string) domain.BarcodeRecord {
	rec := domain.BarcodeRecord{
		Raw:       raw,
		Symbology: symbologyOf(raw),
	}

	if ndcPattern.MatchString(raw) {
		rec.NDC = raw
		return rec
	}

	digits := stripNonDigits(raw)
	if len(digits) >= 10 {
		rec.NDC = digits[:10]
	}
	return rec
}

func symbologyOf(raw string) domain.Symbology {
	switch {
	case raw == "":
		return domain.SymbologyUnknown
	case ndcPattern.MatchString(raw):
		return domain.SymbologyNDC
	case upcPattern.MatchString(raw):
		return domain.SymbologyUPC
	case ean13Pattern.MatchString(raw):
		return domain.SymbologyEAN13
	case ean8Pattern.MatchString(raw):
		return domain.SymbologyEAN8
	case alphanumPattern.MatchString(raw):
		return domain.SymbologyCode128
	default:
		return domain.SymbologyUnknown
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
