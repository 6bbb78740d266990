// Package textextract pulls structured fields out of free-form packaging
// text, typically OCR output or leaflet text. Each extraction is independent;
// a missing field is left empty, never reported as an error.
package textextract

import (
	"regexp"
	"strings"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

var (
	// First NDC-shaped substring wins; checksums are not validated here.
	ndcPattern          = regexp.MustCompile(`\b\d{4}-\d{4}-\d{2}\b|\b\d{5}-\d{3}-\d{2}\b|\b\d{5}-\d{4}-\d{1}\b`)
	namePattern         = regexp.MustCompile(`(?i)(?:Brand|Generic) Name:\s*([^\n]+)`)
	manufacturerPattern = regexp.MustCompile(`(?i)Manufacturer:\s*([^\n]+)`)
)

// Extract scans text for an NDC code, a medicine name and a manufacturer.
// Confidence is the OCR source's confidence and is passed through unchanged.
func Extract(text string, confidence float64) domain.ExtractedFields {
	fields := domain.ExtractedFields{Confidence: confidence}

	if m := ndcPattern.FindString(text); m != "" {
		fields.NDC = m
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		fields.Name = strings.TrimSpace(m[1])
	}
	if m := manufacturerPattern.FindStringSubmatch(text); m != nil {
		fields.Manufacturer = strings.TrimSpace(m[1])
	}
	return fields
}
