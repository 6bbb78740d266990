package domain

import "time"

// Symbology is the recognized barcode family of a raw scan.
type Symbology string

const (
	SymbologyNDC     Symbology = "NDC"
	SymbologyUPC     Symbology = "UPC"
	SymbologyEAN8    Symbology = "EAN-8"
	SymbologyEAN13   Symbology = "EAN-13"
	SymbologyCode128 Symbology = "Code-128"
	SymbologyUnknown Symbology = "Unknown"
)

// BarcodeRecord is the normalized form of one scanned code. NDC is empty when
// no 10-digit product code could be derived from the raw value.
type BarcodeRecord struct {
	Raw       string    `json:"raw"`
	NDC       string    `json:"ndc,omitempty"`
	Symbology Symbology `json:"symbology"`
}

// ExtractedFields are the structured values recovered from packaging text.
type ExtractedFields struct {
	NDC          string  `json:"ndc,omitempty"`
	Name         string  `json:"name,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	Confidence   float64 `json:"confidence"`
}

type ActiveIngredient struct {
	Name     string `json:"name"`
	Strength string `json:"strength,omitempty"`
}

// RegistryMatch is one product record from the pharmaceutical registry.
type RegistryMatch struct {
	Name              string             `json:"name"`
	Manufacturer      string             `json:"manufacturer,omitempty"`
	NDC               string             `json:"ndc"`
	DosageForm        string             `json:"dosage_form,omitempty"`
	Route             []string           `json:"route,omitempty"`
	ActiveIngredients []ActiveIngredient `json:"active_ingredients,omitempty"`
	MarketingStatus   string             `json:"marketing_status,omitempty"`
}

// LookupKind distinguishes the four ways a registry lookup can end.
type LookupKind string

const (
	LookupFound         LookupKind = "found"
	LookupFoundMultiple LookupKind = "found_multiple"
	LookupNotFound      LookupKind = "not_found"
	LookupFailed        LookupKind = "failed"
)

// LookupOutcome is the result of one registry query. Match is set for a
// single exact hit, Matches for a name search; both are nil/empty for
// not-found and failed outcomes.
type LookupOutcome struct {
	Kind    LookupKind
	Match   *RegistryMatch
	Matches []RegistryMatch
	Reason  string
}

// RecognizedText is OCR output with the recognizer's own confidence.
type RecognizedText struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ImageMetrics are the per-aspect counterfeit scores for a packaging image,
// each in [0,1].
type ImageMetrics struct {
	QualityScore     float64 `json:"quality_score"`
	TextClarity      float64 `json:"text_clarity"`
	LogoDetection    float64 `json:"logo_detection"`
	ColorConsistency float64 `json:"color_consistency"`
	PrintQuality     float64 `json:"print_quality"`
	SecurityFeatures float64 `json:"security_features"`
	OverallScore     float64 `json:"overall_score"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment summarizes how many image metrics fell below their
// thresholds. MetricFlags maps metric name to true when that metric failed.
type RiskAssessment struct {
	RiskLevel           RiskLevel       `json:"risk_level"`
	BelowThresholdRatio float64         `json:"below_threshold_ratio"`
	MetricFlags         map[string]bool `json:"metric_flags"`
	OverallScore        float64         `json:"overall_score"`
}

type VerdictStatus string

const (
	StatusAuthentic   VerdictStatus = "authentic"
	StatusCounterfeit VerdictStatus = "counterfeit"
	StatusSuspicious  VerdictStatus = "suspicious"
	StatusError       VerdictStatus = "error"
)

// ScanInput is everything a caller may submit for one verification. All
// fields are optional; an input with no evidence at all yields an error
// verdict.
type ScanInput struct {
	Barcode string
	Image   []byte
	OCRText string
	Leaflet []byte
	Name    string
}

func (in ScanInput) Empty() bool {
	return in.Barcode == "" && len(in.Image) == 0 && in.OCRText == "" && len(in.Leaflet) == 0 && in.Name == ""
}

// Kind names the strongest evidence source present, in pipeline priority
// order.
func (in ScanInput) Kind() string {
	switch {
	case in.Barcode != "":
		return "barcode"
	case len(in.Image) > 0:
		return "image"
	case in.OCRText != "":
		return "ocr_text"
	case len(in.Leaflet) > 0:
		return "leaflet"
	case in.Name != "":
		return "name"
	default:
		return "none"
	}
}

// VerificationVerdict is the fused result of one scan.
type VerificationVerdict struct {
	ID              string          `json:"id"`
	Status          VerdictStatus   `json:"status"`
	Confidence      float64         `json:"confidence"`
	Reasons         []string        `json:"reasons"`
	MatchedRecord   *RegistryMatch  `json:"matched_record,omitempty"`
	ImageAssessment *RiskAssessment `json:"image_assessment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ScanRecord is the persisted projection of a verdict for history queries,
// exports and post-processing.
type ScanRecord struct {
	ID           string        `json:"id"`
	InputKind    string        `json:"input_kind"`
	Status       VerdictStatus `json:"status"`
	Confidence   float64       `json:"confidence"`
	Reasons      []string      `json:"reasons"`
	MatchedNDC   string        `json:"matched_ndc,omitempty"`
	MatchedName  string        `json:"matched_name,omitempty"`
	Manufacturer string        `json:"manufacturer,omitempty"`
	RiskLevel    RiskLevel     `json:"risk_level,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
