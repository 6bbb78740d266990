package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/core/imagerisk"
)

type registryFake struct {
	ndcOutcome  domain.LookupOutcome
	ndcErr      error
	nameOutcome domain.LookupOutcome
	nameErr     error

	lastNDC  string
	lastName string
	panicOn  string
}

func (f *registryFake) LookupByNDC(_ context.Context, ndc string) (domain.LookupOutcome, error) {
	if f.panicOn == "ndc" {
		panic("registry exploded")
	}
	f.lastNDC = ndc
	return f.ndcOutcome, f.ndcErr
}

func (f *registryFake) LookupByName(_ context.Context, name string) (domain.LookupOutcome, error) {
	if f.panicOn == "name" {
		panic("registry exploded")
	}
	f.lastName = name
	return f.nameOutcome, f.nameErr
}

type ocrFake struct {
	text       string
	confidence float64
	err        error
}

func (f *ocrFake) Recognize(context.Context, []byte) (domain.RecognizedText, error) {
	if f.err != nil {
		return domain.RecognizedText{}, f.err
	}
	return domain.RecognizedText{Text: f.text, Confidence: f.confidence}, nil
}

type analyzerFake struct {
	metrics domain.ImageMetrics
	err     error
}

func (f *analyzerFake) Analyze(context.Context, []byte) (domain.ImageMetrics, error) {
	if f.err != nil {
		return domain.ImageMetrics{}, f.err
	}
	return f.metrics, nil
}

type leafletFake struct {
	text string
	err  error
}

func (f *leafletFake) ExtractText([]byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func sampleMatch() domain.RegistryMatch {
	return domain.RegistryMatch{
		Name:         "Acme Aspirin",
		Manufacturer: "Acme Corp",
		NDC:          "12345-678",
	}
}

func newVerifyUC(registry *registryFake, ocr *ocrFake, analyzer *analyzerFake, leaflet *leafletFake) *VerifyUseCase {
	return NewVerifyUseCase(registry, ocr, analyzer, leaflet, imagerisk.DefaultThresholds())
}

func TestVerifyBarcodeExactMatch(t *testing.T) {
	match := sampleMatch()
	registry := &registryFake{ndcOutcome: domain.LookupOutcome{Kind: domain.LookupFound, Match: &match}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Barcode: "12345-678-90"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusAuthentic {
		t.Fatalf("status = %s, want authentic", verdict.Status)
	}
	if verdict.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", verdict.Confidence)
	}
	if verdict.MatchedRecord == nil || verdict.MatchedRecord.Name != "Acme Aspirin" {
		t.Fatalf("expected matched record, got %+v", verdict.MatchedRecord)
	}
	if registry.lastNDC != "12345-678-90" {
		t.Fatalf("looked up NDC %q, want raw dash-separated code", registry.lastNDC)
	}
	if verdict.ID == "" {
		t.Fatalf("expected verdict id")
	}
}

func TestVerifyNDCNotFoundIsCounterfeit(t *testing.T) {
	registry := &registryFake{ndcOutcome: domain.LookupOutcome{Kind: domain.LookupNotFound}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Barcode: "12345-678-90"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusCounterfeit {
		t.Fatalf("status = %s, want counterfeit", verdict.Status)
	}
	if verdict.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", verdict.Confidence)
	}
	if !containsReason(verdict.Reasons, "Medicine not found in FDA database") {
		t.Fatalf("missing not-found reason, got %v", verdict.Reasons)
	}
}

func TestVerifyNameSearchNoMatchesIsSuspicious(t *testing.T) {
	registry := &registryFake{nameOutcome: domain.LookupOutcome{Kind: domain.LookupNotFound}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Name: "Nonexistol"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusSuspicious {
		t.Fatalf("status = %s, want suspicious", verdict.Status)
	}
	if verdict.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", verdict.Confidence)
	}
	if !containsReason(verdict.Reasons, "No matching medicines found in database") {
		t.Fatalf("missing no-match reason, got %v", verdict.Reasons)
	}
}

func TestVerifyNameSearchMultipleTakesFirst(t *testing.T) {
	registry := &registryFake{nameOutcome: domain.LookupOutcome{
		Kind: domain.LookupFoundMultiple,
		Matches: []domain.RegistryMatch{
			{Name: "First", NDC: "11111-111"},
			{Name: "Second", NDC: "22222-222"},
		},
	}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Name: "aspirin"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusAuthentic {
		t.Fatalf("status = %s, want authentic", verdict.Status)
	}
	if verdict.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", verdict.Confidence)
	}
	if verdict.MatchedRecord == nil || verdict.MatchedRecord.Name != "First" {
		t.Fatalf("expected first match, got %+v", verdict.MatchedRecord)
	}
}

func TestVerifyEmptyInput(t *testing.T) {
	uc := newVerifyUC(&registryFake{}, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", verdict.Status)
	}
	if verdict.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", verdict.Confidence)
	}
	if !containsReason(verdict.Reasons, "No valid input provided") {
		t.Fatalf("missing no-input reason, got %v", verdict.Reasons)
	}
}

func TestVerifyLookupFailureIsErrorVerdict(t *testing.T) {
	registry := &registryFake{ndcErr: errors.New("registry down")}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Barcode: "12345-678-90"})
	if err != nil {
		t.Fatalf("Verify() error = %v, faults must fold into the verdict", err)
	}
	if verdict.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", verdict.Status)
	}
	if verdict.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", verdict.Confidence)
	}
	if !containsReason(verdict.Reasons, "registry down") {
		t.Fatalf("missing failure diagnostic, got %v", verdict.Reasons)
	}
}

func TestVerifyOCRFallbackFindsNDC(t *testing.T) {
	match := sampleMatch()
	registry := &registryFake{ndcOutcome: domain.LookupOutcome{Kind: domain.LookupFound, Match: &match}}
	ocr := &ocrFake{text: "Brand Name: Acme Aspirin\nNDC: 12345-678-90", confidence: 0.9}
	analyzer := &analyzerFake{metrics: domain.ImageMetrics{
		QualityScore: 0.95, TextClarity: 0.95, LogoDetection: 0.95,
		ColorConsistency: 0.95, PrintQuality: 0.95, SecurityFeatures: 0.95,
		OverallScore: 0.95,
	}}
	uc := newVerifyUC(registry, ocr, analyzer, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusAuthentic {
		t.Fatalf("status = %s, want authentic", verdict.Status)
	}
	if registry.lastNDC != "12345-678-90" {
		t.Fatalf("looked up %q, want NDC extracted from OCR text", registry.lastNDC)
	}
	if verdict.ImageAssessment == nil {
		t.Fatalf("expected image assessment for image input")
	}
	// (0.9 + (0.95+0.95)/2) / 2
	if math.Abs(verdict.Confidence-0.925) > 1e-9 {
		t.Fatalf("confidence = %v, want blended 0.925", verdict.Confidence)
	}
}

func TestVerifyImageAnalysisFailureKeepsLookupVerdict(t *testing.T) {
	match := sampleMatch()
	registry := &registryFake{ndcOutcome: domain.LookupOutcome{Kind: domain.LookupFound, Match: &match}}
	ocr := &ocrFake{text: "NDC: 12345-678-90", confidence: 0.9}
	analyzer := &analyzerFake{err: errors.New("analysis backend down")}
	uc := newVerifyUC(registry, ocr, analyzer, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verdict.Status != domain.StatusAuthentic {
		t.Fatalf("status = %s, want authentic despite analysis failure", verdict.Status)
	}
	if verdict.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want unblended 0.9", verdict.Confidence)
	}
	if verdict.ImageAssessment != nil {
		t.Fatalf("expected no image assessment on analysis failure")
	}
	if !containsReason(verdict.Reasons, "Image analysis unavailable") {
		t.Fatalf("missing analysis diagnostic, got %v", verdict.Reasons)
	}
}

func TestVerifyLeafletFallback(t *testing.T) {
	registry := &registryFake{nameOutcome: domain.LookupOutcome{Kind: domain.LookupNotFound}}
	leaflet := &leafletFake{text: "Generic Name: ibuprofen"}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, leaflet)

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Leaflet: []byte("%PDF")})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if registry.lastName != "ibuprofen" {
		t.Fatalf("looked up %q, want name extracted from leaflet", registry.lastName)
	}
	if verdict.Status != domain.StatusSuspicious {
		t.Fatalf("status = %s, want suspicious", verdict.Status)
	}
}

func TestVerifyTextWithoutFieldsFallsBackToName(t *testing.T) {
	match := sampleMatch()
	registry := &registryFake{nameOutcome: domain.LookupOutcome{
		Kind:    domain.LookupFoundMultiple,
		Matches: []domain.RegistryMatch{match},
	}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{
		OCRText: "take two tablets daily",
		Name:    "Acme Aspirin",
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if registry.lastName != "Acme Aspirin" {
		t.Fatalf("looked up %q, want explicit name", registry.lastName)
	}
	if !containsReason(verdict.Reasons, "Could not extract NDC code or medicine name from text") {
		t.Fatalf("missing extraction diagnostic, got %v", verdict.Reasons)
	}
	if verdict.Status != domain.StatusAuthentic {
		t.Fatalf("status = %s, want authentic", verdict.Status)
	}
}

func TestVerifyRecoversFromPanic(t *testing.T) {
	registry := &registryFake{panicOn: "ndc"}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	verdict, err := uc.Verify(context.Background(), domain.ScanInput{Barcode: "12345-678-90"})
	if err != nil {
		t.Fatalf("Verify() error = %v, panic must fold into the verdict", err)
	}
	if verdict.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", verdict.Status)
	}
	if !containsReason(verdict.Reasons, "unexpected fault") {
		t.Fatalf("missing fault reason, got %v", verdict.Reasons)
	}
}

func TestVerifyCanceledContext(t *testing.T) {
	registry := &registryFake{ndcOutcome: domain.LookupOutcome{Kind: domain.LookupNotFound}}
	uc := newVerifyUC(registry, &ocrFake{}, &analyzerFake{}, &leafletFake{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	verdict, err := uc.Verify(ctx, domain.ScanInput{Barcode: "12345-678-90"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if verdict != nil {
		t.Fatalf("expected nil verdict for abandoned scan")
	}
}

func containsReason(reasons []string, fragment string) bool {
	for _, reason := range reasons {
		if strings.Contains(reason, fragment) {
			return true
		}
	}
	return false
}
