package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medicine-verifier/internal/core/barcode"
	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/core/imagerisk"
	"github.com/kirillkom/medicine-verifier/internal/core/ports"
	"github.com/kirillkom/medicine-verifier/internal/core/textextract"
)

const (
	confidenceExactMatch  = 0.9
	confidenceSearchMatch = 0.8
	confidenceNotFound    = 0.9
	confidenceSuspicious  = 0.5

	reasonNoInput        = "No valid input provided"
	reasonNDCNotFound    = "Medicine not found in FDA database"
	reasonNoSearchMatch  = "No matching medicines found in database"
	reasonNothingToMatch = "Could not extract NDC code or medicine name from text"
)

// VerifyUseCase sequences barcode classification, text extraction, registry
// lookups and image risk assessment into one verdict. Evidence sources are
// tried in priority order (barcode, then image/leaflet text, then explicit
// name); image analysis is unconditional and runs concurrently with the
// lookup chain.
type VerifyUseCase struct {
	registry   ports.RegistryGateway
	ocr        ports.TextRecognizer
	analyzer   ports.ImageAnalyzer
	leaflet    ports.LeafletExtractor
	thresholds imagerisk.Thresholds
}

func NewVerifyUseCase(
	registry ports.RegistryGateway,
	ocr ports.TextRecognizer,
	analyzer ports.ImageAnalyzer,
	leaflet ports.LeafletExtractor,
	thresholds imagerisk.Thresholds,
) *VerifyUseCase {
	return &VerifyUseCase{
		registry:   registry,
		ocr:        ocr,
		analyzer:   analyzer,
		leaflet:    leaflet,
		thresholds: thresholds,
	}
}

// Verify always returns a well-formed verdict; pipeline faults are folded
// into a verdict with status "error". The error return is non-nil only when
// the scan's context ended before fusion.
func (uc *VerifyUseCase) Verify(ctx context.Context, input domain.ScanInput) (verdict *domain.VerificationVerdict, err error) {
	verdict = &domain.VerificationVerdict{
		ID:        uuid.NewString(),
		Status:    domain.StatusError,
		Reasons:   []string{},
		CreatedAt: time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			verdict.Status = domain.StatusError
			verdict.Confidence = 0
			verdict.MatchedRecord = nil
			verdict.ImageAssessment = nil
			verdict.Reasons = []string{fmt.Sprintf("unexpected fault: %v", r)}
			err = nil
		}
	}()

	if input.Empty() {
		verdict.Reasons = append(verdict.Reasons, reasonNoInput)
		return verdict, nil
	}

	imageCh := uc.startImageAssessment(ctx, input)

	chain := uc.runLookupChain(ctx, input)

	var image *imageSignal
	if imageCh != nil {
		sig := <-imageCh
		image = &sig
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	uc.fuse(verdict, chain, image)
	return verdict, nil
}

// lookupState carries the chain's current outcome plus every diagnostic
// produced along the way. Reasons are only appended, never replaced.
type lookupState struct {
	outcome *domain.LookupOutcome
	viaName bool
	reasons []string
}

// usable reports whether the chain already produced something the fusion step
// can act on. A transport failure is not usable; a definitive "not found" is.
func (st *lookupState) usable() bool {
	return st.outcome != nil && st.outcome.Kind != domain.LookupFailed
}

func (uc *VerifyUseCase) runLookupChain(ctx context.Context, input domain.ScanInput) lookupState {
	var st lookupState

	if input.Barcode != "" {
		rec := barcode.Classify(input.Barcode)
		if rec.NDC != "" {
			uc.lookupByNDC(ctx, &st, rec.NDC)
		}
	}

	if !st.usable() {
		if text, confidence, ok := uc.obtainText(ctx, &st, input); ok {
			fields := textextract.Extract(text, confidence)
			switch {
			case fields.NDC != "":
				uc.lookupByNDC(ctx, &st, fields.NDC)
			case fields.Name != "":
				uc.lookupByName(ctx, &st, fields.Name)
			default:
				st.reasons = append(st.reasons, reasonNothingToMatch)
			}
		}
	}

	if !st.usable() && input.Name != "" {
		uc.lookupByName(ctx, &st, input.Name)
	}

	return st
}

// obtainText resolves the text evidence for step two: caller-supplied OCR
// text first, then OCR on the image, then the leaflet PDF. A failed
// recognition is recorded as a diagnostic and skips the step.
func (uc *VerifyUseCase) obtainText(ctx context.Context, st *lookupState, input domain.ScanInput) (string, float64, bool) {
	if input.OCRText != "" {
		return input.OCRText, 1.0, true
	}

	if len(input.Image) > 0 && uc.ocr != nil {
		recognized, err := uc.ocr.Recognize(ctx, input.Image)
		if err != nil {
			st.reasons = append(st.reasons, "Text recognition failed: "+err.Error())
			return "", 0, false
		}
		return recognized.Text, recognized.Confidence, true
	}

	if len(input.Leaflet) > 0 && uc.leaflet != nil {
		text, err := uc.leaflet.ExtractText(input.Leaflet)
		if err != nil {
			st.reasons = append(st.reasons, "Leaflet text extraction failed: "+err.Error())
			return "", 0, false
		}
		return text, 1.0, true
	}

	return "", 0, false
}

func (uc *VerifyUseCase) lookupByNDC(ctx context.Context, st *lookupState, ndc string) {
	outcome, err := uc.registry.LookupByNDC(ctx, ndc)
	st.viaName = false
	if err != nil {
		st.outcome = &domain.LookupOutcome{Kind: domain.LookupFailed, Reason: err.Error()}
		st.reasons = append(st.reasons, err.Error())
		return
	}
	st.outcome = &outcome
}

func (uc *VerifyUseCase) lookupByName(ctx context.Context, st *lookupState, name string) {
	outcome, err := uc.registry.LookupByName(ctx, name)
	st.viaName = true
	if err != nil {
		st.outcome = &domain.LookupOutcome{Kind: domain.LookupFailed, Reason: err.Error()}
		st.reasons = append(st.reasons, err.Error())
		return
	}
	st.outcome = &outcome
}

type imageSignal struct {
	assessment domain.RiskAssessment
	metrics    domain.ImageMetrics
	err        error
}

// startImageAssessment kicks off the unconditional image step. It returns nil
// when no image was supplied; otherwise fusion must drain the channel.
func (uc *VerifyUseCase) startImageAssessment(ctx context.Context, input domain.ScanInput) <-chan imageSignal {
	if len(input.Image) == 0 || uc.analyzer == nil {
		return nil
	}

	ch := make(chan imageSignal, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- imageSignal{err: fmt.Errorf("image analysis fault: %v", r)}
			}
		}()

		metrics, err := uc.analyzer.Analyze(ctx, input.Image)
		if err != nil {
			ch <- imageSignal{err: err}
			return
		}
		ch <- imageSignal{
			assessment: imagerisk.Assess(metrics, uc.thresholds),
			metrics:    metrics,
		}
	}()
	return ch
}

func (uc *VerifyUseCase) fuse(verdict *domain.VerificationVerdict, st lookupState, image *imageSignal) {
	switch {
	case st.outcome == nil:
		verdict.Status = domain.StatusError
		verdict.Confidence = 0
		if len(st.reasons) == 0 {
			st.reasons = append(st.reasons, reasonNoInput)
		}

	case st.outcome.Kind == domain.LookupFailed:
		verdict.Status = domain.StatusError
		verdict.Confidence = 0

	case st.outcome.Kind == domain.LookupFound:
		verdict.Status = domain.StatusAuthentic
		verdict.Confidence = confidenceExactMatch
		verdict.MatchedRecord = st.outcome.Match

	case st.outcome.Kind == domain.LookupFoundMultiple:
		if len(st.outcome.Matches) > 0 {
			verdict.Status = domain.StatusAuthentic
			verdict.Confidence = confidenceSearchMatch
			best := st.outcome.Matches[0]
			verdict.MatchedRecord = &best
		} else {
			verdict.Status = domain.StatusSuspicious
			verdict.Confidence = confidenceSuspicious
			st.reasons = append(st.reasons, reasonNoSearchMatch)
		}

	case st.outcome.Kind == domain.LookupNotFound && st.viaName:
		verdict.Status = domain.StatusSuspicious
		verdict.Confidence = confidenceSuspicious
		st.reasons = append(st.reasons, reasonNoSearchMatch)

	case st.outcome.Kind == domain.LookupNotFound:
		verdict.Status = domain.StatusCounterfeit
		verdict.Confidence = confidenceNotFound
		reason := st.outcome.Reason
		if reason == "" {
			reason = reasonNDCNotFound
		}
		st.reasons = append(st.reasons, reason)
	}

	verdict.Reasons = append(verdict.Reasons, st.reasons...)

	if image != nil {
		if image.err != nil {
			verdict.Reasons = append(verdict.Reasons, "Image analysis unavailable: "+image.err.Error())
		} else {
			assessment := image.assessment
			verdict.ImageAssessment = &assessment
			imageConfidence := (image.metrics.QualityScore + image.metrics.SecurityFeatures) / 2
			verdict.Confidence = (verdict.Confidence + imageConfidence) / 2
		}
	}

	verdict.Confidence = clamp01(verdict.Confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
