// Package imagerisk turns image-analysis sub-scores into a risk assessment by
// thresholding. Assess is pure: same metrics and thresholds always produce
// the same assessment.
package imagerisk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

// Thresholds is the minimum acceptable value per metric. A metric fails when
// its score is strictly below its threshold; a score exactly at the threshold
// passes.
type Thresholds struct {
	QualityScore     float64 `yaml:"quality_score"`
	TextClarity      float64 `yaml:"text_clarity"`
	LogoDetection    float64 `yaml:"logo_detection"`
	ColorConsistency float64 `yaml:"color_consistency"`
	PrintQuality     float64 `yaml:"print_quality"`
	SecurityFeatures float64 `yaml:"security_features"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		QualityScore:     0.70,
		TextClarity:      0.80,
		LogoDetection:    0.90,
		ColorConsistency: 0.85,
		PrintQuality:     0.75,
		SecurityFeatures: 0.80,
	}
}

// LoadThresholds reads a YAML threshold file. Unset or out-of-range entries
// fall back to the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds file: %w", err)
	}
	var t Thresholds
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds yaml: %w", err)
	}
	return t.normalize(), nil
}

func (t Thresholds) normalize() Thresholds {
	def := DefaultThresholds()
	out := t
	if out.QualityScore <= 0 || out.QualityScore > 1 {
		out.QualityScore = def.QualityScore
	}
	if out.TextClarity <= 0 || out.TextClarity > 1 {
		out.TextClarity = def.TextClarity
	}
	if out.LogoDetection <= 0 || out.LogoDetection > 1 {
		out.LogoDetection = def.LogoDetection
	}
	if out.ColorConsistency <= 0 || out.ColorConsistency > 1 {
		out.ColorConsistency = def.ColorConsistency
	}
	if out.PrintQuality <= 0 || out.PrintQuality > 1 {
		out.PrintQuality = def.PrintQuality
	}
	if out.SecurityFeatures <= 0 || out.SecurityFeatures > 1 {
		out.SecurityFeatures = def.SecurityFeatures
	}
	return out
}

const metricCount = 6

// Assess flags every metric below its threshold and bands the failure ratio:
// strictly above 0.50 is high risk, strictly above 0.25 is medium, anything
// else is low. Ties resolve to the lower band.
func Assess(metrics domain.ImageMetrics, thresholds Thresholds) domain.RiskAssessment {
	t := thresholds.normalize()

	flags := map[string]bool{
		"quality_score":     metrics.QualityScore < t.QualityScore,
		"text_clarity":      metrics.TextClarity < t.TextClarity,
		"logo_detection":    metrics.LogoDetection < t.LogoDetection,
		"color_consistency": metrics.ColorConsistency < t.ColorConsistency,
		"print_quality":     metrics.PrintQuality < t.PrintQuality,
		"security_features": metrics.SecurityFeatures < t.SecurityFeatures,
	}

	failed := 0
	for _, below := range flags {
		if below {
			failed++
		}
	}
	ratio := float64(failed) / metricCount

	level := domain.RiskLow
	switch {
	case ratio > 0.50:
		level = domain.RiskHigh
	case ratio > 0.25:
		level = domain.RiskMedium
	}

	return domain.RiskAssessment{
		RiskLevel:           level,
		BelowThresholdRatio: ratio,
		MetricFlags:         flags,
		OverallScore:        metrics.OverallScore,
	}
}
