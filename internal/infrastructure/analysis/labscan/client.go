// Package labscan talks to the image-analysis backend, which exposes OCR and
// counterfeit scoring for packaging photos. The backend in this deployment is
// a stub with fixed scores; the client only depends on the response shapes.
package labscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Recognize sends the image through the backend's OCR endpoint.
func (c *Client) Recognize(ctx context.Context, image []byte) (domain.RecognizedText, error) {
	var response struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.postImage(ctx, "/api/ocr", image, &response, "ocr"); err != nil {
		return domain.RecognizedText{}, err
	}
	return domain.RecognizedText{Text: response.Text, Confidence: response.Confidence}, nil
}

// Analyze sends the image through the backend's counterfeit scoring endpoint.
func (c *Client) Analyze(ctx context.Context, image []byte) (domain.ImageMetrics, error) {
	var response struct {
		QualityScore     float64 `json:"quality_score"`
		TextClarity      float64 `json:"text_clarity"`
		LogoDetection    float64 `json:"logo_detection"`
		ColorConsistency float64 `json:"color_consistency"`
		PrintQuality     float64 `json:"print_quality"`
		SecurityFeatures float64 `json:"security_features"`
		OverallScore     float64 `json:"overall_score"`
	}
	if err := c.postImage(ctx, "/api/analyze", image, &response, "analyze"); err != nil {
		return domain.ImageMetrics{}, err
	}
	return domain.ImageMetrics{
		QualityScore:     response.QualityScore,
		TextClarity:      response.TextClarity,
		LogoDetection:    response.LogoDetection,
		ColorConsistency: response.ColorConsistency,
		PrintQuality:     response.PrintQuality,
		SecurityFeatures: response.SecurityFeatures,
		OverallScore:     response.OverallScore,
	}, nil
}

func (c *Client) postImage(ctx context.Context, path string, image []byte, out any, operation string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "scan.jpg")
	if err != nil {
		return fmt.Errorf("create %s form file: %w", operation, err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write %s form file: %w", operation, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close %s form: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return fmt.Errorf("analysis %s status: %s", operation, resp.Status)
		}
		return fmt.Errorf("analysis %s status: %s: %s", operation, resp.Status, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
