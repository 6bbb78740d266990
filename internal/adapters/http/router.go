package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/core/ports"
	"github.com/kirillkom/medicine-verifier/internal/observability/metrics"
)

const maxUploadBytes = 32 << 20

type Router struct {
	verifier ports.MedicineVerifier
	history  ports.ScanHistoryService
	exporter ports.ScanReportExporter
	metrics  *metrics.APIMetrics
	service  string

	rateLimitRPS   int
	rateLimitBurst int
	maxInFlight    int
}

type Options struct {
	Service        string
	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	verifier ports.MedicineVerifier,
	history ports.ScanHistoryService,
	exporter ports.ScanReportExporter,
	m *metrics.APIMetrics,
	options Options,
) *Router {
	service := options.Service
	if service == "" {
		service = "medicine-verifier-api"
	}
	return &Router{
		verifier:       verifier,
		history:        history,
		exporter:       exporter,
		metrics:        m,
		service:        service,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxInFlight:    options.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPIDocument)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/scans", rt.scans)
	mux.HandleFunc("/v1/scans/export", rt.exportScans)
	mux.HandleFunc("/v1/scans/", rt.getScanByID)

	var handler http.Handler = rt.metrics.Middleware(rt.service, mux)
	handler = backpressureMiddleware(handler, rt.maxInFlight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) scans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.verifyScan(w, r)
	case http.MethodGet:
		rt.listScans(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) verifyScan(w http.ResponseWriter, r *http.Request) {
	input, err := parseScanInput(r)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	verdict, err := rt.verifier.Verify(r.Context(), input)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordVerdict(rt.service, string(verdict.Status), input.Kind(), time.Since(start))
	if verdict.ImageAssessment != nil {
		rt.metrics.RecordRiskLevel(rt.service, string(verdict.ImageAssessment.RiskLevel))
	}

	// History is best-effort: a storage outage must not void a verdict the
	// pipeline already produced.
	if _, err := rt.history.Record(r.Context(), input, verdict); err != nil {
		slog.Warn("scan_record_failed",
			"request_id", requestIDFromContext(r.Context()),
			"scan_id", verdict.ID,
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, verdict)
}

// parseScanInput accepts either a JSON body (barcode, name, ocr_text) or a
// multipart form that can additionally carry image and leaflet files.
func parseScanInput(r *http.Request) (domain.ScanInput, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if contentType == "multipart/form-data" {
		return parseMultipartScanInput(r)
	}

	var body struct {
		Barcode string `json:"barcode"`
		Name    string `json:"name"`
		OCRText string `json:"ocr_text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		return domain.ScanInput{}, domain.WrapError(domain.ErrInvalidInput, "parse scan request", err)
	}
	return domain.ScanInput{
		Barcode: strings.TrimSpace(body.Barcode),
		Name:    strings.TrimSpace(body.Name),
		OCRText: body.OCRText,
	}, nil
}

func parseMultipartScanInput(r *http.Request) (domain.ScanInput, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return domain.ScanInput{}, domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err)
	}

	input := domain.ScanInput{
		Barcode: strings.TrimSpace(r.FormValue("barcode")),
		Name:    strings.TrimSpace(r.FormValue("name")),
		OCRText: r.FormValue("ocr_text"),
	}

	image, err := readFormFile(r, "image")
	if err != nil {
		return domain.ScanInput{}, err
	}
	input.Image = image

	leaflet, err := readFormFile(r, "leaflet")
	if err != nil {
		return domain.ScanInput{}, err
	}
	input.Leaflet = leaflet

	return input, nil
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "read form file "+field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read form file "+field, err)
	}
	return data, nil
}

func (rt *Router) listScans(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	records, err := rt.history.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scans": records,
		"count": len(records),
	})
}

func (rt *Router) getScanByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/scans/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan id is required"})
		return
	}

	record, err := rt.history.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) exportScans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := parseLimit(r)

	// Buffer the workbook so storage errors still map to a JSON error
	// response instead of a broken download.
	var buf bytes.Buffer
	count, err := rt.exporter.ExportXLSX(r.Context(), limit, &buf)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.metrics.RecordExport(rt.service, "xlsx")

	filename := fmt.Sprintf("scans-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Export-Rows", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
