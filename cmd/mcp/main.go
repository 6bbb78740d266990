// Command mcp exposes the verification pipeline to MCP clients over stdio.
// Assistants can verify a medicine and inspect scan history without going
// through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/medicine-verifier/internal/bootstrap"
	"github.com/kirillkom/medicine-verifier/internal/config"
	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/observability/logging"
)

const serviceName = "medicine-verifier-mcp"

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol; keep logs on stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := server.NewMCPServer("medicine-verifier", "1.0.0", server.WithToolCapabilities(false))

	verifyTool := mcp.NewTool("verify_medicine",
		mcp.WithDescription("Verify a medicine against the FDA drug registry. Provide a barcode, a medicine name, or packaging text; at least one is required."),
		mcp.WithString("barcode", mcp.Description("Raw scanned barcode or NDC code")),
		mcp.WithString("name", mcp.Description("Brand or generic medicine name")),
		mcp.WithString("ocr_text", mcp.Description("Free-form packaging text to extract an NDC or name from")),
	)
	s.AddTool(verifyTool, func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := domain.ScanInput{
			Barcode: request.GetString("barcode", ""),
			Name:    request.GetString("name", ""),
			OCRText: request.GetString("ocr_text", ""),
		}

		verdict, err := app.VerifyUC.Verify(toolCtx, input)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := app.HistoryUC.Record(toolCtx, input, verdict); err != nil {
			slog.Warn("scan_record_failed", "scan_id", verdict.ID, "error", err)
		}
		return jsonResult(verdict)
	})

	getScanTool := mcp.NewTool("get_scan",
		mcp.WithDescription("Fetch one stored scan record by its id."),
		mcp.WithString("scan_id", mcp.Required(), mcp.Description("Scan record id")),
	)
	s.AddTool(getScanTool, func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scanID := request.GetString("scan_id", "")
		if scanID == "" {
			return mcp.NewToolResultError("scan_id is required"), nil
		}

		record, err := app.HistoryUC.GetByID(toolCtx, scanID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(record)
	})

	listScansTool := mcp.NewTool("list_recent_scans",
		mcp.WithDescription("List the most recent scan records, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 50, max 500)")),
	)
	s.AddTool(listScansTool, func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 0)

		records, err := app.HistoryUC.ListRecent(toolCtx, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(records)
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
