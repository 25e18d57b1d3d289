package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scanResponse mirrors the Adpack scan API response model.
type scanResponse struct {
	Success bool `json:"success"`
	Records []struct {
		ID             string `json:"id"`
		AdvertiserName string `json:"advertiser_name"`
		PrimaryText    string `json:"primary_text"`
		Headline       string `json:"headline"`
		CTA            string `json:"cta"`
		VideoURL       string `json:"video_url"`
		ImageURL       string `json:"image_url"`
	} `json:"records"`
	Total int       `json:"total"`
	Error *errorRes `json:"error"`
}

// stateResponse mirrors the Adpack state API response model.
type stateResponse struct {
	SelectedIDs   []string `json:"selected_ids"`
	SelectedCount int      `json:"selected_count"`
	Progress      struct {
		Active        bool   `json:"active"`
		CurrentBatch  int    `json:"current_batch"`
		TotalBatches  int    `json:"total_batches"`
		ItemsDone     int    `json:"items_done"`
		ItemsTotal    int    `json:"items_total"`
		Percent       int    `json:"percent"`
		StatusMessage string `json:"status_message"`
	} `json:"progress"`
}

// exportResponse mirrors the Adpack export API response model.
type exportResponse struct {
	Success bool      `json:"success"`
	RunID   string    `json:"run_id"`
	SavedAs string    `json:"saved_as"`
	Error   *errorRes `json:"error"`
}

type errorRes struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	apiURL := os.Getenv("ADPACK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ADPACK_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ADPACK_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"adpack",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanAdsTool := mcp.NewTool("scan_ads",
		mcp.WithDescription("Scan the ad library page for ad cards and return the extracted records (advertiser, texts, media URLs, library ID)."),
		mcp.WithBoolean("navigate",
			mcp.Description("Navigate to the configured library page first (default: scan the page as it stands)"),
		),
	)
	s.AddTool(scanAdsTool, handleScanAds(apiURL, apiKey))

	toggleTool := mcp.NewTool("toggle_selection",
		mcp.WithDescription("Toggle one ad in the export selection by its library ID. The card is re-extracted at toggle time."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The library ID of the ad card"),
		),
	)
	s.AddTool(toggleTool, handleToggle(apiURL, apiKey))

	bulkExportTool := mcp.NewTool("bulk_export",
		mcp.WithDescription("Export every selected ad in batches of archives and wait for the run to finish. Batches are paced with randomized delays, so large selections take a while."),
		mcp.WithString("mode",
			mcp.Description("Asset set per ad: 'all' (default), 'video-only', or 'text-only'"),
			mcp.Enum("all", "video-only", "text-only"),
		),
	)
	s.AddTool(bulkExportTool, handleBulkExport(apiURL, apiKey))

	exportStatusTool := mcp.NewTool("export_status",
		mcp.WithDescription("Report the current selection and export progress."),
	)
	s.AddTool(exportStatusTool, handleExportStatus(apiURL, apiKey))

	clearTool := mcp.NewTool("clear_selection",
		mcp.WithDescription("Clear the export selection."),
	)
	s.AddTool(clearTool, handleClear(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Adpack API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the Adpack API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleScanAds(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]interface{}{}
		if navigate := request.GetBool("navigate", false); navigate {
			payload["navigate"] = true
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scan", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan request failed: %v", err)), nil
		}

		var scanResp scanResponse
		if err := json.Unmarshal(respBody, &scanResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse scan response: %v", err)), nil
		}
		if !scanResp.Success {
			return mcp.NewToolResultError(errorMessage(scanResp.Error, "scan failed")), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d ads:\n\n", scanResp.Total))
		for _, r := range scanResp.Records {
			sb.WriteString(fmt.Sprintf("--- %s (%s) ---\n", r.AdvertiserName, r.ID))
			if r.Headline != "" {
				sb.WriteString("Headline: " + r.Headline + "\n")
			}
			if r.PrimaryText != "" {
				sb.WriteString("Text: " + r.PrimaryText + "\n")
			}
			if r.CTA != "" {
				sb.WriteString("CTA: " + r.CTA + "\n")
			}
			switch {
			case r.VideoURL != "":
				sb.WriteString("Media: video\n")
			case r.ImageURL != "":
				sb.WriteString("Media: image\n")
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleToggle(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/select/toggle", map[string]string{"id": id})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("toggle request failed: %v", err)), nil
		}

		var state stateResponse
		if err := json.Unmarshal(respBody, &state); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse state response: %v", err)), nil
		}

		return mcp.NewToolResultText(formatState(state)), nil
	}
}

func handleBulkExport(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]interface{}{}
		if mode := request.GetString("mode", ""); mode != "" {
			payload["mode"] = mode
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/export/bulk", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export request failed: %v", err)), nil
		}

		var expResp exportResponse
		if err := json.Unmarshal(respBody, &expResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse export response: %v", err)), nil
		}
		if !expResp.Success {
			return mcp.NewToolResultError(errorMessage(expResp.Error, "export failed")), nil
		}

		// Poll state until the run goes inactive.
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return mcp.NewToolResultError("cancelled while waiting for the export run"), nil
			case <-ticker.C:
				body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/state")
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("polling export run failed: %v", err)), nil
				}
				var state stateResponse
				if err := json.Unmarshal(body, &state); err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("failed to parse state response: %v", err)), nil
				}
				if !state.Progress.Active {
					result := fmt.Sprintf("Export run %s finished.\n%s", expResp.RunID, formatState(state))
					return mcp.NewToolResultText(result), nil
				}
			}
		}
	}
}

func handleExportStatus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/state")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("state request failed: %v", err)), nil
		}

		var state stateResponse
		if err := json.Unmarshal(respBody, &state); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse state response: %v", err)), nil
		}

		return mcp.NewToolResultText(formatState(state)), nil
	}
}

func handleClear(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/select/clear", map[string]string{})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clear request failed: %v", err)), nil
		}

		var state stateResponse
		if err := json.Unmarshal(respBody, &state); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse state response: %v", err)), nil
		}

		return mcp.NewToolResultText("Selection cleared.\n" + formatState(state)), nil
	}
}

func formatState(state stateResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Selected: %d ads", state.SelectedCount))
	if state.SelectedCount > 0 {
		sb.WriteString(" (" + strings.Join(state.SelectedIDs, ", ") + ")")
	}
	sb.WriteString("\n")
	p := state.Progress
	if p.Active {
		sb.WriteString(fmt.Sprintf("Export: set %d of %d, %d/%d items (%d%%)\n",
			p.CurrentBatch, p.TotalBatches, p.ItemsDone, p.ItemsTotal, p.Percent))
	}
	if p.StatusMessage != "" {
		sb.WriteString("Status: " + p.StatusMessage + "\n")
	}
	return sb.String()
}

func errorMessage(e *errorRes, fallback string) string {
	if e != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fallback
}
