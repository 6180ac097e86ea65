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

// target mirrors the quotegrab API input model.
type target struct {
	Name string `json:"empresa"`
	URL  string `json:"url"`
}

// quoteResult mirrors the quotegrab API result model.
type quoteResult struct {
	Name         string `json:"empresa"`
	URL          string `json:"url"`
	CompanyName  string `json:"company_name"`
	Price        string `json:"price"`
	Change       string `json:"change"`
	ChangePct    string `json:"change_pct"`
	Currency     string `json:"currency"`
	Exchange     string `json:"exchange"`
	ExchangeName string `json:"exchange_name"`
	SessionState string `json:"session_state"`
	CloseTime    string `json:"close_time"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code"`
	Reason       string `json:"reason"`
}

// errorResponse mirrors the quotegrab API error envelope.
type errorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// jobResponse mirrors the quotegrab job creation response.
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// jobStatusResponse mirrors the quotegrab job status response.
type jobStatusResponse struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Results   []quoteResult `json:"results"`
}

func main() {
	apiURL := os.Getenv("QUOTEGRAB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}

	s := server.NewMCPServer(
		"quotegrab",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	targetItems := mcp.Items(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"empresa": map[string]any{"type": "string", "description": "Display name of the company"},
			"url":     map[string]any{"type": "string", "description": "Quote page URL"},
		},
		"required": []string{"empresa", "url"},
	})

	scrapeQuotesTool := mcp.NewTool("scrape_quotes",
		mcp.WithDescription("Extract price, change, currency, exchange and trading session state from quote pages. Returns one line per target, in input order."),
		mcp.WithArray("targets",
			mcp.Required(),
			mcp.Description("Targets to extract, each {empresa, url}"),
			targetItems,
		),
	)
	s.AddTool(scrapeQuotesTool, handleScrapeQuotes(apiURL))

	quoteJobTool := mcp.NewTool("scrape_quotes_job",
		mcp.WithDescription("Same as scrape_quotes but runs as a background job on the server and polls until it finishes. Better for large batches."),
		mcp.WithArray("targets",
			mcp.Required(),
			mcp.Description("Targets to extract, each {empresa, url}"),
			targetItems,
		),
	)
	s.AddTool(quoteJobTool, handleQuoteJob(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// targetsArg decodes the "targets" argument into typed targets.
func targetsArg(request mcp.CallToolRequest) ([]target, error) {
	raw, ok := request.GetArguments()["targets"]
	if !ok {
		return nil, fmt.Errorf("targets is required")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var targets []target
	if err := json.Unmarshal(b, &targets); err != nil {
		return nil, fmt.Errorf("targets must be an array of {empresa, url}: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("targets must not be empty")
	}
	return targets, nil
}

// apiDo sends a request to the quotegrab API and returns the status and body.
func apiDo(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// apiError extracts a readable message from a non-2xx response.
func apiError(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		return fmt.Sprintf("[%s] %s", er.Error.Code, er.Error.Message)
	}
	return fmt.Sprintf("API returned status %d", status)
}

func handleScrapeQuotes(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		targets, err := targetsArg(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		status, body, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/quotes", targets)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var results []quoteResult
		if err := json.Unmarshal(body, &results); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(formatResults(results)), nil
	}
}

func handleQuoteJob(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		targets, err := targetsArg(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		status, body, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/jobs",
			map[string]any{"targets": targets})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var job jobResponse
		if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
			return mcp.NewToolResultError("job creation failed"), nil
		}

		st, err := pollJob(ctx, client, apiURL+"/api/v1/jobs/"+job.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling job failed: %v", err)), nil
		}

		header := fmt.Sprintf("Job %s: %s (%d/%d completed)\n\n", st.ID, st.Status, st.Completed, st.Total)
		return mcp.NewToolResultText(header + formatResults(st.Results)), nil
	}
}

// pollJob polls a job until it leaves "processing" or ctx is done.
func pollJob(ctx context.Context, client *http.Client, url string) (*jobStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, body, err := apiDo(ctx, client, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("%s", apiError(status, body))
			}
			var st jobStatusResponse
			if err := json.Unmarshal(body, &st); err != nil {
				return nil, fmt.Errorf("parse job status: %w", err)
			}
			if st.Status != "processing" {
				return &st, nil
			}
		}
	}
}

func formatResults(results []quoteResult) string {
	var sb strings.Builder
	for i, r := range results {
		if r.Status != "ok" {
			fmt.Fprintf(&sb, "[%d] %s: FAILED (%s) %s\n", i+1, r.Name, r.ErrorCode, r.Reason)
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s (%s): %s %s  %s %s  %s/%s  %s %s\n",
			i+1, r.Name, r.CompanyName,
			r.Price, r.Currency, r.Change, r.ChangePct,
			r.Exchange, r.ExchangeName, r.SessionState, r.CloseTime)
	}
	return sb.String()
}
