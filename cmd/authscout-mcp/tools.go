package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/authscout/models"
)

// apiClient calls a running authscout API.
type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"authscout",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("detect_login_form",
		mcp.WithDescription("Find the login form on a web page. Returns the form's HTML, its username, password and submit elements, and where it submits. Falls back to a headless browser for JavaScript-rendered or protected pages."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to inspect, e.g. https://github.com/login or a site's homepage"),
		),
	), handleDetect(api))

	s.AddTool(mcp.NewTool("detect_login_forms",
		mcp.WithDescription("Find the login forms on several web pages in parallel. Results are returned in input order."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of pages to inspect"),
			mcp.WithStringItems(),
		),
	), handleDetectBatch(api))

	return s
}

func handleDetect(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var res models.ScrapeResult
		if err := api.post(ctx, "/api/scrape", models.ScrapeRequest{URL: url}, &res); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !res.Success {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", res.ErrorCode, res.Error)), nil
		}
		return mcp.NewToolResultText(formatResult(&res)), nil
	}
}

func handleDetectBatch(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required and must be a non-empty array of strings"), nil
		}

		var resp models.BatchResponse
		if err := api.post(ctx, "/api/scrape/batch", models.BatchRequest{URLs: urls}, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		found := 0
		for _, r := range resp.Results {
			if r.AuthComponent != nil && r.AuthComponent.Found {
				found++
			}
		}
		fmt.Fprintf(&sb, "Login forms found on %d of %d pages\n\n", found, len(resp.Results))
		for i, r := range resp.Results {
			fmt.Fprintf(&sb, "--- [%d] %s ---\n", i+1, r.URL)
			if !r.Success {
				fmt.Fprintf(&sb, "FAILED: [%s] %s\n\n", r.ErrorCode, r.Error)
				continue
			}
			sb.WriteString(formatResult(r))
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatResult renders a successful result for a language model.
func formatResult(r *models.ScrapeResult) string {
	c := r.AuthComponent
	if c == nil || !c.Found {
		return fmt.Sprintf("No login form found on %s (fetched via %s)\n", r.URL, r.FetchMethod)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Login form found on %s (fetched via %s)\n", r.URL, r.FetchMethod)
	fmt.Fprintf(&sb, "Submits: %s %s\n", c.Method, c.Action)
	for _, f := range []struct{ label, html string }{
		{"Username input", c.UsernameInput},
		{"Password input", c.PasswordInput},
		{"Submit button", c.SubmitButton},
	} {
		if f.html != "" {
			fmt.Fprintf(&sb, "%s: %s\n", f.label, f.html)
		}
	}
	fmt.Fprintf(&sb, "\nForm HTML:\n%s\n", c.HTMLSnippet)
	return sb.String()
}

// post sends payload as JSON to path and decodes the response into out.
func (a *apiClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	client := a.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
