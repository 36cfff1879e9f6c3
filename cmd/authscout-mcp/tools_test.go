package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/use-agent/authscout/models"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: "invalid API key"}})
			return
		}
		found := &models.ScrapeResult{
			URL:         "https://a.com/login",
			Success:     true,
			FetchMethod: "static",
			AuthComponent: &models.AuthComponent{
				Found:         true,
				HTMLSnippet:   `<form method="post"></form>`,
				PasswordInput: `<input type="password"/>`,
				Method:        "POST",
				Action:        "https://a.com/session",
			},
		}
		switch r.URL.Path {
		case "/api/scrape":
			_ = json.NewEncoder(w).Encode(found)
		case "/api/scrape/batch":
			_ = json.NewEncoder(w).Encode(models.BatchResponse{Results: []*models.ScrapeResult{
				found,
				{URL: "bad", Success: false, Error: models.MsgInvalidURL, ErrorCode: models.ErrCodeInvalidURL},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestDetectLoginForm(t *testing.T) {
	api := &apiClient{baseURL: fakeAPI(t).URL, apiKey: "k"}

	text, isErr := call(t, handleDetect(api), map[string]any{"url": "https://a.com/login"})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	for _, want := range []string{"Login form found", "POST https://a.com/session", "Password input"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	if _, isErr := call(t, handleDetect(api), map[string]any{}); !isErr {
		t.Error("missing url should be a tool error")
	}
}

func TestDetectLoginFormAPIError(t *testing.T) {
	api := &apiClient{baseURL: fakeAPI(t).URL, apiKey: "wrong"}

	text, isErr := call(t, handleDetect(api), map[string]any{"url": "https://a.com/login"})
	if !isErr || !strings.Contains(text, "UNAUTHORIZED") {
		t.Errorf("got (%q, %v)", text, isErr)
	}
}

func TestDetectLoginForms(t *testing.T) {
	api := &apiClient{baseURL: fakeAPI(t).URL, apiKey: "k"}

	text, isErr := call(t, handleDetectBatch(api), map[string]any{"urls": []any{"https://a.com/login", "bad"}})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "found on 1 of 2 pages") || !strings.Contains(text, "FAILED: [INVALID_URL]") {
		t.Errorf("output:\n%s", text)
	}
}

func TestFormatResultNotFound(t *testing.T) {
	got := formatResult(&models.ScrapeResult{URL: "https://b.com", Success: true, FetchMethod: "rendered", AuthComponent: &models.AuthComponent{}})
	if !strings.HasPrefix(got, "No login form found on https://b.com (fetched via rendered)") {
		t.Errorf("got %q", got)
	}
}
