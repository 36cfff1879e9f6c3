package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/authscout/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDetector echoes every URL back as a found result.
type fakeDetector struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeDetector) Scrape(_ context.Context, rawURL string) *models.ScrapeResult {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	return &models.ScrapeResult{
		URL:           rawURL,
		Success:       true,
		AuthComponent: &models.AuthComponent{Found: true, Method: "POST"},
		FetchMethod:   "static",
	}
}

func (f *fakeDetector) ScrapeBatch(ctx context.Context, urls []string) []*models.ScrapeResult {
	out := make([]*models.ScrapeResult, len(urls))
	for i, u := range urls {
		out[i] = f.Scrape(ctx, u)
	}
	return out
}

func serve(h gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, "/t", h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScrapeHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantURL    string
	}{
		{"post", http.MethodPost, "/t", `{"url":"https://github.com/login"}`, http.StatusOK, "https://github.com/login"},
		{"get", http.MethodGet, "/t?url=github.com/login", "", http.StatusOK, "github.com/login"},
		{"post missing url", http.MethodPost, "/t", `{}`, http.StatusBadRequest, ""},
		{"post bad json", http.MethodPost, "/t", `{"url":`, http.StatusBadRequest, ""},
		{"get missing url", http.MethodGet, "/t", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDetector{}
			w := serve(Scrape(d), tt.method, tt.target, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body)
			}
			if tt.wantStatus != http.StatusOK {
				var resp models.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Success || resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
					t.Errorf("error body = %s", w.Body)
				}
				if len(d.calls) != 0 {
					t.Errorf("detector called on invalid input: %v", d.calls)
				}
				return
			}

			var res models.ScrapeResult
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.URL != tt.wantURL || !res.AuthComponent.Found {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestPostBatch(t *testing.T) {
	t.Run("order preserved", func(t *testing.T) {
		w := serve(PostBatch(&fakeDetector{}, 10), http.MethodPost, "/t",
			`{"urls":["https://a.com/login","https://b.com/login","https://c.com/login"]}`)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		var resp models.BatchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := []string{"https://a.com/login", "https://b.com/login", "https://c.com/login"}
		if len(resp.Results) != len(want) {
			t.Fatalf("results = %d, want %d", len(resp.Results), len(want))
		}
		for i, r := range resp.Results {
			if r.URL != want[i] {
				t.Errorf("results[%d].URL = %q, want %q", i, r.URL, want[i])
			}
		}
		if resp.BatchID != "" {
			t.Errorf("BatchID = %q without webhook", resp.BatchID)
		}
	})

	for name, body := range map[string]string{
		"missing urls": `{}`,
		"empty urls":   `{"urls":[]}`,
		"too many":     `{"urls":["a","b","c"]}`,
		"bad webhook":  `{"urls":["a"],"webhookUrl":"not a url"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := serve(PostBatch(&fakeDetector{}, 2), http.MethodPost, "/t", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body)
			}
		})
	}
}

func TestPostBatchWebhook(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev struct {
			Type    string `json:"type"`
			BatchID string `json:"batchId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&ev)
		got <- ev.Type + " " + ev.BatchID
	}))
	defer srv.Close()

	w := serve(PostBatch(&fakeDetector{}, 10), http.MethodPost, "/t",
		`{"urls":["https://a.com/login"],"webhookUrl":"`+srv.URL+`","webhookSecret":"k"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}

	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.BatchID, "batch-") {
		t.Fatalf("BatchID = %q", resp.BatchID)
	}

	select {
	case ev := <-got:
		if ev != "batch.completed "+resp.BatchID {
			t.Errorf("webhook event = %q", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestPredefined(t *testing.T) {
	urls := []string{"https://one.com/login", "https://two.com/login"}
	w := serve(Predefined(&fakeDetector{}, urls), http.MethodGet, "/t", "")

	var resp models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[1].URL != urls[1] {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats StatsFunc
		want  string
	}{
		{"browser disabled", nil, "healthy"},
		{"idle", func() models.BrowserStats { return models.BrowserStats{Enabled: true, MaxContexts: 10, ActiveContexts: 2} }, "healthy"},
		{"saturated", func() models.BrowserStats { return models.BrowserStats{Enabled: true, MaxContexts: 10, ActiveContexts: 9} }, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(Health(tt.stats, time.Now()), http.MethodGet, "/t", "")

			var resp models.HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.want || resp.Version != Version {
				t.Errorf("health = %+v, want status %q", resp, tt.want)
			}
		})
	}
}
