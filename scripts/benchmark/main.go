package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/authscout/models"
	"github.com/use-agent/authscout/scraper"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8000", "authscout API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
	extra  = flag.String("urls", "", "Comma-separated URLs to add to the predefined list")
)

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"totalMs"`
	StaticMs   int64  `json:"staticMs"`
	RenderedMs int64  `json:"renderedMs"`
	Method     string `json:"method"`
	Found      bool   `json:"found"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlSummary struct {
	AvgTotalMs float64 `json:"avgTotalMs"`
	FoundRate  float64 `json:"foundRate"`
	Method     string  `json:"method"`
}

type urlResult struct {
	URL     string      `json:"url"`
	Runs    []runResult `json:"runs"`
	Summary *urlSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"apiUrl"`
	RunsPerURL int         `json:"runsPerUrl"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	urls := scraper.Predefined()
	for _, u := range strings.Split(*extra, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	fmt.Println("=== authscout benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure authscout is running (go run ./cmd/authscout)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	for _, u := range urls {
		fmt.Printf("Benchmarking %s ...\n", u)
		ur := urlResult{URL: u}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, u, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %s  found=%t\n", rr.TotalMs, rr.Method, rr.Found)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Summary = summarize(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func benchmarkURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	body, err := json.Marshal(models.ScrapeRequest{URL: url})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/scrape", bytes.NewReader(body))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.ScrapeResult
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.Method = sr.FetchMethod
	rr.Error = sr.Error
	if sr.Timing != nil {
		rr.TotalMs = sr.Timing.TotalMs
		rr.StaticMs = sr.Timing.StaticMs
		rr.RenderedMs = sr.Timing.RenderedMs
	}
	if sr.AuthComponent != nil {
		rr.Found = sr.AuthComponent.Found
	}
	return rr
}

func summarize(runs []runResult) *urlSummary {
	var (
		ok, found int
		total     float64
		methods   = map[string]int{}
	)
	for _, r := range runs {
		if !r.Success {
			continue
		}
		ok++
		total += float64(r.TotalMs)
		methods[r.Method]++
		if r.Found {
			found++
		}
	}
	if ok == 0 {
		return nil
	}

	s := &urlSummary{
		AvgTotalMs: total / float64(ok),
		FoundRate:  float64(found) / float64(ok),
	}
	best := 0
	for m, n := range methods {
		if n > best {
			s.Method, best = m, n
		}
	}
	return s
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tFound\tMethod\n")
	fmt.Fprintf(w, "───\t───────────\t─────\t──────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", truncateURL(r.URL, 45))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.0f%%\t%s\n",
			truncateURL(r.URL, 45),
			int64(r.Summary.AvgTotalMs),
			r.Summary.FoundRate*100,
			r.Summary.Method,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
