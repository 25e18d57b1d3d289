// Benchmark harness for a running adpack instance: times repeated scans
// of the library page and reports extraction completeness per run.
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
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "Adpack API base URL")
	apiKey   = flag.String("api-key", "", "API key for authenticated requests")
	runs     = flag.Int("runs", 3, "Number of scan runs for averaging")
	navigate = flag.Bool("navigate", true, "Navigate to the library page before the first scan")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// --- Request / Response types (mirrors models package) ---

type scanRequest struct {
	Navigate bool `json:"navigate,omitempty"`
}

type scanResponse struct {
	Success bool `json:"success"`
	Records []struct {
		ID             string `json:"id"`
		AdvertiserName string `json:"advertiser_name"`
		Headline       string `json:"headline"`
		PrimaryText    string `json:"primary_text"`
		CTA            string `json:"cta"`
		VideoURL       string `json:"video_url"`
		ImageURL       string `json:"image_url"`
	} `json:"records"`
	Total int `json:"total"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// --- Benchmark result types ---

type runResult struct {
	Run          int    `json:"run"`
	TotalMs      int64  `json:"total_ms"`
	Cards        int    `json:"cards"`
	WithHeadline int    `json:"with_headline"`
	WithText     int    `json:"with_text"`
	WithCTA      int    `json:"with_cta"`
	WithMedia    int    `json:"with_media"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs"`
	Results    []runResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Adpack Scan Benchmark ===")
	fmt.Printf("API URL:  %s\n", *apiURL)
	fmt.Printf("Runs:     %d\n", *runs)
	fmt.Printf("Output:   %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure adpack is running\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for i := 1; i <= *runs; i++ {
		fmt.Printf("Run %d/%d ... ", i, *runs)
		rr := benchmarkScan(i, *navigate && i == 1)
		if rr.Success {
			fmt.Printf("OK  %dms  %d cards\n", rr.TotalMs, rr.Cards)
		} else {
			fmt.Printf("FAILED: %s\n", rr.Error)
		}
		report.Results = append(report.Results, rr)
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
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkScan(run int, doNavigate bool) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(scanRequest{Navigate: doNavigate})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/scan", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.TotalMs = time.Since(start).Milliseconds()

	var sr scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.Cards = sr.Total
	for _, r := range sr.Records {
		if r.Headline != "" {
			rr.WithHeadline++
		}
		if r.PrimaryText != "" {
			rr.WithText++
		}
		if r.CTA != "" {
			rr.WithCTA++
		}
		if r.VideoURL != "" || r.ImageURL != "" {
			rr.WithMedia++
		}
	}

	if sr.Error != nil {
		rr.Error = sr.Error.Message
	}

	return rr
}

func printTable(results []runResult) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run\tLatency\tCards\tHeadline\tText\tCTA\tMedia\n")
	fmt.Fprintf(w, "───\t───────\t─────\t────────\t────\t───\t─────\n")

	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(w, "%d\tFAILED\t-\t-\t-\t-\t-\n", r.Run)
			continue
		}
		fmt.Fprintf(w, "%d\t%dms\t%d\t%d\t%d\t%d\t%d\n",
			r.Run, r.TotalMs, r.Cards, r.WithHeadline, r.WithText, r.WithCTA, r.WithMedia)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 70))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
