package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8000", "quotegrab API base URL")
	runs        = flag.Int("runs", 3, "Number of runs per batch size for averaging")
	sizes       = flag.String("sizes", "1,5,10", "Comma-separated batch sizes to measure")
	targetsFile = flag.String("targets", "", "JSON targets file; defaults to a built-in set")
	output      = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// defaultTargets are cycled to fill batches of any size.
var defaultTargets = []target{
	{"Apple", "https://www.investing.com/equities/apple-computer-inc"},
	{"Microsoft", "https://www.investing.com/equities/microsoft-corp"},
	{"Google", "https://www.investing.com/equities/google-inc-c"},
	{"Tesla", "https://www.investing.com/equities/tesla-motors"},
	{"Amazon", "https://www.investing.com/equities/amazon-com-inc"},
}

// --- Request / Response types (mirrors models package) ---

type target struct {
	Name string `json:"empresa"`
	URL  string `json:"url"`
}

type quoteResult struct {
	Name       string `json:"empresa"`
	Price      string `json:"price"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code"`
	DurationMs int64  `json:"duration_ms"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	HTTPStatus int    `json:"http_status"`
	BatchMs    int64  `json:"batch_ms"`
	AverageMs  int64  `json:"average_ms"`
	SlowestMs  int64  `json:"slowest_ms"`
	OK         int    `json:"ok"`
	Failed     int    `json:"failed"`
	WithPrice  int    `json:"with_price"`
	Error      string `json:"error,omitempty"`
}

type sizeAverages struct {
	BatchMs    float64 `json:"batch_ms"`
	AverageMs  float64 `json:"average_ms"`
	SuccessPct float64 `json:"success_percent"`
}

type sizeResult struct {
	Size     int           `json:"size"`
	Runs     []runResult   `json:"runs"`
	Averages *sizeAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp   string       `json:"timestamp"`
	APIURL      string       `json:"api_url"`
	RunsPerSize int          `json:"runs_per_size"`
	Results     []sizeResult `json:"results"`
}

func main() {
	flag.Parse()

	batchSizes, err := parseSizes(*sizes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	pool := defaultTargets
	if *targetsFile != "" {
		if pool, err = loadTargets(*targetsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== quotegrab Benchmark Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/size:  %d\n", *runs)
	fmt.Printf("Sizes:      %v\n", batchSizes)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure quotegrab is running (quotegrab serve)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		RunsPerSize: *runs,
	}

	for _, n := range batchSizes {
		batch := fill(pool, n)
		fmt.Printf("Benchmarking batch of %d ...\n", n)
		sr := sizeResult{Size: n}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkBatch(batch, i)
			if rr.Error == "" {
				fmt.Printf("%dms  %d ok / %d failed\n", rr.BatchMs, rr.OK, rr.Failed)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			sr.Runs = append(sr.Runs, rr)
		}

		sr.Averages = computeAverages(sr.Runs)
		report.Results = append(report.Results, sr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func parseSizes(s string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid batch size %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no batch sizes given")
	}
	return out, nil
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ts []target
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("%s has no targets", path)
	}
	return ts, nil
}

// fill cycles pool until the batch has n targets. Duplicates are fine;
// each one is processed independently.
func fill(pool []target, n int) []target {
	batch := make([]target, n)
	for i := range batch {
		batch[i] = pool[i%len(pool)]
	}
	return batch
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

func benchmarkBatch(batch []target, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(batch)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/quotes", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	rr.HTTPStatus = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return rr
	}
	rr.BatchMs, _ = strconv.ParseInt(resp.Header.Get("X-Batch-Duration-Ms"), 10, 64)
	rr.AverageMs, _ = strconv.ParseInt(resp.Header.Get("X-Batch-Average-Ms"), 10, 64)

	var results []quoteResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	for _, r := range results {
		if r.Status == "ok" {
			rr.OK++
		} else {
			rr.Failed++
		}
		if r.Price != "N/A" && r.Price != "Error" {
			rr.WithPrice++
		}
		if r.DurationMs > rr.SlowestMs {
			rr.SlowestMs = r.DurationMs
		}
	}
	return rr
}

func computeAverages(runs []runResult) *sizeAverages {
	var count, ok, total int
	var avg sizeAverages

	for _, r := range runs {
		if r.Error != "" {
			continue
		}
		count++
		avg.BatchMs += float64(r.BatchMs)
		avg.AverageMs += float64(r.AverageMs)
		ok += r.OK
		total += r.OK + r.Failed
	}

	if count == 0 {
		return nil
	}

	n := float64(count)
	avg.BatchMs /= n
	avg.AverageMs /= n
	if total > 0 {
		avg.SuccessPct = 100 * float64(ok) / float64(total)
	}
	return &avg
}

func printTable(results []sizeResult) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Batch\tAvg Batch\tAvg/Target\tSuccess\n")
	fmt.Fprintf(w, "─────\t─────────\t──────────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%d\tFAILED\t-\t-\n", r.Size)
			continue
		}
		fmt.Fprintf(w, "%d\t%dms\t%dms\t%.1f%%\n",
			r.Size,
			int64(r.Averages.BatchMs),
			int64(r.Averages.AverageMs),
			r.Averages.SuccessPct,
		)
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
