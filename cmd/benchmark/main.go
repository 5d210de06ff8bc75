// Benchmark tool for load-testing CreditX scoring endpoints.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -records 10000
//
// This tool:
//   1. Generates synthetic credit insurance submissions and policies
//   2. Sends them in batches to the triage, renewal, and pricing endpoints
//   3. Reports latency and throughput per operation
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Submission mirrors the API request record shape.
type Submission struct {
	SubmissionID       string  `json:"submission_id"`
	Broker             string  `json:"broker"`
	Sector             string  `json:"sector"`
	ExposureLimit      float64 `json:"exposure_limit"`
	DebtorDays         float64 `json:"debtor_days"`
	FinancialsAttached bool    `json:"financials_attached"`
	YearsTrading       float64 `json:"years_trading"`
	BrokerHitRate      float64 `json:"broker_hit_rate"`
	RequestedCovPct    float64 `json:"requested_cov_pct"`
	HasJudgements      bool    `json:"has_judgements"`
}

// Policy mirrors the API request record shape.
type Policy struct {
	PolicyID           string  `json:"policy_id"`
	Broker             string  `json:"broker"`
	Sector             string  `json:"sector"`
	CurrentPremium     float64 `json:"current_premium"`
	Limit              float64 `json:"limit"`
	UtilizationPct     float64 `json:"utilization_pct"`
	ClaimsLast24mCnt   int     `json:"claims_last_24m_cnt"`
	ClaimsRatio24m     float64 `json:"claims_ratio_24m"`
	DaysToExpiry       float64 `json:"days_to_expiry"`
	RequestedChangePct float64 `json:"requested_change_pct"`
}

// Metrics tracks benchmark results per endpoint.
type Metrics struct {
	Requests       int64
	Errors         int64
	RecordsScored  int64
	TotalLatencyMs int64
}

var sectors = []string{"Retail", "Manufacturing", "Logistics", "Agri", "Services", "Other"}

var brokers = []string{"Marsh Re", "AonField", "Lockton SA", "Howden Trade", "Indie Broker Co"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "CreditX base URL")
	records := flag.Int("records", 10000, "Total records to score per endpoint")
	batchSize := flag.Int("batch", 100, "Records per request")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Random seed for synthetic data")
	flag.Parse()

	fmt.Println("CreditX benchmark")
	fmt.Printf("  URL:        %s\n", *baseURL)
	fmt.Printf("  Records:    %d per endpoint\n", *records)
	fmt.Printf("  Batch size: %d\n", *batchSize)
	fmt.Printf("  Workers:    %d\n", *workers)
	fmt.Println()

	if err := checkReady(*baseURL); err != nil {
		fmt.Printf("ERROR: CreditX not ready at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure CreditX is running:")
		fmt.Println("  go run cmd/creditx/main.go")
		os.Exit(1)
	}
	fmt.Println("CreditX is ready")

	rng := rand.New(rand.NewSource(*seed))

	submissionBatches := makeSubmissionBatches(rng, *records, *batchSize)
	policyBatches := makePolicyBatches(rng, *records, *batchSize)

	runs := []struct {
		name    string
		path    string
		batches [][]byte
	}{
		{"triage", "/triage/underwriting", submissionBatches},
		{"renewal", "/renewals/priority", policyBatches},
		{"pricing", "/pricing/suggest", submissionBatches},
	}

	for _, run := range runs {
		fmt.Printf("\nRunning %s against %s...\n", run.name, run.path)
		start := time.Now()
		m := runBatches(*baseURL+run.path, run.batches, *batchSize, *workers)
		printResults(run.name, m, time.Since(start))
	}
}

func checkReady(baseURL string) error {
	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

func makeSubmissionBatches(rng *rand.Rand, records, batchSize int) [][]byte {
	var batches [][]byte
	for offset := 0; offset < records; offset += batchSize {
		n := batchSize
		if records-offset < n {
			n = records - offset
		}
		subs := make([]Submission, n)
		for i := range subs {
			subs[i] = Submission{
				SubmissionID:       fmt.Sprintf("SUB-%06d", offset+i),
				Broker:             brokers[rng.Intn(len(brokers))],
				Sector:             sectors[rng.Intn(len(sectors))],
				ExposureLimit:      float64(rng.Intn(5_000_000) + 50_000),
				DebtorDays:         float64(rng.Intn(180)),
				FinancialsAttached: rng.Float64() < 0.7,
				YearsTrading:       rng.Float64() * 30,
				BrokerHitRate:      rng.Float64(),
				RequestedCovPct:    0.5 + rng.Float64()*0.4,
				HasJudgements:      rng.Float64() < 0.1,
			}
		}
		body, _ := json.Marshal(map[string]any{"submissions": subs})
		batches = append(batches, body)
	}
	return batches
}

func makePolicyBatches(rng *rand.Rand, records, batchSize int) [][]byte {
	var batches [][]byte
	for offset := 0; offset < records; offset += batchSize {
		n := batchSize
		if records-offset < n {
			n = records - offset
		}
		policies := make([]Policy, n)
		for i := range policies {
			policies[i] = Policy{
				PolicyID:           fmt.Sprintf("POL-%06d", offset+i),
				Broker:             brokers[rng.Intn(len(brokers))],
				Sector:             sectors[rng.Intn(len(sectors))],
				CurrentPremium:     float64(rng.Intn(200_000) + 5_000),
				Limit:              float64(rng.Intn(5_000_000) + 50_000),
				UtilizationPct:     rng.Float64(),
				ClaimsLast24mCnt:   rng.Intn(5),
				ClaimsRatio24m:     rng.Float64() * 1.5,
				DaysToExpiry:       float64(rng.Intn(365)),
				RequestedChangePct: rng.Float64()*0.4 - 0.2,
			}
		}
		body, _ := json.Marshal(map[string]any{"policies": policies})
		batches = append(batches, body)
	}
	return batches
}

func runBatches(url string, batches [][]byte, batchSize, numWorkers int) *Metrics {
	metrics := &Metrics{}

	work := make(chan []byte, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for body := range work {
				start := time.Now()
				err := postBatch(client, url, body)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.Requests, 1)
				atomic.AddInt64(&metrics.TotalLatencyMs, elapsed)
				if err != nil {
					atomic.AddInt64(&metrics.Errors, 1)
					continue
				}
				atomic.AddInt64(&metrics.RecordsScored, int64(batchSize))
			}
		}()
	}

	for _, body := range batches {
		work <- body
	}
	close(work)
	wg.Wait()

	return metrics
}

func postBatch(client *http.Client, url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		WeightsVersion string `json:"weights_version"`
	}
	return json.NewDecoder(resp.Body).Decode(&result)
}

func printResults(name string, m *Metrics, duration time.Duration) {
	fmt.Printf("\n%s results:\n", name)
	fmt.Printf("  Requests:       %d\n", m.Requests)
	fmt.Printf("  Errors:         %d\n", m.Errors)
	fmt.Printf("  Records scored: %d\n", m.RecordsScored)
	fmt.Printf("  Duration:       %v\n", duration.Round(time.Millisecond))
	if m.Requests > 0 {
		fmt.Printf("  Avg latency:    %.2f ms/request\n", float64(m.TotalLatencyMs)/float64(m.Requests))
	}
	if duration.Seconds() > 0 {
		fmt.Printf("  Throughput:     %.0f records/sec\n", float64(m.RecordsScored)/duration.Seconds())
	}
}
