// Load generator for exercising Lumina's check pipeline.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -n 10000 -workers 10
//
// This tool:
//   1. Generates synthetic transfer check requests across a set of entities
//   2. Sends them to POST /check-transfer concurrently
//   3. Tallies verdicts (APPROVED / ESCALATED / REJECTED) and errors
//   4. Reports latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CheckRequest matches the /check-transfer wire format.
type CheckRequest struct {
	EntityID         string `json:"entityId"`
	JurisdictionCode string `json:"jurisdictionCode"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	CounterpartyID   string `json:"counterpartyId,omitempty"`
}

// CheckResponse is the subset of the check result the tool inspects.
type CheckResponse struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	RiskScore int      `json:"riskScore"`
	Flags     []string `json:"flags"`
}

// Tally tracks run results.
type Tally struct {
	Approved  int64
	Escalated int64
	Rejected  int64
	Errors    int64

	TotalProcessed int64
	LatencyMs      int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Lumina base URL")
	total := flag.Int("n", 10000, "Number of check requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	entities := flag.Int("entities", 500, "Number of distinct entities to spread requests over")
	jurisdictions := flag.String("jurisdictions", "AE,US,DE", "Comma-separated jurisdiction codes")
	maxAmount := flag.Float64("max-amount", 50000, "Upper bound for random transfer amounts")
	verbose := flag.Bool("verbose", false, "Print each check result")
	flag.Parse()

	codes := strings.Split(*jurisdictions, ",")
	for i := range codes {
		codes[i] = strings.ToUpper(strings.TrimSpace(codes[i]))
	}

	fmt.Println("Lumina load generator")
	fmt.Printf("  URL:           %s\n", *baseURL)
	fmt.Printf("  Requests:      %d\n", *total)
	fmt.Printf("  Workers:       %d\n", *workers)
	fmt.Printf("  Entities:      %d\n", *entities)
	fmt.Printf("  Jurisdictions: %s\n", strings.Join(codes, ", "))
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Lumina not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Lumina is running:")
		fmt.Println("  go run cmd/lumina/main.go")
		os.Exit(1)
	}
	fmt.Println("Lumina is healthy, starting run...")

	start := time.Now()
	tally := run(*baseURL, *total, *workers, *entities, codes, *maxAmount, *verbose)
	printResults(tally, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func run(baseURL string, total, numWorkers, entities int, codes []string, maxAmount float64, verbose bool) *Tally {
	tally := &Tally{}
	work := make(chan CheckRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 15 * time.Second}

			for req := range work {
				start := time.Now()
				result, err := sendCheck(client, baseURL, req)
				atomic.AddInt64(&tally.LatencyMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&tally.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&tally.Errors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", req.EntityID, err)
					}
					continue
				}

				switch result.Status {
				case "APPROVED":
					atomic.AddInt64(&tally.Approved, 1)
				case "ESCALATED":
					atomic.AddInt64(&tally.Escalated, 1)
				case "REJECTED":
					atomic.AddInt64(&tally.Rejected, 1)
				}

				if verbose {
					fmt.Printf("%-12s | %-2s | %10s | %-9s (score %3d) %v\n",
						req.EntityID, req.JurisdictionCode, req.Amount,
						result.Status, result.RiskScore, result.Flags)
				}
			}
		}()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < total; i++ {
		entity := fmt.Sprintf("entity-%04d", rng.Intn(entities))
		counterparty := fmt.Sprintf("entity-%04d", rng.Intn(entities))
		work <- CheckRequest{
			EntityID:         entity,
			JurisdictionCode: codes[rng.Intn(len(codes))],
			Amount:           fmt.Sprintf("%.2f", rng.Float64()*maxAmount),
			Currency:         "USD",
			CounterpartyID:   counterparty,
		}
	}
	close(work)

	wg.Wait()
	return tally
}

func sendCheck(client *http.Client, baseURL string, req CheckRequest) (*CheckResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/check-transfer", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(t *Tally, duration time.Duration) {
	fmt.Println("\nRESULTS")
	fmt.Printf("   Total Processed:  %d\n", t.TotalProcessed)
	fmt.Printf("   Approved:         %d\n", t.Approved)
	fmt.Printf("   Escalated:        %d\n", t.Escalated)
	fmt.Printf("   Rejected:         %d\n", t.Rejected)
	fmt.Printf("   Errors:           %d\n", t.Errors)

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if t.TotalProcessed > 0 {
		avgMs := float64(t.LatencyMs) / float64(t.TotalProcessed)
		rps := float64(t.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f checks/sec\n", rps)
	}
	fmt.Println()
}
