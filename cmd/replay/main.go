// Replay sends a labelled message file to a running Harrier and scores its
// routing against the labels.
//
// Usage:
//
//	go run ./cmd/replay -csv /path/to/labelled.csv -url http://localhost:8080
//
// The file uses the batch CSV columns plus a fraud label column (default
// "is_fraud", "1" or "true" meaning fraudulent). Rows are posted to
// /batches in chunks; a message counts as flagged when it is not admitted.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/source"
)

func main() {
	csvPath := flag.String("csv", "", "Path to labelled message CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "replay", "Tenant ID for requests")
	labelColumn := flag.String("label", "is_fraud", "Name of the fraud label column")
	batchSize := flag.Int("batch", 500, "Messages per batch request")
	workers := flag.Int("workers", 4, "Concurrent batch requests")
	limit := flag.Int("limit", 0, "Maximum messages to replay (0 = all)")
	verbose := flag.Bool("verbose", false, "Print each message result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: replay -csv /path/to/labelled.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Printf("CSV File:    %s\n", *csvPath)
	fmt.Printf("Harrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	ctx := context.Background()
	msgs, err := source.NewCSV(*csvPath).Messages(ctx)
	if err != nil {
		fmt.Printf("ERROR: failed to read messages: %v\n", err)
		os.Exit(1)
	}
	labels, err := readLabels(*csvPath, *labelColumn)
	if err != nil {
		fmt.Printf("ERROR: failed to read labels: %v\n", err)
		os.Exit(1)
	}
	if len(labels) != len(msgs) {
		fmt.Printf("ERROR: %d messages but %d labels\n", len(msgs), len(labels))
		os.Exit(1)
	}
	if *limit > 0 && len(msgs) > *limit {
		msgs, labels = msgs[:*limit], labels[:*limit]
	}

	fraud := make(map[string]bool, len(msgs))
	for i, m := range msgs {
		fraud[m.ID] = labels[i]
	}
	fmt.Printf("Loaded %d messages\n\n", len(msgs))

	start := time.Now()
	metrics := replay(ctx, msgs, fraud, *baseURL, *tenantID, *batchSize, *workers, *verbose)
	printResults(metrics, time.Since(start))
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

// readLabels returns the label column in row order.
func readLabels(path, column string) ([]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("label column %q not found", column)
	}

	var labels []bool
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		labels = append(labels, parseLabel(record[idx]))
	}
	return labels, nil
}

func parseLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "fraud":
		return true
	}
	return false
}

func replay(ctx context.Context, msgs []domain.PaymentMessage, fraud map[string]bool, baseURL, tenantID string, batchSize, numWorkers int, verbose bool) *Metrics {
	if batchSize <= 0 {
		batchSize = 500
	}
	metrics := &Metrics{}

	work := make(chan []domain.PaymentMessage)
	var wg sync.WaitGroup
	var printMu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Minute}

			for chunk := range work {
				report, err := submit(ctx, client, baseURL, tenantID, chunk)
				if err != nil {
					metrics.AddErrors(len(chunk))
					printMu.Lock()
					fmt.Printf("ERROR: batch of %d -> %v\n", len(chunk), err)
					printMu.Unlock()
					continue
				}
				metrics.AddLatency(report.FinishedAt.Sub(report.StartedAt))

				for _, r := range report.Results {
					flagged, ok := Flagged(r)
					if !ok {
						metrics.AddErrors(1)
						continue
					}
					metrics.Record(flagged, fraud[r.MessageID])

					if verbose {
						printMu.Lock()
						fmt.Printf("%-20s | fraud=%-5v | %-6s %-8s (%.2f)\n",
							r.MessageID, fraud[r.MessageID],
							r.Decision.Disposition, r.Decision.Status, r.Decision.Score)
						printMu.Unlock()
					}
				}
			}
		}()
	}

	for i := 0; i < len(msgs); i += batchSize {
		end := i + batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		work <- msgs[i:end]
	}
	close(work)
	wg.Wait()

	return metrics
}

func submit(ctx context.Context, client *http.Client, baseURL, tenantID string, msgs []domain.PaymentMessage) (*domain.BatchReport, error) {
	body, err := json.Marshal(map[string]interface{}{"messages": msgs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/batches", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var report domain.BatchReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nREPLAY RESULTS")
	fmt.Printf("   Total:        %d\n", m.Total())
	fmt.Printf("   Fraud:        %d\n", m.TruePositives+m.FalseNegatives)
	fmt.Printf("   Errors:       %d\n", m.Errors)

	fmt.Println("\nCONFUSION MATRIX (flagged = REFER or REJECT)")
	fmt.Println("                  flagged   admitted")
	fmt.Printf("   fraud        %9d  %9d\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("   legitimate   %9d  %9d\n", m.FalsePositives, m.TrueNegatives)

	fmt.Println("\nDETECTION")
	fmt.Printf("   Precision:  %.4f\n", m.Precision())
	fmt.Printf("   Recall:     %.4f\n", m.Recall())
	fmt.Printf("   F1-Score:   %.4f\n", m.F1())
	fmt.Printf("   Accuracy:   %.4f\n", m.Accuracy())

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("   Duration:   %v\n", duration.Round(time.Millisecond))
	if total := m.Total(); total > 0 {
		fmt.Printf("   Throughput: %.2f msg/sec\n", float64(total)/duration.Seconds())
		fmt.Printf("   Server ms:  %d\n", m.ServerMs)
	}
	fmt.Println()
}
