// AfriTokenID Transfer Submission Utility
// CLI tool for submitting peer-to-peer transfers against a running API server.
// Version: 1.0.0

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	Version = "1.0.0"

	MaxBatchSize = 1000 // max transfers in one submit-tx run
)

// Config represents command-line configuration with validation.
type Config struct {
	BaseURL  string
	FromID   string
	ToID     string
	Currency string
	Amount   uint64
	Pin      string

	Count    int
	Interval time.Duration

	DryRun  bool
	Verbose bool

	Timeout time.Duration
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Fee           uint64 `json:"fee"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func main() {
	cfg := parseFlags()

	printBanner()

	if err := validateConfig(cfg); err != nil {
		fatal("Configuration validation failed: %v", err)
	}
	fmt.Println("✓ Configuration validated")

	client := &http.Client{Timeout: cfg.Timeout}

	printTransferSummary(cfg)

	if cfg.DryRun {
		fmt.Println("DRY RUN MODE - No transfers will be submitted")
		os.Exit(0)
	}

	successCount := 0
	failureCount := 0
	startTime := time.Now()

	for i := 0; i < cfg.Count; i++ {
		result, err := submitTransfer(client, cfg)
		if err != nil {
			fmt.Printf("✗ Transfer %d/%d failed: %v\n", i+1, cfg.Count, err)
			failureCount++
		} else {
			if cfg.Verbose {
				fmt.Printf("✓ Transfer %d/%d submitted: id=%s fee=%d\n", i+1, cfg.Count, result.TransactionID, result.Fee)
			} else {
				fmt.Printf("✓ Transfer %d/%d submitted\n", i+1, cfg.Count)
			}
			successCount++
		}

		if i < cfg.Count-1 && cfg.Interval > 0 {
			time.Sleep(cfg.Interval)
		}
	}

	elapsed := time.Since(startTime)
	printResults(successCount, failureCount, cfg.Count, elapsed)
}

func submitTransfer(client *http.Client, cfg Config) (*transferResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"from_user_id": cfg.FromID,
		"to_user_id":   cfg.ToID,
		"amount":       cfg.Amount,
		"currency":     cfg.Currency,
		"pin":          cfg.Pin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := client.Post(cfg.BaseURL+"/v1/transfers", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		json.Unmarshal(data, &errResp)
		return nil, fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
	}

	var result transferResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8443", "API server base URL")
	flag.StringVar(&cfg.FromID, "from", "", "Sender user ID (required)")
	flag.StringVar(&cfg.ToID, "to", "", "Recipient user ID (required)")
	flag.StringVar(&cfg.Currency, "currency", "UGX", "Currency code")
	flag.Uint64Var(&cfg.Amount, "amount", 1000, "Amount to send (minor units)")
	flag.StringVar(&cfg.Pin, "pin", "", "Sender PIN (required)")
	flag.IntVar(&cfg.Count, "count", 1, "Number of transfers to submit")
	flag.DurationVar(&cfg.Interval, "interval", 0, "Interval between transfers")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Validate only, don't submit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")

	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("submit-tx version %s\n", Version)
		os.Exit(0)
	}

	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.FromID == "" {
		return fmt.Errorf("--from is required")
	}
	if cfg.ToID == "" {
		return fmt.Errorf("--to is required")
	}
	if cfg.Pin == "" {
		return fmt.Errorf("--pin is required")
	}
	if cfg.Amount == 0 {
		return fmt.Errorf("--amount must be greater than 0")
	}
	if cfg.Count < 1 || cfg.Count > MaxBatchSize {
		return fmt.Errorf("count must be between 1 and %d", MaxBatchSize)
	}
	return nil
}

func printBanner() {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  AfriTokenID Transfer Submitter v%s\n", Version)
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()
}

func printTransferSummary(cfg Config) {
	fmt.Println("Transfer Summary:")
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  API:          %s\n", cfg.BaseURL)
	fmt.Printf("  From:         %s\n", cfg.FromID)
	fmt.Printf("  To:           %s\n", cfg.ToID)
	fmt.Printf("  Amount:       %d %s\n", cfg.Amount, cfg.Currency)
	fmt.Printf("  Count:        %d transfers\n", cfg.Count)
	if cfg.Interval > 0 {
		fmt.Printf("  Interval:     %s\n", cfg.Interval)
	}
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Println()
}

func printResults(success, failure, total int, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Results")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Successful:   %d/%d (%.1f%%)\n", success, total, float64(success)/float64(total)*100)
	fmt.Printf("  Failed:       %d/%d (%.1f%%)\n", failure, total, float64(failure)/float64(total)*100)
	fmt.Printf("  Elapsed:      %s\n", elapsed)
	if success > 0 {
		fmt.Printf("  Throughput:   %.2f tx/s\n", float64(success)/elapsed.Seconds())
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\nERROR: "+format+"\n\n", args...)
	os.Exit(1)
}
