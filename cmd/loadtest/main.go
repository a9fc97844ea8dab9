// Load testing tool for the AfriTokenID platform's REST API.
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// TestConfig holds load test configuration.
type TestConfig struct {
	BaseURL        string        // API server base URL
	Duration       time.Duration // How long to run the test
	TxRate         int           // Target transfers per second
	NumUsers       int           // Number of registered test users to transfer between
	ReportInterval time.Duration // How often to report statistics
}

// TestMetrics holds test results.
type TestMetrics struct {
	TxSubmitted  int64
	TxSucceeded  int64
	TxFailed     int64
	StartTime    time.Time
	LastReport   time.Time
	TxSinceReport int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8443", "API server base URL")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	txRate := flag.Int("txrate", 50, "Target transfers per second")
	numUsers := flag.Int("users", 100, "Number of registered test users")
	reportInterval := flag.Duration("report", 5*time.Second, "Report interval")

	flag.Parse()

	cfg := TestConfig{
		BaseURL:        *baseURL,
		Duration:       *duration,
		TxRate:         *txRate,
		NumUsers:       *numUsers,
		ReportInterval: *reportInterval,
	}

	fmt.Println("=== AfriTokenID Load Test ===")
	fmt.Printf("Target: %s\n", cfg.BaseURL)
	fmt.Printf("Duration: %v\n", cfg.Duration)
	fmt.Printf("Target TPS: %d\n", cfg.TxRate)
	fmt.Printf("Users: %d\n", cfg.NumUsers)
	fmt.Println()

	if err := runLoadTest(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Load test failed: %v\n", err)
		os.Exit(1)
	}
}

type registeredUser struct {
	ID    string
	Phone string
	Pin   string
}

func runLoadTest(cfg TestConfig) error {
	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println("Registering test users...")
	users, err := registerUsers(client, cfg.BaseURL, cfg.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to register test users: %w", err)
	}
	fmt.Printf("Registered %d users\n\n", len(users))

	metrics := &TestMetrics{StartTime: time.Now(), LastReport: time.Now()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	txTicker := time.NewTicker(time.Second / time.Duration(cfg.TxRate))
	defer txTicker.Stop()
	reportTicker := time.NewTicker(cfg.ReportInterval)
	defer reportTicker.Stop()
	testTimer := time.NewTimer(cfg.Duration)
	defer testTimer.Stop()

	fmt.Println("Starting load test...")
	fmt.Println()

	running := true
	for running {
		select {
		case <-txTicker.C:
			go func() {
				atomic.AddInt64(&metrics.TxSubmitted, 1)
				if err := submitTransfer(client, cfg.BaseURL, users); err != nil {
					atomic.AddInt64(&metrics.TxFailed, 1)
				} else {
					atomic.AddInt64(&metrics.TxSucceeded, 1)
				}
			}()
			atomic.AddInt64(&metrics.TxSinceReport, 1)

		case <-reportTicker.C:
			printReport(metrics)
			metrics.LastReport = time.Now()
			atomic.StoreInt64(&metrics.TxSinceReport, 0)

		case <-testTimer.C:
			running = false

		case <-sigCh:
			fmt.Println("\nTest interrupted by user")
			running = false
		}
	}

	fmt.Println("\n=== Final Results ===")
	printFinalReport(metrics)
	return nil
}

func registerUsers(client *http.Client, baseURL string, n int) ([]registeredUser, error) {
	users := make([]registeredUser, 0, n)
	for i := 0; i < n; i++ {
		phone := fmt.Sprintf("+2567%08d", i)
		body, _ := json.Marshal(map[string]string{
			"phone":      phone,
			"first_name": "Load",
			"last_name":  fmt.Sprintf("Test%d", i),
			"pin":        "1234",
		})
		resp, err := client.Post(baseURL+"/v1/users/register", "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		var out struct {
			ID string `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if out.ID == "" {
			continue
		}
		users = append(users, registeredUser{ID: out.ID, Phone: phone, Pin: "1234"})
	}
	return users, nil
}

func submitTransfer(client *http.Client, baseURL string, users []registeredUser) error {
	if len(users) < 2 {
		return fmt.Errorf("not enough users")
	}
	fromIdx := randomInt(len(users))
	toIdx := randomInt(len(users))
	if fromIdx == toIdx {
		toIdx = (toIdx + 1) % len(users)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"from_user_id": users[fromIdx].ID,
		"to_user_id":   users[toIdx].ID,
		"amount":       100,
		"currency":     "UGX",
		"pin":          users[fromIdx].Pin,
	})
	resp, err := client.Post(baseURL+"/v1/transfers", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("transfer failed: status %d", resp.StatusCode)
	}
	return nil
}

func randomInt(max int) int {
	var buf [8]byte
	rand.Read(buf[:])
	n := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
	return int(n % uint64(max))
}

func printReport(metrics *TestMetrics) {
	elapsed := time.Since(metrics.StartTime).Seconds()
	submitted := atomic.LoadInt64(&metrics.TxSubmitted)
	succeeded := atomic.LoadInt64(&metrics.TxSucceeded)
	failed := atomic.LoadInt64(&metrics.TxFailed)
	avgTPS := float64(submitted) / elapsed

	fmt.Printf("[%6.1fs] Submitted: %5d | Succeeded: %5d | Failed: %5d | TPS: %6.1f\n",
		elapsed, submitted, succeeded, failed, avgTPS)
}

func printFinalReport(metrics *TestMetrics) {
	elapsed := time.Since(metrics.StartTime)
	elapsedSeconds := elapsed.Seconds()
	submitted := atomic.LoadInt64(&metrics.TxSubmitted)
	succeeded := atomic.LoadInt64(&metrics.TxSucceeded)
	failed := atomic.LoadInt64(&metrics.TxFailed)

	fmt.Printf("Test Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Transfers Submitted: %d\n", submitted)
	fmt.Printf("Transfers Succeeded: %d\n", succeeded)
	fmt.Printf("Transfers Failed: %d\n", failed)
	fmt.Println()

	avgTPS := float64(submitted) / elapsedSeconds
	successRate := float64(succeeded) / float64(submitted) * 100
	fmt.Printf("Average TPS: %.2f\n", avgTPS)
	fmt.Printf("Success Rate: %.1f%%\n", successRate)
}
