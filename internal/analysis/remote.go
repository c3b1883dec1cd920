package analysis

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleetwatch/fleetwatch/pkg/retry"
)

// RemoteAnalyzer posts the accumulated target log to an HTTP analysis
// service and writes the reports it returns as local artifacts.
type RemoteAnalyzer struct {
	serviceURL  string
	reportDir   string
	httpClient  *http.Client
	retryConfig retry.Config
	breaker     *circuitBreaker
	logger      *zap.Logger
}

// analyzeRequest is the wire form of an analysis request.
type analyzeRequest struct {
	LogPath string `json:"log_path"`
	Content string `json:"content"`
}

// analyzeResponse carries the two report artifacts produced by the service.
type analyzeResponse struct {
	IncidentReport string `json:"incident_report"`
	FleetSummary   string `json:"fleet_summary"`
}

// NewRemoteAnalyzer creates an analyzer backed by an HTTP service.
// tlsConfig may be nil for plaintext or server-auth-only endpoints.
func NewRemoteAnalyzer(serviceURL, reportDir string, tlsConfig *tls.Config, timeout time.Duration, maxRetries int, logger *zap.Logger) *RemoteAnalyzer {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}

	return &RemoteAnalyzer{
		serviceURL: serviceURL,
		reportDir:  reportDir,
		httpClient: httpClient,
		logger:     logger,
		retryConfig: retry.Config{
			MaxRetries:  maxRetries,
			InitialWait: 1 * time.Second,
			MaxWait:     30 * time.Second,
			Multiplier:  2.0,
		},
		breaker: newCircuitBreaker(5, 60*time.Second),
	}
}

// Analyze sends the current log content to the service and writes the
// returned reports. Existing artifacts are left unchanged on failure.
func (a *RemoteAnalyzer) Analyze(ctx context.Context, logPath string) error {
	if a.breaker.isOpen() {
		return fmt.Errorf("circuit breaker is open, analysis service may be down")
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("failed to read target log: %w", err)
	}

	var resp analyzeResponse
	err = retry.Do(ctx, a.retryConfig, func() error {
		var reqErr error
		resp, reqErr = a.sendRequest(ctx, logPath, string(content))
		return reqErr
	})
	if err != nil {
		a.breaker.recordFailure()
		return err
	}
	a.breaker.recordSuccess()

	if err := WriteReports(a.reportDir, resp.IncidentReport, resp.FleetSummary); err != nil {
		return err
	}

	a.logger.Info("reports updated", zap.String("report_dir", a.reportDir))
	return nil
}

// sendRequest makes a single HTTP request to the analysis service.
func (a *RemoteAnalyzer) sendRequest(ctx context.Context, logPath, content string) (analyzeResponse, error) {
	var out analyzeResponse

	jsonData, err := json.Marshal(analyzeRequest{LogPath: logPath, Content: content})
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.serviceURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("analysis request failed", zap.Error(err))
		return out, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}

	return out, nil
}

// circuitBreaker prevents hammering a failing analysis service.
type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	threshold   int
	timeout     time.Duration
}

func newCircuitBreaker(threshold int, timeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		timeout:   timeout,
	}
}

// isOpen reports whether requests should be blocked.
func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures >= cb.threshold && time.Since(cb.lastFailure) < cb.timeout {
		return true
	}
	if time.Since(cb.lastFailure) >= cb.timeout {
		cb.failures = 0
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
}
