// Command jobqueue-stress drives a running job queue server with a
// submitter and a pool of workers, modeled on the reference Python stress
// client: a submitter posts a fixed number of jobs at a fixed rate while
// concurrent workers claim, simulate work, and complete them until the
// queue drains.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/jobqueue/internal/observability"
)

var (
	numJobs         int
	jobSubmitDelay  time.Duration
	numWorkers      int
	workerDuration  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "jobqueue-stress [server-url]",
	Short: "Stress-test a running job queue server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().IntVar(&numJobs, "num-jobs", 10, "number of jobs the submitter injects")
	rootCmd.Flags().DurationVar(&jobSubmitDelay, "job-submit-delay", time.Second, "delay between job submissions")
	rootCmd.Flags().IntVar(&numWorkers, "num-workers", 1, "number of concurrent worker threads")
	rootCmd.Flags().DurationVar(&workerDuration, "worker-duration", 5*time.Second, "simulated per-job work time")
}

func main() {
	observability.Init(observability.LogConfig{Level: "info"})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) newJob(ctx context.Context, version string) error {
	body, _ := json.Marshal(map[string]string{"version": version})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/0.1.0/job/new", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// claim returns the claimed job id, or "" if none was available.
func (c *client) claim(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/0.1.0/job/claim", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil
	}
	return body.JobID, nil
}

func (c *client) complete(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/0.1.0/job/"+jobID+"/complete", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

func (c *client) jobsRemaining(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/0.1.0/jobs", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	var jobs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

func submit(ctx context.Context, c *client, count int, delay time.Duration, logger *zap.Logger) {
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	for i := 0; i < count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := c.newJob(ctx, "0.1.0"); err != nil {
			logger.Sugar().Warnw("job submission failed", "error", err)
		}
	}
}

func work(ctx context.Context, c *client, duration time.Duration, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := c.claim(ctx)
		if err != nil {
			logger.Sugar().Warnw("claim failed", "error", err)
			sleepOrDone(ctx, time.Second)
			continue
		}
		if jobID == "" {
			sleepOrDone(ctx, time.Second)
			continue
		}

		sleepOrDone(ctx, duration)
		if err := c.complete(ctx, jobID); err != nil {
			logger.Sugar().Warnw("complete failed", "job_id", jobID, "error", err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func run(cmd *cobra.Command, args []string) error {
	serverURL := "http://localhost:8314"
	if len(args) == 1 {
		serverURL = args[0]
	}

	logger := observability.CLILogger
	c := &client{baseURL: serverURL, http: &http.Client{Timeout: 30 * time.Second}}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			work(ctx, c, workerDuration, logger)
		}()
	}

	submit(ctx, c, numJobs, jobSubmitDelay, logger)

	for {
		remaining, err := c.jobsRemaining(ctx)
		if err != nil {
			return fmt.Errorf("check remaining jobs: %w", err)
		}
		if remaining == 0 {
			break
		}
		sleepOrDone(ctx, workerDuration)
	}

	cancel()
	wg.Wait()

	logger.Info("stress run complete")
	return nil
}
