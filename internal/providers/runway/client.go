package runway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("runway: api key is required")

const defaultAPIVersion = "2024-11-06"

// Options configures the Runway task-status client.
type Options struct {
	APIKey         string
	BaseURL        string
	APIVersion     string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Runway task API.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

type taskResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Output   []string `json:"output"`
	Failure  string   `json:"failure"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dev.runwayml.com/v1"
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: httpClient,
	}, nil
}

// TaskStatus fetches one task and maps Runway's status vocabulary onto the
// common lifecycle:
//
//	PENDING    -> pending
//	THROTTLED  -> pending (queued behind rate limits, not yet started)
//	RUNNING    -> processing (progress reported as a 0..1 float)
//	SUCCEEDED  -> succeeded (first output url)
//	FAILED     -> failed
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*providers.Status, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("runway: task id is required")
	}
	endpoint := fmt.Sprintf("%s/tasks/%s", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("runway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Runway-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.TransientError{Op: "runway", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.TransientError{Op: "runway", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyHTTP("runway", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.TransientError{Op: "runway", Err: fmt.Errorf("decode response: %w", err)}
	}
	return normalize(decoded), nil
}

func normalize(task taskResponse) *providers.Status {
	switch task.Status {
	case "PENDING", "THROTTLED":
		return &providers.Status{State: domain.StatusPending, Progress: providers.IntPtr(0)}
	case "RUNNING":
		st := &providers.Status{State: domain.StatusProcessing}
		if task.Progress != nil {
			st.Progress = providers.IntPtr(providers.ClampProgress(int(math.Round(*task.Progress * 100))))
		}
		return st
	case "SUCCEEDED":
		st := &providers.Status{State: domain.StatusSucceeded, Progress: providers.IntPtr(100)}
		if len(task.Output) > 0 {
			st.VideoURL = task.Output[0]
		}
		return st
	case "FAILED":
		msg := task.Failure
		if msg == "" {
			msg = "generation failed"
		}
		return &providers.Status{State: domain.StatusFailed, Message: msg}
	default:
		return &providers.Status{State: domain.StatusProcessing}
	}
}

var _ providers.StatusAdapter = (*Client)(nil)
