package kling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kling: api key is required")

// Options configures the Kling task-status client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Kling video task API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type taskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL           string `json:"url"`
				CoverImageURL string `json:"cover_image_url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
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
		baseURL = "https://api.klingai.com/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// TaskStatus fetches one task and maps Kling's status vocabulary onto the
// common lifecycle:
//
//	submitted  -> pending
//	processing -> processing
//	succeed    -> succeeded
//	failed     -> failed
//
// Kling reports no numeric progress, so the adapter synthesizes 0 while
// pending and leaves it unset until the task succeeds.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*providers.Status, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("kling: task id is required")
	}
	endpoint := fmt.Sprintf("%s/videos/text2video/%s", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kling: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.TransientError{Op: "kling", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.TransientError{Op: "kling", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyHTTP("kling", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.TransientError{Op: "kling", Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Code != 0 {
		return nil, &providers.PermanentError{Op: "kling", StatusCode: resp.StatusCode, Message: decoded.Message}
	}
	return c.normalize(taskID, decoded), nil
}

func (c *Client) normalize(taskID string, decoded taskResponse) *providers.Status {
	switch decoded.Data.TaskStatus {
	case "submitted":
		return &providers.Status{State: domain.StatusPending, Progress: providers.IntPtr(0)}
	case "processing":
		return &providers.Status{State: domain.StatusProcessing}
	case "succeed":
		st := &providers.Status{State: domain.StatusSucceeded, Progress: providers.IntPtr(100)}
		if videos := decoded.Data.TaskResult.Videos; len(videos) > 0 {
			st.VideoURL = videos[0].URL
			st.CoverURL = videos[0].CoverImageURL
		}
		return st
	case "failed":
		msg := decoded.Data.TaskStatusMsg
		if msg == "" {
			msg = "generation failed"
		}
		return &providers.Status{State: domain.StatusFailed, Message: msg}
	default:
		// Unknown vocabulary entries keep the job polling rather than
		// surfacing a spurious failure.
		c.logger.Warn().
			Str("task_id", taskID).
			Str("task_status", decoded.Data.TaskStatus).
			Msg("kling: unrecognized task status, treating as processing")
		return &providers.Status{State: domain.StatusProcessing}
	}
}

var _ providers.StatusAdapter = (*Client)(nil)
