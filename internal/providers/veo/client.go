package veo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("veo: api key is required")

// Options configures the Veo operation-status client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client polls Veo long-running operations. Veo does not expose a task
// status enum; an operation is either still running (done=false), finished
// with a response, or finished with an error.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
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
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// TaskStatus resolves a Veo operation name into the common status shape:
//
//	done=false            -> processing
//	done=true + response  -> succeeded (first generated sample's video uri)
//	done=true + error     -> failed
//
// Veo reports no progress at all; the value stays unset until success.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*providers.Status, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("veo: operation name is required")
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(taskID, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.TransientError{Op: "veo", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.TransientError{Op: "veo", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyHTTP("veo", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded operationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &providers.TransientError{Op: "veo", Err: fmt.Errorf("decode response: %w", err)}
	}
	return normalize(decoded), nil
}

func normalize(op operationResponse) *providers.Status {
	if !op.Done {
		return &providers.Status{State: domain.StatusProcessing}
	}
	if op.Error != nil {
		msg := op.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("operation failed with code %d", op.Error.Code)
		}
		return &providers.Status{State: domain.StatusFailed, Message: msg}
	}
	st := &providers.Status{State: domain.StatusSucceeded, Progress: providers.IntPtr(100)}
	if op.Response != nil {
		if samples := op.Response.GenerateVideoResponse.GeneratedSamples; len(samples) > 0 {
			st.VideoURL = samples[0].Video.URI
		}
	}
	if st.VideoURL == "" {
		// A done operation without output is a provider-side defect; report
		// it as a failure the UI can show rather than an empty success.
		return &providers.Status{State: domain.StatusFailed, Message: "operation finished without a video"}
	}
	return st
}

var _ providers.StatusAdapter = (*Client)(nil)
