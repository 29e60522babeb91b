package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediagen/internal/domain"
)

// maxMirrorBytes caps how much of a provider result we are willing to pull
// into memory for mirroring.
const maxMirrorBytes = 512 << 20

// Mirror copies a succeeded job's media from the provider's result URL into
// a blob store. Provider URLs expire after a few hours; mirroring is what
// makes the content library durable.
type Mirror struct {
	store      BlobStore
	httpClient *http.Client
}

// NewMirror creates a mirror writing through the given blob store.
func NewMirror(store BlobStore, httpClient *http.Client) *Mirror {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Mirror{store: store, httpClient: httpClient}
}

// Mirror downloads the job's result video and stores it under a key derived
// from the job id. It returns the storage key of the mirrored video.
func (m *Mirror) Mirror(ctx context.Context, job *domain.Job) (string, error) {
	if job == nil || job.Result == nil || job.Result.VideoURL == "" {
		return "", errors.New("storage: job has no result to mirror")
	}
	data, contentType, err := m.fetch(ctx, job.Result.VideoURL)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("generated/videos/%s/video%s", job.ID, extensionForMIME(contentType))
	storedKey, err := m.store.Write(ctx, key, contentType, data)
	if err != nil {
		return "", err
	}
	if coverURL := job.Result.CoverURL; coverURL != "" {
		if coverData, coverType, err := m.fetch(ctx, coverURL); err == nil {
			coverKey := fmt.Sprintf("generated/videos/%s/cover%s", job.ID, extensionForMIME(coverType))
			if _, err := m.store.Write(ctx, coverKey, coverType, coverData); err != nil {
				return storedKey, fmt.Errorf("storage: mirror cover: %w", err)
			}
		}
	}
	return storedKey, nil
}

func (m *Mirror) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: download result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMirrorBytes))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read result: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return data, contentType, nil
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".bin"
	}
}
