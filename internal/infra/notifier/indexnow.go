package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/observability/logging"
	"newsmap/internal/usecase/notify"
)

// MaxBatchURLs is the IndexNow protocol limit for one submission.
const MaxBatchURLs = 10000

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,128}$`)

// ValidKey reports whether key is acceptable to IndexNow.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// indexNowPayload is the JSON body accepted by IndexNow endpoints.
type indexNowPayload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

// IndexNow submits changed URLs to an IndexNow endpoint. It is the only
// target that keeps state between calls: the key whose verification file was
// last established.
type IndexNow struct {
	settings  SettingsSource
	artifacts ArtifactStore
	opts      options

	mu       sync.Mutex
	prepared string
}

// NewIndexNow creates the IndexNow target.
func NewIndexNow(settings SettingsSource, artifacts ArtifactStore, opts ...Option) *IndexNow {
	return &IndexNow{
		settings:  settings,
		artifacts: artifacts,
		opts:      buildOptions(opts, indexNowBudget.limiter),
	}
}

func (n *IndexNow) Name() string { return notify.TargetIndexNow }

func (n *IndexNow) Enabled() bool { return n.settings.Get().Ping.IndexNowEnabled }

func (n *IndexNow) Configured() bool {
	s := n.settings.Get()
	return ValidKey(s.Ping.IndexNowKey) &&
		validEndpoint(s.Ping.IndexNowEndpoint) &&
		validEndpoint(s.Publication.BaseURL)
}

// Prepare establishes the verification file for the current key and removes
// the file of the previously prepared key. It is a no-op while the key is
// unchanged.
func (n *IndexNow) Prepare(ctx context.Context) error {
	key := n.settings.Get().Ping.IndexNowKey
	if !ValidKey(key) {
		return fmt.Errorf("Prepare: %w: malformed key", entity.ErrInvalidInput)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.prepared == key {
		return nil
	}
	if err := n.artifacts.Ensure(ctx, key); err != nil {
		return fmt.Errorf("Prepare: %w", err)
	}
	if n.prepared != "" {
		if err := n.artifacts.Remove(ctx, n.prepared); err != nil {
			logging.WithRequestID(ctx, n.opts.logger).Warn("previous indexnow key file not removed",
				slog.Any("error", err))
		}
	}
	n.prepared = key
	return nil
}

// Submit sends a single URL: the first changed page, or the document URL for
// feed-level submissions.
func (n *IndexNow) Submit(ctx context.Context, sub notify.Submission) (int, error) {
	target := sub.SitemapURL
	if len(sub.URLs) > 0 {
		target = sub.URLs[0]
	}
	return n.post(ctx, []string{target})
}

// SubmitBatch sends up to MaxBatchURLs URLs in one request. The rest are
// dropped and the truncation is logged.
func (n *IndexNow) SubmitBatch(ctx context.Context, urls []string) (int, error) {
	if len(urls) > MaxBatchURLs {
		logging.WithRequestID(ctx, n.opts.logger).Warn("indexnow batch truncated",
			slog.Int("submitted", MaxBatchURLs),
			slog.Int("dropped", len(urls)-MaxBatchURLs))
		urls = urls[:MaxBatchURLs]
	}
	return n.post(ctx, urls)
}

func (n *IndexNow) post(ctx context.Context, urls []string) (int, error) {
	if err := n.Prepare(ctx); err != nil {
		return 0, err
	}
	s := n.settings.Get()
	payload, err := buildIndexNowPayload(s, urls)
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("post: marshal payload: %w", err)
	}

	if err := n.opts.limiter.Allow(ctx); err != nil {
		return 0, fmt.Errorf("post: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Ping.IndexNowEndpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("post: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.opts.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return resp.StatusCode, nil
	}
	if err := classify(n.Name(), resp); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, &ClientError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%s: unexpected status %d", n.Name(), resp.StatusCode),
	}
}

func buildIndexNowPayload(s config.Settings, urls []string) (indexNowPayload, error) {
	base, err := url.Parse(s.Publication.BaseURL)
	if err != nil {
		return indexNowPayload{}, fmt.Errorf("buildIndexNowPayload: base url: %w", err)
	}
	key := s.Ping.IndexNowKey
	return indexNowPayload{
		Host:        base.Hostname(),
		Key:         key,
		KeyLocation: strings.TrimRight(s.Publication.BaseURL, "/") + "/" + key + ".txt",
		URLList:     urls,
	}, nil
}
