package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"newsmap/internal/domain/entity"
	"newsmap/internal/usecase/notify"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"
)

// Credentials is the subset of a Google service-account key file the
// Search Console target needs.
type Credentials struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ParseCredentials validates a service-account JSON key.
func ParseCredentials(data []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("ParseCredentials: %w: %v", entity.ErrInvalidInput, err)
	}
	switch {
	case c.Type != "service_account":
		return Credentials{}, fmt.Errorf("ParseCredentials: %w: type must be service_account", entity.ErrInvalidInput)
	case c.ClientEmail == "":
		return Credentials{}, fmt.Errorf("ParseCredentials: %w: client_email is required", entity.ErrInvalidInput)
	case c.PrivateKey == "":
		return Credentials{}, fmt.Errorf("ParseCredentials: %w: private_key is required", entity.ErrInvalidInput)
	}
	return c, nil
}

// SitemapSubmitter submits a sitemap for a verified property.
type SitemapSubmitter interface {
	Submit(ctx context.Context, siteURL, sitemapURL string) error
}

// SubmitterFactory builds a submitter from service-account JSON.
type SubmitterFactory func(ctx context.Context, credentials []byte) (SitemapSubmitter, error)

type consoleSubmitter struct {
	svc *searchconsole.Service
}

// NewConsoleSubmitter creates a submitter backed by the Search Console API.
func NewConsoleSubmitter(ctx context.Context, opts ...option.ClientOption) (SitemapSubmitter, error) {
	svc, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewConsoleSubmitter: %w", err)
	}
	return &consoleSubmitter{svc: svc}, nil
}

func (c *consoleSubmitter) Submit(ctx context.Context, siteURL, sitemapURL string) error {
	return c.svc.Sitemaps.Submit(siteURL, sitemapURL).Context(ctx).Do()
}

func defaultSubmitterFactory(ctx context.Context, credentials []byte) (SitemapSubmitter, error) {
	return NewConsoleSubmitter(ctx,
		option.WithCredentialsJSON(credentials),
		option.WithScopes(searchconsole.WebmastersScope))
}

// Console submits the sitemap through the Search Console API. Missing or
// malformed credentials leave the target unconfigured.
type Console struct {
	settings SettingsSource
	factory  SubmitterFactory
	limiter  *RateLimiter

	mu        sync.Mutex
	credsKey  string
	submitter SitemapSubmitter
}

// ConsoleOption customises the Search Console target.
type ConsoleOption func(*Console)

// WithSubmitterFactory replaces the API-backed submitter.
func WithSubmitterFactory(f SubmitterFactory) ConsoleOption {
	return func(c *Console) { c.factory = f }
}

// WithConsoleRateLimiter replaces the default limiter.
func WithConsoleRateLimiter(l *RateLimiter) ConsoleOption {
	return func(c *Console) { c.limiter = l }
}

// NewConsole creates the Search Console target.
func NewConsole(settings SettingsSource, opts ...ConsoleOption) *Console {
	c := &Console{
		settings: settings,
		factory:  defaultSubmitterFactory,
		limiter:  consoleBudget.limiter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) Name() string { return notify.TargetSearchConsole }

func (c *Console) Enabled() bool { return c.settings.Get().Ping.ConsoleEnabled }

func (c *Console) Configured() bool {
	if c.settings.Get().Ping.ConsoleSiteURL == "" {
		return false
	}
	_, err := c.credentials()
	return err == nil
}

// Submit registers sub.SitemapURL for the configured property. The API
// returns no body on success, which is reported as 200.
func (c *Console) Submit(ctx context.Context, sub notify.Submission) (int, error) {
	creds, err := c.credentials()
	if err != nil {
		return 0, fmt.Errorf("Submit: %w", err)
	}
	submitter, err := c.submitterFor(ctx, creds)
	if err != nil {
		return 0, fmt.Errorf("Submit: %w", err)
	}
	if err := c.limiter.Allow(ctx); err != nil {
		return 0, fmt.Errorf("Submit: rate limiter: %w", err)
	}

	err = submitter.Submit(ctx, c.settings.Get().Ping.ConsoleSiteURL, sub.SitemapURL)
	if err == nil {
		return http.StatusOK, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("%s: status %d: %s", c.Name(), apiErr.Code, apiErr.Message)
		return apiErr.Code, statusError(apiErr.Code, msg, apiErr.Header)
	}
	return 0, fmt.Errorf("Submit: %w", err)
}

func (c *Console) credentials() ([]byte, error) {
	path := c.settings.Get().Ping.ConsoleCredentialsFile
	if path == "" {
		return nil, fmt.Errorf("credentials: %w: no credentials file", entity.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if _, err := ParseCredentials(data); err != nil {
		return nil, err
	}
	return data, nil
}

// submitterFor reuses the submitter until the credential content changes.
func (c *Console) submitterFor(ctx context.Context, creds []byte) (SitemapSubmitter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitter != nil && c.credsKey == string(creds) {
		return c.submitter, nil
	}
	// The client outlives this call, so it must not inherit the deadline.
	s, err := c.factory(context.WithoutCancel(ctx), creds)
	if err != nil {
		return nil, err
	}
	c.submitter, c.credsKey = s, string(creds)
	return s, nil
}
