package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"newsmap/internal/config"
	"newsmap/internal/usecase/notify"
)

// Ping is a traditional sitemap ping: GET <endpoint>?sitemap=<document URL>.
type Ping struct {
	name     string
	settings SettingsSource
	endpoint func(config.PingSettings) (bool, string)
	opts     options
}

// NewGooglePing returns the Google sitemap ping target.
func NewGooglePing(settings SettingsSource, opts ...Option) *Ping {
	return newPing(notify.TargetPingGoogle, settings, func(p config.PingSettings) (bool, string) {
		return p.GoogleEnabled, p.GoogleEndpoint
	}, opts)
}

// NewBingPing returns the Bing sitemap ping target.
func NewBingPing(settings SettingsSource, opts ...Option) *Ping {
	return newPing(notify.TargetPingBing, settings, func(p config.PingSettings) (bool, string) {
		return p.BingEnabled, p.BingEndpoint
	}, opts)
}

func newPing(name string, settings SettingsSource, endpoint func(config.PingSettings) (bool, string), opts []Option) *Ping {
	return &Ping{
		name:     name,
		settings: settings,
		endpoint: endpoint,
		opts:     buildOptions(opts, pingBudget.limiter),
	}
}

func (p *Ping) Name() string { return p.name }

func (p *Ping) Enabled() bool {
	enabled, _ := p.endpoint(p.settings.Get().Ping)
	return enabled
}

func (p *Ping) Configured() bool {
	_, endpoint := p.endpoint(p.settings.Get().Ping)
	return validEndpoint(endpoint)
}

// Submit announces sub.SitemapURL. Any 2xx status is success.
func (p *Ping) Submit(ctx context.Context, sub notify.Submission) (int, error) {
	_, endpoint := p.endpoint(p.settings.Get().Ping)
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("Submit: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sitemap", sub.SitemapURL)
	u.RawQuery = q.Encode()

	if err := p.opts.limiter.Allow(ctx); err != nil {
		return 0, fmt.Errorf("Submit: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("Submit: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.opts.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("Submit: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, classify(p.name, resp)
}
