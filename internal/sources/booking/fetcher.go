package booking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/utils"
)

// DefaultUserAgent mimics a desktop browser; the site serves a reduced page
// (without property cards) to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_2) AppleWebKit/601.3.9 (KHTML, like Gecko) Version/9.0.2 Safari/601.3.9"

// PageFetcher retrieves the raw markup of one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	Timeout        time.Duration // per request. Default: 30s.
	MaxBytes       int64         // response body cap. Default: 10MB.
	UserAgent      string        // Default: DefaultUserAgent.
	AcceptLanguage string        // Default: en-GB.
}

func (c *FetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "en-GB,en;q=0.9"
	}
}

// HTTPFetcher fetches listing pages over HTTP. It has no business logic.
type HTTPFetcher struct {
	client *http.Client
	cfg    FetcherConfig
}

// NewHTTPFetcher creates a fetcher with a shared HTTP client.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	cfg.defaults()
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		cfg: cfg,
	}
}

// Fetch GETs url and returns its body. Every failure is a *domain.NetworkError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: fmt.Errorf("http get: %w", err)}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.NetworkError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	// A cut page would still parse, minus its last cards and next link.
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, &domain.NetworkError{URL: url, Err: fmt.Errorf("response exceeds %d bytes", f.cfg.MaxBytes)}
	}
	return body, nil
}
