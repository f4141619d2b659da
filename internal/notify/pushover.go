package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrSnakeDoc/staywatch/internal/utils"
	"github.com/MrSnakeDoc/staywatch/internal/version"
)

// PushoverBaseURL is the public Pushover API.
const PushoverBaseURL = "https://api.pushover.net"

// Limits enforced by the messages endpoint, in characters.
const (
	pushoverMessageLimit  = 1024
	pushoverTitleLimit    = 250
	pushoverURLLimit      = 512
	pushoverURLTitleLimit = 100
)

type PushoverConfig struct {
	Token   string
	User    string
	Devices []string // empty: ask the API which devices the user has

	BaseURL    string // defaults to PushoverBaseURL
	HTTPClient *http.Client
}

type Pushover struct {
	cfg    PushoverConfig
	client *http.Client
}

func NewPushover(cfg PushoverConfig) *Pushover {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PushoverBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Pushover{cfg: cfg, client: client}
}

func (p *Pushover) Name() string { return "pushover" }

// pushoverResponse covers both messages.json and users/validate.json.
type pushoverResponse struct {
	Status  int      `json:"status"`
	Devices []string `json:"devices"`
	Errors  []string `json:"errors"`
}

// Recipients returns the configured devices, else the user's devices as
// reported by the validate endpoint.
func (p *Pushover) Recipients(ctx context.Context) ([]string, error) {
	if len(p.cfg.Devices) > 0 {
		return append([]string(nil), p.cfg.Devices...), nil
	}

	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("user", p.cfg.User)

	resp, err := p.post(ctx, "/1/users/validate.json", form)
	if err != nil {
		return nil, fmt.Errorf("failed to validate pushover user: %w", err)
	}
	return resp.Devices, nil
}

func (p *Pushover) Send(ctx context.Context, msg Message, device string) error {
	form := url.Values{}
	form.Set("token", p.cfg.Token)
	form.Set("user", p.cfg.User)
	if device != "" {
		form.Set("device", device)
	}
	form.Set("html", "1")
	form.Set("title", truncateRunes(msg.Title, pushoverTitleLimit))
	form.Set("message", msg.Fit(pushoverMessageLimit))
	// A cut URL would point nowhere; an oversized one is left out.
	if msg.URL != "" && utf8.RuneCountInString(msg.URL) <= pushoverURLLimit {
		form.Set("url", msg.URL)
		form.Set("url_title", truncateRunes(msg.URLTitle, pushoverURLTitleLimit))
	}

	_, err := p.post(ctx, "/1/messages.json", form)
	return err
}

func (p *Pushover) post(ctx context.Context, path string, form url.Values) (*pushoverResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out pushoverResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || out.Status != 1 {
		if decodeErr == nil && len(out.Errors) > 0 {
			return nil, fmt.Errorf("pushover http %d: %s", resp.StatusCode, strings.Join(out.Errors, "; "))
		}
		return nil, fmt.Errorf("pushover http %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("invalid pushover response: %w", decodeErr)
	}
	return &out, nil
}
