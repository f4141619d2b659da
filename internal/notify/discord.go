package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

// discordContentLimit is the maximum message length accepted by Discord.
const discordContentLimit = 2000

const ellipsis = "…"

// webhookExecutor is the part of *discordgo.Session used here.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type webhook struct {
	id    string
	token string
}

// Discord posts digests to channel webhooks. Recipients are webhook ids.
type Discord struct {
	session  webhookExecutor
	webhooks map[string]webhook
	order    []string
	markdown *converter.Converter
}

// NewDiscord parses webhook URLs of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURLs []string) (*Discord, error) {
	// Webhook execution is authenticated by the token in the URL.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return newDiscord(session, webhookURLs)
}

func newDiscord(session webhookExecutor, webhookURLs []string) (*Discord, error) {
	d := &Discord{
		session:  session,
		webhooks: make(map[string]webhook, len(webhookURLs)),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
	for i, raw := range webhookURLs {
		wh, err := parseWebhookURL(raw)
		if err != nil {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("notifications.discord.webhooks[%d]", i), Err: err}
		}
		if _, dup := d.webhooks[wh.id]; dup {
			continue
		}
		d.webhooks[wh.id] = wh
		d.order = append(d.order, wh.id)
	}
	return d, nil
}

func parseWebhookURL(raw string) (webhook, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return webhook{}, err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return webhook{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// api/webhooks/<id>/<token>
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return webhook{id: parts[i+1], token: parts[i+2]}, nil
		}
	}
	return webhook{}, fmt.Errorf("not a webhook url")
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Recipients(_ context.Context) ([]string, error) {
	return append([]string(nil), d.order...), nil
}

func (d *Discord) Send(ctx context.Context, msg Message, recipient string) error {
	targets := d.order
	if recipient != "" {
		targets = []string{recipient}
	}

	content, err := d.render(msg)
	if err != nil {
		return err
	}

	for _, id := range targets {
		wh, ok := d.webhooks[id]
		if !ok {
			return fmt.Errorf("unknown webhook %s", id)
		}
		params := &discordgo.WebhookParams{
			Username: msg.Title,
			Content:  content,
			Flags:    discordgo.MessageFlagsSuppressEmbeds,
		}
		if _, err := d.session.WebhookExecute(wh.id, wh.token, false, params, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// render converts the HTML body to Discord markdown and appends the results link.
func (d *Discord) render(msg Message) (string, error) {
	body := strings.ReplaceAll(msg.Body, "\n", "<br>")
	md, err := d.markdown.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("failed to convert message to markdown: %w", err)
	}
	md = strings.TrimSpace(md)

	footer := ""
	if msg.URL != "" {
		footer = fmt.Sprintf("\n\n[%s](%s)", msg.URLTitle, msg.URL)
	}
	if room := discordContentLimit - len(footer); len(md) > room {
		md = truncate(md, room-len(ellipsis)) + ellipsis
	}
	return md + footer, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
