package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

const (
	// DefaultTitle is the notification title shown by clients.
	DefaultTitle = "staywatch"
	// ShowAllTitle labels the link to the search results.
	ShowAllTitle = "show all results"
)

// Message is one rendered digest. Body is HTML limited to <b>, <a> and newlines.
type Message struct {
	Title    string
	Body     string
	URL      string
	URLTitle string

	// Set by Compose so that Fit can drop whole ad lines.
	header string
	lines  []string
	more   int
}

var textPolicy = bluemonday.StrictPolicy()

// Compose renders the digest for an event. At most maxListed ads are listed,
// the rest are summarised in a trailing line; maxListed <= 0 lists all.
func Compose(event domain.NotificationEvent, maxListed int) Message {
	n := len(event.Ads)
	plural := "s"
	if n == 1 {
		plural = ""
	}

	header := fmt.Sprintf("<b>Found %d new ad%s for %s</b>", n, plural, textPolicy.Sanitize(event.SearchName))

	listed := event.Ads
	if maxListed > 0 && n > maxListed {
		listed = event.Ads[:maxListed]
	}
	lines := make([]string, 0, len(listed))
	for _, ad := range listed {
		lines = append(lines, adLine(ad))
	}
	more := n - len(listed)

	return Message{
		Title:    DefaultTitle,
		Body:     render(header, lines, more),
		URL:      event.SearchURL,
		URLTitle: ShowAllTitle,
		header:   header,
		lines:    lines,
		more:     more,
	}
}

func render(header string, lines []string, more int) string {
	var b strings.Builder
	b.WriteString(header)
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	if more > 0 {
		fmt.Fprintf(&b, "\n…and %d more", more)
	}
	return b.String()
}

// Fit returns the body in at most limit runes. Ad lines are dropped from the
// end and counted in the trailing "…and K more" line; a body that was not
// built by Compose, or whose header alone is too long, is cut at the limit.
func (m Message) Fit(limit int) string {
	if limit <= 0 || utf8.RuneCountInString(m.Body) <= limit {
		return m.Body
	}
	if m.header != "" {
		for keep := len(m.lines) - 1; keep >= 0; keep-- {
			body := render(m.header, m.lines[:keep], m.more+len(m.lines)-keep)
			if utf8.RuneCountInString(body) <= limit {
				return body
			}
		}
	}
	return truncateRunes(m.Body, limit)
}

// truncateRunes cuts s to limit runes, the last one being an ellipsis.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	return string(r[:limit-1]) + ellipsis
}

func adLine(ad domain.Ad) string {
	title := textPolicy.Sanitize(ad.Title)
	line := title
	if link := adLink(ad.URL); link != "" {
		line = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(link), title)
	}
	if price := ad.Field(domain.FieldPrice); price != "" {
		line += " – " + textPolicy.Sanitize(price)
	}
	return line
}

// adLink drops the tracking query string the site appends to property links.
func adLink(raw string) string {
	if canon := domain.CanonicalURL(raw); canon != "" {
		return canon
	}
	return strings.TrimSpace(raw)
}
