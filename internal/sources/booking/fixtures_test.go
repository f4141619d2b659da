package booking

import (
	"fmt"
	"strings"
)

type card struct {
	title    string
	href     string
	price    string
	location string
}

// listingPage renders a search-result page in the shape the site serves.
func listingPage(next string, cards ...card) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><title>Results</title>`)
	if next != "" {
		fmt.Fprintf(&b, `<link rel="next" href="%s">`, next)
	}
	b.WriteString(`</head><body><div data-testid="property-list">`)
	for _, c := range cards {
		b.WriteString(`<div data-testid="property-card"><h3>`)
		if c.href != "" {
			fmt.Fprintf(&b, `<a data-testid="title-link" href="%s">`, c.href)
		}
		fmt.Fprintf(&b, `<div data-testid="title" class="f6431b446c">%s</div>`, c.title)
		if c.href != "" {
			b.WriteString(`</a>`)
		}
		b.WriteString(`</h3>`)
		if c.location != "" {
			fmt.Fprintf(&b, `<span data-testid="address">%s</span>`, c.location)
		}
		if c.price != "" {
			fmt.Fprintf(&b, `<span data-testid="price-and-discounted-price">%s</span>`, c.price)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
