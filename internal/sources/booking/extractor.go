package booking

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

// ErrNotListingPage is wrapped in the ParseError returned for pages that are
// not search-result pages (captcha wall, error page, wrong URL...).
var ErrNotListingPage = errors.New("not a search-result page")

// Page is what the extractor finds on one page.
type Page struct {
	Ads     []domain.Ad // document order
	Next    string      // absolute URL of the next page, "" when last
	Skipped int         // cards dropped because they had neither link nor title
}

// Extractor converts search-result markup into ads.
type Extractor struct{}

// NewExtractor creates a new extractor instance
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses one page. Missing optional attributes never fail the page;
// only an unrecognisable page structure does (*domain.ParseError).
func (e *Extractor) Extract(pageURL string, markup []byte) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &domain.ParseError{URL: pageURL, Err: fmt.Errorf("page url: %w", err)}
	}

	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, &domain.ParseError{URL: pageURL, Err: fmt.Errorf("html: %w", err)}
	}

	cards := findAll(doc, cardSelector)
	if len(cards) == 0 && !hasContainer(doc) {
		return nil, &domain.ParseError{URL: pageURL, Err: ErrNotListingPage}
	}

	page := &Page{Ads: make([]domain.Ad, 0, len(cards))}
	for _, card := range cards {
		ad, ok := extractAd(card, base)
		if !ok {
			page.Skipped++
			continue
		}
		page.Ads = append(page.Ads, ad)
	}

	page.Next = nextPage(doc, base)
	return page, nil
}

func extractAd(card *html.Node, base *url.URL) (domain.Ad, bool) {
	title := firstText(card, titleSelectors)
	link := firstHref(card, base)

	id := domain.AdID(link, title)
	if id == "" {
		return domain.Ad{}, false
	}

	ad := domain.Ad{ID: id, Title: title, URL: link}
	for key, sel := range fieldSelectors {
		if v := text(findFirst(card, sel)); v != "" {
			if ad.Fields == nil {
				ad.Fields = make(map[string]string, len(fieldSelectors))
			}
			ad.Fields[key] = v
		}
	}
	return ad, true
}

func firstText(root *html.Node, chains [][]selector) string {
	for _, chain := range chains {
		if t := text(findFirst(root, chain...)); t != "" {
			return t
		}
	}
	return ""
}

func firstHref(root *html.Node, base *url.URL) string {
	for _, chain := range linkSelectors {
		n := findFirst(root, chain...)
		if n == nil {
			continue
		}
		if href := resolve(base, n); href != "" {
			return href
		}
	}
	return ""
}

func hasContainer(doc *html.Node) bool {
	for _, sel := range containerSelectors {
		if findFirst(doc, sel) != nil {
			return true
		}
	}
	return false
}

// nextPage looks for an explicit rel=next / "Next page" link first, then for
// the pagination anchor following the one marked as the current page.
func nextPage(doc *html.Node, base *url.URL) string {
	for _, sel := range relNextSelectors {
		for _, n := range findAll(doc, sel) {
			if href := resolve(base, n); href != "" {
				return href
			}
		}
	}

	anchors := findAll(doc, paginationSelector)
	for i, a := range anchors {
		if v, _ := attr(a, "aria-current"); v == "page" && i+1 < len(anchors) {
			return resolve(base, anchors[i+1])
		}
	}
	return ""
}

func resolve(base *url.URL, n *html.Node) string {
	href, ok := attr(n, "href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
