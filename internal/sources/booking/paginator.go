package booking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

// Result is the complete current ad set of one search.
type Result struct {
	Ads   []domain.Ad // discovery order, unique by ID
	Pages int         // pages successfully fetched and parsed

	// Partial is set when a page after the entry page failed; Ads then holds
	// what was gathered before the failure and Warning the page error.
	Partial bool
	Warning error

	// CycleDetected is set when a next link pointed to an already visited page.
	CycleDetected bool
}

// Paginator drives the fetcher and extractor across the pages of a search.
type Paginator struct {
	fetcher   PageFetcher
	extractor *Extractor
	logger    logger.Logger
	maxPages  int
}

// NewPaginator creates a paginator. maxPages <= 0 means no bound other than
// the cycle guard.
func NewPaginator(fetcher PageFetcher, extractor *Extractor, log logger.Logger, maxPages int) *Paginator {
	return &Paginator{
		fetcher:   fetcher,
		extractor: extractor,
		logger:    log,
		maxPages:  maxPages,
	}
}

// Paginate returns the ads of a search. A failure on the entry page is
// returned as an error (*domain.NetworkError or *domain.ParseError); a
// failure further down only truncates the result.
// Pages are fetched one after the other: each next link is only known once
// the current page is parsed.
func (p *Paginator) Paginate(ctx context.Context, search domain.Search) (*Result, error) {
	res := &Result{}
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	pageURL := search.URL
	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			if res.Pages == 0 {
				return nil, &domain.NetworkError{URL: pageURL, Err: err}
			}
			res.Partial = true
			res.Warning = fmt.Errorf("pagination interrupted before %s: %w", pageURL, err)
			break
		}

		visited[visitKey(pageURL)] = true

		page, err := p.fetchPage(ctx, pageURL)
		if err != nil {
			if res.Pages == 0 {
				return nil, err
			}
			p.logger.Warn("page failed, keeping partial result",
				logger.String("search", search.Name),
				logger.String("url", pageURL),
				logger.Int("pages", res.Pages),
				logger.Error(err))
			res.Partial = true
			res.Warning = err
			break
		}
		res.Pages++

		for _, ad := range page.Ads {
			if seen[ad.ID] {
				continue
			}
			seen[ad.ID] = true
			res.Ads = append(res.Ads, ad)
		}

		p.logger.Debug("page extracted",
			logger.String("search", search.Name),
			logger.String("url", pageURL),
			logger.Int("ads", len(page.Ads)),
			logger.Int("skipped", page.Skipped))

		if !search.Recursive || page.Next == "" {
			break
		}
		if p.maxPages > 0 && res.Pages >= p.maxPages {
			p.logger.Warn("max pages reached, stopping pagination",
				logger.String("search", search.Name),
				logger.Int("max_pages", p.maxPages))
			break
		}
		if visited[visitKey(page.Next)] {
			p.logger.Warn("pagination loops back to a visited page, stopping",
				logger.String("search", search.Name),
				logger.String("url", page.Next))
			res.CycleDetected = true
			break
		}
		pageURL = page.Next
	}

	return res, nil
}

func (p *Paginator) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	body, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return p.extractor.Extract(pageURL, body)
}

// visitKey normalises a page URL for the cycle guard. Unlike ad ids the query
// string is significant here: pages usually differ only by an offset parameter.
func visitKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	q := u.Query()
	u.RawQuery = q.Encode() // sorted keys
	return u.String()
}
