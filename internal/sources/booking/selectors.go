package booking

import "github.com/MrSnakeDoc/staywatch/internal/domain"

// Markup of a search-result page. Test ids are what the site uses for its own
// end-to-end tests; they are far more stable than generated class names.
var (
	cardSelector = testID("property-card")

	titleSelectors = [][]selector{
		{testID("title")},
		{{tag: "h3"}, {tag: "a"}, {tag: "div"}},
		{{tag: "h3"}},
	}

	linkSelectors = [][]selector{
		{{tag: "a", attrKey: "data-testid", attrVal: "title-link"}},
		{{tag: "h3"}, {tag: "a", attrKey: "href"}},
		{{tag: "a", attrKey: "href"}},
	}

	fieldSelectors = map[string]selector{
		domain.FieldPrice:    testID("price-and-discounted-price"),
		domain.FieldLocation: testID("address"),
		domain.FieldRating:   testID("review-score"),
		domain.FieldDistance: testID("distance"),
	}

	// A page with one of these but no card is an empty result list,
	// not an unrecognisable page.
	containerSelectors = []selector{
		testID("property-list"),
		testID("search-results"),
		testID("no-results"),
		{attrKey: "id", attrVal: "search_results_table"},
	}

	relNextSelectors = []selector{
		{tag: "link", attrKey: "rel", attrVal: "next", word: true},
		{tag: "a", attrKey: "rel", attrVal: "next", word: true},
		{tag: "a", attrKey: "aria-label", attrVal: "Next page"},
	}

	paginationSelector = selector{tag: "a", class: "pagination-page"}
)
