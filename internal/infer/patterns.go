package infer

import "regexp"

// Indicator phrase sets used for type detection. Scores are plain substring
// hit counts over the lowercased visible text.
var (
	commerceIndicators = []string{
		"add to cart", "add to bag", "buy now", "checkout", "in stock",
		"out of stock", "free shipping", "shopping cart", "sku", "price",
	}
	organizationIndicators = []string{
		"contact us", "about us", "our team", "our services", "opening hours",
		"customer service", "headquarters", "get in touch",
	}
	editorialIndicators = []string{
		"published", "by the author", "min read", "read more", "comments",
		"editor", "newsletter", "related articles",
	}
)

// strongCommercePhrases gate price inference: at least two distinct phrases
// must appear before a heuristic commerce guess is trusted with a price.
var strongCommercePhrases = []string{
	"add to cart", "add to bag", "proceed to checkout", "checkout",
	"free shipping", "shipping options", "select size", "select a size",
	"shopping cart", "view cart",
}

// Resolved type names per indicator set.
const (
	TypeProduct      = "Product"
	TypeOrganization = "Organization"
	TypeArticle      = "Article"
	TypeThing        = "Thing"
)

var (
	// priceSymbolPattern matches a currency symbol or ISO code followed by an
	// amount. Amounts without a currency marker are deliberately not matched.
	priceSymbolPattern = regexp.MustCompile(`(?i)(USD|EUR|GBP|CAD|AUD|JPY|[$€£¥])\s*([0-9][0-9.,]{0,14}[0-9]|[0-9])`)
	// priceTrailingPattern matches "49.99 USD" style amounts.
	priceTrailingPattern = regexp.MustCompile(`(?i)([0-9][0-9.,]{0,14}[0-9]|[0-9])\s*(USD|EUR|GBP|CAD|AUD|JPY)\b`)

	skuPattern = regexp.MustCompile(`(?i)\b(?:sku|item\s*(?:no\.?|number)|part\s*(?:no\.?|number)|model)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9._-]{2,31})`)

	brandLinePattern = regexp.MustCompile(`(?im)^\s*brand\s*[:：]\s*(.{1,64}?)\s*$`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\s().-]{7,18}[0-9]`)

	// addressPattern is a loose US-style street address match.
	addressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9.'-]+(?:\s+[A-Za-z0-9.'-]+){0,4}\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|place|pl|way|suite)\b\.?`)

	publishedInlinePattern = regexp.MustCompile(`(?i)published(?:\s+on)?[:\s]+([A-Za-z]+\s+\d{1,2},\s+\d{4}|\d{4}-\d{2}-\d{2})`)
	modifiedInlinePattern  = regexp.MustCompile(`(?i)(?:updated|modified)(?:\s+on)?[:\s]+([A-Za-z]+\s+\d{1,2},\s+\d{4}|\d{4}-\d{2}-\d{2})`)
	bylinePattern          = regexp.MustCompile(`(?im)^\s*by\s+([A-Z][a-zA-Z.'-]+(?:\s+[A-Z][a-zA-Z.'-]+){0,3})\s*$`)
)

// symbolCurrency maps currency symbols to ISO codes.
var symbolCurrency = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}
