// Package classify assigns a coarse category to a node from the aggregate
// of its harvested capsules.
package classify

import (
	"strings"

	"github.com/structharvest/harvester/internal/capsule"
)

// Classify inspects every merged content object collected for a node during
// one job and votes on a category. Ambiguous or empty signal defaults to
// smb. A single near-empty page is treated as a landing page.
func Classify(contents []map[string]any) capsule.Category {
	if len(contents) == 0 {
		return capsule.CategorySMB
	}
	if len(contents) == 1 && len(contents[0]) < 3 {
		return capsule.CategoryLanding
	}

	var ecommerce, media, corporate, smb int
	for _, content := range contents {
		typ := contentType(content)
		switch {
		case typ == "product" || typ == "offer" || hasKey(content, "price") || hasKey(content, "sku"):
			ecommerce++
		case strings.Contains(typ, "article") || typ == "blogposting" || hasKey(content, "datePublished"):
			media++
		case typ == "corporation" || hasKey(content, "tickerSymbol") || hasKey(content, "numberOfEmployees"):
			corporate++
		case typ == "localbusiness" || hasKey(content, "telephone") || hasKey(content, "address") || hasKey(content, "email"):
			smb++
		}
	}

	best := capsule.CategorySMB
	bestScore := smb
	for _, candidate := range []struct {
		category capsule.Category
		score    int
	}{
		{capsule.CategoryEcommerce, ecommerce},
		{capsule.CategoryMedia, media},
		{capsule.CategoryCorporate, corporate},
	} {
		if candidate.score > bestScore {
			best = candidate.category
			bestScore = candidate.score
		}
	}
	if bestScore == 0 {
		return capsule.CategorySMB
	}
	return best
}

func contentType(content map[string]any) string {
	raw, ok := content["@type"]
	if !ok {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.ToLower(s)
	}
	return ""
}

func hasKey(content map[string]any, key string) bool {
	value, ok := content[key]
	return ok && value != nil
}
