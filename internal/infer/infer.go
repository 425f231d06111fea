// Package infer derives structured fields from rendered pages: a heuristic
// type guess, type-conditioned field extraction, and an optional best-effort
// model augmentation pass.
package infer

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// Heuristic confidence values by method.
const (
	confPriceRegex    = 0.80
	confSKURegex      = 0.70
	confBrandLine     = 0.80
	confBrandMeta     = 0.70
	confBrandTitle    = 0.50
	confEmail         = 0.90
	confPhone         = 0.60
	confAddress       = 0.50
	confDateMeta      = 0.90
	confDateInline    = 0.70
	confByline        = 0.60
	confGenericTitle  = 0.40
	confGenericDesc   = 0.40
	confModelAugment  = 0.35
	minStrongCommerce = 2
)

// Options toggles optional inference behavior for one page.
type Options struct {
	// ModelEnabled allows the external-model augmentation pass to run.
	ModelEnabled bool
}

// Outcome is the confidence-annotated field set produced for one page.
type Outcome struct {
	Content        map[string]any
	Fields         map[string]capsule.InferredField
	TypeGuess      string
	TypeConfidence float64
	ModelUsed      bool
}

// Engine performs heuristic inference, optionally augmented by a model.
type Engine struct {
	logger    *zap.Logger
	augmenter capsule.Augmenter
}

// New constructs an Engine. The augmenter may be nil, in which case the
// model pass is skipped regardless of options.
func New(logger *zap.Logger, augmenter capsule.Augmenter) *Engine {
	return &Engine{logger: logger, augmenter: augmenter}
}

// Infer runs the inference stages for one page. The seed envelope carries
// whatever the extractor asserted; asserted values are never overridden
// here, only supplemented.
func (e *Engine) Infer(ctx context.Context, markup, visibleText string, seed capsule.Envelope, opts Options) Outcome {
	out := Outcome{
		Content: map[string]any{},
		Fields:  map[string]capsule.InferredField{},
	}

	out.TypeGuess, out.TypeConfidence = detectType(visibleText)
	resolved := seed.Type
	if resolved == "" {
		resolved = out.TypeGuess
	}

	var doc *goquery.Document
	if d, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		doc = d
	}

	switch resolved {
	case TypeProduct:
		if e.priceAllowed(seed, out.TypeGuess, visibleText) {
			e.inferPrice(visibleText, &out)
		}
		e.inferSKU(visibleText, &out)
		e.inferBrand(visibleText, doc, &out)
	case TypeOrganization:
		e.inferFirstMatch(visibleText, emailPattern, "email", confEmail, "email-regex", &out)
		e.inferFirstMatch(visibleText, phonePattern, "telephone", confPhone, "phone-regex", &out)
		e.inferFirstMatch(visibleText, addressPattern, "address", confAddress, "address-regex", &out)
	case TypeArticle:
		e.inferDates(visibleText, doc, &out)
		e.inferByline(visibleText, doc, &out)
	}

	e.inferGeneric(doc, seed, &out)

	if opts.ModelEnabled && e.augmenter != nil {
		e.augment(ctx, seed, visibleText, &out)
	}

	return out
}

// detectType scores the visible text against the three indicator sets and
// returns the winning type with a confidence scaled by its share of all
// indicator hits. No hits at all yields the generic Thing type.
func detectType(visibleText string) (string, float64) {
	lower := strings.ToLower(visibleText)
	scores := []struct {
		name       string
		indicators []string
		hits       int
	}{
		{name: TypeProduct, indicators: commerceIndicators},
		{name: TypeOrganization, indicators: organizationIndicators},
		{name: TypeArticle, indicators: editorialIndicators},
	}

	total := 0
	for i := range scores {
		for _, phrase := range scores[i].indicators {
			if strings.Contains(lower, phrase) {
				scores[i].hits++
			}
		}
		total += scores[i].hits
	}
	if total == 0 {
		return TypeThing, 0
	}

	winner := scores[0]
	for _, s := range scores[1:] {
		if s.hits > winner.hits {
			winner = s
		}
	}
	if winner.hits == 0 {
		return TypeThing, 0
	}
	return winner.name, float64(winner.hits) / float64(total)
}

// priceAllowed implements the price guardrail: prices are inferred only when
// the page asserts a commerce type, or the heuristic guess is commerce and
// the text shows enough distinct strong commerce-intent vocabulary.
func (e *Engine) priceAllowed(seed capsule.Envelope, typeGuess, visibleText string) bool {
	if seed.Type == TypeProduct {
		return true
	}
	if typeGuess != TypeProduct {
		return false
	}
	lower := strings.ToLower(visibleText)
	distinct := 0
	for _, phrase := range strongCommercePhrases {
		if strings.Contains(lower, phrase) {
			distinct++
			if distinct >= minStrongCommerce {
				return true
			}
		}
	}
	return false
}

func (e *Engine) inferPrice(visibleText string, out *Outcome) {
	amount, currency, ok := matchPrice(visibleText)
	if !ok {
		return
	}
	e.put(out, "price", amount, confPriceRegex, "price-regex")
	if currency != "" {
		e.put(out, "priceCurrency", currency, confPriceRegex, "price-regex")
	}
}

func (e *Engine) inferFirstMatch(text string, pattern *regexp.Regexp, key string, confidence float64, method string, out *Outcome) {
	if m := pattern.FindString(text); m != "" {
		e.put(out, key, strings.TrimSpace(m), confidence, method)
	}
}

func (e *Engine) inferSKU(visibleText string, out *Outcome) {
	if m := skuPattern.FindStringSubmatch(visibleText); m != nil {
		e.put(out, "sku", m[1], confSKURegex, "sku-regex")
	}
}

// inferBrand tries a literal "Brand:" line first, then meta tags, then the
// page title suffix, in decreasing confidence.
func (e *Engine) inferBrand(visibleText string, doc *goquery.Document, out *Outcome) {
	if m := brandLinePattern.FindStringSubmatch(visibleText); m != nil {
		e.put(out, "brand", strings.TrimSpace(m[1]), confBrandLine, "line-match")
		return
	}
	if doc != nil {
		for _, selector := range []string{
			`meta[property="product:brand"]`,
			`meta[property="og:brand"]`,
			`meta[name="brand"]`,
		} {
			if content, ok := doc.Find(selector).Attr("content"); ok && content != "" {
				e.put(out, "brand", content, confBrandMeta, "meta-tag")
				return
			}
		}
		if brand := brandFromTitle(doc.Find("title").Text()); brand != "" {
			e.put(out, "brand", brand, confBrandTitle, "title-heuristic")
		}
	}
}

func (e *Engine) inferDates(visibleText string, doc *goquery.Document, out *Outcome) {
	if m := publishedInlinePattern.FindStringSubmatch(visibleText); m != nil {
		e.put(out, "datePublished", m[1], confDateInline, "date-inline")
	} else if doc != nil {
		if content, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok && content != "" {
			e.put(out, "datePublished", content, confDateMeta, "date-meta")
		}
	}
	if m := modifiedInlinePattern.FindStringSubmatch(visibleText); m != nil {
		e.put(out, "dateModified", m[1], confDateInline, "date-inline")
	} else if doc != nil {
		if content, ok := doc.Find(`meta[property="article:modified_time"]`).Attr("content"); ok && content != "" {
			e.put(out, "dateModified", content, confDateMeta, "date-meta")
		}
	}
}

func (e *Engine) inferByline(visibleText string, doc *goquery.Document, out *Outcome) {
	if m := bylinePattern.FindStringSubmatch(visibleText); m != nil {
		e.put(out, "author", strings.TrimSpace(m[1]), confByline, "byline")
		return
	}
	if doc != nil {
		if content, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok && content != "" {
			e.put(out, "author", content, confByline, "meta-tag")
		}
	}
}

// inferGeneric fills name and description from the title and meta
// description, but only when the asserted seed lacks them.
func (e *Engine) inferGeneric(doc *goquery.Document, seed capsule.Envelope, out *Outcome) {
	if doc == nil {
		return
	}
	if isEmptySeedField(seed, "name") {
		if title := stripTitleSuffix(doc.Find("title").Text()); title != "" {
			e.put(out, "name", title, confGenericTitle, "title-heuristic")
		}
	}
	if isEmptySeedField(seed, "description") {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
			e.put(out, "description", strings.TrimSpace(desc), confGenericDesc, "meta-description")
		}
	}
}

// augment runs the external-model pass. Fields are accepted only when
// neither the asserted seed nor the heuristics populated them; any failure
// leaves the heuristic outcome untouched.
func (e *Engine) augment(ctx context.Context, seed capsule.Envelope, visibleText string, out *Outcome) {
	// Hand the augmenter the heuristic view so it does not repeat work.
	enriched := seed
	enriched.Inferred = out.Fields

	fields, ok := e.augmenter.TryAugment(ctx, enriched, visibleText)
	if !ok {
		e.logger.Debug("model augmentation unavailable, using heuristics only",
			zap.String("url", seed.SourceURL))
		return
	}
	for key, field := range fields {
		if !isEmptySeedField(seed, key) {
			continue
		}
		if _, exists := out.Fields[key]; exists {
			continue
		}
		field.Confidence = confModelAugment
		field.Source = capsule.SourceModel
		if field.Method == "" {
			field.Method = "model-augment"
		}
		out.Fields[key] = field
		out.Content[key] = field.Value
		out.ModelUsed = true
	}
}

func (e *Engine) put(out *Outcome, key string, value any, confidence float64, method string) {
	out.Content[key] = value
	out.Fields[key] = capsule.InferredField{
		Value:      value,
		Confidence: confidence,
		Source:     capsule.SourceHeuristic,
		Method:     method,
	}
}

func isEmptySeedField(seed capsule.Envelope, key string) bool {
	if seed.Content == nil {
		return true
	}
	value, ok := seed.Content[key]
	if !ok || value == nil {
		return true
	}
	if s, isStr := value.(string); isStr {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// stripTitleSuffix drops a trailing "| Site Name" style suffix.
func stripTitleSuffix(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndex(title, "|"); idx > 0 {
		title = strings.TrimSpace(title[:idx])
	}
	return title
}

// brandFromTitle treats a trailing "| Brand" title segment as the brand.
func brandFromTitle(title string) string {
	title = strings.TrimSpace(title)
	idx := strings.LastIndex(title, "|")
	if idx < 0 || idx == len(title)-1 {
		return ""
	}
	return strings.TrimSpace(title[idx+1:])
}
