// Package extract pulls embedded structured-data blocks (JSON-LD) out of
// rendered markup and wraps each one with provenance.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/structharvest/harvester/internal/capsule"
)

// EvidenceJSONLD is the evidence type recorded for script-embedded JSON-LD.
const EvidenceJSONLD = "json-ld"

// Result is the outcome of scanning one page's markup.
type Result struct {
	// Found is true iff at least one block parsed successfully.
	Found bool
	// Blocks are the parsed structured-data objects, flattened.
	Blocks []capsule.AssertedBlock
	// RawCount counts every embedded block regardless of parse success,
	// used to detect markup that is present but unparsable.
	RawCount int
	// ParseErrors records blocks that failed strict parsing.
	ParseErrors []capsule.ParseError
}

// Extract scans markup for JSON-LD script blocks. A block that fails to
// parse is recorded and skipped; extraction itself never fails. A parsed
// value may be a single object, an array, or an object carrying an @graph
// collection; all are flattened into independent asserted blocks.
func Extract(markup, sourceURL string, capturedAt time.Time) Result {
	result := Result{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// Unparseable markup means no embedded blocks, not a failure.
		return result
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(index int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		result.RawCount++

		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.UseNumber()
		var value any
		if err := decoder.Decode(&value); err != nil {
			result.ParseErrors = append(result.ParseErrors, capsule.ParseError{
				Index:   index,
				Message: err.Error(),
			})
			return
		}

		objs := flatten(value)
		if len(objs) == 0 {
			// Valid JSON but not an object or object collection; record it
			// so the block still shows up in diagnostics.
			result.ParseErrors = append(result.ParseErrors, capsule.ParseError{
				Index:   index,
				Message: "top-level value is not a JSON object or object collection",
			})
			return
		}

		prov := capsule.Provenance{
			SourceURL:  sourceURL,
			CapturedAt: capturedAt,
			Evidence:   EvidenceJSONLD,
			Locator:    index,
			RawHash:    hashRaw(raw),
		}
		for _, obj := range objs {
			result.Blocks = append(result.Blocks, capsule.AssertedBlock{
				Data:       obj,
				Provenance: prov,
			})
		}
	})

	result.Found = len(result.Blocks) > 0
	return result
}

// flatten normalizes a parsed JSON-LD value into a flat list of objects.
func flatten(value any) []map[string]any {
	switch v := value.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var out []map[string]any
			for _, item := range graph {
				if obj, ok := item.(map[string]any); ok {
					out = append(out, obj)
				}
			}
			return out
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		return nil
	}
}

// hashRaw digests the raw snippet, not the parsed value, for tamper evidence.
func hashRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
