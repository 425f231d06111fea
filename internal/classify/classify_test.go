package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/structharvest/harvester/internal/capsule"
)

func TestClassifyEmptyDefaultsToSMB(t *testing.T) {
	t.Parallel()

	require.Equal(t, capsule.CategorySMB, Classify(nil))
}

func TestClassifySinglePageLanding(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{{"name": "Coming Soon", "@type": "WebPage"}}
	require.Equal(t, capsule.CategoryLanding, Classify(contents))
}

func TestClassifyEcommerce(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{
		{"@type": "Product", "name": "Anvil", "price": "49.99"},
		{"@type": "Product", "name": "Hammer", "sku": "HM-2"},
		{"@type": "Organization", "name": "Acme", "email": "hi@acme.example"},
	}
	require.Equal(t, capsule.CategoryEcommerce, Classify(contents))
}

func TestClassifyMedia(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{
		{"@type": "NewsArticle", "headline": "A", "datePublished": "2026-01-02"},
		{"@type": "BlogPosting", "headline": "B", "author": "Dana"},
	}
	require.Equal(t, capsule.CategoryMedia, Classify(contents))
}

func TestClassifyCorporate(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{
		{"@type": "Corporation", "name": "MegaCorp", "tickerSymbol": "MC"},
		{"@type": "Corporation", "name": "MegaCorp", "numberOfEmployees": 5000},
	}
	require.Equal(t, capsule.CategoryCorporate, Classify(contents))
}

func TestClassifyLocalBusinessFallsToSMB(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{
		{"@type": "LocalBusiness", "name": "Corner Bakery", "telephone": "+1 555 010"},
		{"name": "Menu", "description": "Our breads", "address": "1 Main St"},
	}
	require.Equal(t, capsule.CategorySMB, Classify(contents))
}

func TestClassifyNoSignalDefaultsSMB(t *testing.T) {
	t.Parallel()

	contents := []map[string]any{
		{"name": "Page A", "description": "x", "extra": 1},
		{"name": "Page B", "description": "y", "extra": 2},
	}
	require.Equal(t, capsule.CategorySMB, Classify(contents))
}
