package infer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

const commercePage = `<html><head>
<title>Acme Anvil | Acme Tools</title>
<meta name="description" content="Drop-forged anvil for the serious coyote.">
</head><body></body></html>`

const commerceText = `Acme Anvil
$49.99
Add to cart
Free shipping on orders over $100
SKU: AV-100
Brand: Acme`

func newTestEngine() *Engine {
	return New(zap.NewNop(), nil)
}

func TestDetectTypeCommerce(t *testing.T) {
	t.Parallel()

	guess, confidence := detectType("Add to cart. In stock. Free shipping.")
	require.Equal(t, TypeProduct, guess)
	require.Greater(t, confidence, 0.5)
}

func TestDetectTypeEditorial(t *testing.T) {
	t.Parallel()

	guess, _ := detectType("Published March 3. 5 min read. Read more related articles.")
	require.Equal(t, TypeArticle, guess)
}

func TestDetectTypeNoSignals(t *testing.T) {
	t.Parallel()

	guess, confidence := detectType("completely neutral text about weather patterns")
	require.Equal(t, TypeThing, guess)
	require.Zero(t, confidence)
}

func TestInferProductFields(t *testing.T) {
	t.Parallel()

	seed := capsule.Envelope{Type: TypeProduct, Content: map[string]any{}}
	out := newTestEngine().Infer(context.Background(), commercePage, commerceText, seed, Options{})

	require.Equal(t, "49.99", out.Content["price"])
	require.Equal(t, "USD", out.Content["priceCurrency"])
	require.Equal(t, "AV-100", out.Content["sku"])
	require.Equal(t, "Acme", out.Content["brand"])

	price := out.Fields["price"]
	require.Equal(t, capsule.SourceHeuristic, price.Source)
	require.Equal(t, confPriceRegex, price.Confidence)
	require.Equal(t, "price-regex", price.Method)
	require.False(t, out.ModelUsed)
}

func TestPriceGatedWithoutAssertedType(t *testing.T) {
	t.Parallel()

	// One weak "price" mention guesses commerce, but a single strong phrase
	// is not enough to trust a price on an unasserted page.
	text := "Price list\n$3,448 Add to cart"
	seed := capsule.Envelope{Content: map[string]any{}}
	out := newTestEngine().Infer(context.Background(), "<html></html>", text, seed, Options{})

	_, hasPrice := out.Content["price"]
	require.False(t, hasPrice)
}

func TestPriceAllowedWithTwoStrongPhrases(t *testing.T) {
	t.Parallel()

	text := "Anvil $49.99\nAdd to cart\nFree shipping today"
	seed := capsule.Envelope{Content: map[string]any{}}
	out := newTestEngine().Infer(context.Background(), "<html></html>", text, seed, Options{})

	require.Equal(t, "49.99", out.Content["price"])
}

func TestInferOrganizationContact(t *testing.T) {
	t.Parallel()

	text := `Contact us at our headquarters.
support@acme.example
+1 (555) 010-2030
120 Forge Street`
	seed := capsule.Envelope{Type: TypeOrganization, Content: map[string]any{}}
	out := newTestEngine().Infer(context.Background(), "<html></html>", text, seed, Options{})

	require.Equal(t, "support@acme.example", out.Content["email"])
	require.Contains(t, out.Content, "telephone")
	require.Equal(t, "120 Forge Street", out.Content["address"])
}

func TestInferArticleDatesAndByline(t *testing.T) {
	t.Parallel()

	text := `Published on 2026-03-01
Updated: 2026-03-04
By Dana Smith`
	seed := capsule.Envelope{Type: TypeArticle, Content: map[string]any{}}
	out := newTestEngine().Infer(context.Background(), "<html></html>", text, seed, Options{})

	require.Equal(t, "2026-03-01", out.Content["datePublished"])
	require.Equal(t, "2026-03-04", out.Content["dateModified"])
	require.Equal(t, "Dana Smith", out.Content["author"])
}

func TestGenericFallbackRespectsSeed(t *testing.T) {
	t.Parallel()

	seed := capsule.Envelope{
		Type:    TypeProduct,
		Content: map[string]any{"name": "Asserted Name"},
	}
	out := newTestEngine().Infer(context.Background(), commercePage, "", seed, Options{})

	_, inferredName := out.Content["name"]
	require.False(t, inferredName, "asserted name must not be re-inferred")
	require.Equal(t, "Drop-forged anvil for the serious coyote.", out.Content["description"])
}

type stubAugmenter struct {
	fields map[string]capsule.InferredField
	ok     bool
	called bool
}

func (s *stubAugmenter) TryAugment(_ context.Context, _ capsule.Envelope, _ string) (map[string]capsule.InferredField, bool) {
	s.called = true
	return s.fields, s.ok
}

func TestAugmentFillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	aug := &stubAugmenter{
		fields: map[string]capsule.InferredField{
			"brand":    {Value: "Model Brand", Confidence: 0.99},
			"material": {Value: "iron"},
		},
		ok: true,
	}
	engine := New(zap.NewNop(), aug)

	seed := capsule.Envelope{Type: TypeProduct, Content: map[string]any{}}
	out := engine.Infer(context.Background(), commercePage, commerceText, seed, Options{ModelEnabled: true})

	require.True(t, aug.called)
	require.True(t, out.ModelUsed)
	// Heuristics already found the brand; the model may not override it.
	require.Equal(t, "Acme", out.Content["brand"])

	material := out.Fields["material"]
	require.Equal(t, "iron", material.Value)
	require.Equal(t, capsule.SourceModel, material.Source)
	require.Equal(t, confModelAugment, material.Confidence)
}

func TestAugmentFailureKeepsHeuristics(t *testing.T) {
	t.Parallel()

	engine := New(zap.NewNop(), &stubAugmenter{ok: false})
	seed := capsule.Envelope{Type: TypeProduct, Content: map[string]any{}}
	out := engine.Infer(context.Background(), commercePage, commerceText, seed, Options{ModelEnabled: true})

	require.False(t, out.ModelUsed)
	require.Equal(t, "49.99", out.Content["price"])
}
