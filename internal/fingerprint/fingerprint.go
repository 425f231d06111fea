// Package fingerprint computes the content-addressed hash used as the dedup
// key for capsules.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/structharvest/harvester/internal/canonical"
	"github.com/structharvest/harvester/internal/capsule"
)

// Algorithm prefixes every fingerprint so the digest can be rotated later
// without ambiguity.
const Algorithm = "sha256"

// Compute hashes a volatility-stripped view of the envelope. Capture
// timestamps, the run identifier, and provenance capture times are excluded
// so that two envelopes with the same substantive content hash identically
// across runs. With deterministic enabled the asserted and content subtrees
// are canonicalized first, making the hash stable under field and array
// reordering.
func Compute(env capsule.Envelope, deterministic bool) (string, error) {
	view := stripVolatile(env)

	var (
		data []byte
		err  error
	)
	if deterministic {
		data, err = canonical.Marshal(view)
	} else {
		// Map keys still serialize sorted, but array order is preserved,
		// so reordered blocks hash differently in this mode.
		data, err = json.Marshal(view)
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return Algorithm + ":" + hex.EncodeToString(sum[:]), nil
}

func stripVolatile(env capsule.Envelope) map[string]any {
	asserted := make([]any, 0, len(env.Asserted))
	for _, block := range env.Asserted {
		asserted = append(asserted, map[string]any{
			"data": block.Data,
			"provenance": map[string]any{
				"source_url": block.Provenance.SourceURL,
				"evidence":   block.Provenance.Evidence,
				"locator":    block.Provenance.Locator,
				"raw_hash":   block.Provenance.RawHash,
			},
		})
	}
	view := map[string]any{
		"@context":   env.Context,
		"@type":      env.Type,
		"source_url": env.SourceURL,
		"content":    env.Content,
	}
	if len(asserted) > 0 {
		view["asserted"] = asserted
	}
	return view
}
