// Package contract implements the schema-validation gate. A CUE contract is
// compiled once at startup; envelopes that fail it are flagged for review,
// never discarded.
package contract

import (
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// capsulePath is the definition the contract file must export.
const capsulePath = "#Capsule"

// Validator checks assembled envelopes against the compiled contract.
type Validator struct {
	cuectx  *cue.Context
	schema  cue.Value
	enabled bool
}

// Load compiles the contract file. A missing or unreadable contract disables
// validation for the run with a warning instead of blocking all jobs.
func Load(path string, logger *zap.Logger) *Validator {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("contract schema unavailable, validation disabled",
			zap.String("path", path), zap.Error(err))
		return &Validator{}
	}

	cuectx := cuecontext.New()
	compiled := cuectx.CompileBytes(data, cue.Filename(path))
	if err := compiled.Err(); err != nil {
		logger.Warn("contract schema failed to compile, validation disabled",
			zap.String("path", path), zap.Error(err))
		return &Validator{}
	}
	schema := compiled.LookupPath(cue.ParsePath(capsulePath))
	if err := schema.Err(); err != nil {
		logger.Warn("contract schema has no #Capsule definition, validation disabled",
			zap.String("path", path), zap.Error(err))
		return &Validator{}
	}

	return &Validator{cuectx: cuectx, schema: schema, enabled: true}
}

// Disabled returns a validator that passes everything, for runs with the
// validation gate switched off.
func Disabled() *Validator {
	return &Validator{}
}

// Enabled reports whether a contract was successfully compiled.
func (v *Validator) Enabled() bool {
	return v != nil && v.enabled
}

// Validate checks one envelope against the contract and returns the
// violation list. A disabled validator accepts everything.
func (v *Validator) Validate(env capsule.Envelope) (bool, []string) {
	if !v.Enabled() {
		return true, nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return false, []string{fmt.Sprintf("encode envelope: %v", err)}
	}
	// JSON is valid CUE, so the document compiles directly.
	doc := v.cuectx.CompileBytes(data)
	if err := doc.Err(); err != nil {
		return false, []string{fmt.Sprintf("decode envelope: %v", err)}
	}

	unified := v.schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var violations []string
		for _, e := range cueerrors.Errors(err) {
			violations = append(violations, e.Error())
		}
		return false, violations
	}
	return true, nil
}
