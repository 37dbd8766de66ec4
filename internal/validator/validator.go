// Package validator implements the Query Validator (I): a thin,
// read-only wrapper that delegates to the target ExecutionEngine's
// own Validate, never executing the statement itself. The cost
// heuristics themselves live in internal/engine/columnar so every
// adapter produces identical numbers for the same SQL.
package validator

import (
	"context"
	"fmt"

	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// Validator selects an engine by name and delegates validation to it.
type Validator struct {
	engines map[string]interfaces.ExecutionEngine
}

// New returns a Validator dispatching across the given named engines.
func New(engines map[string]interfaces.ExecutionEngine) *Validator {
	return &Validator{engines: engines}
}

// Validate runs read-only validation of sql against the named engine.
func (v *Validator) Validate(ctx context.Context, engineName, sql string) (*models.ValidationReport, error) {
	eng, ok := v.engines[engineName]
	if !ok {
		return nil, fmt.Errorf("validator: unknown engine %q", engineName)
	}
	return eng.Validate(ctx, sql)
}
