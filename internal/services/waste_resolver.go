package services

import (
	"context"
	"errors"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/domain/runs"
	"github.com/buildwise/takeoff-backend/internal/formula"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// WasteResolver picks the loss allowance for a line. An explicit WASTE-type
// conversion rule outranks the generic waste factor table, which outranks
// the material master's default.
type WasteResolver interface {
	Resolve(ctx context.Context, version string, scope Scope, vars map[string]float64, material *types.MaterialMaster) (factor float64, source string, err error)
}

type wasteResolver struct {
	log      *logger.Logger
	registry RuleSetRegistry
	formulas *formula.Cache
}

func NewWasteResolver(baseLog *logger.Logger, registry RuleSetRegistry, formulas *formula.Cache) WasteResolver {
	return &wasteResolver{
		log:      baseLog.With("service", "WasteResolver"),
		registry: registry,
		formulas: formulas,
	}
}

func (w *wasteResolver) Resolve(ctx context.Context, version string, scope Scope, vars map[string]float64, material *types.MaterialMaster) (float64, string, error) {
	// 1. Explicit WASTE rule: its formula evaluates to the factor itself.
	ruleCandidates, err := w.registry.RulesFor(ctx, version, types.RuleTypeWaste, scope)
	if err != nil {
		return 0, "", err
	}
	if rule := SelectBestRule(ruleCandidates); rule != nil {
		compiled, err := w.formulas.Get(rule.ID.String(), rule.Formula)
		if err != nil {
			return 0, "", err
		}
		factor, err := compiled.Eval(vars)
		if err != nil {
			return 0, "", err
		}
		return factor, runs.WasteSourceRule, nil
	}

	// 2. Waste factor table, most specific row over (l1, l2, materialCode).
	rows, err := w.registry.WasteFactorsFor(ctx, version, scope)
	if err != nil {
		return 0, "", err
	}
	if row := SelectBestWasteFactor(rows); row != nil {
		return row.Factor, runs.WasteSourceTable, nil
	}

	// 3. Material master default.
	if material != nil && material.DefaultWasteFactor > 0 {
		return material.DefaultWasteFactor, runs.WasteSourceMaterialDefault, nil
	}
	return 0, runs.WasteSourceNone, nil
}

// SelectBestWasteFactor mirrors rule selection: specificity first, then row
// id for a deterministic residual tie-break.
func SelectBestWasteFactor(rows []*types.WasteFactor) *types.WasteFactor {
	var best *types.WasteFactor
	for _, row := range rows {
		if best == nil || wasteOutranks(row, best) {
			best = row
		}
	}
	return best
}

func wasteOutranks(a, b *types.WasteFactor) bool {
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	return a.ID.String() < b.ID.String()
}

// IsFormulaError reports whether err came out of formula evaluation, so the
// orchestrator can fold it into the per-item error log.
func IsFormulaError(err error) (*formula.Error, bool) {
	var fe *formula.Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
