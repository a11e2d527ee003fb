package services

import (
	"context"
	"errors"
	"fmt"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// ErrNoMatch means no conversion rule covers the work item's scope at any
// specificity level.
var ErrNoMatch = errors.New("no matching rule")

type RuleResolver interface {
	// Resolve picks the single best rule of the given type for the scope:
	// deepest taxonomy match first, then highest priority, then smallest
	// rule id so residual ties stay deterministic.
	Resolve(ctx context.Context, version string, ruleType types.RuleType, scope Scope) (*types.ConversionRule, error)
}

type ruleResolver struct {
	log      *logger.Logger
	registry RuleSetRegistry
}

func NewRuleResolver(baseLog *logger.Logger, registry RuleSetRegistry) RuleResolver {
	return &ruleResolver{
		log:      baseLog.With("service", "RuleResolver"),
		registry: registry,
	}
}

func (r *ruleResolver) Resolve(ctx context.Context, version string, ruleType types.RuleType, scope Scope) (*types.ConversionRule, error) {
	candidates, err := r.registry.RulesFor(ctx, version, ruleType, scope)
	if err != nil {
		return nil, err
	}
	best := SelectBestRule(candidates)
	if best == nil {
		return nil, fmt.Errorf("%w: type=%s scope=%s/%s/%s", ErrNoMatch, ruleType, scope.L1, scope.L2, scope.L3)
	}
	return best, nil
}

// SelectBestRule orders candidates by specificity, then priority, then rule
// id. It is independent of candidate order, so insertion order never leaks
// into rule selection.
func SelectBestRule(candidates []*types.ConversionRule) *types.ConversionRule {
	var best *types.ConversionRule
	for _, c := range candidates {
		if best == nil || ruleOutranks(c, best) {
			best = c
		}
	}
	return best
}

func ruleOutranks(a, b *types.ConversionRule) bool {
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID.String() < b.ID.String()
}
