package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"gorm.io/gorm"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/apierr"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// RuleSetRegistry is the single owner of the "current version" pointer.
// Runs pin the version they resolved at submission, so a promote mid-run
// never changes an in-flight run's results.
type RuleSetRegistry interface {
	Current(ctx context.Context) (*types.RuleSet, error)
	Version(ctx context.Context, version string) (*types.RuleSet, error)
	Promote(ctx context.Context, version string) (*types.RuleSet, error)

	// RulesFor returns every rule of the version compatible with the query
	// scope. Published rule sets are immutable, so results are cached per
	// version for the life of the process.
	RulesFor(ctx context.Context, version string, ruleType types.RuleType, scope Scope) ([]*types.ConversionRule, error)
	WasteFactorsFor(ctx context.Context, version string, scope Scope) ([]*types.WasteFactor, error)
}

// Scope is a taxonomy query scope; empty fields widen the match.
type Scope struct {
	L1           string
	L2           string
	L3           string
	MaterialCode string
}

type ruleSetRegistry struct {
	db  *gorm.DB
	log *logger.Logger

	ruleSets     repos.RuleSetRepo
	rules        repos.ConversionRuleRepo
	wasteFactors repos.WasteFactorRepo

	mu         sync.RWMutex
	current    *types.RuleSet
	ruleCache  map[string][]*types.ConversionRule
	wasteCache map[string][]*types.WasteFactor
}

func NewRuleSetRegistry(
	db *gorm.DB,
	baseLog *logger.Logger,
	ruleSets repos.RuleSetRepo,
	rules repos.ConversionRuleRepo,
	wasteFactors repos.WasteFactorRepo,
) RuleSetRegistry {
	return &ruleSetRegistry{
		db:           db,
		log:          baseLog.With("service", "RuleSetRegistry"),
		ruleSets:     ruleSets,
		rules:        rules,
		wasteFactors: wasteFactors,
		ruleCache:    make(map[string][]*types.ConversionRule),
		wasteCache:   make(map[string][]*types.WasteFactor),
	}
}

func (r *ruleSetRegistry) Current(ctx context.Context) (*types.RuleSet, error) {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()
	if cur != nil {
		return cur, nil
	}

	row, err := r.ruleSets.GetCurrent(dbctx.Context{Ctx: ctx})
	if err != nil {
		if errors.Is(err, repos.ErrNoCurrentSet) {
			return nil, apierr.New(http.StatusNotFound, "no_current_rule_set", err)
		}
		return nil, err
	}
	r.mu.Lock()
	r.current = row
	r.mu.Unlock()
	return row, nil
}

func (r *ruleSetRegistry) Version(ctx context.Context, version string) (*types.RuleSet, error) {
	row, err := r.ruleSets.GetByVersion(dbctx.Context{Ctx: ctx}, version)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.New(http.StatusNotFound, "rule_set_not_found", fmt.Errorf("%w: %s", repos.ErrRuleSetNotFound, version))
	}
	return row, nil
}

func (r *ruleSetRegistry) Promote(ctx context.Context, version string) (*types.RuleSet, error) {
	promoted, err := r.ruleSets.Promote(dbctx.Context{Ctx: ctx}, version)
	if err != nil {
		if errors.Is(err, repos.ErrRuleSetNotFound) {
			return nil, apierr.New(http.StatusNotFound, "rule_set_not_found", err)
		}
		return nil, err
	}
	r.mu.Lock()
	r.current = promoted
	r.mu.Unlock()
	return promoted, nil
}

func (r *ruleSetRegistry) RulesFor(ctx context.Context, version string, ruleType types.RuleType, scope Scope) ([]*types.ConversionRule, error) {
	all, err := r.versionRules(ctx, version)
	if err != nil {
		return nil, err
	}
	var out []*types.ConversionRule
	for _, rule := range all {
		if rule.RuleType != ruleType {
			continue
		}
		if !rule.MatchesScope(scope.L1, scope.L2, scope.L3) {
			continue
		}
		if rule.SourceMaterial != "" && rule.SourceMaterial != scope.MaterialCode {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *ruleSetRegistry) WasteFactorsFor(ctx context.Context, version string, scope Scope) ([]*types.WasteFactor, error) {
	all, err := r.versionWasteFactors(ctx, version)
	if err != nil {
		return nil, err
	}
	var out []*types.WasteFactor
	for _, w := range all {
		if w.Matches(scope.L1, scope.L2, scope.MaterialCode) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *ruleSetRegistry) versionRules(ctx context.Context, version string) ([]*types.ConversionRule, error) {
	r.mu.RLock()
	cached, ok := r.ruleCache[version]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	rows, err := r.rules.ListByVersion(dbctx.Context{Ctx: ctx}, version)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.ruleCache[version] = rows
	r.mu.Unlock()
	return rows, nil
}

func (r *ruleSetRegistry) versionWasteFactors(ctx context.Context, version string) ([]*types.WasteFactor, error) {
	r.mu.RLock()
	cached, ok := r.wasteCache[version]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	rows, err := r.wasteFactors.ListByVersion(dbctx.Context{Ctx: ctx}, version)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.wasteCache[version] = rows
	r.mu.Unlock()
	return rows, nil
}
