package rules

import (
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type ConversionRuleRepo interface {
	Create(dbc dbctx.Context, rows []*types.ConversionRule) ([]*types.ConversionRule, error)
	ListByVersion(dbc dbctx.Context, version string) ([]*types.ConversionRule, error)
	// ListForScope returns rules of the version and type whose populated
	// scope columns equal the query scope; empty columns act as wildcards.
	ListForScope(dbc dbctx.Context, version string, ruleType types.RuleType, l1, l2, l3 string) ([]*types.ConversionRule, error)
}

type conversionRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversionRuleRepo(db *gorm.DB, baseLog *logger.Logger) ConversionRuleRepo {
	return &conversionRuleRepo{db: db, log: baseLog.With("repo", "ConversionRuleRepo")}
}

func (r *conversionRuleRepo) Create(dbc dbctx.Context, rows []*types.ConversionRule) ([]*types.ConversionRule, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ConversionRule{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conversionRuleRepo) ListByVersion(dbc dbctx.Context, version string) ([]*types.ConversionRule, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConversionRule
	if err := t.WithContext(dbc.Ctx).Where("rule_set_version = ?", version).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversionRuleRepo) ListForScope(dbc dbctx.Context, version string, ruleType types.RuleType, l1, l2, l3 string) ([]*types.ConversionRule, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConversionRule
	if err := t.WithContext(dbc.Ctx).
		Where("rule_set_version = ? AND rule_type = ?", version, string(ruleType)).
		Where("(category_l1 = '' OR category_l1 = ?)", l1).
		Where("(category_l2 = '' OR category_l2 = ?)", l2).
		Where("(category_l3 = '' OR category_l3 = ?)", l3).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
