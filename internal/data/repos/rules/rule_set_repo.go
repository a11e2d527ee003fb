package rules

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

var (
	ErrRuleSetNotFound = errors.New("rule set not found")
	ErrNoCurrentSet    = errors.New("no current rule set")
)

type RuleSetRepo interface {
	Create(dbc dbctx.Context, rows []*types.RuleSet) ([]*types.RuleSet, error)
	GetByVersion(dbc dbctx.Context, version string) (*types.RuleSet, error)
	GetCurrent(dbc dbctx.Context) (*types.RuleSet, error)
	// Promote makes version the single current rule set: the previous
	// current row is demoted and the target promoted inside one transaction.
	Promote(dbc dbctx.Context, version string) (*types.RuleSet, error)
}

type ruleSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleSetRepo(db *gorm.DB, baseLog *logger.Logger) RuleSetRepo {
	return &ruleSetRepo{db: db, log: baseLog.With("repo", "RuleSetRepo")}
}

func (r *ruleSetRepo) Create(dbc dbctx.Context, rows []*types.RuleSet) ([]*types.RuleSet, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.RuleSet{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ruleSetRepo) GetByVersion(dbc dbctx.Context, version string) (*types.RuleSet, error) {
	if version == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.RuleSet
	if err := t.WithContext(dbc.Ctx).Where("version = ?", version).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.Version == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *ruleSetRepo) GetCurrent(dbc dbctx.Context) (*types.RuleSet, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.RuleSet
	if err := t.WithContext(dbc.Ctx).Where("is_current = ?", true).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.Version == "" {
		return nil, ErrNoCurrentSet
	}
	return &row, nil
}

func (r *ruleSetRepo) Promote(dbc dbctx.Context, version string) (*types.RuleSet, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var promoted *types.RuleSet
	err := t.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var target types.RuleSet
		if err := tx.Where("version = ?", version).Limit(1).Find(&target).Error; err != nil {
			return err
		}
		if target.Version == "" {
			return fmt.Errorf("%w: %s", ErrRuleSetNotFound, version)
		}
		if err := tx.Model(&types.RuleSet{}).
			Where("is_current = ?", true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&types.RuleSet{}).
			Where("version = ?", version).
			Update("is_current", true).Error; err != nil {
			return err
		}
		target.IsCurrent = true
		promoted = &target
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("Rule set promoted", "version", version)
	return promoted, nil
}
