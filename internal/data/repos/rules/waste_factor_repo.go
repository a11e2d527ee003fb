package rules

import (
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type WasteFactorRepo interface {
	Create(dbc dbctx.Context, rows []*types.WasteFactor) ([]*types.WasteFactor, error)
	ListByVersion(dbc dbctx.Context, version string) ([]*types.WasteFactor, error)
}

type wasteFactorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWasteFactorRepo(db *gorm.DB, baseLog *logger.Logger) WasteFactorRepo {
	return &wasteFactorRepo{db: db, log: baseLog.With("repo", "WasteFactorRepo")}
}

func (r *wasteFactorRepo) Create(dbc dbctx.Context, rows []*types.WasteFactor) ([]*types.WasteFactor, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.WasteFactor{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *wasteFactorRepo) ListByVersion(dbc dbctx.Context, version string) ([]*types.WasteFactor, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.WasteFactor
	if err := t.WithContext(dbc.Ctx).Where("rule_set_version = ?", version).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
