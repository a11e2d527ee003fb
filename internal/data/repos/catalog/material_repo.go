package catalog

import (
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type MaterialRepo interface {
	Create(dbc dbctx.Context, rows []*types.MaterialMaster) ([]*types.MaterialMaster, error)
	GetByCode(dbc dbctx.Context, code string) (*types.MaterialMaster, error)
	GetByCodes(dbc dbctx.Context, codes []string) ([]*types.MaterialMaster, error)
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return &materialRepo{db: db, log: baseLog.With("repo", "MaterialRepo")}
}

func (r *materialRepo) Create(dbc dbctx.Context, rows []*types.MaterialMaster) ([]*types.MaterialMaster, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.MaterialMaster{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *materialRepo) GetByCode(dbc dbctx.Context, code string) (*types.MaterialMaster, error) {
	if code == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.MaterialMaster
	if err := t.WithContext(dbc.Ctx).Where("code = ?", code).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.Code == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *materialRepo) GetByCodes(dbc dbctx.Context, codes []string) ([]*types.MaterialMaster, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.MaterialMaster
	if len(codes) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("code IN ?", codes).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
