package catalog

import (
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type CategoryRepo interface {
	Create(dbc dbctx.Context, rows []*types.CategoryNode) ([]*types.CategoryNode, error)
	GetByCode(dbc dbctx.Context, code string) (*types.CategoryNode, error)
	ListAll(dbc dbctx.Context) ([]*types.CategoryNode, error)
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "CategoryRepo")}
}

func (r *categoryRepo) Create(dbc dbctx.Context, rows []*types.CategoryNode) ([]*types.CategoryNode, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.CategoryNode{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *categoryRepo) GetByCode(dbc dbctx.Context, code string) (*types.CategoryNode, error) {
	if code == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CategoryNode
	if err := t.WithContext(dbc.Ctx).Where("code = ?", code).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.Code == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *categoryRepo) ListAll(dbc dbctx.Context) ([]*types.CategoryNode, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.CategoryNode
	if err := t.WithContext(dbc.Ctx).Order("level ASC, code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
