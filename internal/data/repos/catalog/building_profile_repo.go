package catalog

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type BuildingProfileRepo interface {
	Create(dbc dbctx.Context, rows []*types.BuildingProfile) ([]*types.BuildingProfile, error)
	GetByCode(dbc dbctx.Context, code string) (*types.BuildingProfile, error)
	ListByStructureUsage(dbc dbctx.Context, structureType, usage string) ([]*types.BuildingProfile, error)
}

type buildingProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBuildingProfileRepo(db *gorm.DB, baseLog *logger.Logger) BuildingProfileRepo {
	return &buildingProfileRepo{db: db, log: baseLog.With("repo", "BuildingProfileRepo")}
}

func (r *buildingProfileRepo) Create(dbc dbctx.Context, rows []*types.BuildingProfile) ([]*types.BuildingProfile, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.BuildingProfile{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *buildingProfileRepo) GetByCode(dbc dbctx.Context, code string) (*types.BuildingProfile, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.BuildingProfile
	err := t.WithContext(dbc.Ctx).Where("code = ?", code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *buildingProfileRepo) ListByStructureUsage(dbc dbctx.Context, structureType, usage string) ([]*types.BuildingProfile, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BuildingProfile
	if err := t.WithContext(dbc.Ctx).
		Where("structure_type = ? AND usage = ?", structureType, usage).
		Order("code ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
