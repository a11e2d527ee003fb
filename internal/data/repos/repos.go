package repos

import (
	"gorm.io/gorm"

	"github.com/buildwise/takeoff-backend/internal/data/repos/catalog"
	"github.com/buildwise/takeoff-backend/internal/data/repos/rules"
	"github.com/buildwise/takeoff-backend/internal/data/repos/runs"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

type CategoryRepo = catalog.CategoryRepo
type MaterialRepo = catalog.MaterialRepo
type BuildingProfileRepo = catalog.BuildingProfileRepo

type RuleSetRepo = rules.RuleSetRepo
type ConversionRuleRepo = rules.ConversionRuleRepo
type WasteFactorRepo = rules.WasteFactorRepo

type CalculationRunRepo = runs.CalculationRunRepo
type BreakdownLineRepo = runs.BreakdownLineRepo

var (
	ErrRuleSetNotFound = rules.ErrRuleSetNotFound
	ErrNoCurrentSet    = rules.ErrNoCurrentSet
	ErrDuplicateInput  = runs.ErrDuplicateInput
)

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return catalog.NewCategoryRepo(db, baseLog)
}
func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return catalog.NewMaterialRepo(db, baseLog)
}
func NewBuildingProfileRepo(db *gorm.DB, baseLog *logger.Logger) BuildingProfileRepo {
	return catalog.NewBuildingProfileRepo(db, baseLog)
}

func NewRuleSetRepo(db *gorm.DB, baseLog *logger.Logger) RuleSetRepo {
	return rules.NewRuleSetRepo(db, baseLog)
}
func NewConversionRuleRepo(db *gorm.DB, baseLog *logger.Logger) ConversionRuleRepo {
	return rules.NewConversionRuleRepo(db, baseLog)
}
func NewWasteFactorRepo(db *gorm.DB, baseLog *logger.Logger) WasteFactorRepo {
	return rules.NewWasteFactorRepo(db, baseLog)
}

func NewCalculationRunRepo(db *gorm.DB, baseLog *logger.Logger) CalculationRunRepo {
	return runs.NewCalculationRunRepo(db, baseLog)
}
func NewBreakdownLineRepo(db *gorm.DB, baseLog *logger.Logger) BreakdownLineRepo {
	return runs.NewBreakdownLineRepo(db, baseLog)
}
