package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
)

func SeedCategory(tb testing.TB, ctx context.Context, tx *gorm.DB, code string, level int, parentCode string) *types.CategoryNode {
	tb.Helper()
	n := &types.CategoryNode{
		ID:         uuid.New(),
		Code:       code,
		Name:       code,
		Level:      level,
		ParentCode: parentCode,
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed category: %v", err)
	}
	return n
}

func SeedMaterial(tb testing.TB, ctx context.Context, tx *gorm.DB, code, l1, baseUnit string, defaultWaste float64) *types.MaterialMaster {
	tb.Helper()
	m := &types.MaterialMaster{
		ID:                 uuid.New(),
		Code:               code,
		Name:               code,
		CategoryL1:         l1,
		BaseUnit:           baseUnit,
		DefaultWasteFactor: defaultWaste,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed material: %v", err)
	}
	return m
}

func SeedRuleSet(tb testing.TB, ctx context.Context, tx *gorm.DB, version string, isCurrent bool) *types.RuleSet {
	tb.Helper()
	rs := &types.RuleSet{
		Version:       version,
		IsCurrent:     isCurrent,
		EffectiveFrom: time.Now().UTC().Add(-24 * time.Hour),
	}
	if err := tx.WithContext(ctx).Create(rs).Error; err != nil {
		tb.Fatalf("seed rule set: %v", err)
	}
	return rs
}

func SeedConversionRule(tb testing.TB, ctx context.Context, tx *gorm.DB, version string, ruleType types.RuleType, l1, l2, l3, targetMaterial, formula string, priority int) *types.ConversionRule {
	tb.Helper()
	r := &types.ConversionRule{
		ID:             uuid.New(),
		RuleSetVersion: version,
		RuleType:       ruleType,
		CategoryL1:     l1,
		CategoryL2:     l2,
		CategoryL3:     l3,
		TargetMaterial: targetMaterial,
		Formula:        formula,
		Variables:      datatypes.JSON([]byte("{}")),
		OutputUnit:     "m2",
		Priority:       priority,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed conversion rule: %v", err)
	}
	return r
}

func SeedWasteFactor(tb testing.TB, ctx context.Context, tx *gorm.DB, version, l1, l2, materialCode string, factor float64) *types.WasteFactor {
	tb.Helper()
	w := &types.WasteFactor{
		ID:             uuid.New(),
		RuleSetVersion: version,
		CategoryL1:     l1,
		CategoryL2:     l2,
		MaterialCode:   materialCode,
		Factor:         factor,
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed waste factor: %v", err)
	}
	return w
}

func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, version, inputHash string, status types.RunStatus) *types.CalculationRun {
	tb.Helper()
	run := &types.CalculationRun{
		ID:             uuid.New(),
		CategoryL1:     "STRUCT",
		RuleSetVersion: version,
		InputSnapshot:  datatypes.JSON([]byte("{}")),
		InputHash:      inputHash,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return run
}
