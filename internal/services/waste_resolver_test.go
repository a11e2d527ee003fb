package services

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	runsdomain "github.com/buildwise/takeoff-backend/internal/domain/runs"
	"github.com/buildwise/takeoff-backend/internal/formula"
)

func TestWasteRuleOutranksTable(t *testing.T) {
	registry := &memRegistry{
		rules: []*types.ConversionRule{{
			ID:             uuid.MustParse(idA),
			RuleSetVersion: testVersion,
			RuleType:       types.RuleTypeWaste,
			CategoryL1:     "FINISH",
			Formula:        "0.03 + extra",
		}},
		waste: []*types.WasteFactor{
			{ID: uuid.New(), RuleSetVersion: testVersion, CategoryL1: "FINISH", Factor: 0.10},
		},
	}
	resolver := NewWasteResolver(testLogger(t), registry, formula.NewCache())

	factor, source, err := resolver.Resolve(context.Background(), testVersion, Scope{L1: "FINISH"}, map[string]float64{"extra": 0.01}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source != runsdomain.WasteSourceRule {
		t.Fatalf("source = %s, want %s", source, runsdomain.WasteSourceRule)
	}
	if math.Abs(factor-0.04) > 1e-9 {
		t.Fatalf("factor = %v, want 0.04", factor)
	}
}

func TestWasteTableOutranksMaterialDefault(t *testing.T) {
	registry := &memRegistry{
		waste: []*types.WasteFactor{
			{ID: uuid.New(), RuleSetVersion: testVersion, CategoryL1: "FINISH", Factor: 0.10},
		},
	}
	resolver := NewWasteResolver(testLogger(t), registry, formula.NewCache())
	material := &types.MaterialMaster{Code: "TILE-60", DefaultWasteFactor: 0.02}

	factor, source, err := resolver.Resolve(context.Background(), testVersion, Scope{L1: "FINISH"}, nil, material)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source != runsdomain.WasteSourceTable || factor != 0.10 {
		t.Fatalf("got (%v, %s), want (0.10, %s)", factor, source, runsdomain.WasteSourceTable)
	}
}

func TestWasteFallsBackToMaterialDefault(t *testing.T) {
	resolver := NewWasteResolver(testLogger(t), &memRegistry{}, formula.NewCache())
	material := &types.MaterialMaster{Code: "TILE-60", DefaultWasteFactor: 0.02}

	factor, source, err := resolver.Resolve(context.Background(), testVersion, Scope{L1: "FINISH"}, nil, material)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source != runsdomain.WasteSourceMaterialDefault || factor != 0.02 {
		t.Fatalf("got (%v, %s), want (0.02, %s)", factor, source, runsdomain.WasteSourceMaterialDefault)
	}
}

func TestWasteNone(t *testing.T) {
	resolver := NewWasteResolver(testLogger(t), &memRegistry{}, formula.NewCache())

	factor, source, err := resolver.Resolve(context.Background(), testVersion, Scope{L1: "FINISH"}, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source != runsdomain.WasteSourceNone || factor != 0 {
		t.Fatalf("got (%v, %s), want (0, %s)", factor, source, runsdomain.WasteSourceNone)
	}
}

func TestWasteRuleFormulaErrorSurfaces(t *testing.T) {
	registry := &memRegistry{
		rules: []*types.ConversionRule{{
			ID:             uuid.MustParse(idA),
			RuleSetVersion: testVersion,
			RuleType:       types.RuleTypeWaste,
			CategoryL1:     "FINISH",
			Formula:        "base / divisor",
		}},
	}
	resolver := NewWasteResolver(testLogger(t), registry, formula.NewCache())

	_, _, err := resolver.Resolve(context.Background(), testVersion, Scope{L1: "FINISH"}, map[string]float64{"base": 1, "divisor": 0}, nil)
	fe, ok := IsFormulaError(err)
	if !ok {
		t.Fatalf("err = %v, want formula error", err)
	}
	if fe.Kind != formula.KindDivisionByZero {
		t.Fatalf("kind = %s, want %s", fe.Kind, formula.KindDivisionByZero)
	}
}
