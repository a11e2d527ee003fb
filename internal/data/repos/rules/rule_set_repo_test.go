package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/buildwise/takeoff-backend/internal/data/repos/rules"
	"github.com/buildwise/takeoff-backend/internal/data/repos/testutil"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
)

func TestPromoteDemotesPreviousCurrent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := rules.NewRuleSetRepo(db, testutil.Logger(t))

	testutil.SeedRuleSet(t, ctx, tx, "2024Q1", true)
	testutil.SeedRuleSet(t, ctx, tx, "2024Q2", false)

	promoted, err := repo.Promote(dbc, "2024Q2")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !promoted.IsCurrent {
		t.Fatal("promoted set not marked current")
	}

	var count int64
	if err := tx.Model(&types.RuleSet{}).Where("is_current = ?", true).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("current sets = %d, want exactly 1", count)
	}

	current, err := repo.GetCurrent(dbc)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.Version != "2024Q2" {
		t.Fatalf("current = %s, want 2024Q2", current.Version)
	}
}

func TestPromoteUnknownVersion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := rules.NewRuleSetRepo(db, testutil.Logger(t))

	_, err := repo.Promote(dbc, "1999Q1")
	if !errors.Is(err, rules.ErrRuleSetNotFound) {
		t.Fatalf("err = %v, want ErrRuleSetNotFound", err)
	}
}

func TestGetCurrentWhenNone(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := rules.NewRuleSetRepo(db, testutil.Logger(t))

	if _, err := repo.GetCurrent(dbc); !errors.Is(err, rules.ErrNoCurrentSet) {
		t.Fatalf("err = %v, want ErrNoCurrentSet", err)
	}
}

func TestListForScopeWildcards(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := rules.NewConversionRuleRepo(db, testutil.Logger(t))

	testutil.SeedRuleSet(t, ctx, tx, "2024Q1", true)
	wide := testutil.SeedConversionRule(t, ctx, tx, "2024Q1", types.RuleTypeAssembly, "STRUCT", "", "", "RMC-C30", "area", 0)
	narrow := testutil.SeedConversionRule(t, ctx, tx, "2024Q1", types.RuleTypeAssembly, "STRUCT", "CONCRETE", "SLAB-POUR", "RMC-C30", "area", 0)
	other := testutil.SeedConversionRule(t, ctx, tx, "2024Q1", types.RuleTypeAssembly, "FINISH", "", "", "TILE-60", "area", 0)

	rows, err := repo.ListForScope(dbc, "2024Q1", types.RuleTypeAssembly, "STRUCT", "CONCRETE", "SLAB-POUR")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, r := range rows {
		got[r.ID.String()] = true
	}
	if !got[wide.ID.String()] || !got[narrow.ID.String()] {
		t.Fatalf("wildcard and exact rules must both match, got %v", got)
	}
	if got[other.ID.String()] {
		t.Fatal("rule from a different L1 must not match")
	}
}
