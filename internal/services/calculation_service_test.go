package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	runsdomain "github.com/buildwise/takeoff-backend/internal/domain/runs"
	"github.com/buildwise/takeoff-backend/internal/formula"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/taxonomy"
	"github.com/buildwise/takeoff-backend/internal/units"
)

// --- in-memory doubles -----------------------------------------------------

type memRegistry struct {
	current  *types.RuleSet
	versions map[string]*types.RuleSet
	rules    []*types.ConversionRule
	waste    []*types.WasteFactor
}

func (m *memRegistry) Current(ctx context.Context) (*types.RuleSet, error) {
	if m.current == nil {
		return nil, repos.ErrNoCurrentSet
	}
	return m.current, nil
}

func (m *memRegistry) Version(ctx context.Context, version string) (*types.RuleSet, error) {
	rs, ok := m.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repos.ErrRuleSetNotFound, version)
	}
	return rs, nil
}

func (m *memRegistry) Promote(ctx context.Context, version string) (*types.RuleSet, error) {
	rs, ok := m.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repos.ErrRuleSetNotFound, version)
	}
	m.current = rs
	return rs, nil
}

func (m *memRegistry) RulesFor(ctx context.Context, version string, ruleType types.RuleType, scope Scope) ([]*types.ConversionRule, error) {
	var out []*types.ConversionRule
	for _, r := range m.rules {
		if r.RuleSetVersion != version || r.RuleType != ruleType {
			continue
		}
		if !r.MatchesScope(scope.L1, scope.L2, scope.L3) {
			continue
		}
		if r.SourceMaterial != "" && r.SourceMaterial != scope.MaterialCode {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memRegistry) WasteFactorsFor(ctx context.Context, version string, scope Scope) ([]*types.WasteFactor, error) {
	var out []*types.WasteFactor
	for _, w := range m.waste {
		if w.RuleSetVersion == version && w.Matches(scope.L1, scope.L2, scope.MaterialCode) {
			out = append(out, w)
		}
	}
	return out, nil
}

type memMaterialRepo struct {
	byCode map[string]*types.MaterialMaster
}

func (m *memMaterialRepo) Create(dbc dbctx.Context, rows []*types.MaterialMaster) ([]*types.MaterialMaster, error) {
	for _, r := range rows {
		m.byCode[r.Code] = r
	}
	return rows, nil
}

func (m *memMaterialRepo) GetByCode(dbc dbctx.Context, code string) (*types.MaterialMaster, error) {
	return m.byCode[code], nil
}

func (m *memMaterialRepo) GetByCodes(dbc dbctx.Context, codes []string) ([]*types.MaterialMaster, error) {
	var out []*types.MaterialMaster
	for _, c := range codes {
		if mat, ok := m.byCode[c]; ok {
			out = append(out, mat)
		}
	}
	return out, nil
}

type memRunRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.CalculationRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{rows: map[uuid.UUID]*types.CalculationRun{}}
}

func cloneRun(r *types.CalculationRun) *types.CalculationRun {
	c := *r
	return &c
}

func (m *memRunRepo) CreatePending(dbc dbctx.Context, run *types.CalculationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.InputHash == run.InputHash && r.RuleSetVersion == run.RuleSetVersion {
			return repos.ErrDuplicateInput
		}
	}
	run.Status = types.RunStatusPending
	run.CreatedAt = time.Now()
	m.rows[run.ID] = cloneRun(run)
	return nil
}

func (m *memRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneRun(r), nil
}

func (m *memRunRepo) GetByInputHash(dbc dbctx.Context, inputHash, ruleSetVersion string) (*types.CalculationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.InputHash == inputHash && r.RuleSetVersion == ruleSetVersion {
			return cloneRun(r), nil
		}
	}
	return nil, nil
}

func (m *memRunRepo) Claim(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != types.RunStatusPending {
		return false, nil
	}
	now := time.Now()
	r.Status = types.RunStatusRunning
	r.StartedAt = &now
	return true, nil
}

func (m *memRunRepo) ClaimNextPending(dbc dbctx.Context, minAge time.Duration) (*types.CalculationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *types.CalculationRun
	for _, r := range m.rows {
		if r.Status != types.RunStatusPending || time.Since(r.CreatedAt) < minAge {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, nil
	}
	now := time.Now()
	oldest.Status = types.RunStatusRunning
	oldest.StartedAt = &now
	return cloneRun(oldest), nil
}

func (m *memRunRepo) Finalize(dbc dbctx.Context, id uuid.UUID, status types.RunStatus, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != types.RunStatusRunning {
		return false, nil
	}
	r.Status = status
	now := time.Now()
	r.FinishedAt = &now
	if v, ok := updates["result_summary"].(datatypes.JSON); ok {
		r.ResultSummary = v
	}
	if v, ok := updates["error_log"].(datatypes.JSON); ok {
		r.ErrorLog = v
	}
	if v, ok := updates["duration_ms"].(int64); ok {
		r.DurationMs = &v
	}
	if v, ok := updates["fail_reason"].(string); ok {
		r.FailReason = types.FailReason(v)
	}
	return true, nil
}

func (m *memRunRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason types.FailReason) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	r.Status = types.RunStatusFailed
	r.FailReason = reason
	r.FinishedAt = &now
	return true, nil
}

type memLineRepo struct {
	mu   sync.Mutex
	rows []*types.BreakdownLine
}

func (m *memLineRepo) Append(dbc dbctx.Context, rows []*types.BreakdownLine) ([]*types.BreakdownLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return rows, nil
}

func (m *memLineRepo) ListByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.BreakdownLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.BreakdownLine
	for _, r := range m.rows {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceWorkItemCode < out[j].SourceWorkItemCode })
	return out, nil
}

// --- harness ---------------------------------------------------------------

const testVersion = "2024Q1"

type harness struct {
	svc      CalculationService
	registry *memRegistry
	runs     *memRunRepo
	lines    *memLineRepo
}

func testTree(t testing.TB) *taxonomy.Tree {
	t.Helper()
	tree, err := taxonomy.NewTree([]types.CategoryNode{
		{Code: "STRUCT", Name: "STRUCT", Level: 1},
		{Code: "CONCRETE", Name: "CONCRETE", Level: 2, ParentCode: "STRUCT"},
		{Code: "SLAB-POUR", Name: "SLAB-POUR", Level: 3, ParentCode: "CONCRETE"},
		{Code: "FINISH", Name: "FINISH", Level: 1},
		{Code: "TILING", Name: "TILING", Level: 2, ParentCode: "FINISH"},
		{Code: "FLOOR-TILE", Name: "FLOOR-TILE", Level: 3, ParentCode: "TILING"},
	})
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	return tree
}

func assemblyRule(id, version, l1, l2, l3, target, src string) *types.ConversionRule {
	return &types.ConversionRule{
		ID:             uuid.MustParse(id),
		RuleSetVersion: version,
		RuleType:       types.RuleTypeAssembly,
		CategoryL1:     l1,
		CategoryL2:     l2,
		CategoryL3:     l3,
		TargetMaterial: target,
		Formula:        src,
		OutputUnit:     "m2",
	}
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	log := testLogger(t)

	registry := &memRegistry{
		versions: map[string]*types.RuleSet{
			testVersion: {Version: testVersion, IsCurrent: true},
			"2023Q4":    {Version: "2023Q4"},
		},
		rules: []*types.ConversionRule{
			assemblyRule(idA, testVersion, "FINISH", "TILING", "FLOOR-TILE", "TILE-60", "area * 1.05"),
			assemblyRule(idB, "2023Q4", "FINISH", "TILING", "FLOOR-TILE", "TILE-60", "area * 1.10"),
			{
				ID:             uuid.MustParse(idC),
				RuleSetVersion: testVersion,
				RuleType:       types.RuleTypePackaging,
				CategoryL1:     "FINISH",
				CategoryL2:     "TILING",
				Formula:        "1.44",
				OutputUnit:     "box",
			},
		},
		waste: []*types.WasteFactor{
			{ID: uuid.New(), RuleSetVersion: testVersion, CategoryL1: "FINISH", MaterialCode: "TILE-60", Factor: 0.048},
		},
	}
	registry.current = registry.versions[testVersion]

	materials := &memMaterialRepo{byCode: map[string]*types.MaterialMaster{
		"TILE-60": {ID: uuid.New(), Code: "TILE-60", Name: "Ceramic tile 60x60", CategoryL1: "FINISH", BaseUnit: "m2", DefaultWasteFactor: 0.02},
	}}

	runRepo := newMemRunRepo()
	lineRepo := &memLineRepo{}
	formulas := formula.NewCache()

	cfg := DefaultCalculationConfig()
	cfg.PersistBackoff = time.Millisecond

	svc := NewCalculationService(
		nil, log, cfg,
		testTree(t), registry,
		NewRuleResolver(log, registry),
		NewWasteResolver(log, registry, formulas),
		units.NewConverter(), formulas,
		materials, runRepo, lineRepo,
		NewNopRunNotifier(),
	)
	return &harness{svc: svc, registry: registry, runs: runRepo, lines: lineRepo}
}

func tileInput() SubmitInput {
	return SubmitInput{
		CategoryL1: "FINISH",
		WorkItems: []WorkItem{{
			Code:         "WI-001",
			CategoryCode: "FLOOR-TILE",
			Attributes:   map[string]float64{"area": 100},
		}},
		UnitPrices: map[string]float64{"TILE-60": 12.5},
	}
}

// --- tests -----------------------------------------------------------------

func TestSubmitSuccess(t *testing.T) {
	h := newHarness(t)

	run, err := h.svc.Submit(context.Background(), tileInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.Status != types.RunStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", run.Status)
	}
	if run.RuleSetVersion != testVersion {
		t.Fatalf("version = %s, want current %s", run.RuleSetVersion, testVersion)
	}
	if run.DurationMs == nil {
		t.Fatal("duration not recorded")
	}

	_, lines, err := h.svc.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	line := lines[0]
	if line.MaterialCode != "TILE-60" {
		t.Fatalf("material = %s, want TILE-60", line.MaterialCode)
	}
	if math.Abs(line.BaseQuantity-105) > 1e-9 {
		t.Fatalf("base = %v, want 105", line.BaseQuantity)
	}
	// waste factor row (0.048) outranks the material default (0.02)
	if math.Abs(line.WasteFactor-0.048) > 1e-9 {
		t.Fatalf("waste = %v, want 0.048", line.WasteFactor)
	}
	if math.Abs(line.FinalQuantity-110.04) > 1e-9 {
		t.Fatalf("final = %v, want 110.04", line.FinalQuantity)
	}
	if line.PackagingQuantity == nil || *line.PackagingQuantity != 77 {
		t.Fatalf("packaging = %v, want 77 boxes", line.PackagingQuantity)
	}
	if line.PackagingUnit != "box" {
		t.Fatalf("packaging unit = %s, want box", line.PackagingUnit)
	}
	if line.Subtotal == nil || math.Abs(*line.Subtotal-110.04*12.5) > 1e-6 {
		t.Fatalf("subtotal = %v, want %v", line.Subtotal, 110.04*12.5)
	}

	var trace types.LineTrace
	if err := json.Unmarshal(line.Trace, &trace); err != nil {
		t.Fatalf("trace: %v", err)
	}
	if trace.WasteSource != runsdomain.WasteSourceTable {
		t.Fatalf("waste source = %s, want %s", trace.WasteSource, runsdomain.WasteSourceTable)
	}
	if trace.Formula != "area * 1.05" {
		t.Fatalf("trace formula = %q", trace.Formula)
	}
	if trace.RuleID != uuid.MustParse(idA) {
		t.Fatalf("trace rule id = %s, want %s", trace.RuleID, idA)
	}

	var summary []types.MaterialTotal
	if err := json.Unmarshal(run.ResultSummary, &summary); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary) != 1 || summary[0].MaterialCode != "TILE-60" || math.Abs(summary[0].TotalQuantity-110.04) > 1e-9 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Submit(context.Background(), tileInput())
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := h.svc.Submit(context.Background(), tileInput())
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %s vs %s", first.ID, second.ID)
	}
	if second.Status != types.RunStatusSuccess {
		t.Fatalf("second status = %s, want SUCCESS", second.Status)
	}
	_, lines, err := h.svc.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (no re-execution)", len(lines))
	}
}

func TestNormalizeInputOrderIndependent(t *testing.T) {
	a := SubmitInput{
		CategoryL1: "FINISH",
		WorkItems: []WorkItem{
			{Code: "WI-002", CategoryCode: "FLOOR-TILE", Attributes: map[string]float64{"area": 50}},
			{Code: "WI-001", CategoryCode: "FLOOR-TILE", Attributes: map[string]float64{"area": 100}},
		},
	}
	b := SubmitInput{
		CategoryL1: "FINISH",
		WorkItems: []WorkItem{
			{Code: "WI-001", CategoryCode: "FLOOR-TILE", Attributes: map[string]float64{"area": 100}},
			{Code: "WI-002", CategoryCode: "FLOOR-TILE", Attributes: map[string]float64{"area": 50}},
		},
	}
	_, hashA, err := NormalizeInput(a, testVersion)
	if err != nil {
		t.Fatalf("normalize a: %v", err)
	}
	_, hashB, err := NormalizeInput(b, testVersion)
	if err != nil {
		t.Fatalf("normalize b: %v", err)
	}
	if hashA != hashB {
		t.Fatal("hashes differ for reordered work items")
	}

	_, hashOther, err := NormalizeInput(a, "2023Q4")
	if err != nil {
		t.Fatalf("normalize other version: %v", err)
	}
	if hashA == hashOther {
		t.Fatal("hash must include the rule set version")
	}
}

func TestSubmitPartial(t *testing.T) {
	h := newHarness(t)

	input := tileInput()
	input.WorkItems = append(input.WorkItems, WorkItem{
		Code:         "WI-BAD",
		CategoryCode: "TILING",
		RuleType:     types.RuleTypeDensity, // no DENSITY rule exists
		Attributes:   map[string]float64{"area": 10},
	})

	run, err := h.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.Status != types.RunStatusPartial {
		t.Fatalf("status = %s, want PARTIAL", run.Status)
	}

	var itemErrs []types.ItemError
	if err := json.Unmarshal(run.ErrorLog, &itemErrs); err != nil {
		t.Fatalf("error log: %v", err)
	}
	if len(itemErrs) != 1 {
		t.Fatalf("item errors = %d, want 1", len(itemErrs))
	}
	if itemErrs[0].WorkItemCode != "WI-BAD" || itemErrs[0].Reason != ItemErrNoMatch {
		t.Fatalf("item error = %+v", itemErrs[0])
	}

	_, lines, err := h.svc.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (good item still computed)", len(lines))
	}
}

func TestSubmitAllItemsFailed(t *testing.T) {
	h := newHarness(t)

	input := tileInput()
	input.WorkItems[0].Attributes = map[string]float64{} // formula needs "area"

	run, err := h.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.Status != types.RunStatusFailed {
		t.Fatalf("status = %s, want FAILED", run.Status)
	}
	if run.FailReason != types.FailReasonAllItems {
		t.Fatalf("fail reason = %s, want %s", run.FailReason, types.FailReasonAllItems)
	}

	var itemErrs []types.ItemError
	if err := json.Unmarshal(run.ErrorLog, &itemErrs); err != nil {
		t.Fatalf("error log: %v", err)
	}
	if len(itemErrs) != 1 || itemErrs[0].Reason != string(formula.KindUnknownVariable) {
		t.Fatalf("item errors = %+v", itemErrs)
	}
}

func TestSubmitPinsExplicitVersion(t *testing.T) {
	h := newHarness(t)

	input := tileInput()
	input.RuleSetVersion = "2023Q4"

	run, err := h.svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.RuleSetVersion != "2023Q4" {
		t.Fatalf("version = %s, want pinned 2023Q4", run.RuleSetVersion)
	}
	_, lines, err := h.svc.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// 2023Q4 uses rate 1.10; no waste row or packaging rule exists there, so
	// the material default (0.02) applies.
	if math.Abs(lines[0].BaseQuantity-110) > 1e-9 {
		t.Fatalf("base = %v, want 110 under the pinned version", lines[0].BaseQuantity)
	}
	if math.Abs(lines[0].WasteFactor-0.02) > 1e-9 {
		t.Fatalf("waste = %v, want material default 0.02", lines[0].WasteFactor)
	}
}

func TestSubmitUnknownVersion(t *testing.T) {
	h := newHarness(t)

	input := tileInput()
	input.RuleSetVersion = "1999Q1"
	if _, err := h.svc.Submit(context.Background(), input); !errors.Is(err, repos.ErrRuleSetNotFound) {
		t.Fatalf("err = %v, want ErrRuleSetNotFound", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name  string
		mut   func(*SubmitInput)
	}{
		{"no work items", func(in *SubmitInput) { in.WorkItems = nil }},
		{"unknown root", func(in *SubmitInput) { in.CategoryL1 = "NOPE" }},
		{"root not L1", func(in *SubmitInput) { in.CategoryL1 = "TILING" }},
		{"item outside root", func(in *SubmitInput) { in.WorkItems[0].CategoryCode = "SLAB-POUR" }},
		{"empty item code", func(in *SubmitInput) { in.WorkItems[0].Code = "" }},
		{"bad rule type", func(in *SubmitInput) { in.WorkItems[0].RuleType = "BOGUS" }},
		{"unknown material", func(in *SubmitInput) { in.WorkItems[0].MaterialCode = "NOPE" }},
	}
	for _, tc := range cases {
		input := tileInput()
		tc.mut(&input)
		if _, err := h.svc.Submit(context.Background(), input); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)

	pending := &types.CalculationRun{
		ID:             uuid.New(),
		CategoryL1:     "FINISH",
		RuleSetVersion: testVersion,
		InputSnapshot:  datatypes.JSON([]byte("{}")),
		InputHash:      "deadbeef",
	}
	if err := h.runs.CreatePending(dbctx.Context{Ctx: context.Background()}, pending); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	run, err := h.svc.Cancel(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if run.Status != types.RunStatusFailed || run.FailReason != types.FailReasonCancelled {
		t.Fatalf("run = %s/%s, want FAILED/CANCELLED", run.Status, run.FailReason)
	}

	// Cancelling a terminal run returns it unchanged.
	again, err := h.svc.Cancel(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Cancel again: %v", err)
	}
	if again.Status != types.RunStatusFailed || again.FailReason != types.FailReasonCancelled {
		t.Fatalf("second cancel = %s/%s", again.Status, again.FailReason)
	}
}

func TestCancelUnknownRun(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGetUnknownRun(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestBindVariablesSources(t *testing.T) {
	decl, _ := json.Marshal(map[string]string{
		"a":    "item.area",
		"d":    "material.density",
		"gfa":  "building.gross_floor_area",
		"bare": "thickness",
	})
	rule := &types.ConversionRule{Variables: datatypes.JSON(decl)}
	density := 2400.0
	material := &types.MaterialMaster{Code: "RMC-C30", Density: &density}
	item := WorkItem{
		Code:       "WI-001",
		Attributes: map[string]float64{"area": 100, "thickness": 0.15},
	}

	vars, itemErr := bindVariables(item, rule, material, map[string]float64{"gross_floor_area": 500})
	if itemErr != nil {
		t.Fatalf("bind: %+v", itemErr)
	}
	want := map[string]float64{"a": 100, "d": 2400, "gfa": 500, "bare": 0.15, "area": 100, "thickness": 0.15}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%s] = %v, want %v", k, vars[k], v)
		}
	}
}

func TestBindVariablesMissingSource(t *testing.T) {
	decl, _ := json.Marshal(map[string]string{"d": "material.density"})
	rule := &types.ConversionRule{Variables: datatypes.JSON(decl)}
	item := WorkItem{Code: "WI-001", Attributes: map[string]float64{}}

	_, itemErr := bindVariables(item, rule, &types.MaterialMaster{Code: "X"}, nil)
	if itemErr == nil || itemErr.Reason != string(formula.KindUnknownVariable) {
		t.Fatalf("itemErr = %+v, want UNKNOWN_VARIABLE", itemErr)
	}
}

func TestWorkerPicksUpAbandonedRun(t *testing.T) {
	h := newHarness(t)

	snapshot, hash, err := NormalizeInput(tileInput(), testVersion)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	abandoned := &types.CalculationRun{
		ID:             uuid.New(),
		CategoryL1:     "FINISH",
		RuleSetVersion: testVersion,
		InputSnapshot:  datatypes.JSON(snapshot),
		InputHash:      hash,
	}
	if err := h.runs.CreatePending(dbctx.Context{Ctx: context.Background()}, abandoned); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	// Backdate so the claim age gate passes.
	h.runs.mu.Lock()
	h.runs.rows[abandoned.ID].CreatedAt = time.Now().Add(-time.Hour)
	h.runs.mu.Unlock()

	h.svc.(*calculationService).drainPending(context.Background())

	run, _, err := h.svc.Get(context.Background(), abandoned.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != types.RunStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS after worker pickup", run.Status)
	}
}
