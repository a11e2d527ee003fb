package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/formula"
	"github.com/buildwise/takeoff-backend/internal/platform/apierr"
	"github.com/buildwise/takeoff-backend/internal/platform/ctxutil"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
	"github.com/buildwise/takeoff-backend/internal/taxonomy"
	"github.com/buildwise/takeoff-backend/internal/units"
)

// ErrValidation rejects malformed submissions before any run is created.
var ErrValidation = errors.New("validation failed")

// ErrRunNotFound is returned by Get/Cancel for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Per-item failure reasons recorded in the run's error log.
const (
	ItemErrNoMatch           = "NO_MATCH"
	ItemErrIncompatibleUnits = "INCOMPATIBLE_UNITS"
	ItemErrUnknownMaterial   = "UNKNOWN_MATERIAL"
	ItemErrInvalidPackaging  = "INVALID_PACKAGING"
)

type WorkItem struct {
	Code         string             `json:"code"`
	CategoryCode string             `json:"category_code"`
	MaterialCode string             `json:"material_code,omitempty"`
	RuleType     types.RuleType     `json:"rule_type,omitempty"`
	Attributes   map[string]float64 `json:"attributes"`
}

type SubmitInput struct {
	ProjectID      *uuid.UUID         `json:"project_id,omitempty"`
	CategoryL1     string             `json:"category_l1"`
	RuleSetVersion string             `json:"rule_set_version,omitempty"`
	WorkItems      []WorkItem         `json:"work_items"`
	BuildingParams map[string]float64 `json:"building_params,omitempty"`
	UnitPrices     map[string]float64 `json:"unit_prices,omitempty"`
}

type CalculationConfig struct {
	ItemConcurrency int
	MaxRunDuration  time.Duration
	PersistAttempts int
	PersistBackoff  time.Duration
	WorkerPoll      time.Duration
	ClaimMinAge     time.Duration
}

func DefaultCalculationConfig() CalculationConfig {
	return CalculationConfig{
		ItemConcurrency: 8,
		MaxRunDuration:  2 * time.Minute,
		PersistAttempts: 3,
		PersistBackoff:  200 * time.Millisecond,
		WorkerPoll:      5 * time.Second,
		ClaimMinAge:     30 * time.Second,
	}
}

type CalculationService interface {
	// Submit creates (or revisits) a calculation run for the input. Two
	// submissions of the same normalized input against the same rule set
	// version converge on one run.
	Submit(ctx context.Context, input SubmitInput) (*types.CalculationRun, error)
	Get(ctx context.Context, id uuid.UUID) (*types.CalculationRun, []*types.BreakdownLine, error)
	// Cancel force-fails a non-terminal run; terminal runs are returned
	// unchanged.
	Cancel(ctx context.Context, id uuid.UUID) (*types.CalculationRun, error)
	// StartWorker picks up PENDING runs abandoned by crashed submitters.
	StartWorker(ctx context.Context)
}

type calculationService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg CalculationConfig

	tree      *taxonomy.Tree
	registry  RuleSetRegistry
	resolver  RuleResolver
	waste     WasteResolver
	converter *units.Converter
	formulas  *formula.Cache

	materials repos.MaterialRepo
	runs      repos.CalculationRunRepo
	lines     repos.BreakdownLineRepo

	notifier RunNotifier
}

func NewCalculationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg CalculationConfig,
	tree *taxonomy.Tree,
	registry RuleSetRegistry,
	resolver RuleResolver,
	waste WasteResolver,
	converter *units.Converter,
	formulas *formula.Cache,
	materials repos.MaterialRepo,
	runs repos.CalculationRunRepo,
	lines repos.BreakdownLineRepo,
	notifier RunNotifier,
) CalculationService {
	if notifier == nil {
		notifier = NewNopRunNotifier()
	}
	return &calculationService{
		db:        db,
		log:       baseLog.With("service", "CalculationService"),
		cfg:       cfg,
		tree:      tree,
		registry:  registry,
		resolver:  resolver,
		waste:     waste,
		converter: converter,
		formulas:  formulas,
		materials: materials,
		runs:      runs,
		lines:     lines,
		notifier:  notifier,
	}
}

func (s *calculationService) Submit(ctx context.Context, input SubmitInput) (*types.CalculationRun, error) {
	if td := ctxutil.GetTraceData(ctx); td != nil {
		s.log.Debug("Submit received", "request_id", td.RequestID, "items", len(input.WorkItems))
	}
	if err := s.validate(ctx, &input); err != nil {
		return nil, apierr.New(http.StatusUnprocessableEntity, "invalid_input", err)
	}

	version := input.RuleSetVersion
	if version == "" {
		current, err := s.registry.Current(ctx)
		if err != nil {
			return nil, err
		}
		version = current.Version
	} else {
		if _, err := s.registry.Version(ctx, version); err != nil {
			return nil, err
		}
	}

	snapshot, hash, err := NormalizeInput(input, version)
	if err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	if existing, err := s.runs.GetByInputHash(dbc, hash, version); err != nil {
		return nil, err
	} else if existing != nil {
		s.log.Debug("Submit deduplicated", "run_id", existing.ID, "status", existing.Status)
		return existing, nil
	}

	run := &types.CalculationRun{
		ID:             uuid.New(),
		ProjectID:      input.ProjectID,
		CategoryL1:     input.CategoryL1,
		RuleSetVersion: version,
		InputSnapshot:  datatypes.JSON(snapshot),
		InputHash:      hash,
	}
	if err := s.runs.CreatePending(dbc, run); err != nil {
		if errors.Is(err, repos.ErrDuplicateInput) {
			// Lost the insert race: the winner owns execution.
			return s.runs.GetByInputHash(dbc, hash, version)
		}
		return nil, err
	}

	claimed, err := s.runs.Claim(dbc, run.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.runs.GetByID(dbc, run.ID)
	}
	return s.execute(ctx, run, input)
}

func (s *calculationService) Get(ctx context.Context, id uuid.UUID) (*types.CalculationRun, []*types.BreakdownLine, error) {
	dbc := dbctx.Context{Ctx: ctx}
	run, err := s.runs.GetByID(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, apierr.New(http.StatusNotFound, "run_not_found", fmt.Errorf("%w: %s", ErrRunNotFound, id))
	}
	lines, err := s.lines.ListByRunID(dbc, id)
	if err != nil {
		return nil, nil, err
	}
	return run, lines, nil
}

func (s *calculationService) Cancel(ctx context.Context, id uuid.UUID) (*types.CalculationRun, error) {
	dbc := dbctx.Context{Ctx: ctx}
	cancelled, err := s.runs.MarkFailed(dbc, id, types.FailReasonCancelled)
	if err != nil {
		return nil, err
	}
	run, err := s.runs.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.New(http.StatusNotFound, "run_not_found", fmt.Errorf("%w: %s", ErrRunNotFound, id))
	}
	if cancelled {
		s.log.Info("Run cancelled", "run_id", id)
		s.notifier.PublishStatus(ctx, run)
	}
	return run, nil
}

func (s *calculationService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.WorkerPoll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.drainPending(ctx)
			}
		}
	}()
}

func (s *calculationService) drainPending(ctx context.Context) {
	dbc := dbctx.Context{Ctx: ctx}
	for {
		run, err := s.runs.ClaimNextPending(dbc, s.cfg.ClaimMinAge)
		if err != nil {
			s.log.Warn("Claim pending run failed", "error", err)
			return
		}
		if run == nil {
			return
		}
		var input SubmitInput
		if err := json.Unmarshal(run.InputSnapshot, &input); err != nil {
			s.log.Error("Run snapshot unreadable", "run_id", run.ID, "error", err)
			_, _ = s.runs.MarkFailed(dbc, run.ID, types.FailReasonPersistence)
			continue
		}
		if _, err := s.execute(ctx, run, input); err != nil {
			s.log.Warn("Reclaimed run execution failed", "run_id", run.ID, "error", err)
		}
	}
}

// execute walks every work item of a claimed RUNNING run, then finalizes.
// Item failures land in the error log without aborting the run.
func (s *calculationService) execute(ctx context.Context, run *types.CalculationRun, input SubmitInput) (*types.CalculationRun, error) {
	started := time.Now()
	run.Status = types.RunStatusRunning
	s.notifier.PublishStatus(ctx, run)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.MaxRunDuration)
	defer cancel()

	version := run.RuleSetVersion
	dbc := dbctx.Context{Ctx: ctx}

	// Resolve rules up front; resolution reads only the immutable version
	// cache, so the fan-out below stays free of shared mutable state.
	var (
		ready    []resolvedItem
		itemErrs []types.ItemError
	)
	for _, item := range input.WorkItems {
		l1, l2, l3, err := s.tree.ScopeOf(item.CategoryCode)
		if err != nil {
			itemErrs = append(itemErrs, types.ItemError{WorkItemCode: item.Code, Reason: ItemErrNoMatch, Detail: err.Error()})
			continue
		}
		scope := Scope{L1: l1, L2: l2, L3: l3, MaterialCode: item.MaterialCode}
		ruleType := item.RuleType
		if ruleType == "" {
			ruleType = types.RuleTypeAssembly
		}
		rule, err := s.resolver.Resolve(runCtx, version, ruleType, scope)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				itemErrs = append(itemErrs, types.ItemError{
					WorkItemCode: item.Code,
					Reason:       ItemErrNoMatch,
					Detail:       err.Error(),
				})
				continue
			}
			return nil, s.failRun(dbc, run, types.FailReasonPersistence, err)
		}
		ready = append(ready, resolvedItem{item: item, scope: scope, rule: rule})
	}

	materials, err := s.loadMaterials(dbc, ready)
	if err != nil {
		return nil, s.failRun(dbc, run, types.FailReasonPersistence, err)
	}

	outcomes := make([]*types.BreakdownLine, len(ready))
	failures := make([]*types.ItemError, len(ready))
	g, gCtx := errgroup.WithContext(runCtx)
	g.SetLimit(s.cfg.ItemConcurrency)
	for i := range ready {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			r := ready[i]
			mat := materials[materialCodeFor(r.rule, r.item)]
			line, itemErr := s.computeLine(gCtx, run, version, r.item, r.scope, r.rule, mat, input)
			outcomes[i] = line
			failures[i] = itemErr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, s.failRun(dbc, run, types.FailReasonTimeout, err)
		}
		return nil, s.failRun(dbc, run, types.FailReasonPersistence, err)
	}
	if runCtx.Err() != nil {
		return nil, s.failRun(dbc, run, types.FailReasonTimeout, runCtx.Err())
	}

	var lines []*types.BreakdownLine
	for i := range ready {
		if failures[i] != nil {
			itemErrs = append(itemErrs, *failures[i])
			continue
		}
		if outcomes[i] != nil {
			lines = append(lines, outcomes[i])
		}
	}

	if err := s.persistWithRetry(ctx, func() error {
		_, err := s.lines.Append(dbc, lines)
		return err
	}); err != nil {
		return nil, s.failRun(dbc, run, types.FailReasonPersistence, err)
	}

	status := types.RunStatusSuccess
	var reason types.FailReason
	switch {
	case len(lines) == 0:
		status = types.RunStatusFailed
		reason = types.FailReasonAllItems
	case len(itemErrs) > 0:
		status = types.RunStatusPartial
	}

	summaryJSON, _ := json.Marshal(summarize(lines))
	errLogJSON, _ := json.Marshal(itemErrs)
	durationMs := time.Since(started).Milliseconds()
	updates := map[string]interface{}{
		"result_summary": datatypes.JSON(summaryJSON),
		"error_log":      datatypes.JSON(errLogJSON),
		"duration_ms":    durationMs,
	}
	if reason != "" {
		updates["fail_reason"] = string(reason)
	}
	if err := s.persistWithRetry(ctx, func() error {
		_, err := s.runs.Finalize(dbc, run.ID, status, updates)
		return err
	}); err != nil {
		return nil, s.failRun(dbc, run, types.FailReasonPersistence, err)
	}

	final, err := s.runs.GetByID(dbc, run.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Run finished",
		"run_id", run.ID,
		"status", status,
		"lines", len(lines),
		"item_errors", len(itemErrs),
		"duration_ms", durationMs,
	)
	s.notifier.PublishStatus(ctx, final)
	return final, nil
}

func (s *calculationService) computeLine(
	ctx context.Context,
	run *types.CalculationRun,
	version string,
	item WorkItem,
	scope Scope,
	rule *types.ConversionRule,
	material *types.MaterialMaster,
	input SubmitInput,
) (*types.BreakdownLine, *types.ItemError) {
	materialCode := materialCodeFor(rule, item)
	if materialCode == "" {
		return nil, &types.ItemError{WorkItemCode: item.Code, Reason: ItemErrUnknownMaterial, Detail: "rule has no target material and the item declares none"}
	}

	vars, itemErr := bindVariables(item, rule, material, input.BuildingParams)
	if itemErr != nil {
		return nil, itemErr
	}

	compiled, err := s.formulas.Get(rule.ID.String(), rule.Formula)
	if err != nil {
		return nil, formulaItemError(item.Code, err)
	}
	base, err := compiled.Eval(vars)
	if err != nil {
		return nil, formulaItemError(item.Code, err)
	}

	wasteScope := scope
	wasteScope.MaterialCode = materialCode
	wasteFactor, wasteSource, err := s.waste.Resolve(ctx, version, wasteScope, vars, material)
	if err != nil {
		return nil, formulaItemError(item.Code, err)
	}
	final := base * (1 + wasteFactor)

	unit := rule.OutputUnit
	if material != nil && material.BaseUnit != "" && material.BaseUnit != unit {
		converted, err := s.converter.Convert(materialCode, final, unit, material.BaseUnit)
		if err != nil {
			return nil, &types.ItemError{WorkItemCode: item.Code, Reason: ItemErrIncompatibleUnits, Detail: err.Error()}
		}
		final = converted
		unit = material.BaseUnit
	}

	trace := types.LineTrace{
		RuleID:         rule.ID,
		RuleType:       string(rule.RuleType),
		RuleSetVersion: version,
		Formula:        rule.Formula,
		Variables:      vars,
		BaseQuantity:   base,
		WasteFactor:    wasteFactor,
		WasteSource:    wasteSource,
		FinalQuantity:  final,
	}

	line := &types.BreakdownLine{
		ID:                 uuid.New(),
		RunID:              run.ID,
		SourceWorkItemCode: item.Code,
		CategoryL1:         scope.L1,
		CategoryL2:         scope.L2,
		CategoryL3:         scope.L3,
		MaterialCode:       materialCode,
		BaseQuantity:       base,
		WasteFactor:        wasteFactor,
		FinalQuantity:      final,
		Unit:               unit,
	}

	// Packaging is its own rule type: the formula yields the package size
	// and the rule's output unit names the package. No match leaves the
	// line unpackaged.
	pkgRule, err := s.resolver.Resolve(ctx, version, types.RuleTypePackaging, wasteScope)
	if err != nil && !errors.Is(err, ErrNoMatch) {
		return nil, &types.ItemError{WorkItemCode: item.Code, Reason: ItemErrInvalidPackaging, Detail: err.Error()}
	}
	if pkgRule != nil {
		pkgCompiled, cErr := s.formulas.Get(pkgRule.ID.String(), pkgRule.Formula)
		if cErr != nil {
			return nil, formulaItemError(item.Code, cErr)
		}
		size, eErr := pkgCompiled.Eval(vars)
		if eErr != nil {
			return nil, formulaItemError(item.Code, eErr)
		}
		count, pErr := units.ToPackaging(final, size)
		if pErr != nil {
			return nil, &types.ItemError{WorkItemCode: item.Code, Reason: ItemErrInvalidPackaging, Detail: pErr.Error()}
		}
		line.PackagingUnit = pkgRule.OutputUnit
		line.PackagingQuantity = &count
		trace.PackagingSize = size
	}

	if price, ok := input.UnitPrices[materialCode]; ok {
		subtotal := final * price
		line.UnitPrice = &price
		line.Subtotal = &subtotal
	}

	traceJSON, _ := json.Marshal(trace)
	line.Trace = datatypes.JSON(traceJSON)
	return line, nil
}

func (s *calculationService) validate(ctx context.Context, input *SubmitInput) error {
	if len(input.WorkItems) == 0 {
		return fmt.Errorf("%w: at least one work item required", ErrValidation)
	}
	root, err := s.tree.Resolve(input.CategoryL1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if root.Level != types.CategoryLevelDomain {
		return fmt.Errorf("%w: %s is not an L1 category", ErrValidation, input.CategoryL1)
	}
	dbc := dbctx.Context{Ctx: ctx}
	for i, item := range input.WorkItems {
		if item.Code == "" {
			return fmt.Errorf("%w: work item %d has no code", ErrValidation, i)
		}
		if item.RuleType != "" && !item.RuleType.Valid() {
			return fmt.Errorf("%w: work item %s has invalid rule type %q", ErrValidation, item.Code, item.RuleType)
		}
		l1, _, _, err := s.tree.ScopeOf(item.CategoryCode)
		if err != nil {
			return fmt.Errorf("%w: work item %s: %v", ErrValidation, item.Code, err)
		}
		if l1 != input.CategoryL1 {
			return fmt.Errorf("%w: work item %s is outside category %s", ErrValidation, item.Code, input.CategoryL1)
		}
		if item.MaterialCode != "" {
			mat, err := s.materials.GetByCode(dbc, item.MaterialCode)
			if err != nil {
				return err
			}
			if mat == nil {
				return fmt.Errorf("%w: work item %s references unknown material %s", ErrValidation, item.Code, item.MaterialCode)
			}
		}
	}
	return nil
}

// resolvedItem is a work item paired with the rule that will drive it.
type resolvedItem struct {
	item  WorkItem
	scope Scope
	rule  *types.ConversionRule
}

func (s *calculationService) loadMaterials(dbc dbctx.Context, ready []resolvedItem) (map[string]*types.MaterialMaster, error) {
	seen := map[string]bool{}
	var codes []string
	add := func(code string) {
		if code != "" && !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	for _, r := range ready {
		add(r.rule.TargetMaterial)
		add(r.item.MaterialCode)
	}
	rows, err := s.materials.GetByCodes(dbc, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*types.MaterialMaster, len(rows))
	for _, m := range rows {
		out[m.Code] = m
	}
	return out, nil
}

func (s *calculationService) failRun(dbc dbctx.Context, run *types.CalculationRun, reason types.FailReason, cause error) error {
	s.log.Error("Run failed", "run_id", run.ID, "reason", reason, "error", cause)
	if _, err := s.runs.MarkFailed(dbc, run.ID, reason); err != nil {
		s.log.Error("Marking run failed also failed", "run_id", run.ID, "error", err)
	}
	if failed, err := s.runs.GetByID(dbc, run.ID); err == nil && failed != nil {
		s.notifier.PublishStatus(dbc.Ctx, failed)
	}
	return fmt.Errorf("run %s failed (%s): %w", run.ID, reason, cause)
}

func (s *calculationService) persistWithRetry(ctx context.Context, op func() error) error {
	backoff := s.cfg.PersistBackoff
	var err error
	for attempt := 0; attempt < s.cfg.PersistAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func materialCodeFor(rule *types.ConversionRule, item WorkItem) string {
	if rule.TargetMaterial != "" {
		return rule.TargetMaterial
	}
	return item.MaterialCode
}

// bindVariables builds the evaluation namespace. With no declared mapping
// the item's attributes bind directly; declared entries rebind names from
// item.*, material.* or building.* sources.
func bindVariables(item WorkItem, rule *types.ConversionRule, material *types.MaterialMaster, building map[string]float64) (map[string]float64, *types.ItemError) {
	vars := make(map[string]float64, len(item.Attributes))
	for k, v := range item.Attributes {
		vars[k] = v
	}

	var decl map[string]string
	if len(rule.Variables) > 0 {
		if err := json.Unmarshal(rule.Variables, &decl); err != nil {
			return nil, &types.ItemError{WorkItemCode: item.Code, Reason: string(formula.KindSyntax), Detail: "unreadable variable declarations"}
		}
	}
	for name, source := range decl {
		val, ok := lookupSource(source, item, material, building)
		if !ok {
			return nil, &types.ItemError{
				WorkItemCode: item.Code,
				Reason:       string(formula.KindUnknownVariable),
				Detail:       fmt.Sprintf("%s <- %s", name, source),
			}
		}
		vars[name] = val
	}
	return vars, nil
}

func lookupSource(source string, item WorkItem, material *types.MaterialMaster, building map[string]float64) (float64, bool) {
	switch {
	case strings.HasPrefix(source, "item."):
		v, ok := item.Attributes[strings.TrimPrefix(source, "item.")]
		return v, ok
	case strings.HasPrefix(source, "material."):
		if material == nil {
			return 0, false
		}
		switch strings.TrimPrefix(source, "material.") {
		case "density":
			if material.Density == nil {
				return 0, false
			}
			return *material.Density, true
		case "unit_weight":
			if material.UnitWeight == nil {
				return 0, false
			}
			return *material.UnitWeight, true
		case "default_waste_factor":
			return material.DefaultWasteFactor, true
		default:
			return 0, false
		}
	case strings.HasPrefix(source, "building."):
		v, ok := building[strings.TrimPrefix(source, "building.")]
		return v, ok
	default:
		v, ok := item.Attributes[source]
		return v, ok
	}
}

func formulaItemError(code string, err error) *types.ItemError {
	if fe, ok := IsFormulaError(err); ok {
		return &types.ItemError{WorkItemCode: code, Reason: string(fe.Kind), Detail: fe.Msg}
	}
	return &types.ItemError{WorkItemCode: code, Reason: string(formula.KindSyntax), Detail: err.Error()}
}

func summarize(lines []*types.BreakdownLine) []types.MaterialTotal {
	byCode := map[string]*types.MaterialTotal{}
	for _, l := range lines {
		t, ok := byCode[l.MaterialCode]
		if !ok {
			t = &types.MaterialTotal{MaterialCode: l.MaterialCode, Unit: l.Unit}
			byCode[l.MaterialCode] = t
		}
		t.TotalQuantity += l.FinalQuantity
	}
	out := make([]types.MaterialTotal, 0, len(byCode))
	for _, t := range byCode {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialCode < out[j].MaterialCode })
	return out
}

// NormalizeInput produces the canonical snapshot and its hash. Work items
// sort by code and the pinned version joins the digest, so semantically
// identical submissions always collide.
func NormalizeInput(input SubmitInput, version string) ([]byte, string, error) {
	normalized := input
	normalized.RuleSetVersion = ""
	normalized.WorkItems = make([]WorkItem, len(input.WorkItems))
	copy(normalized.WorkItems, input.WorkItems)
	sort.Slice(normalized.WorkItems, func(i, j int) bool {
		return normalized.WorkItems[i].Code < normalized.WorkItems[j].Code
	})
	snapshot, err := json.Marshal(normalized)
	if err != nil {
		return nil, "", err
	}
	h := sha256.New()
	h.Write(snapshot)
	h.Write([]byte("|"))
	h.Write([]byte(version))
	return snapshot, hex.EncodeToString(h.Sum(nil)), nil
}
