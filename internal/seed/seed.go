// Package seed loads reference data (taxonomy, materials, rule sets,
// building profiles, unit conversions) from a YAML file at startup.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gopkg.in/yaml.v3"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/formula"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
	"github.com/buildwise/takeoff-backend/internal/units"
)

type File struct {
	Categories []Category        `yaml:"categories"`
	Materials  []Material        `yaml:"materials"`
	RuleSets   []RuleSet         `yaml:"rule_sets"`
	Profiles   []BuildingProfile `yaml:"building_profiles"`
	Units      []UnitConversion  `yaml:"unit_conversions"`
}

type Category struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Level       int    `yaml:"level"`
	ParentCode  string `yaml:"parent_code"`
	DefaultUnit string `yaml:"default_unit"`
}

type Material struct {
	Code               string   `yaml:"code"`
	Name               string   `yaml:"name"`
	CategoryL1         string   `yaml:"category_l1"`
	CategoryL2         string   `yaml:"category_l2"`
	BaseUnit           string   `yaml:"base_unit"`
	Density            *float64 `yaml:"density"`
	UnitWeight         *float64 `yaml:"unit_weight"`
	DefaultWasteFactor float64  `yaml:"default_waste_factor"`
}

type RuleSet struct {
	Version string        `yaml:"version"`
	Current bool          `yaml:"current"`
	Rules   []Rule        `yaml:"rules"`
	Waste   []WasteFactor `yaml:"waste_factors"`
}

type Rule struct {
	RuleType       string            `yaml:"rule_type"`
	CategoryL1     string            `yaml:"category_l1"`
	CategoryL2     string            `yaml:"category_l2"`
	CategoryL3     string            `yaml:"category_l3"`
	SourceMaterial string            `yaml:"source_material"`
	TargetMaterial string            `yaml:"target_material"`
	Formula        string            `yaml:"formula"`
	Variables      map[string]string `yaml:"variables"`
	OutputUnit     string            `yaml:"output_unit"`
	Priority       int               `yaml:"priority"`
}

type WasteFactor struct {
	CategoryL1   string  `yaml:"category_l1"`
	CategoryL2   string  `yaml:"category_l2"`
	MaterialCode string  `yaml:"material_code"`
	Factor       float64 `yaml:"factor"`
	Scenario     string  `yaml:"scenario"`
}

type BuildingProfile struct {
	Code          string            `yaml:"code"`
	StructureType string            `yaml:"structure_type"`
	Usage         string            `yaml:"usage"`
	MinFloors     int               `yaml:"min_floors"`
	MaxFloors     *int              `yaml:"max_floors"`
	Factors       map[string]Factor `yaml:"factors"`
}

type Factor struct {
	Factor float64 `yaml:"factor"`
	Unit   string  `yaml:"unit"`
}

type UnitConversion struct {
	MaterialCode string  `yaml:"material_code"`
	FromUnit     string  `yaml:"from_unit"`
	ToUnit       string  `yaml:"to_unit"`
	Factor       float64 `yaml:"factor"`
}

type Loader struct {
	db  *gorm.DB
	log *logger.Logger

	categories repos.CategoryRepo
	materials  repos.MaterialRepo
	ruleSets   repos.RuleSetRepo
	rules      repos.ConversionRuleRepo
	waste      repos.WasteFactorRepo
	profiles   repos.BuildingProfileRepo
	converter  *units.Converter
}

func NewLoader(
	db *gorm.DB,
	baseLog *logger.Logger,
	categories repos.CategoryRepo,
	materials repos.MaterialRepo,
	ruleSets repos.RuleSetRepo,
	rules repos.ConversionRuleRepo,
	waste repos.WasteFactorRepo,
	profiles repos.BuildingProfileRepo,
	converter *units.Converter,
) *Loader {
	return &Loader{
		db:         db,
		log:        baseLog.With("service", "SeedLoader"),
		categories: categories,
		materials:  materials,
		ruleSets:   ruleSets,
		rules:      rules,
		waste:      waste,
		profiles:   profiles,
		converter:  converter,
	}
}

// LoadFile parses path and applies its contents inside one transaction.
// Already-seeded rows (matched by code or version) are skipped, so the
// loader is safe to run on every boot.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if err := l.validate(&f); err != nil {
		return err
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := l.seedCategories(dbc, f.Categories); err != nil {
			return err
		}
		if err := l.seedMaterials(dbc, f.Materials); err != nil {
			return err
		}
		for _, rs := range f.RuleSets {
			if err := l.seedRuleSet(dbc, rs); err != nil {
				return err
			}
		}
		return l.seedProfiles(dbc, f.Profiles)
	})
	if err != nil {
		return err
	}

	for _, u := range f.Units {
		l.converter.Register(units.Conversion{
			MaterialCode: u.MaterialCode,
			FromUnit:     u.FromUnit,
			ToUnit:       u.ToUnit,
			Factor:       u.Factor,
		})
	}

	l.log.Info("Seed applied",
		"categories", len(f.Categories),
		"materials", len(f.Materials),
		"rule_sets", len(f.RuleSets),
		"profiles", len(f.Profiles),
		"unit_conversions", len(f.Units),
	)
	return nil
}

// validate compiles every formula before anything touches the database, so
// a broken seed file fails whole.
func (l *Loader) validate(f *File) error {
	currents := 0
	for _, rs := range f.RuleSets {
		if rs.Version == "" {
			return fmt.Errorf("rule set with empty version")
		}
		if rs.Current {
			currents++
		}
		for i, rule := range rs.Rules {
			if !types.RuleType(rule.RuleType).Valid() {
				return fmt.Errorf("rule set %s rule %d: invalid rule type %q", rs.Version, i, rule.RuleType)
			}
			if _, err := formula.Compile(rule.Formula); err != nil {
				return fmt.Errorf("rule set %s rule %d: %w", rs.Version, i, err)
			}
		}
	}
	if currents > 1 {
		return fmt.Errorf("%d rule sets marked current, at most one may be", currents)
	}
	for _, u := range f.Units {
		if u.Factor <= 0 {
			return fmt.Errorf("unit conversion %s->%s: factor must be positive", u.FromUnit, u.ToUnit)
		}
	}
	return nil
}

func (l *Loader) seedCategories(dbc dbctx.Context, rows []Category) error {
	for _, c := range rows {
		existing, err := l.categories.GetByCode(dbc, c.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		_, err = l.categories.Create(dbc, []*types.CategoryNode{{
			ID:          uuid.New(),
			Code:        c.Code,
			Name:        c.Name,
			Level:       c.Level,
			ParentCode:  c.ParentCode,
			DefaultUnit: c.DefaultUnit,
		}})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) seedMaterials(dbc dbctx.Context, rows []Material) error {
	for _, m := range rows {
		existing, err := l.materials.GetByCode(dbc, m.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		_, err = l.materials.Create(dbc, []*types.MaterialMaster{{
			ID:                 uuid.New(),
			Code:               m.Code,
			Name:               m.Name,
			CategoryL1:         m.CategoryL1,
			CategoryL2:         m.CategoryL2,
			BaseUnit:           m.BaseUnit,
			Density:            m.Density,
			UnitWeight:         m.UnitWeight,
			DefaultWasteFactor: m.DefaultWasteFactor,
		}})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) seedRuleSet(dbc dbctx.Context, rs RuleSet) error {
	existing, err := l.ruleSets.GetByVersion(dbc, rs.Version)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if _, err := l.ruleSets.Create(dbc, []*types.RuleSet{{
		Version:       rs.Version,
		IsCurrent:     rs.Current,
		EffectiveFrom: time.Now(),
	}}); err != nil {
		return err
	}

	ruleRows := make([]*types.ConversionRule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		var varsJSON datatypes.JSON
		if len(r.Variables) > 0 {
			raw, err := json.Marshal(r.Variables)
			if err != nil {
				return err
			}
			varsJSON = datatypes.JSON(raw)
		}
		ruleRows = append(ruleRows, &types.ConversionRule{
			ID:             uuid.New(),
			RuleSetVersion: rs.Version,
			RuleType:       types.RuleType(r.RuleType),
			CategoryL1:     r.CategoryL1,
			CategoryL2:     r.CategoryL2,
			CategoryL3:     r.CategoryL3,
			SourceMaterial: r.SourceMaterial,
			TargetMaterial: r.TargetMaterial,
			Formula:        r.Formula,
			Variables:      varsJSON,
			OutputUnit:     r.OutputUnit,
			Priority:       r.Priority,
		})
	}
	if _, err := l.rules.Create(dbc, ruleRows); err != nil {
		return err
	}

	wasteRows := make([]*types.WasteFactor, 0, len(rs.Waste))
	for _, w := range rs.Waste {
		wasteRows = append(wasteRows, &types.WasteFactor{
			ID:             uuid.New(),
			RuleSetVersion: rs.Version,
			CategoryL1:     w.CategoryL1,
			CategoryL2:     w.CategoryL2,
			MaterialCode:   w.MaterialCode,
			Factor:         w.Factor,
			Scenario:       w.Scenario,
		})
	}
	_, err = l.waste.Create(dbc, wasteRows)
	return err
}

func (l *Loader) seedProfiles(dbc dbctx.Context, rows []BuildingProfile) error {
	var create []*types.BuildingProfile
	for _, p := range rows {
		existing, err := l.profiles.GetByCode(dbc, p.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		factors := make(map[string]types.ProfileFactor, len(p.Factors))
		for name, f := range p.Factors {
			factors[name] = types.ProfileFactor{Factor: f.Factor, Unit: f.Unit}
		}
		raw, err := json.Marshal(factors)
		if err != nil {
			return err
		}
		create = append(create, &types.BuildingProfile{
			ID:            uuid.New(),
			Code:          p.Code,
			StructureType: p.StructureType,
			Usage:         p.Usage,
			MinFloors:     p.MinFloors,
			MaxFloors:     p.MaxFloors,
			Factors:       datatypes.JSON(raw),
		})
	}
	_, err := l.profiles.Create(dbc, create)
	return err
}
