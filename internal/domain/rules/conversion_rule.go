package rules

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RuleType string

const (
	RuleTypeUnit      RuleType = "UNIT"
	RuleTypeDensity   RuleType = "DENSITY"
	RuleTypeAssembly  RuleType = "ASSEMBLY"
	RuleTypeWaste     RuleType = "WASTE"
	RuleTypePackaging RuleType = "PACKAGING"
	RuleTypeScenario  RuleType = "SCENARIO"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeUnit, RuleTypeDensity, RuleTypeAssembly, RuleTypeWaste, RuleTypePackaging, RuleTypeScenario:
		return true
	default:
		return false
	}
}

// ConversionRule turns work-item parameters into a material quantity.
// Empty scope columns act as wildcards; populated columns must equal the
// query scope exactly.
type ConversionRule struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RuleSetVersion string         `gorm:"column:rule_set_version;not null;index" json:"rule_set_version"`
	RuleType       RuleType       `gorm:"column:rule_type;not null;index" json:"rule_type"`
	CategoryL1     string         `gorm:"column:category_l1;index" json:"category_l1,omitempty"`
	CategoryL2     string         `gorm:"column:category_l2;index" json:"category_l2,omitempty"`
	CategoryL3     string         `gorm:"column:category_l3;index" json:"category_l3,omitempty"`
	SourceMaterial string         `gorm:"column:source_material" json:"source_material,omitempty"`
	TargetMaterial string         `gorm:"column:target_material;not null" json:"target_material"`
	Formula        string         `gorm:"column:formula;not null" json:"formula"`
	Variables      datatypes.JSON `gorm:"column:variables;type:jsonb" json:"variables"`
	OutputUnit     string         `gorm:"column:output_unit;not null" json:"output_unit"`
	Priority       int            `gorm:"column:priority;not null;default:0" json:"priority"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConversionRule) TableName() string { return "conversion_rule" }

// Specificity counts populated scope columns. A deeper taxonomy match always
// outranks a shallower one because L3 rules carry L1+L2+L3.
func (r *ConversionRule) Specificity() int {
	n := 0
	if r.CategoryL1 != "" {
		n++
	}
	if r.CategoryL2 != "" {
		n++
	}
	if r.CategoryL3 != "" {
		n++
	}
	return n
}

// MatchesScope reports whether the rule applies to the query scope. Empty
// rule columns are wildcards.
func (r *ConversionRule) MatchesScope(l1, l2, l3 string) bool {
	if r.CategoryL1 != "" && r.CategoryL1 != l1 {
		return false
	}
	if r.CategoryL2 != "" && r.CategoryL2 != l2 {
		return false
	}
	if r.CategoryL3 != "" && r.CategoryL3 != l3 {
		return false
	}
	return true
}
