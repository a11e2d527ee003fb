package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LineTrace is the structured provenance attached to every breakdown line:
// enough to reproduce the computation exactly.
type LineTrace struct {
	RuleID         uuid.UUID          `json:"rule_id"`
	RuleType       string             `json:"rule_type"`
	RuleSetVersion string             `json:"rule_set_version"`
	Formula        string             `json:"formula"`
	Variables      map[string]float64 `json:"variables"`
	BaseQuantity   float64            `json:"base_quantity"`
	WasteFactor    float64            `json:"waste_factor"`
	WasteSource    string             `json:"waste_source"`
	FinalQuantity  float64            `json:"final_quantity"`
	PackagingSize  float64            `json:"packaging_size,omitempty"`
}

// Waste source tags recorded in LineTrace.WasteSource.
const (
	WasteSourceRule            = "waste_rule"
	WasteSourceTable           = "waste_factor"
	WasteSourceMaterialDefault = "material_default"
	WasteSourceNone            = "none"
)

// BreakdownLine is one immutable material line of a calculation run.
type BreakdownLine struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RunID              uuid.UUID      `gorm:"type:uuid;column:run_id;not null;index" json:"run_id"`
	SourceWorkItemCode string         `gorm:"column:source_work_item_code;not null;index" json:"source_work_item_code"`
	CategoryL1         string         `gorm:"column:category_l1;not null" json:"category_l1"`
	CategoryL2         string         `gorm:"column:category_l2" json:"category_l2,omitempty"`
	CategoryL3         string         `gorm:"column:category_l3" json:"category_l3,omitempty"`
	MaterialCode       string         `gorm:"column:material_code;not null;index" json:"material_code"`
	BaseQuantity       float64        `gorm:"column:base_quantity;not null" json:"base_quantity"`
	WasteFactor        float64        `gorm:"column:waste_factor;not null;default:0" json:"waste_factor"`
	FinalQuantity      float64        `gorm:"column:final_quantity;not null" json:"final_quantity"`
	Unit               string         `gorm:"column:unit;not null" json:"unit"`
	PackagingUnit      string         `gorm:"column:packaging_unit" json:"packaging_unit,omitempty"`
	PackagingQuantity  *int64         `gorm:"column:packaging_quantity" json:"packaging_quantity,omitempty"`
	UnitPrice          *float64       `gorm:"column:unit_price" json:"unit_price,omitempty"`
	Subtotal           *float64       `gorm:"column:subtotal" json:"subtotal,omitempty"`
	Trace              datatypes.JSON `gorm:"column:trace;type:jsonb" json:"trace"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (BreakdownLine) TableName() string { return "breakdown_line" }
