package rules

import (
	"time"

	"github.com/google/uuid"
)

// WasteFactor is the fractional loss allowance applied on top of a base
// quantity, scoped like conversion rules over (l1, l2, materialCode).
type WasteFactor struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RuleSetVersion string    `gorm:"column:rule_set_version;not null;index" json:"rule_set_version"`
	CategoryL1     string    `gorm:"column:category_l1;index" json:"category_l1,omitempty"`
	CategoryL2     string    `gorm:"column:category_l2;index" json:"category_l2,omitempty"`
	MaterialCode   string    `gorm:"column:material_code;index" json:"material_code,omitempty"`
	Factor         float64   `gorm:"column:factor;not null" json:"factor"`
	Scenario       string    `gorm:"column:scenario" json:"scenario,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WasteFactor) TableName() string { return "waste_factor" }

func (w *WasteFactor) Specificity() int {
	n := 0
	if w.CategoryL1 != "" {
		n++
	}
	if w.CategoryL2 != "" {
		n++
	}
	if w.MaterialCode != "" {
		n++
	}
	return n
}

func (w *WasteFactor) Matches(l1, l2, materialCode string) bool {
	if w.CategoryL1 != "" && w.CategoryL1 != l1 {
		return false
	}
	if w.CategoryL2 != "" && w.CategoryL2 != l2 {
		return false
	}
	if w.MaterialCode != "" && w.MaterialCode != materialCode {
		return false
	}
	return true
}
