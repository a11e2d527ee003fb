package rules

import (
	"time"
)

// RuleSet is a versioned, effective-dated collection of conversion rules.
// At most one rule set is current at any time; Promote on the rule set repo
// swaps the flag atomically.
type RuleSet struct {
	Version       string     `gorm:"column:version;primaryKey" json:"version"`
	IsCurrent     bool       `gorm:"column:is_current;not null;default:false;index" json:"is_current"`
	EffectiveFrom time.Time  `gorm:"column:effective_from;not null" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"column:effective_to" json:"effective_to,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (RuleSet) TableName() string { return "rule_set" }
