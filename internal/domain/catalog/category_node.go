package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Category levels of the trade taxonomy.
const (
	LevelDomain     = 1
	LevelTradeGroup = 2
	LevelWorkItem   = 3
)

type CategoryNode struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code        string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Level       int       `gorm:"column:level;not null;index" json:"level"`
	ParentCode  string    `gorm:"column:parent_code;index" json:"parent_code,omitempty"`
	DefaultUnit string    `gorm:"column:default_unit" json:"default_unit,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CategoryNode) TableName() string { return "category_node" }
