package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MaterialMaster struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code               string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name               string         `gorm:"column:name;not null" json:"name"`
	CategoryL1         string         `gorm:"column:category_l1;not null;index" json:"category_l1"`
	CategoryL2         string         `gorm:"column:category_l2;index" json:"category_l2,omitempty"`
	BaseUnit           string         `gorm:"column:base_unit;not null" json:"base_unit"`
	Density            *float64       `gorm:"column:density" json:"density,omitempty"`
	UnitWeight         *float64       `gorm:"column:unit_weight" json:"unit_weight,omitempty"`
	DefaultWasteFactor float64        `gorm:"column:default_waste_factor;not null;default:0" json:"default_waste_factor"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MaterialMaster) TableName() string { return "material_master" }
