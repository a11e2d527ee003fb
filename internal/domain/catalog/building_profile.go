package catalog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProfileFactor is one per-gross-floor-area factor of a building profile,
// e.g. rebar at 120 kg/m2.
type ProfileFactor struct {
	Factor float64 `json:"factor"`
	Unit   string  `json:"unit"`
}

type BuildingProfile struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code          string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	StructureType string         `gorm:"column:structure_type;not null;index" json:"structure_type"`
	Usage         string         `gorm:"column:usage;not null;index" json:"usage"`
	MinFloors     int            `gorm:"column:min_floors;not null;default:1" json:"min_floors"`
	MaxFloors     *int           `gorm:"column:max_floors" json:"max_floors,omitempty"`
	Factors       datatypes.JSON `gorm:"column:factors;type:jsonb" json:"factors"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (BuildingProfile) TableName() string { return "building_profile" }

// MatchesFloors reports whether the profile's floor range contains floors.
// A nil MaxFloors leaves the range open above MinFloors.
func (p *BuildingProfile) MatchesFloors(floors int) bool {
	if floors < p.MinFloors {
		return false
	}
	if p.MaxFloors != nil && floors > *p.MaxFloors {
		return false
	}
	return true
}

// FloorSpan returns the width of the floor range; open-ended ranges report a
// very large span so bounded ranges always sort as narrower.
func (p *BuildingProfile) FloorSpan() int {
	if p.MaxFloors == nil {
		return 1 << 30
	}
	return *p.MaxFloors - p.MinFloors
}

func (p *BuildingProfile) FactorMap() (map[string]ProfileFactor, error) {
	out := map[string]ProfileFactor{}
	if len(p.Factors) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(p.Factors, &out); err != nil {
		return nil, err
	}
	return out, nil
}
