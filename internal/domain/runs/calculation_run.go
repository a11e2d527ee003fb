package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSuccess, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition enforces the monotonic status lattice
// PENDING -> RUNNING -> {SUCCESS, PARTIAL, FAILED}.
func (s RunStatus) CanTransition(to RunStatus) bool {
	switch s {
	case RunStatusPending:
		return to == RunStatusRunning || to == RunStatusFailed
	case RunStatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

type FailReason string

const (
	FailReasonTimeout     FailReason = "TIMEOUT"
	FailReasonCancelled   FailReason = "CANCELLED"
	FailReasonPersistence FailReason = "PERSISTENCE"
	FailReasonAllItems    FailReason = "ALL_ITEMS_FAILED"
)

// ItemError is one entry of a run's error log.
type ItemError struct {
	WorkItemCode string `json:"work_item_code"`
	Reason       string `json:"reason"`
	Detail       string `json:"detail,omitempty"`
}

// MaterialTotal aggregates final quantities per material for ResultSummary.
type MaterialTotal struct {
	MaterialCode  string  `json:"material_code"`
	TotalQuantity float64 `json:"total_quantity"`
	Unit          string  `json:"unit"`
}

type CalculationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID      *uuid.UUID     `gorm:"type:uuid;column:project_id;index" json:"project_id,omitempty"`
	CategoryL1     string         `gorm:"column:category_l1;not null;index" json:"category_l1"`
	RuleSetVersion string         `gorm:"column:rule_set_version;not null;uniqueIndex:idx_run_input,priority:2" json:"rule_set_version"`
	InputSnapshot  datatypes.JSON `gorm:"column:input_snapshot;type:jsonb" json:"input_snapshot"`
	InputHash      string         `gorm:"column:input_hash;not null;uniqueIndex:idx_run_input,priority:1" json:"input_hash"`
	Status         RunStatus      `gorm:"column:status;not null;index" json:"status"`
	FailReason     FailReason     `gorm:"column:fail_reason" json:"fail_reason,omitempty"`
	ResultSummary  datatypes.JSON `gorm:"column:result_summary;type:jsonb" json:"result_summary,omitempty"`
	ErrorLog       datatypes.JSON `gorm:"column:error_log;type:jsonb" json:"error_log,omitempty"`
	DurationMs     *int64         `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CalculationRun) TableName() string { return "calculation_run" }
