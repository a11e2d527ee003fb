package runs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// ErrDuplicateInput signals that another run already owns this
// (input_hash, rule_set_version) pair. The caller loads the winner instead
// of executing twice.
var ErrDuplicateInput = errors.New("duplicate run input")

type CalculationRunRepo interface {
	// CreatePending inserts a new PENDING run. Losing the unique-index race
	// on (input_hash, rule_set_version) returns ErrDuplicateInput.
	CreatePending(dbc dbctx.Context, run *types.CalculationRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error)
	GetByInputHash(dbc dbctx.Context, inputHash, ruleSetVersion string) (*types.CalculationRun, error)

	// Claim flips PENDING -> RUNNING for exactly one caller; the conditional
	// update reports false for everyone else.
	Claim(dbc dbctx.Context, id uuid.UUID) (bool, error)
	// ClaimNextPending picks up an unclaimed run left behind by a crashed
	// submitter, oldest first, skipping rows other workers hold locked.
	ClaimNextPending(dbc dbctx.Context, minAge time.Duration) (*types.CalculationRun, error)

	// Finalize records a terminal status. The guard on the current status
	// keeps the lattice monotonic; terminal rows are never rewritten.
	Finalize(dbc dbctx.Context, id uuid.UUID, status types.RunStatus, updates map[string]interface{}) (bool, error)
	// MarkFailed force-fails a non-terminal run (cancellation, timeout).
	MarkFailed(dbc dbctx.Context, id uuid.UUID, reason types.FailReason) (bool, error)
}

type calculationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalculationRunRepo(db *gorm.DB, baseLog *logger.Logger) CalculationRunRepo {
	return &calculationRunRepo{db: db, log: baseLog.With("repo", "CalculationRunRepo")}
}

func (r *calculationRunRepo) CreatePending(dbc dbctx.Context, run *types.CalculationRun) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	run.Status = types.RunStatusPending
	if err := t.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInput
		}
		return err
	}
	return nil
}

func (r *calculationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CalculationRun
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *calculationRunRepo) GetByInputHash(dbc dbctx.Context, inputHash, ruleSetVersion string) (*types.CalculationRun, error) {
	if inputHash == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CalculationRun
	if err := t.WithContext(dbc.Ctx).
		Where("input_hash = ? AND rule_set_version = ?", inputHash, ruleSetVersion).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *calculationRunRepo) Claim(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now()
	res := t.WithContext(dbc.Ctx).Model(&types.CalculationRun{}).
		Where("id = ? AND status = ?", id, string(types.RunStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(types.RunStatusRunning),
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *calculationRunRepo) ClaimNextPending(dbc dbctx.Context, minAge time.Duration) (*types.CalculationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now()
	cutoff := now.Add(-minAge)
	var claimed *types.CalculationRun
	err := t.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var run types.CalculationRun
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND created_at < ?", string(types.RunStatusPending), cutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := tx.Model(&types.CalculationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":     string(types.RunStatusRunning),
				"started_at": now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *calculationRunRepo) Finalize(dbc dbctx.Context, id uuid.UUID, status types.RunStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || !status.Terminal() {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	now := time.Now()
	updates["status"] = string(status)
	updates["finished_at"] = now
	updates["updated_at"] = now
	res := t.WithContext(dbc.Ctx).Model(&types.CalculationRun{}).
		Where("id = ? AND status = ?", id, string(types.RunStatusRunning)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *calculationRunRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason types.FailReason) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now()
	res := t.WithContext(dbc.Ctx).Model(&types.CalculationRun{}).
		Where("id = ? AND status IN ?", id, []string{
			string(types.RunStatusPending),
			string(types.RunStatusRunning),
		}).
		Updates(map[string]interface{}{
			"status":      string(types.RunStatusFailed),
			"fail_reason": string(reason),
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
