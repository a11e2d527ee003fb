package runs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// BreakdownLineRepo is append-only: lines carry full provenance and are
// never mutated after insertion.
type BreakdownLineRepo interface {
	Append(dbc dbctx.Context, rows []*types.BreakdownLine) ([]*types.BreakdownLine, error)
	ListByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.BreakdownLine, error)
}

type breakdownLineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBreakdownLineRepo(db *gorm.DB, baseLog *logger.Logger) BreakdownLineRepo {
	return &breakdownLineRepo{db: db, log: baseLog.With("repo", "BreakdownLineRepo")}
}

func (r *breakdownLineRepo) Append(dbc dbctx.Context, rows []*types.BreakdownLine) ([]*types.BreakdownLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.BreakdownLine{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *breakdownLineRepo) ListByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.BreakdownLine, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BreakdownLine
	if runID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("run_id = ?", runID).
		Order("source_work_item_code ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
