package program

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type AdjustmentRecordRepo interface {
	Create(dbc dbctx.Context, row *types.AdjustmentRecordRow) error

	// FindByCycle looks up the record keyed by the cycle idempotency key.
	FindByCycle(dbc dbctx.Context, userID, fromVersionID uuid.UUID, date string) (*types.AdjustmentRecordRow, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.AdjustmentRecordRow, error)

	// CountByFromVersion returns how many cycles ran against each version.
	CountByFromVersion(dbc dbctx.Context, userID uuid.UUID) (map[uuid.UUID]int, error)
}

type adjustmentRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdjustmentRecordRepo(db *gorm.DB, baseLog *logger.Logger) AdjustmentRecordRepo {
	return &adjustmentRecordRepo{db: db, log: baseLog.With("repo", "AdjustmentRecordRepo")}
}

func (r *adjustmentRecordRepo) Create(dbc dbctx.Context, row *types.AdjustmentRecordRow) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *adjustmentRecordRepo) FindByCycle(dbc dbctx.Context, userID, fromVersionID uuid.UUID, date string) (*types.AdjustmentRecordRow, error) {
	if userID == uuid.Nil || fromVersionID == uuid.Nil || date == "" {
		return nil, nil
	}
	var row types.AdjustmentRecordRow
	if err := dbc.DB(r.db).
		Where("user_id = ? AND from_version_id = ? AND adjustment_date = ?", userID, fromVersionID, date).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *adjustmentRecordRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.AdjustmentRecordRow, error) {
	var out []*types.AdjustmentRecordRow
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *adjustmentRecordRepo) CountByFromVersion(dbc dbctx.Context, userID uuid.UUID) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	if userID == uuid.Nil {
		return out, nil
	}
	var rows []struct {
		FromVersionID uuid.UUID
		N             int
	}
	if err := dbc.DB(r.db).
		Model(&types.AdjustmentRecordRow{}).
		Select("from_version_id, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("from_version_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.FromVersionID] = row.N
	}
	return out, nil
}
