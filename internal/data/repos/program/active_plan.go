package program

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// ActivePlanRepo owns the single active pointer per user.
type ActivePlanRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.ActivePlanRow, error)
	LockByUser(dbc dbctx.Context, userID uuid.UUID) (*types.ActivePlanRow, error)

	// Insert creates the pointer for a user that has none. A second insert
	// for the same user fails on the primary key.
	Insert(dbc dbctx.Context, row *types.ActivePlanRow) error

	// CompareAndSwap moves the pointer only when it still references expected.
	CompareAndSwap(dbc dbctx.Context, userID, expected uuid.UUID, next *types.ActivePlanRow) (bool, error)
}

type activePlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivePlanRepo(db *gorm.DB, baseLog *logger.Logger) ActivePlanRepo {
	return &activePlanRepo{db: db, log: baseLog.With("repo", "ActivePlanRepo")}
}

func (r *activePlanRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.ActivePlanRow, error) {
	return r.get(dbc.DB(r.db), userID)
}

func (r *activePlanRepo) LockByUser(dbc dbctx.Context, userID uuid.UUID) (*types.ActivePlanRow, error) {
	return r.get(forUpdate(dbc.DB(r.db)), userID)
}

func (r *activePlanRepo) get(t *gorm.DB, userID uuid.UUID) (*types.ActivePlanRow, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.ActivePlanRow
	if err := t.Where("user_id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.UserID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *activePlanRepo) Insert(dbc dbctx.Context, row *types.ActivePlanRow) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *activePlanRepo) CompareAndSwap(dbc dbctx.Context, userID, expected uuid.UUID, next *types.ActivePlanRow) (bool, error) {
	if userID == uuid.Nil || next == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.ActivePlanRow{}).
		Where("user_id = ? AND plan_version_id = ?", userID, expected).
		Updates(map[string]interface{}{
			"plan_version_id": next.PlanVersionID,
			"version_number":  next.VersionNumber,
			"updated_at":      next.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
