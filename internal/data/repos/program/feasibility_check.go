package program

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type FeasibilityCheckRepo interface {
	Create(dbc dbctx.Context, row *types.FeasibilityCheckRow) error
	GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*types.FeasibilityCheckRow, error)
	LinkVersion(dbc dbctx.Context, id, versionID uuid.UUID) error
}

type feasibilityCheckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeasibilityCheckRepo(db *gorm.DB, baseLog *logger.Logger) FeasibilityCheckRepo {
	return &feasibilityCheckRepo{db: db, log: baseLog.With("repo", "FeasibilityCheckRepo")}
}

func (r *feasibilityCheckRepo) Create(dbc dbctx.Context, row *types.FeasibilityCheckRow) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *feasibilityCheckRepo) GetByID(dbc dbctx.Context, userID, id uuid.UUID) (*types.FeasibilityCheckRow, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var row types.FeasibilityCheckRow
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *feasibilityCheckRepo) LinkVersion(dbc dbctx.Context, id, versionID uuid.UUID) error {
	if id == uuid.Nil || versionID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.FeasibilityCheckRow{}).
		Where("id = ?", id).
		Update("plan_version_id", versionID).Error
}
