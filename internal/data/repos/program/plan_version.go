package program

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type PlanVersionRepo interface {
	Create(dbc dbctx.Context, rows []*types.PlanVersionRow) ([]*types.PlanVersionRow, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanVersionRow, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanVersionRow, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.PlanVersionRow, error)

	GetMaxVersionNumber(dbc dbctx.Context, userID uuid.UUID) (int, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type planVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanVersionRepo(db *gorm.DB, baseLog *logger.Logger) PlanVersionRepo {
	return &planVersionRepo{db: db, log: baseLog.With("repo", "PlanVersionRepo")}
}

func (r *planVersionRepo) Create(dbc dbctx.Context, rows []*types.PlanVersionRow) ([]*types.PlanVersionRow, error) {
	if len(rows) == 0 {
		return []*types.PlanVersionRow{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *planVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanVersionRow, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PlanVersionRow
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *planVersionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanVersionRow, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PlanVersionRow
	err := forUpdate(dbc.DB(r.db)).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *planVersionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.PlanVersionRow, error) {
	var out []*types.PlanVersionRow
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("version_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planVersionRepo) GetMaxVersionNumber(dbc dbctx.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	var max int
	if err := dbc.DB(r.db).
		Model(&types.PlanVersionRow{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *planVersionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.PlanVersionRow{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// forUpdate adds a row lock on dialects that support one. sqlite serializes
// writers on its own.
func forUpdate(t *gorm.DB) *gorm.DB {
	if t.Dialector.Name() != "postgres" {
		return t
	}
	return t.Clauses(clause.Locking{Strength: "UPDATE"})
}
