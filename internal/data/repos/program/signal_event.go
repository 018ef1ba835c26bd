package program

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type SignalEventRepo interface {
	// Create inserts rows, skipping ids that already exist, and returns the
	// number of rows actually written.
	Create(dbc dbctx.Context, rows []*types.SignalEventRow) (int64, error)

	// ListByKinds returns events in [start, end) ordered by occurred_at. A zero
	// start is unbounded.
	ListByKinds(dbc dbctx.Context, userID uuid.UUID, kinds []types.SignalKind, start, end time.Time) ([]*types.SignalEventRow, error)
}

type signalEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignalEventRepo(db *gorm.DB, baseLog *logger.Logger) SignalEventRepo {
	return &signalEventRepo{db: db, log: baseLog.With("repo", "SignalEventRepo")}
}

func (r *signalEventRepo) Create(dbc dbctx.Context, rows []*types.SignalEventRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *signalEventRepo) ListByKinds(dbc dbctx.Context, userID uuid.UUID, kinds []types.SignalKind, start, end time.Time) ([]*types.SignalEventRow, error) {
	var out []*types.SignalEventRow
	if userID == uuid.Nil || len(kinds) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	q := dbc.DB(r.db).
		Where("user_id = ? AND kind IN ? AND occurred_at < ?", userID, names, end.UTC())
	if !start.IsZero() {
		q = q.Where("occurred_at >= ?", start.UTC())
	}
	if err := q.Order("occurred_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
