package aggregates

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
)

// CASGuard moves plan versions between statuses with a compare-and-set on the
// current status, so two writers can never both win the same transition.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// TransitionVersion sets the version's status to `to` only while it is still
// `from`. It stamps activated_at on activation and closed_at on close. The
// bool is false when another writer changed the status first.
func (g CASGuard) TransitionVersion(dbc dbctx.Context, id uuid.UUID, from, to program.PlanStatus, at time.Time) (bool, error) {
	if id == uuid.Nil {
		return false, ValidationError("version id is required")
	}
	if !program.CanTransition(from, to) {
		return false, InvariantError(fmt.Sprintf("plan version cannot move from %q to %q", from, to))
	}
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	updates := map[string]any{"status": string(to)}
	if to == program.PlanActive {
		updates["activated_at"] = at
	} else {
		updates["closed_at"] = at
	}
	res := db.Model(&program.PlanVersionRow{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
