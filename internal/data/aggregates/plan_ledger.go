package aggregates

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	programrepo "github.com/yungbote/fitprogram-backend/internal/data/repos/program"
	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
)

type PlanLedgerAggregateDeps struct {
	Base BaseDeps

	Versions    programrepo.PlanVersionRepo
	Active      programrepo.ActivePlanRepo
	Checks      programrepo.FeasibilityCheckRepo
	Adjustments programrepo.AdjustmentRecordRepo
}

type planLedgerAggregate struct {
	deps PlanLedgerAggregateDeps
}

func NewPlanLedgerAggregate(deps PlanLedgerAggregateDeps) domainagg.PlanLedgerAggregate {
	deps.Base = deps.Base.withDefaults()
	return &planLedgerAggregate{deps: deps}
}

func (a *planLedgerAggregate) Contract() domainagg.Contract {
	return domainagg.PlanLedgerAggregateContract
}

func (a *planLedgerAggregate) configured() bool {
	return a.deps.Versions != nil && a.deps.Active != nil && a.deps.Checks != nil && a.deps.Adjustments != nil
}

func (a *planLedgerAggregate) GetActive(ctx context.Context, userID uuid.UUID) (*program.PlanVersion, error) {
	const op = "Program.PlanLedger.GetActive"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	ptr, err := a.deps.Active.Get(dbc, userID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if ptr == nil {
		return nil, nil
	}
	row, err := a.deps.Versions.GetByID(dbc, ptr.PlanVersionID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if row == nil {
		return nil, domainagg.NewError(domainagg.CodeInvariantViolation, op, fmt.Sprintf("active pointer references missing version %s", ptr.PlanVersionID), nil)
	}
	v, err := program.PlanVersionFromRow(row)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &v, nil
}

func (a *planLedgerAggregate) AppendVersion(ctx context.Context, in domainagg.AppendPlanVersionInput) (domainagg.AppendPlanVersionResult, error) {
	const op = "Program.PlanLedger.AppendVersion"
	var out domainagg.AppendPlanVersionResult

	v := in.Version
	if v.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if v.Status != "" && v.Status != program.PlanDraft {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "appended versions start as draft", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.Status = program.PlanDraft
	v.SchemaVersion = program.CurrentSchemaVersion

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := lockUser(dbc, v.UserID); err != nil {
			return err
		}
		max, err := a.deps.Versions.GetMaxVersionNumber(dbc, v.UserID)
		if err != nil {
			return err
		}
		v.VersionNumber = max + 1

		row, err := program.PlanVersionToRow(v)
		if err != nil {
			return ValidationError(err.Error())
		}
		if _, err := a.deps.Versions.Create(dbc, []*program.PlanVersionRow{row}); err != nil {
			return err
		}
		if in.CheckID != nil {
			if err := a.deps.Checks.LinkVersion(dbc, *in.CheckID, v.ID); err != nil {
				return err
			}
		}
		out = domainagg.AppendPlanVersionResult{Version: v}
		return nil
	})
	return out, err
}

func (a *planLedgerAggregate) Activate(ctx context.Context, in domainagg.ActivatePlanInput) (domainagg.ActivatePlanResult, error) {
	const op = "Program.PlanLedger.Activate"
	var out domainagg.ActivatePlanResult

	if in.UserID == uuid.Nil || in.VersionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id or version_id", nil)
	}
	supersedeAs, err := normalizeSupersede(in.SupersedeAs)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := lockUser(dbc, in.UserID); err != nil {
			return err
		}
		row, err := a.deps.Versions.LockByID(dbc, in.VersionID)
		if err != nil {
			return err
		}
		if row == nil || row.UserID != in.UserID {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("plan version not found: %s", in.VersionID), nil)
		}

		ptr, err := a.deps.Active.LockByUser(dbc, in.UserID)
		if err != nil {
			return err
		}
		if ptr != nil && ptr.PlanVersionID == row.ID {
			v, err := program.PlanVersionFromRow(row)
			if err != nil {
				return err
			}
			out = domainagg.ActivatePlanResult{Version: v}
			return nil
		}
		if !program.CanTransition(program.PlanStatus(row.Status), program.PlanActive) {
			return InvariantError(fmt.Sprintf("cannot activate a version in status %q", row.Status))
		}

		next := &program.ActivePlanRow{
			UserID:        in.UserID,
			PlanVersionID: row.ID,
			VersionNumber: row.VersionNumber,
			UpdatedAt:     at,
		}
		if ptr != nil {
			if err := a.supersede(dbc, ptr.PlanVersionID, supersedeAs, at); err != nil {
				return err
			}
			ok, err := a.deps.Active.CompareAndSwap(dbc, in.UserID, ptr.PlanVersionID, next)
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "active pointer moved during activation"); err != nil {
				return err
			}
			prev := ptr.PlanVersionID
			out.SupersededID = &prev
		} else if err := a.deps.Active.Insert(dbc, next); err != nil {
			return err
		}

		ok, err := a.deps.Base.CASGuard.TransitionVersion(dbc, row.ID, program.PlanDraft, program.PlanActive, at)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "version left draft during activation"); err != nil {
			return err
		}

		v, err := program.PlanVersionFromRow(row)
		if err != nil {
			return err
		}
		v.Status = program.PlanActive
		v.ActivatedAt = &at
		out.Version = v
		return nil
	})
	return out, err
}

func (a *planLedgerAggregate) RecordFeasibilityCheck(ctx context.Context, check program.FeasibilityCheck) (program.FeasibilityCheck, error) {
	const op = "Program.PlanLedger.RecordFeasibilityCheck"
	if check.UserID == uuid.Nil {
		return check, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !a.configured() {
		return check, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}
	row, err := program.FeasibilityToRow(check)
	if err != nil {
		return check, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		return a.deps.Checks.Create(dbc, row)
	})
	return check, err
}

func (a *planLedgerAggregate) GetFeasibilityCheck(ctx context.Context, userID, checkID uuid.UUID) (*program.FeasibilityCheck, error) {
	const op = "Program.PlanLedger.GetFeasibilityCheck"
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	row, err := a.deps.Checks.GetByID(dbctx.Context{Ctx: ctx}, userID, checkID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if row == nil {
		return nil, nil
	}
	check, err := program.FeasibilityFromRow(row)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &check, nil
}

func (a *planLedgerAggregate) RecordAdjustment(ctx context.Context, rec program.AdjustmentRecord) (program.AdjustmentRecord, error) {
	const op = "Program.PlanLedger.RecordAdjustment"
	if rec.ToVersionID != nil {
		return rec, domainagg.NewError(domainagg.CodeValidation, op, "use CommitCycle for records that create a version", nil)
	}
	out, err := a.CommitCycle(ctx, domainagg.CommitCycleInput{
		UserID:        rec.UserID,
		FromVersionID: rec.FromVersionID,
		Record:        rec,
		At:            rec.CreatedAt,
	})
	return out.Record, err
}

func (a *planLedgerAggregate) FindAdjustment(ctx context.Context, userID, fromVersionID uuid.UUID, date string) (*program.AdjustmentRecord, error) {
	const op = "Program.PlanLedger.FindAdjustment"
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	row, err := a.deps.Adjustments.FindByCycle(dbctx.Context{Ctx: ctx}, userID, fromVersionID, date)
	if err != nil {
		return nil, MapError(op, err)
	}
	if row == nil {
		return nil, nil
	}
	rec, err := program.AdjustmentFromRow(row)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &rec, nil
}

func (a *planLedgerAggregate) CommitCycle(ctx context.Context, in domainagg.CommitCycleInput) (domainagg.CommitCycleResult, error) {
	const op = "Program.PlanLedger.CommitCycle"
	var out domainagg.CommitCycleResult

	rec := in.Record
	switch {
	case in.UserID == uuid.Nil || in.FromVersionID == uuid.Nil:
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id or from_version_id", nil)
	case rec.UserID != in.UserID || rec.FromVersionID != in.FromVersionID:
		return out, domainagg.NewError(domainagg.CodeValidation, op, "record does not belong to this cycle", nil)
	case rec.AdjustmentDate == "":
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing adjustment_date", nil)
	case in.NewVersion != nil && in.NewVersion.UserID != in.UserID:
		return out, domainagg.NewError(domainagg.CodeValidation, op, "new version belongs to another user", nil)
	}
	supersedeAs, err := normalizeSupersede(in.SupersedeAs)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = at
	}
	rec.SchemaVersion = program.CurrentSchemaVersion

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := lockUser(dbc, in.UserID); err != nil {
			return err
		}
		existing, err := a.deps.Adjustments.FindByCycle(dbc, in.UserID, in.FromVersionID, rec.AdjustmentDate)
		if err != nil {
			return err
		}
		if existing != nil {
			prev, err := program.AdjustmentFromRow(existing)
			if err != nil {
				return err
			}
			out = domainagg.CommitCycleResult{Record: prev, Duplicate: true}
			return nil
		}

		ptr, err := a.deps.Active.LockByUser(dbc, in.UserID)
		if err != nil {
			return err
		}
		if ptr == nil || ptr.PlanVersionID != in.FromVersionID {
			return ConflictError("active version changed since the cycle started")
		}

		var created *program.PlanVersion
		if in.NewVersion != nil {
			v := *in.NewVersion
			if v.ID == uuid.Nil {
				v.ID = uuid.New()
			}
			if v.CreatedAt.IsZero() {
				v.CreatedAt = at
			}
			max, err := a.deps.Versions.GetMaxVersionNumber(dbc, in.UserID)
			if err != nil {
				return err
			}
			parent := in.FromVersionID
			v.VersionNumber = max + 1
			v.ParentVersionID = &parent
			v.Status = program.PlanActive
			v.ActivatedAt = &at
			v.SchemaVersion = program.CurrentSchemaVersion

			row, err := program.PlanVersionToRow(v)
			if err != nil {
				return ValidationError(err.Error())
			}
			// Close the old version first; at most one active row per user.
			if err := a.supersede(dbc, in.FromVersionID, supersedeAs, at); err != nil {
				return err
			}
			if _, err := a.deps.Versions.Create(dbc, []*program.PlanVersionRow{row}); err != nil {
				return err
			}
			ok, err := a.deps.Active.CompareAndSwap(dbc, in.UserID, in.FromVersionID, &program.ActivePlanRow{
				UserID:        in.UserID,
				PlanVersionID: v.ID,
				VersionNumber: v.VersionNumber,
				UpdatedAt:     at,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "active pointer moved during commit"); err != nil {
				return err
			}
			rec.ToVersionID = &v.ID
			created = &v
		} else {
			rec.ToVersionID = nil
		}

		if in.Check != nil {
			check := *in.Check
			if check.ID == uuid.Nil {
				check.ID = uuid.New()
			}
			if check.CreatedAt.IsZero() {
				check.CreatedAt = at
			}
			if created != nil {
				check.PlanVersionID = &created.ID
			}
			row, err := program.FeasibilityToRow(check)
			if err != nil {
				return ValidationError(err.Error())
			}
			if err := a.deps.Checks.Create(dbc, row); err != nil {
				return err
			}
		}

		row, err := program.AdjustmentToRow(rec)
		if err != nil {
			return ValidationError(err.Error())
		}
		if err := a.deps.Adjustments.Create(dbc, row); err != nil {
			return err
		}
		out = domainagg.CommitCycleResult{Record: rec, Version: created}
		return nil
	})
	return out, err
}

func (a *planLedgerAggregate) History(ctx context.Context, userID uuid.UUID) ([]program.PlanSummary, error) {
	const op = "Program.PlanLedger.History"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "plan ledger repos not configured", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := a.deps.Versions.ListByUser(dbc, userID)
	if err != nil {
		return nil, MapError(op, err)
	}
	counts, err := a.deps.Adjustments.CountByFromVersion(dbc, userID)
	if err != nil {
		return nil, MapError(op, err)
	}
	out := make([]program.PlanSummary, 0, len(rows))
	for _, row := range rows {
		v, err := program.PlanVersionFromRow(row)
		if err != nil {
			return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
		out = append(out, program.PlanSummary{
			ID:              v.ID,
			VersionNumber:   v.VersionNumber,
			ParentVersionID: v.ParentVersionID,
			Status:          v.Status,
			Calories:        v.Params.Calories,
			SessionsPerWeek: v.Params.SessionsPerWeek,
			Deload:          v.Params.Deload,
			Rationale:       v.Rationale,
			CreatedAt:       v.CreatedAt,
			ActivatedAt:     v.ActivatedAt,
			ClosedAt:        v.ClosedAt,
			AdjustmentCount: counts[v.ID],
		})
	}
	return out, nil
}

// supersede closes the currently active version. The status guard makes a
// concurrent supersede of the same version fail as a conflict.
func (a *planLedgerAggregate) supersede(dbc dbctx.Context, versionID uuid.UUID, as program.PlanStatus, at time.Time) error {
	ok, err := a.deps.Base.CASGuard.TransitionVersion(dbc, versionID, program.PlanActive, as, at)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("version %s is no longer active", versionID))
}

func normalizeSupersede(s program.PlanStatus) (program.PlanStatus, error) {
	switch s {
	case "":
		return program.PlanArchived, nil
	case program.PlanArchived, program.PlanCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("invalid supersede status %q", s)
	}
}

// lockUser takes a transaction-scoped advisory lock on the user's ledger.
// Only Postgres has one; other dialects rely on the row guards.
func lockUser(dbc dbctx.Context, userID uuid.UUID) error {
	if dbc.Tx == nil || dbc.Tx.Dialector.Name() != "postgres" {
		return nil
	}
	return dbc.DB(nil).Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(userID)).Error
}

func advisoryKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("plan_ledger:"))
	_, _ = h.Write(userID[:])
	return int64(h.Sum64())
}
