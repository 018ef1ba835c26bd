// Package aggregates implements the domain write boundaries on top of the
// table repos. Each write runs in one transaction owned by the aggregate.
package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

const (
	defaultWriteAttempts = 3
	writeRetryBackoff    = 25 * time.Millisecond
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard

	// WriteAttempts bounds how often a write is run when it fails with a
	// retryable error. Conflicts are never retried here.
	WriteAttempts int
	// LockTimeout bounds waits on row and advisory locks. Zero means no bound.
	LockTimeout time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB, d.LockTimeout)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.WriteAttempts <= 0 {
		d.WriteAttempts = defaultWriteAttempts
	}
	return d
}

// executeWrite runs fn in a transaction and maps the outcome to an aggregate
// error. fn must be safe to run again after a rollback.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	var mapped error
	for attempt := 1; ; attempt++ {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if mapped == nil || !domainagg.IsCode(mapped, domainagg.CodeRetryable) || ctx.Err() != nil {
			break
		}
		deps.Hooks.IncRetry(op)
		if attempt >= deps.WriteAttempts {
			break
		}
		if deps.Log != nil {
			deps.Log.Debug("retrying aggregate write", "op", op, "attempt", attempt, "error", mapped)
		}
		if !sleepCtx(ctx, time.Duration(attempt)*writeRetryBackoff) {
			break
		}
	}

	if domainagg.IsCode(mapped, domainagg.CodeConflict) {
		deps.Hooks.IncConflict(op)
	}
	deps.Hooks.ObserveOperation(op, aggregateErrorStatus(mapped), time.Since(start))
	return mapped
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	if code := domainagg.CodeOf(MapError("aggregate.status", err)); code != "" {
		return string(code)
	}
	return "failure"
}
