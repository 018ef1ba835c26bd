package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/fitprogram-backend/internal/data/aggregates"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
)

// InjectedTxRunner is a test helper for aggregate integration tests.
// It supports rollback/failure injection. With DB nil the body runs without a
// transaction; with DB set it runs in a real one, and FailCommit is raised
// from inside so the writes are rolled back.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	// TransientErr is returned instead of running the body for the first
	// TransientFailures calls.
	TransientErr      error
	TransientFailures int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	failBeforeBody := r.FailBeforeBody
	failCommit := r.FailCommit
	var transient error
	if r.TransientFailures > 0 {
		r.TransientFailures--
		transient = r.TransientErr
	}
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if transient != nil {
		r.mu.Lock()
		r.RollbackCalls++
		r.mu.Unlock()
		return transient
	}
	if failBeforeBody != nil {
		r.mu.Lock()
		r.RollbackCalls++
		r.mu.Unlock()
		return failBeforeBody
	}
	if fn == nil {
		r.mu.Lock()
		r.CommitCalls++
		r.mu.Unlock()
		return nil
	}
	if r.DB != nil {
		return r.inRealTx(ctx, fn, failCommit)
	}
	if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
		r.mu.Lock()
		r.RollbackCalls++
		r.mu.Unlock()
		return err
	}
	if failCommit != nil {
		r.mu.Lock()
		r.RollbackCalls++
		r.mu.Unlock()
		return failCommit
	}
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
	return nil
}

func (r *InjectedTxRunner) inRealTx(ctx context.Context, fn func(dbc dbctx.Context) error, failCommit error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
			return err
		}
		return failCommit
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}
