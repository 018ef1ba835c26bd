package solver

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

// Observer receives one call per finished solve.
type Observer interface {
	ObserveSolve(feasible bool, timedOut bool, iterations int, runtime time.Duration)
}

// Pool bounds how many solves run at once. Solves are CPU-bound, so the
// default width is the number of CPUs.
type Pool struct {
	solver *Solver
	sem    *semaphore.Weighted
	obs    Observer
}

func NewPool(s *Solver, workers int, obs Observer) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{solver: s, sem: semaphore.NewWeighted(int64(workers)), obs: obs}
}

func (p *Pool) Solve(ctx context.Context, g program.GoalConstraintSet) (program.FeasibilityResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return program.FeasibilityResult{}, err
	}
	defer p.sem.Release(1)
	res := p.solver.Solve(ctx, g)
	if p.obs != nil {
		p.obs.ObserveSolve(res.IsFeasible, res.TimedOut, res.SolverIterations, time.Duration(res.SolverRuntimeMs)*time.Millisecond)
	}
	return res, nil
}

// SolveAll solves every goal concurrently and returns results in input order.
func (p *Pool) SolveAll(ctx context.Context, goals []program.GoalConstraintSet) ([]program.FeasibilityResult, error) {
	out := make([]program.FeasibilityResult, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	for i := range goals {
		i := i
		g.Go(func() error {
			res, err := p.Solve(gctx, goals[i])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
