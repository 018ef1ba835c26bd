package solver

import (
	"context"
	"time"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

type Config struct {
	MaxIterations int
	MaxRuntime    time.Duration
	MaxTradeOffs  int
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 100000,
		MaxRuntime:    250 * time.Millisecond,
		MaxTradeOffs:  3,
	}
}

// Solver searches the plan parameter grid for the best schedule that
// satisfies every hard constraint. It holds no per-call state and is safe for
// concurrent use.
type Solver struct {
	cfg   Config
	clock func() time.Time
}

type Option func(*Solver)

// WithClock replaces the wall clock used for the runtime bound.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) {
		if now != nil {
			s.clock = now
		}
	}
}

func New(cfg Config, opts ...Option) *Solver {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = def.MaxRuntime
	}
	if cfg.MaxTradeOffs <= 0 {
		cfg.MaxTradeOffs = def.MaxTradeOffs
	}
	s := &Solver{cfg: cfg, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) Config() Config { return s.cfg }

// budget bounds one Solve call across the main search and every relaxed
// re-solve it triggers.
type budget struct {
	ctx      context.Context
	clock    func() time.Time
	deadline time.Time
	maxIter  int
	total    int
	expired  bool
}

// ok reports whether the current search (at iteration it) may continue.
// Iterations of earlier searches in the same call count against maxIter.
func (b *budget) ok(it int) bool {
	if b.expired {
		return false
	}
	if b.total+it > b.maxIter {
		b.expired = true
		return false
	}
	if it%64 == 0 {
		if b.clock().After(b.deadline) {
			b.expired = true
			return false
		}
		if b.ctx != nil && b.ctx.Err() != nil {
			b.expired = true
			return false
		}
	}
	return true
}

type searchResult struct {
	sp         *space
	iterations int
	timedOut   bool
	found      bool
	best       point
	bestScore  float64
	stats      domainStats
	anySat     []bool
	masks      map[uint32]bool
}

// search walks f ascending, then m ascending, then t ascending. Ties keep the
// first point met, so the result is a pure function of the goal.
func (s *Solver) search(g program.GoalConstraintSet, b *budget) searchResult {
	sp := newSpace(g)
	res := searchResult{
		sp:     sp,
		anySat: make([]bool, len(sp.hard)),
		masks:  map[uint32]bool{},
	}
	all := uint32(1)<<uint(len(sp.hard)) - 1
	it := 0
	for f := 1; f <= 7; f++ {
		for _, m := range program.SessionMinuteOptions {
			for t := 1; t <= program.MaxHorizonWeeks; t++ {
				it++
				if !b.ok(it) {
					res.iterations = it - 1
					res.timedOut = true
					b.total += res.iterations
					return res
				}
				p, in := sp.at(f, m, t)
				if !in {
					continue
				}
				res.stats.add(p)
				var mask uint32
				for i, c := range sp.hard {
					if satisfies(c, p) {
						mask |= 1 << uint(i)
						res.anySat[i] = true
					}
				}
				res.masks[mask] = true
				if mask != all {
					continue
				}
				sc := sp.score(p)
				if !res.found || sc > res.bestScore+1e-9 {
					res.found = true
					res.best = p
					res.bestScore = sc
				}
			}
		}
	}
	res.iterations = it
	b.total += it
	return res
}

// Solve decides feasibility for g and, when infeasible, explains why and
// proposes up to MaxTradeOffs relaxations. The result is identical for
// identical input apart from SolverRuntimeMs.
func (s *Solver) Solve(ctx context.Context, g program.GoalConstraintSet) program.FeasibilityResult {
	start := s.clock()
	b := &budget{
		ctx:      ctx,
		clock:    s.clock,
		deadline: start.Add(s.cfg.MaxRuntime),
		maxIter:  s.cfg.MaxIterations,
	}
	out := s.solve(g, b, true)
	out.SolverIterations = b.total
	out.SolverRuntimeMs = s.clock().Sub(start).Milliseconds()
	return out
}

func (s *Solver) solve(g program.GoalConstraintSet, b *budget, withTradeOffs bool) program.FeasibilityResult {
	res := s.search(g, b)
	out := program.FeasibilityResult{
		Diagnostics: []program.Diagnostic{},
		TradeOffs:   []program.TradeOff{},
		TimedOut:    res.timedOut,
	}
	if res.found {
		params := res.sp.params(res.best)
		out.IsFeasible = true
		out.OptimalParams = &params
		out.Score = round3(res.bestScore)
		return out
	}
	if res.timedOut {
		out.Diagnostics = append(out.Diagnostics, program.Diagnostic{
			Code:    program.DiagSolverTimeout,
			Message: "search budget exhausted before a feasible plan was found",
		})
		return out
	}
	out.Diagnostics = diagnose(res)
	if withTradeOffs {
		out.TradeOffs = s.tradeOffs(g, out.Diagnostics, b)
		if b.expired {
			out.TimedOut = true
		}
	}
	return out
}
