package signalstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	programrepo "github.com/yungbote/fitprogram-backend/internal/data/repos/program"
	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/signals"
	"github.com/yungbote/fitprogram-backend/internal/platform/dbctx"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

// Store serves the aggregator's Source interface from the signal_event table
// and accepts new events from the ingestion API.
type Store struct {
	repo programrepo.SignalEventRepo
	log  *logger.Logger
}

var _ signals.Source = (*Store)(nil)

func New(repo programrepo.SignalEventRepo, baseLog *logger.Logger) *Store {
	return &Store{repo: repo, log: baseLog.With("service", "SignalStore")}
}

// Ingest stores events, assigning ids where missing. Events whose id already
// exists are skipped, so client retries are harmless.
func (s *Store) Ingest(ctx context.Context, userID uuid.UUID, events []program.SignalEvent) (int64, error) {
	rows := make([]*program.SignalEventRow, 0, len(events))
	for i, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.UserID = userID
		row, err := program.SignalToRow(e)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	n, err := s.repo.Create(dbctx.Context{Ctx: ctx}, rows)
	if err != nil {
		return 0, err
	}
	s.log.Debug("signals ingested", "user_id", userID, "received", len(events), "stored", n)
	return n, nil
}

func (s *Store) Adherence(ctx context.Context, userID uuid.UUID, w program.Window) (signals.AdherenceLog, error) {
	rows, err := s.list(ctx, userID, w.Start, w.End, program.SignalSessionLogged, program.SignalMealLogged)
	if err != nil {
		return signals.AdherenceLog{}, err
	}
	var out signals.AdherenceLog
	for _, r := range rows {
		switch program.SignalKind(r.Kind) {
		case program.SignalSessionLogged:
			out.SessionsLogged++
		case program.SignalMealLogged:
			out.MealsLogged += countOf(r.Value)
		}
	}
	return out, nil
}

func (s *Store) Biometrics(ctx context.Context, userID uuid.UUID, w program.Window) (signals.BiometricSeries, error) {
	rows, err := s.list(ctx, userID, w.Start, w.End, program.SignalWeight, program.SignalHRV, program.SignalRHR, program.SignalSleepHours)
	if err != nil {
		return signals.BiometricSeries{}, err
	}
	var out signals.BiometricSeries
	for _, r := range rows {
		smp := sample(r)
		switch program.SignalKind(r.Kind) {
		case program.SignalWeight:
			out.Weight = append(out.Weight, smp)
		case program.SignalHRV:
			out.HRV = append(out.HRV, smp)
		case program.SignalRHR:
			out.RHR = append(out.RHR, smp)
		case program.SignalSleepHours:
			out.Sleep = append(out.Sleep, smp)
		}
	}
	return out, nil
}

func (s *Store) Performance(ctx context.Context, userID uuid.UUID, w program.Window) (signals.PerformanceSeries, error) {
	rows, err := s.list(ctx, userID, w.Start, w.End, program.SignalRPE, program.SignalSetsCompleted, program.SignalStrength)
	if err != nil {
		return signals.PerformanceSeries{}, err
	}
	var out signals.PerformanceSeries
	for _, r := range rows {
		smp := sample(r)
		switch program.SignalKind(r.Kind) {
		case program.SignalRPE:
			out.RPE = append(out.RPE, smp)
		case program.SignalSetsCompleted:
			out.SetsCompleted = append(out.SetsCompleted, smp)
		case program.SignalStrength:
			out.Strength = append(out.Strength, smp)
		}
	}
	return out, nil
}

// Sentiment returns scores inside the window plus every life event that is
// still relevant to it: logged before the window ends and not finished before
// it starts. Events logged ahead of time are included so the controller can
// plan around them.
func (s *Store) Sentiment(ctx context.Context, userID uuid.UUID, w program.Window) (signals.SentimentSeries, error) {
	var out signals.SentimentSeries
	scores, err := s.list(ctx, userID, w.Start, w.End, program.SignalSentiment)
	if err != nil {
		return out, err
	}
	for _, r := range scores {
		out.Scores = append(out.Scores, sample(r))
	}

	events, err := s.list(ctx, userID, time.Time{}, w.End, program.SignalLifeEvent)
	if err != nil {
		return out, err
	}
	for _, r := range events {
		e, err := program.SignalFromRow(r)
		if err != nil {
			s.log.Warn("skipping undecodable life event", "event_id", r.ID, "error", err)
			continue
		}
		if e.Life == nil {
			continue
		}
		ev := *e.Life
		if ev.From.IsZero() {
			ev.From = e.OccurredAt
		}
		if !ev.To.IsZero() && ev.To.Before(w.Start) {
			continue
		}
		out.LifeEvents = append(out.LifeEvents, ev)
	}
	return out, nil
}

func (s *Store) list(ctx context.Context, userID uuid.UUID, start, end time.Time, kinds ...program.SignalKind) ([]*program.SignalEventRow, error) {
	return s.repo.ListByKinds(dbctx.Context{Ctx: ctx}, userID, kinds, start, end)
}

func sample(r *program.SignalEventRow) signals.Sample {
	return signals.Sample{At: r.OccurredAt, Value: r.Value, MuscleGroup: program.MuscleGroup(r.MuscleGroup)}
}

// countOf reads a logged count; a bare event with no value counts once.
func countOf(v float64) int {
	if v < 1 {
		return 1
	}
	return int(math.Round(v))
}
