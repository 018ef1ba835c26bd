package program

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

func encodeJSON(field string, v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", field, err)
	}
	return datatypes.JSON(b), nil
}

type encoder struct {
	err error
}

func (e *encoder) json(field string, v any) datatypes.JSON {
	if e.err != nil {
		return nil
	}
	out, err := encodeJSON(field, v)
	if err != nil {
		e.err = err
	}
	return out
}

func PlanVersionToRow(v PlanVersion) (*PlanVersionRow, error) {
	enc := &encoder{}
	row := &PlanVersionRow{
		ID:              v.ID,
		UserID:          v.UserID,
		VersionNumber:   v.VersionNumber,
		ParentVersionID: v.ParentVersionID,
		Status:          string(v.Status),
		SchemaVersion:   CurrentSchemaVersion,
		Goal:            enc.json("goal", v.Goal),
		Patch:           enc.json("constraint_patch", v.Patch),
		PlanParams:      enc.json("plan_params", v.Params),
		Training:        enc.json("training", nonNilSlice(v.Training)),
		Nutrition:       enc.json("nutrition", nonNilSlice(v.Nutrition)),
		Rationale:       v.Rationale,
		Assumptions:     enc.json("assumptions", nonNilSlice(v.Assumptions)),
		Confidence:      enc.json("confidence", nonNilMap(v.Confidence)),
		Drift:           enc.json("drift", nonNilMap(v.Drift)),
		StartDate:       v.StartDate,
		CreatedAt:       v.CreatedAt,
		ActivatedAt:     v.ActivatedAt,
		ClosedAt:        v.ClosedAt,
	}
	if enc.err != nil {
		return nil, enc.err
	}
	return row, nil
}

func PlanVersionFromRow(r *PlanVersionRow) (PlanVersion, error) {
	out := PlanVersion{
		ID:              r.ID,
		UserID:          r.UserID,
		VersionNumber:   r.VersionNumber,
		ParentVersionID: r.ParentVersionID,
		Status:          PlanStatus(r.Status),
		Rationale:       r.Rationale,
		StartDate:       r.StartDate,
		SchemaVersion:   r.SchemaVersion,
		CreatedAt:       r.CreatedAt,
		ActivatedAt:     r.ActivatedAt,
		ClosedAt:        r.ClosedAt,
	}
	v := r.SchemaVersion
	if err := DecodePayload(PayloadGoal, v, r.Goal, &out.Goal); err != nil {
		return out, err
	}
	if err := DecodePayload(PayloadPlanParams, v, r.PlanParams, &out.Params); err != nil {
		return out, err
	}
	if err := DecodePayload(PayloadTraining, v, r.Training, &out.Training); err != nil {
		return out, err
	}
	if err := DecodePayload(PayloadNutrition, v, r.Nutrition, &out.Nutrition); err != nil {
		return out, err
	}
	if len(r.Patch) > 0 && string(r.Patch) != "null" {
		out.Patch = &ConstraintPatch{}
		if err := json.Unmarshal(r.Patch, out.Patch); err != nil {
			return out, fmt.Errorf("decode constraint_patch: %w", err)
		}
	}
	if len(r.Assumptions) > 0 {
		if err := json.Unmarshal(r.Assumptions, &out.Assumptions); err != nil {
			return out, fmt.Errorf("decode assumptions: %w", err)
		}
	}
	if len(r.Confidence) > 0 {
		if err := json.Unmarshal(r.Confidence, &out.Confidence); err != nil {
			return out, fmt.Errorf("decode confidence: %w", err)
		}
	}
	if len(r.Drift) > 0 {
		if err := json.Unmarshal(r.Drift, &out.Drift); err != nil {
			return out, fmt.Errorf("decode drift: %w", err)
		}
	}
	return out, nil
}

func AdjustmentToRow(a AdjustmentRecord) (*AdjustmentRecordRow, error) {
	enc := &encoder{}
	row := &AdjustmentRecordRow{
		ID:             a.ID,
		UserID:         a.UserID,
		FromVersionID:  a.FromVersionID,
		ToVersionID:    a.ToVersionID,
		AdjustmentDate: a.AdjustmentDate,
		TriggerReason:  string(a.TriggerReason),
		AdjustmentType: string(a.AdjustmentType),
		SchemaVersion:  CurrentSchemaVersion,
		Adherence:      enc.json("adherence_metrics", a.AdherenceMetrics),
		Biometrics:     enc.json("biometric_trends", a.BiometricTrends),
		Performance:    enc.json("performance_markers", a.PerformanceMarkers),
		Sentiment:      enc.json("sentiment_analysis", a.SentimentAnalysis),
		Adjustments:    enc.json("adjustments", nonNilAdjustments(a.Adjustments)),
		Rationale:      a.Rationale,
		Warnings:       enc.json("warnings", nonNilSlice(a.Warnings)),
		Resolved:       a.Resolved,
		CreatedAt:      a.CreatedAt,
	}
	if enc.err != nil {
		return nil, enc.err
	}
	return row, nil
}

func AdjustmentFromRow(r *AdjustmentRecordRow) (AdjustmentRecord, error) {
	out := AdjustmentRecord{
		ID:             r.ID,
		UserID:         r.UserID,
		FromVersionID:  r.FromVersionID,
		ToVersionID:    r.ToVersionID,
		AdjustmentDate: r.AdjustmentDate,
		TriggerReason:  TriggerReason(r.TriggerReason),
		AdjustmentType: AdjustmentType(r.AdjustmentType),
		Rationale:      r.Rationale,
		Resolved:       r.Resolved,
		SchemaVersion:  r.SchemaVersion,
		CreatedAt:      r.CreatedAt,
	}
	fields := []struct {
		name string
		raw  datatypes.JSON
		dst  any
	}{
		{"adherence_metrics", r.Adherence, &out.AdherenceMetrics},
		{"biometric_trends", r.Biometrics, &out.BiometricTrends},
		{"performance_markers", r.Performance, &out.PerformanceMarkers},
		{"sentiment_analysis", r.Sentiment, &out.SentimentAnalysis},
		{"warnings", r.Warnings, &out.Warnings},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return out, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	if err := DecodePayload(PayloadAdjustments, r.SchemaVersion, r.Adjustments, &out.Adjustments); err != nil {
		return out, err
	}
	return out, nil
}

func FeasibilityToRow(in FeasibilityCheck) (*FeasibilityCheckRow, error) {
	enc := &encoder{}
	row := &FeasibilityCheckRow{
		ID:               in.ID,
		UserID:           in.UserID,
		PlanVersionID:    in.PlanVersionID,
		IsFeasible:       in.Result.IsFeasible,
		SchemaVersion:    CurrentSchemaVersion,
		Goal:             enc.json("goal", in.Goal),
		Result:           enc.json("result", in.Result),
		SolverIterations: in.Result.SolverIterations,
		SolverRuntimeMs:  in.Result.SolverRuntimeMs,
		CreatedAt:        in.CreatedAt,
	}
	if enc.err != nil {
		return nil, enc.err
	}
	return row, nil
}

func FeasibilityFromRow(r *FeasibilityCheckRow) (FeasibilityCheck, error) {
	out := FeasibilityCheck{
		ID:            r.ID,
		UserID:        r.UserID,
		PlanVersionID: r.PlanVersionID,
		CreatedAt:     r.CreatedAt,
	}
	if err := DecodePayload(PayloadGoal, r.SchemaVersion, r.Goal, &out.Goal); err != nil {
		return out, err
	}
	if len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, &out.Result); err != nil {
			return out, fmt.Errorf("decode result: %w", err)
		}
	}
	return out, nil
}

func SignalToRow(e SignalEvent) (*SignalEventRow, error) {
	enc := &encoder{}
	payload := datatypes.JSON(`{}`)
	if e.Life != nil {
		payload = enc.json("payload", e.Life)
	}
	if enc.err != nil {
		return nil, enc.err
	}
	return &SignalEventRow{
		ID:          e.ID,
		UserID:      e.UserID,
		Kind:        string(e.Kind),
		OccurredAt:  e.OccurredAt.UTC(),
		Value:       e.Value,
		MuscleGroup: string(e.MuscleGroup),
		Payload:     payload,
		Note:        e.Note,
	}, nil
}

func SignalFromRow(r *SignalEventRow) (SignalEvent, error) {
	out := SignalEvent{
		ID:          r.ID,
		UserID:      r.UserID,
		Kind:        SignalKind(r.Kind),
		Value:       r.Value,
		MuscleGroup: MuscleGroup(r.MuscleGroup),
		OccurredAt:  r.OccurredAt,
		Note:        r.Note,
	}
	if out.Kind == SignalLifeEvent && len(r.Payload) > 0 {
		var ev LifeEvent
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return out, fmt.Errorf("decode life event: %w", err)
		}
		out.Life = &ev
	}
	return out, nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func nonNilMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return map[string]float64{}
	}
	return in
}

func nonNilAdjustments(in map[string]ChannelAdjustment) map[string]ChannelAdjustment {
	if in == nil {
		return map[string]ChannelAdjustment{}
	}
	return in
}
