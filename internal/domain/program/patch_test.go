package program

import "testing"

func TestConstraintPatchApply(t *testing.T) {
	g := validGoal().WithHard(SessionMinutesMin, 60)

	travel := &ConstraintPatch{Events: []LifeEventKind{LifeEventTravel}, BodyweightOnly: true, MaxSessionMinutes: 45}
	got := travel.Apply(g)
	if len(got.Baseline.Equipment) != 0 || got.Baseline.MaxSessionMinutes != 45 {
		t.Fatalf("travel: equipment=%v max=%d", got.Baseline.Equipment, got.Baseline.MaxSessionMinutes)
	}
	if _, ok := got.Hard(SessionMinutesMin); ok {
		t.Fatalf("travel: session minimum above the cap should be dropped")
	}
	if len(g.Baseline.Equipment) != 2 {
		t.Fatalf("Apply mutated its input")
	}

	injury := &ConstraintPatch{Events: []LifeEventKind{LifeEventInjury}, ExcludeMuscles: []MuscleGroup{MuscleLegs}, DropTrainingMinimums: true}
	got = injury.Apply(g)
	if !got.Baseline.Excludes(MuscleLegs) {
		t.Fatalf("injury: legs not excluded")
	}
	if _, ok := got.Hard(SessionsPerWeekMin); ok {
		t.Fatalf("injury: training minimums should be dropped")
	}

	illness := &ConstraintPatch{Events: []LifeEventKind{LifeEventIllness}, AvailableDaysCap: 2}
	got = illness.Apply(g)
	if got.Baseline.AvailableDaysPerWeek != 2 {
		t.Fatalf("illness: want=2 days got=%d", got.Baseline.AvailableDaysPerWeek)
	}
	if v, _ := got.Hard(SessionsPerWeekMin); v != 2 {
		t.Fatalf("illness: sessions minimum should fall to availability, got %v", v)
	}

	var none *ConstraintPatch
	if got := none.Apply(g); got.Baseline.AvailableDaysPerWeek != 4 {
		t.Fatalf("nil patch changed the goal")
	}
}

func TestConstraintPatchEqual(t *testing.T) {
	a := &ConstraintPatch{Events: []LifeEventKind{LifeEventTravel}, BodyweightOnly: true}
	b := &ConstraintPatch{Events: []LifeEventKind{LifeEventTravel}, BodyweightOnly: true}
	var none *ConstraintPatch
	if !a.Equal(b) || a.Equal(none) || !none.Equal(nil) {
		t.Fatalf("unexpected Equal results")
	}
}
