package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidGoal = errors.New("invalid goal constraint set")

var programValidate *validator.Validate

func init() {
	programValidate = validator.New()
	_ = programValidate.RegisterValidation("musclegroup", func(fl validator.FieldLevel) bool {
		return IsMuscleGroup(MuscleGroup(fl.Field().String()))
	})
}

// ValidateGoal checks tags and the cross-field rules tags cannot express.
// Returned errors wrap ErrInvalidGoal.
func ValidateGoal(g GoalConstraintSet) error {
	if err := programValidate.Struct(g); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGoal, describe(err))
	}
	var problems []string
	seenHard := map[ConstraintKind]bool{}
	for _, c := range g.HardConstraints {
		if !c.Kind.IsHard() {
			problems = append(problems, fmt.Sprintf("%q is not a hard constraint kind", c.Kind))
			continue
		}
		if seenHard[c.Kind] {
			problems = append(problems, fmt.Sprintf("duplicate hard constraint %q", c.Kind))
		}
		seenHard[c.Kind] = true
		if c.Value < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0", c.Kind))
		}
	}
	seenSoft := map[ConstraintKind]bool{}
	for _, c := range g.SoftConstraints {
		if !c.Kind.IsSoft() {
			problems = append(problems, fmt.Sprintf("%q is not a soft constraint kind", c.Kind))
			continue
		}
		if seenSoft[c.Kind] {
			problems = append(problems, fmt.Sprintf("duplicate soft constraint %q", c.Kind))
		}
		seenSoft[c.Kind] = true
	}
	for m, v := range g.TargetMetrics {
		if m != MetricBodyWeightKg {
			problems = append(problems, fmt.Sprintf("unsupported target metric %q", m))
		} else if v < 30 || v > 300 {
			problems = append(problems, "body_weight_kg target must be within 30..300")
		}
	}
	if len(g.Baseline.TrainedMuscles()) == 0 {
		problems = append(problems, "at least one muscle group must remain trainable")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGoal, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateSignal checks one raw signal event.
func ValidateSignal(e SignalEvent) error {
	if err := programValidate.Struct(e); err != nil {
		return fmt.Errorf("invalid signal: %s", describe(err))
	}
	if !IsSignalKind(e.Kind) {
		return fmt.Errorf("invalid signal: unknown kind %q", e.Kind)
	}
	if e.Kind == SignalLifeEvent && e.Life == nil {
		return errors.New("invalid signal: life_event requires a life_event payload")
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
