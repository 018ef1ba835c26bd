package program

import (
	"encoding/json"
	"fmt"
)

// CurrentSchemaVersion is stamped on every payload written today.
const CurrentSchemaVersion = 2

type PayloadKind string

const (
	PayloadPlanParams  PayloadKind = "plan_params"
	PayloadGoal        PayloadKind = "goal"
	PayloadTraining    PayloadKind = "training"
	PayloadNutrition   PayloadKind = "nutrition"
	PayloadAdjustments PayloadKind = "adjustments"
)

// migration upgrades one payload from version N to N+1.
type migration func(doc map[string]any) (map[string]any, error)

var migrations = map[PayloadKind]map[int]migration{
	PayloadPlanParams: {
		1: planParamsV1ToV2,
	},
	PayloadGoal: {
		1: goalV1ToV2,
	},
}

// MigratePayload upgrades a stored JSON document from fromVersion to
// CurrentSchemaVersion. Kinds without registered steps pass through unchanged.
func MigratePayload(kind PayloadKind, fromVersion int, raw []byte) ([]byte, error) {
	if fromVersion == CurrentSchemaVersion || len(raw) == 0 {
		return raw, nil
	}
	if fromVersion <= 0 || fromVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("%s: unsupported schema version %d", kind, fromVersion)
	}
	steps := migrations[kind]
	if len(steps) == 0 {
		return raw, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: decode v%d: %w", kind, fromVersion, err)
	}
	for v := fromVersion; v < CurrentSchemaVersion; v++ {
		step, ok := steps[v]
		if !ok {
			continue
		}
		next, err := step(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: migrate v%d->v%d: %w", kind, v, v+1, err)
		}
		doc = next
	}
	return json.Marshal(doc)
}

// DecodePayload migrates and unmarshals a stored payload into out.
func DecodePayload(kind PayloadKind, version int, raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	upgraded, err := MigratePayload(kind, version, raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(upgraded, out); err != nil {
		return fmt.Errorf("%s: decode: %w", kind, err)
	}
	return nil
}

// v1 stored one weekly_sets figure for every muscle and called meal
// frequency "meals".
func planParamsV1ToV2(doc map[string]any) (map[string]any, error) {
	if raw, ok := doc["weekly_sets"]; ok {
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("weekly_sets: want number, got %T", raw)
		}
		per := map[string]any{}
		for _, m := range MuscleGroups {
			per[string(m)] = n
		}
		doc["weekly_sets_per_muscle"] = per
		delete(doc, "weekly_sets")
	}
	if raw, ok := doc["meals"]; ok {
		doc["meals_per_day"] = raw
		delete(doc, "meals")
	}
	if _, ok := doc["split"]; !ok {
		if f, ok := doc["sessions_per_week"].(float64); ok {
			doc["split"] = string(SplitFor(int(f)))
		}
	}
	return doc, nil
}

// v1 goals carried a bare "target_weight_kg" instead of target_metrics.
func goalV1ToV2(doc map[string]any) (map[string]any, error) {
	if raw, ok := doc["target_weight_kg"]; ok {
		metrics, _ := doc["target_metrics"].(map[string]any)
		if metrics == nil {
			metrics = map[string]any{}
		}
		metrics[string(MetricBodyWeightKg)] = raw
		doc["target_metrics"] = metrics
		delete(doc, "target_weight_kg")
	}
	return doc, nil
}
