package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
)

//go:embed catalog.yaml
var defaultCatalogFS embed.FS

type Exercise struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	MuscleGroup program.MuscleGroup `yaml:"muscle_group" json:"muscle_group"`
	Equipment   []string            `yaml:"equipment" json:"equipment"`
	Level       program.Experience  `yaml:"level" json:"level"`
}

type MealTemplate struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Slots    []string `yaml:"slots" json:"slots"`
	Calories float64  `yaml:"calories" json:"calories"`
	ProteinG float64  `yaml:"protein_g" json:"protein_g"`
	CarbsG   float64  `yaml:"carbs_g" json:"carbs_g"`
	FatG     float64  `yaml:"fat_g" json:"fat_g"`
	Tags     []string `yaml:"tags" json:"tags"`
	Contains []string `yaml:"contains" json:"contains"`
}

type ExerciseQuery struct {
	MuscleGroup program.MuscleGroup
	Equipment   []string
	Experience  program.Experience
}

type MealQuery struct {
	Slot         string
	Restrictions []string
}

type yamlCatalog struct {
	Catalog   string         `yaml:"catalog"`
	Version   int            `yaml:"version"`
	Exercises []Exercise     `yaml:"exercises"`
	Meals     []MealTemplate `yaml:"meals"`
}

// Catalog is an immutable, in-memory content library. Query results are
// sorted by id so callers can pick deterministically.
type Catalog struct {
	exercises map[program.MuscleGroup][]Exercise
	meals     map[string][]MealTemplate
}

// dietTags are restrictions satisfied by a tag on the meal; any other
// restriction names an ingredient the meal must not contain.
var dietTags = map[string]bool{
	"vegetarian":  true,
	"vegan":       true,
	"gluten_free": true,
	"dairy_free":  true,
}

var levelRank = map[program.Experience]int{
	program.ExperienceNovice:       0,
	program.ExperienceIntermediate: 1,
	program.ExperienceAdvanced:     2,
}

func Parse(data []byte) (*Catalog, error) {
	var spec yamlCatalog
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := validate(&spec); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c := &Catalog{
		exercises: map[program.MuscleGroup][]Exercise{},
		meals:     map[string][]MealTemplate{},
	}
	for _, e := range spec.Exercises {
		if e.Level == "" {
			e.Level = program.ExperienceNovice
		}
		e.Equipment = normalize(e.Equipment)
		c.exercises[e.MuscleGroup] = append(c.exercises[e.MuscleGroup], e)
	}
	for _, m := range spec.Meals {
		m.Tags = normalize(m.Tags)
		m.Contains = normalize(m.Contains)
		for _, slot := range normalize(m.Slots) {
			c.meals[slot] = append(c.meals[slot], m)
		}
	}
	for k := range c.exercises {
		list := c.exercises[k]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	for k := range c.meals {
		list := c.meals[k]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return c, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		return Parse(data)
	}
	return Default()
}

func Default() (*Catalog, error) {
	data, err := defaultCatalogFS.ReadFile("catalog.yaml")
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func validate(spec *yamlCatalog) error {
	if len(spec.Exercises) == 0 {
		return errors.New("no exercises defined")
	}
	if len(spec.Meals) == 0 {
		return errors.New("no meals defined")
	}
	seen := map[string]bool{}
	for _, e := range spec.Exercises {
		if strings.TrimSpace(e.ID) == "" {
			return errors.New("exercise id is required")
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate exercise id: %s", e.ID)
		}
		seen[e.ID] = true
		if !program.IsMuscleGroup(e.MuscleGroup) {
			return fmt.Errorf("exercise %s: unknown muscle group %q", e.ID, e.MuscleGroup)
		}
		if _, ok := levelRank[e.Level]; e.Level != "" && !ok {
			return fmt.Errorf("exercise %s: unknown level %q", e.ID, e.Level)
		}
	}
	for _, m := range spec.Meals {
		if strings.TrimSpace(m.ID) == "" {
			return errors.New("meal id is required")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate meal id: %s", m.ID)
		}
		seen[m.ID] = true
		if len(m.Slots) == 0 {
			return fmt.Errorf("meal %s: no slots", m.ID)
		}
		if m.Calories <= 0 {
			return fmt.Errorf("meal %s: calories must be positive", m.ID)
		}
	}
	return nil
}

// Exercises returns the exercises for one muscle group that need only the
// given equipment and suit the experience tier.
func (c *Catalog) Exercises(_ context.Context, q ExerciseQuery) ([]Exercise, error) {
	have := normalize(q.Equipment)
	rank, ok := levelRank[q.Experience]
	if !ok {
		rank = 0
	}
	var out []Exercise
	for _, e := range c.exercises[q.MuscleGroup] {
		if levelRank[e.Level] > rank {
			continue
		}
		if !containsAll(have, e.Equipment) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Meals returns the templates for a slot that respect every restriction.
func (c *Catalog) Meals(_ context.Context, q MealQuery) ([]MealTemplate, error) {
	restrictions := normalize(q.Restrictions)
	var out []MealTemplate
	for _, m := range c.meals[strings.ToLower(strings.TrimSpace(q.Slot))] {
		if allowed(m, restrictions) {
			out = append(out, m)
		}
	}
	return out, nil
}

func allowed(m MealTemplate, restrictions []string) bool {
	for _, r := range restrictions {
		if dietTags[r] {
			if !contains(m.Tags, r) {
				return false
			}
			continue
		}
		if contains(m.Contains, r) {
			return false
		}
	}
	return true
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

func containsAll(have, need []string) bool {
	for _, n := range need {
		if !contains(have, n) {
			return false
		}
	}
	return true
}
