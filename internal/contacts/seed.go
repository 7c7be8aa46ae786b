package contacts

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var seedsYAML []byte

type personSeed struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Relation    Relation `yaml:"relation"`
	Note        *string  `yaml:"note"`
	Assignments struct {
		Daily  []Activity `yaml:"daily"`
		Weekly []Activity `yaml:"weekly"`
	} `yaml:"assignments"`
}

var loadSeeds = sync.OnceValues(func() ([]personSeed, error) {
	var tables struct {
		Persons []personSeed `yaml:"persons"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(seedsYAML))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil {
		return nil, fmt.Errorf("parsing contact seeds: %w", err)
	}
	return tables.Persons, nil
})

var seedTime = time.Unix(0, 0).UTC()

// DefaultState builds the seeded contacts document. Seeded assignment ids
// are derived from person, cadence and activity.
func DefaultState() State {
	seeds, err := loadSeeds()
	if err != nil {
		panic(err)
	}

	state := State{
		Version:     SchemaVersion,
		Persons:     make([]Person, 0, len(seeds)),
		Assignments: []Assignment{},
		Logs:        []Log{},
	}
	for _, p := range seeds {
		state.Persons = append(state.Persons, Person{
			ID:        p.ID,
			Name:      p.Name,
			Relation:  p.Relation,
			Note:      cloneString(p.Note),
			CreatedAt: seedTime,
			UpdatedAt: seedTime,
		})
		plan := []struct {
			cadence    Cadence
			activities []Activity
		}{
			{CadenceDaily, p.Assignments.Daily},
			{CadenceWeekly, p.Assignments.Weekly},
		}
		for _, c := range plan {
			for _, a := range c.activities {
				state.Assignments = append(state.Assignments, Assignment{
					ID:        fmt.Sprintf("%s-%s-%s", p.ID, c.cadence, a),
					PersonID:  p.ID,
					Activity:  a,
					Cadence:   c.cadence,
					CreatedAt: seedTime,
					UpdatedAt: seedTime,
				})
			}
		}
	}
	return state
}
