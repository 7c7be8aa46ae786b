package household

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

type taskSeed struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Order int    `yaml:"order"`
}

type cardSeed struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Summary *string  `yaml:"summary"`
	Weekday int      `yaml:"weekday"`
	TaskIDs []string `yaml:"taskIds"`
}

type seedTables struct {
	Tasks []taskSeed `yaml:"tasks"`
	Cards []cardSeed `yaml:"cards"`
}

var loadSeeds = sync.OnceValues(func() (seedTables, error) {
	var tables seedTables
	dec := yaml.NewDecoder(bytes.NewReader(seedsYAML))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil {
		return seedTables{}, fmt.Errorf("parsing household seeds: %w", err)
	}
	return tables, nil
})

// seedTime stamps every seeded record so it is distinguishable from user data.
var seedTime = time.Unix(0, 0).UTC()

// DefaultState builds the seeded household document.
func DefaultState() State {
	tables, err := loadSeeds()
	if err != nil {
		panic(err)
	}

	state := State{
		Version: SchemaVersion,
		Tasks:   make([]Task, 0, len(tables.Tasks)),
		Cards:   make([]Card, 0, len(tables.Cards)),
		Entries: []Entry{},
	}
	for _, t := range tables.Tasks {
		state.Tasks = append(state.Tasks, Task{
			ID:        t.ID,
			Label:     t.Label,
			Order:     t.Order,
			Active:    true,
			CreatedAt: seedTime,
			UpdatedAt: seedTime,
		})
	}
	for _, c := range tables.Cards {
		state.Cards = append(state.Cards, Card{
			ID:        c.ID,
			Title:     c.Title,
			Summary:   cloneString(c.Summary),
			Weekday:   c.Weekday,
			TaskIDs:   append([]string{}, c.TaskIDs...),
			CreatedAt: seedTime,
			UpdatedAt: seedTime,
		})
	}
	return state
}
