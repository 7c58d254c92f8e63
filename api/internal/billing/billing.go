// Package billing holds the subscription plan catalogue.
package billing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// DefaultPlan is used when a webhook names a plan the catalogue does not know.
const DefaultPlan = "pro"

type Plan struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Price        float64 `yaml:"price"`
	DurationDays int     `yaml:"duration_days"`
}

func (p Plan) Free() bool { return p.Price == 0 }

// AmountValue formats the price the way YooKassa expects ("990.00").
func (p Plan) AmountValue() string { return fmt.Sprintf("%.2f", p.Price) }

type Catalog struct {
	plans map[string]Plan
	order []string
}

// Load parses a catalogue document.
func Load(doc []byte) (*Catalog, error) {
	var raw struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	c := &Catalog{plans: make(map[string]Plan, len(raw.Plans))}
	for _, p := range raw.Plans {
		if p.ID == "" || p.DurationDays <= 0 || p.Price < 0 {
			return nil, fmt.Errorf("plan %q: id, positive duration and non-negative price are required", p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %q declared twice", p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Default returns the embedded catalogue.
func Default() *Catalog {
	c, err := Load(defaultPlans)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// GetOrDefault falls back to DefaultPlan for unknown ids.
func (c *Catalog) GetOrDefault(id string) Plan {
	if p, ok := c.plans[id]; ok {
		return p
	}
	return c.plans[DefaultPlan]
}

func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
