package alert

import (
	"fmt"
	"strings"
)

// Kind selects what a rule's reference resolves against.
type Kind string

const (
	KindPrice     Kind = "price"
	KindIndicator Kind = "indicator"
	KindPattern   Kind = "pattern"
)

// Operator is the comparison applied to (value, level).
type Operator string

const (
	OpGT         Operator = "gt"
	OpLT         Operator = "lt"
	OpGTE        Operator = "gte"
	OpLTE        Operator = "lte"
	OpCrossAbove Operator = "cross_above"
	OpCrossBelow Operator = "cross_below"
)

// Rule is one declarative alert condition. Rules arrive already parsed
// from the rule registry and are immutable at evaluation time.
type Rule struct {
	ID              string         `yaml:"id" mapstructure:"id"`
	Kind            Kind           `yaml:"kind" mapstructure:"kind"`
	Operator        Operator       `yaml:"operator" mapstructure:"operator"`
	Feature         string         `yaml:"feature" mapstructure:"feature"`
	Level           *float64       `yaml:"level" mapstructure:"level"`
	CooldownSeconds int            `yaml:"cooldown_seconds" mapstructure:"cooldown_seconds"`
	Params          map[string]any `yaml:"params" mapstructure:"params"`
}

// Validate rejects structurally broken rules; a failing rule is dropped
// from the batch, never the batch itself.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule id is required")
	}
	switch r.Kind {
	case KindPrice, KindIndicator, KindPattern:
	default:
		return fmt.Errorf("rule %s: unknown kind %q", r.ID, r.Kind)
	}
	switch r.Operator {
	case OpGT, OpLT, OpGTE, OpLTE, OpCrossAbove, OpCrossBelow:
	default:
		return fmt.Errorf("rule %s: unknown operator %q", r.ID, r.Operator)
	}
	if r.Kind == KindPrice && r.Level == nil && strings.TrimSpace(r.Feature) == "" {
		return fmt.Errorf("rule %s: price rule needs a level or a feature reference", r.ID)
	}
	if r.Kind != KindPrice && strings.TrimSpace(r.Feature) == "" {
		return fmt.Errorf("rule %s: %s rule needs a feature reference", r.ID, r.Kind)
	}
	if r.Kind != KindPrice && r.Level == nil {
		return fmt.Errorf("rule %s: %s rule needs a literal level", r.ID, r.Kind)
	}
	if r.CooldownSeconds < 0 {
		return fmt.Errorf("rule %s: cooldown_seconds must be >= 0", r.ID)
	}
	return nil
}
