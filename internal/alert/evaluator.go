package alert

import (
	"context"
	"fmt"
	"time"

	"tactix/internal/feature"
	"tactix/internal/logger"
)

// Sample is one cycle's view of a symbol: latest price plus the sealed
// feature bundle. Cross operators additionally need the previous sample.
type Sample struct {
	Price  float64
	Bundle *feature.Bundle
	At     time.Time
}

// FireEvent is emitted for a notification dispatcher once a fired rule
// clears its cooldown.
type FireEvent struct {
	Symbol  string         `json:"symbol"`
	RuleID  string         `json:"rule_id"`
	FiredAt time.Time      `json:"fired_at"`
	Meta    map[string]any `json:"meta"`
}

// Evaluator runs a declarative rule batch against samples, gating fires
// through the cooldown store.
type Evaluator struct {
	store CooldownStore
	log   logger.ComponentLogger
}

func NewEvaluator(store CooldownStore) (*Evaluator, error) {
	if store == nil {
		return nil, fmt.Errorf("alert: cooldown store is required")
	}
	return &Evaluator{store: store, log: logger.Component("alert")}, nil
}

// EvaluateBatch checks every rule. A malformed or data-starved rule is
// skipped with a log line; the rest of the batch always proceeds.
func (e *Evaluator) EvaluateBatch(ctx context.Context, symbol string, rules []Rule, prev, cur Sample, now time.Time) []FireEvent {
	var events []FireEvent
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			e.log.Warnf("%s rule skipped: %v", symbol, err)
			continue
		}
		fired, meta := Evaluate(rule, prev, cur)
		if !fired {
			continue
		}
		ok, err := e.clearCooldown(ctx, symbol, rule, now)
		if err != nil {
			// Unreadable cooldown record: treat as no prior fire rather
			// than failing the batch.
			e.log.Warnf("%s/%s cooldown unreadable, assuming clear: %v", symbol, rule.ID, err)
			ok = true
		}
		if !ok {
			continue
		}
		events = append(events, FireEvent{Symbol: symbol, RuleID: rule.ID, FiredAt: now, Meta: meta})
		if err := e.store.RecordFire(ctx, symbol, rule.ID, now); err != nil {
			e.log.Errorf("%s/%s record fire failed: %v", symbol, rule.ID, err)
		}
	}
	return events
}

// clearCooldown reports whether the rule may emit at now. A suppressed
// fire is not re-recorded, so the window is anchored at the original fire.
func (e *Evaluator) clearCooldown(ctx context.Context, symbol string, rule Rule, now time.Time) (bool, error) {
	if rule.CooldownSeconds <= 0 {
		return true, nil
	}
	last, found, err := e.store.LastFire(ctx, symbol, rule.ID)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return now.Sub(last) >= time.Duration(rule.CooldownSeconds)*time.Second, nil
}

// Evaluate applies one rule to the sample pair. It never returns an
// error: a missing or unavailable reference resolves to (false, meta).
func Evaluate(rule Rule, prev, cur Sample) (bool, map[string]any) {
	meta := map[string]any{
		"kind":     string(rule.Kind),
		"operator": string(rule.Operator),
	}
	curVal, curOK := resolveValue(rule, cur)
	level, levelOK := resolveLevel(rule, cur)
	if !curOK || !levelOK {
		meta["missing_reference"] = true
		return false, meta
	}
	meta["value"] = curVal
	meta["level"] = level

	switch rule.Operator {
	case OpGT:
		return curVal > level, meta
	case OpLT:
		return curVal < level, meta
	case OpGTE:
		return curVal >= level, meta
	case OpLTE:
		return curVal <= level, meta
	case OpCrossAbove, OpCrossBelow:
		prevVal, prevOK := resolveValue(rule, prev)
		prevLevel, prevLevelOK := resolveLevel(rule, prev)
		if !prevOK || !prevLevelOK {
			meta["missing_reference"] = true
			return false, meta
		}
		meta["prev_value"] = prevVal
		// Fire only on the sign change of (value - level); the
		// post-condition persisting never re-fires.
		if rule.Operator == OpCrossAbove {
			return prevVal < prevLevel && curVal >= level, meta
		}
		return prevVal > prevLevel && curVal <= level, meta
	default:
		meta["missing_reference"] = true
		return false, meta
	}
}

// resolveValue picks the rule's left-hand side from the sample.
func resolveValue(rule Rule, s Sample) (float64, bool) {
	switch rule.Kind {
	case KindPrice:
		if s.Price <= 0 {
			return 0, false
		}
		return s.Price, true
	default:
		if s.Bundle == nil {
			return 0, false
		}
		return s.Bundle.Float(rule.Feature)
	}
}

// resolveLevel picks the right-hand side: a literal level, or for price
// rules without one, the named feature (price vs indicator crossings).
// A level-less rule of any other kind is unresolvable, never implicitly
// zero.
func resolveLevel(rule Rule, s Sample) (float64, bool) {
	if rule.Level != nil {
		return *rule.Level, true
	}
	if rule.Kind == KindPrice && rule.Feature != "" {
		if s.Bundle == nil {
			return 0, false
		}
		return s.Bundle.Float(rule.Feature)
	}
	return 0, false
}
