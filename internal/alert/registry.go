package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tactix/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ruleSchema is the structural contract each declared rule must satisfy
// before it reaches the evaluator.
const ruleSchema = `{
  "type": "object",
  "required": ["id", "kind", "operator"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "kind": {"enum": ["price", "indicator", "pattern"]},
    "operator": {"enum": ["gt", "lt", "gte", "lte", "cross_above", "cross_below"]},
    "feature": {"type": "string"},
    "level": {"type": "number"},
    "cooldown_seconds": {"type": "integer", "minimum": 0},
    "params": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"kind": {"enum": ["indicator", "pattern"]}}, "required": ["kind"]},
      "then": {"required": ["feature", "level"]}
    }
  ]
}`

type fileConfig struct {
	Rules []map[string]any `yaml:"rules"`
}

// Snapshot is the immutable rule set handed to evaluation cycles.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Rules    []Rule
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry loads the declarative rule file and keeps it hot-reloaded.
// A malformed individual rule is dropped with a log line; the remainder
// of the file still loads.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema
	log    logger.ComponentLogger

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("alert registry requires path")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rule.json", strings.NewReader(ruleSchema)); err != nil {
		return nil, fmt.Errorf("alert rule schema: %w", err)
	}
	schema, err := compiler.Compile("rule.json")
	if err != nil {
		return nil, fmt.Errorf("alert rule schema: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read alert rules failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema, log: logger.Component("alert")}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			r.log.Errorf("rule reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current rule set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.snapshot
	snap.Rules = append([]Rule(nil), r.snapshot.Rules...)
	return snap
}

// OnChange registers a reload listener.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read alert rules failed: %w", err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("parse alert rules failed: %w", err)
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	seen := make(map[string]bool)
	for i, item := range cfg.Rules {
		rule, err := r.decodeRule(item)
		if err != nil {
			r.log.Warnf("rule #%d dropped: %v", i+1, err)
			continue
		}
		if seen[rule.ID] {
			r.log.Warnf("rule %s dropped: duplicate id", rule.ID)
			continue
		}
		seen[rule.ID] = true
		rules = append(rules, rule)
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Rules:    rules,
	}
	r.mu.Unlock()
	r.log.Infof("loaded %d alert rules from %s", len(rules), r.path)
	return nil
}

func (r *Registry) decodeRule(item map[string]any) (Rule, error) {
	if err := r.schema.Validate(normalizeJSONTypes(item)); err != nil {
		return Rule{}, err
	}
	var rule Rule
	if err := mapstructure.Decode(item, &rule); err != nil {
		return Rule{}, err
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Errorf("rule listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

// normalizeJSONTypes converts yaml-decoded values into the shapes the
// jsonschema validator expects (map[string]any keys, json.Number-free).
func normalizeJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeJSONTypes(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprintf("%v", k)] = normalizeJSONTypes(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeJSONTypes(child)
		}
		return out
	case int:
		return json.Number(fmt.Sprintf("%d", val))
	case int64:
		return json.Number(fmt.Sprintf("%d", val))
	case float64:
		return json.Number(fmt.Sprintf("%v", val))
	default:
		return val
	}
}
