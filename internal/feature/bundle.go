package feature

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Bundle holds the named feature values for one (symbol, timeframe,
// timestamp). It is assembled during a cycle and sealed before any
// consumer sees it; writes after Seal are dropped.
type Bundle struct {
	Symbol    string
	Timeframe string
	Timestamp time.Time

	values map[string]Value
	sealed bool
}

func NewBundle(symbol, timeframe string, ts time.Time) *Bundle {
	return &Bundle{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Timeframe: strings.ToLower(strings.TrimSpace(timeframe)),
		Timestamp: ts,
		values:    make(map[string]Value),
	}
}

// Set stores a value under the normalized name. Last write wins until Seal.
func (b *Bundle) Set(name string, v Value) {
	if b == nil || b.sealed {
		return
	}
	key := Normalize(name)
	if key == "" {
		return
	}
	b.values[key] = v
}

// Seal freezes the bundle for the rest of the cycle.
func (b *Bundle) Seal() {
	if b != nil {
		b.sealed = true
	}
}

// Get looks up a value by case-insensitive, punctuation-normalized name.
func (b *Bundle) Get(name string) (Value, bool) {
	if b == nil {
		return Missing(), false
	}
	v, ok := b.values[Normalize(name)]
	if !ok {
		return Missing(), false
	}
	return v, true
}

// Float is a convenience for numeric lookups; missing or categorical
// values report ok=false.
func (b *Bundle) Float(name string) (float64, bool) {
	v, ok := b.Get(name)
	if !ok {
		return 0, false
	}
	return v.Float()
}

func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.values)
}

// Names returns the sorted normalized names currently in the bundle.
func (b *Bundle) Names() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.values))
	for k := range b.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize lowers the name and collapses whitespace and punctuation runs
// to single underscores, so "RSI-14", "rsi 14" and "rsi_14" collide.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
