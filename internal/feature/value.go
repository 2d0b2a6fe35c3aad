package feature

// Kind tags the payload shape of a feature value. Downstream components
// switch on Kind instead of pattern-matching ad-hoc shapes.
type Kind int

const (
	KindMissing Kind = iota
	KindNumeric
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return "missing"
	}
}

// Value is a tagged variant: numeric, categorical label, or missing.
type Value struct {
	Kind  Kind    `json:"kind"`
	Num   float64 `json:"num,omitempty"`
	Label string  `json:"label,omitempty"`
}

func Numeric(v float64) Value        { return Value{Kind: KindNumeric, Num: v} }
func Categorical(label string) Value { return Value{Kind: KindCategorical, Label: label} }
func Missing() Value                 { return Value{Kind: KindMissing} }

// Float returns the numeric payload when present.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumeric {
		return 0, false
	}
	return v.Num, true
}

// Category returns the categorical label when present.
func (v Value) Category() (string, bool) {
	if v.Kind != KindCategorical {
		return "", false
	}
	return v.Label, true
}

func (v Value) IsMissing() bool { return v.Kind == KindMissing }
