package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Category groups predicate keys by the part of the context snapshot they read.
type Category string

const (
	CategoryEnvironmental Category = "environmental"
	CategoryTemporal      Category = "temporal"
	CategoryLocation      Category = "location"
	CategoryPromotional   Category = "promotional"
	CategoryDemographic   Category = "demographic"
)

// Operator is the comparison a predicate applies.
type Operator string

const (
	OpGreaterThan    Operator = "greater_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessThan       Operator = "less_than"
	OpLessOrEqual    Operator = "less_or_equal"
	OpEqual          Operator = "equal"
	OpContains       Operator = "contains"
	OpIsTrue         Operator = "is_true"
	OpIsFalse        Operator = "is_false"
	OpIn             Operator = "in"
	OpBetween        Operator = "between"

	// authoring aliases
	OpAbove Operator = "above"
	OpBelow Operator = "below"
)

// Canonical resolves operator aliases.
func (o Operator) Canonical() Operator {
	switch Operator(strings.ToLower(string(o))) {
	case OpAbove:
		return OpGreaterThan
	case OpBelow:
		return OpLessThan
	default:
		return Operator(strings.ToLower(string(o)))
	}
}

// Operand carries the right-hand side of a predicate. Which field is read
// depends on the key's ValueKind.
type Operand struct {
	Number *float64    `json:"number,omitempty" yaml:"number,omitempty"`
	Text   string      `json:"text,omitempty" yaml:"text,omitempty"`
	Set    []string    `json:"set,omitempty" yaml:"set,omitempty"`
	Window *TimeWindow `json:"window,omitempty" yaml:"window,omitempty"`
}

// Predicate is one typed condition on a context snapshot.
type Predicate struct {
	Category Category `json:"category" yaml:"category"`
	Key      string   `json:"key" yaml:"key"`
	Operator Operator `json:"operator" yaml:"operator"`
	Operand  Operand  `json:"operand" yaml:"operand"`
}

func (p Predicate) String() string {
	var rhs string
	switch {
	case p.Operand.Number != nil:
		rhs = strconv.FormatFloat(*p.Operand.Number, 'f', -1, 64)
	case p.Operand.Window != nil:
		rhs = p.Operand.Window.Start.String() + "-" + p.Operand.Window.End.String()
	case len(p.Operand.Set) > 0:
		rhs = "[" + strings.Join(p.Operand.Set, ",") + "]"
	case p.Operand.Text != "":
		rhs = strconv.Quote(p.Operand.Text)
	}
	s := fmt.Sprintf("%s.%s %s", p.Category, p.Key, p.Operator.Canonical())
	if rhs != "" {
		s += " " + rhs
	}
	return s
}

func (p Predicate) clone() Predicate {
	out := p
	if p.Operand.Number != nil {
		n := *p.Operand.Number
		out.Operand.Number = &n
	}
	if p.Operand.Window != nil {
		w := *p.Operand.Window
		out.Operand.Window = &w
	}
	out.Operand.Set = append([]string(nil), p.Operand.Set...)
	return out
}

// ValueKind describes the type of snapshot value a key resolves to.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindText
	KindBool
	KindEnum
	KindTimeOfDay
)

// KeySpec describes a known predicate key.
type KeySpec struct {
	Kind      ValueKind
	Operators []Operator
}

// Supports reports whether op (after alias resolution) is allowed for the key.
func (k KeySpec) Supports(op Operator) bool {
	op = op.Canonical()
	for _, o := range k.Operators {
		if o == op {
			return true
		}
	}
	return false
}

var (
	numericOps = []Operator{OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual}
	textOps    = []Operator{OpContains, OpEqual, OpIn}
	boolOps    = []Operator{OpIsTrue, OpIsFalse}
	enumOps    = []Operator{OpIn, OpEqual}
	todOps     = []Operator{OpBetween}
)

// Predicate keys understood by the evaluator.
const (
	KeyTemperature  = "temperature"
	KeyHumidity     = "humidity"
	KeyWeather      = "weather"
	KeyTimeOfDay    = "time_of_day"
	KeyWeekday      = "weekday"
	KeyWeekend      = "weekend"
	KeyHoliday      = "holiday"
	KeyLocationType = "location_type"
	KeyFootTraffic  = "foot_traffic"
	KeyCrowdDensity = "crowd_density"
	KeyPromotion    = "promotion_type"
	KeyDiscount     = "discount"
	KeyStockLevel   = "stock_level"
	KeyAgeBand      = "age_band"
	KeyGender       = "gender"
	KeySpendSegment = "spend_segment"
)

var predicateCatalogue = map[Category]map[string]KeySpec{
	CategoryEnvironmental: {
		KeyTemperature: {KindNumber, numericOps},
		KeyHumidity:    {KindNumber, numericOps},
		KeyWeather:     {KindText, textOps},
	},
	CategoryTemporal: {
		KeyTimeOfDay: {KindTimeOfDay, todOps},
		KeyWeekday:   {KindEnum, enumOps},
		KeyWeekend:   {KindBool, boolOps},
		KeyHoliday:   {KindBool, boolOps},
	},
	CategoryLocation: {
		KeyLocationType: {KindEnum, enumOps},
		KeyFootTraffic:  {KindNumber, numericOps},
		KeyCrowdDensity: {KindNumber, numericOps},
	},
	CategoryPromotional: {
		KeyPromotion:  {KindEnum, enumOps},
		KeyDiscount:   {KindNumber, numericOps},
		KeyStockLevel: {KindNumber, numericOps},
	},
	CategoryDemographic: {
		KeyAgeBand:      {KindEnum, enumOps},
		KeyGender:       {KindEnum, enumOps},
		KeySpendSegment: {KindEnum, enumOps},
	},
}

// LookupKey returns the KeySpec for a category/key pair. ok is false when either
// the category or the key is unknown.
func LookupKey(category Category, key string) (KeySpec, bool) {
	keys, ok := predicateCatalogue[Category(strings.ToLower(string(category)))]
	if !ok {
		return KeySpec{}, false
	}
	spec, ok := keys[strings.ToLower(key)]
	return spec, ok
}
