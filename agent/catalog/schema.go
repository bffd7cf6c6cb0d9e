package catalog

import (
	"strings"
	"unicode"

	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

// Logical field keys. Filters and grouping use these; Schema maps them onto
// sheet columns.
const (
	FieldModel     = "model"
	FieldBrand     = "brand"
	FieldSeries    = "series"
	FieldCondition = "condition"
	FieldPrice     = "price"
	FieldHashRate  = "hash_rate"
	FieldPower     = "power"
)

// groupOrder is the narrowing order for large listings.
var groupOrder = []string{FieldBrand, FieldSeries, FieldCondition}

var entityFilters = map[statex.EntityKey]string{
	statex.EntityBrand:     FieldBrand,
	statex.EntitySeries:    FieldSeries,
	statex.EntityCondition: FieldCondition,
	statex.EntityModel:     FieldModel,
}

type Schema struct {
	Brand     string
	Series    string
	Condition string
	Price     string
	HashRate  string
	Power     string
}

func DefaultSchema() Schema {
	return Schema{}.withDefaults()
}

func (s Schema) withDefaults() Schema {
	set := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	set(&s.Brand, "Производитель")
	set(&s.Series, "Линейка")
	set(&s.Condition, "Состояние")
	set(&s.Price, "Цена")
	set(&s.HashRate, "Хэшрейт")
	set(&s.Power, "Потребление")
	return s
}

// Column returns the sheet column for a logical key. The model name lives in
// the row listing, not in a column.
func (s Schema) Column(key string) string {
	switch key {
	case FieldBrand:
		return s.Brand
	case FieldSeries:
		return s.Series
	case FieldCondition:
		return s.Condition
	case FieldPrice:
		return s.Price
	case FieldHashRate:
		return s.HashRate
	case FieldPower:
		return s.Power
	default:
		return ""
	}
}

func (s Schema) listingColumns() []string {
	return []string{s.Brand, s.Series, s.Condition}
}

func (s Schema) detailColumns() []string {
	return []string{s.Brand, s.Condition, s.Price, s.HashRate, s.Power}
}

// fold lowercases and drops everything but letters and digits, so "Б/У"
// matches "бу" and "S19 Pro" matches "s19pro".
func fold(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func matches(value, filter string) bool {
	f := fold(filter)
	if f == "" {
		return true
	}
	return strings.Contains(fold(value), f)
}
