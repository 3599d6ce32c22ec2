package filter

import (
	"fmt"
	"sort"
	"strings"
)

// MaxValuesPerGroup is the maximum number of values accepted for one field.
const MaxValuesPerGroup = 32

// Expression is a structured term filter: groups are AND-combined, values
// inside a group are OR-combined, and must-not conditions exclude matches.
type Expression struct {
	groups  []Group
	mustNot []Condition
}

// MaxGroups is the maximum number of term groups in one expression.
const MaxGroups = 16

// NewExpression validates and creates a filter Expression.
// Several groups may target the same field; they are AND-combined like any other.
func NewExpression(groups []Group, mustNot []Condition) (Expression, error) {
	if len(groups) > MaxGroups {
		return Expression{}, fmt.Errorf("too many filter groups (max %d)", MaxGroups)
	}
	return Expression{groups: groups, mustNot: mustNot}, nil
}

// Groups returns the AND-combined term groups.
func (e Expression) Groups() []Group { return e.groups }

// MustNot returns the exclusion conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.groups) == 0 && len(e.mustNot) == 0
}

// ValuesFor returns every value any group accepts for key.
func (e Expression) ValuesFor(key string) []string {
	var out []string
	for _, g := range e.groups {
		if g.key == key {
			out = append(out, g.values...)
		}
	}
	return out
}

// Exclude returns a copy of the expression with additional must-not conditions.
func (e Expression) Exclude(conds ...Condition) Expression {
	mustNot := make([]Condition, 0, len(e.mustNot)+len(conds))
	mustNot = append(mustNot, e.mustNot...)
	mustNot = append(mustNot, conds...)
	return Expression{groups: e.groups, mustNot: mustNot}
}

// Canonical renders the expression independent of input order,
// so equal filters always render identically.
func (e Expression) Canonical() string {
	groups := make([]string, 0, len(e.groups))
	for _, g := range e.groups {
		values := append([]string(nil), g.values...)
		sort.Strings(values)
		groups = append(groups, g.key+"="+strings.Join(values, "|"))
	}
	sort.Strings(groups)

	excluded := make([]string, 0, len(e.mustNot))
	for _, c := range e.mustNot {
		excluded = append(excluded, c.key+"="+c.value)
	}
	sort.Strings(excluded)

	return strings.Join(groups, "&") + "!" + strings.Join(excluded, "&")
}

// Group is an OR-combined set of exact values for one field.
type Group struct {
	key    string
	values []string
}

// NewGroup creates a term group; duplicate and blank values are dropped.
func NewGroup(key string, values ...string) (Group, error) {
	if key == "" {
		return Group{}, fmt.Errorf("filter key is required")
	}
	seen := make(map[string]bool, len(values))
	kept := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return Group{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if len(kept) > MaxValuesPerGroup {
		return Group{}, fmt.Errorf("too many values for key %q (max %d)", key, MaxValuesPerGroup)
	}
	return Group{key: key, values: kept}, nil
}

// Key returns the field name.
func (g Group) Key() string { return g.key }

// Values returns the accepted values.
func (g Group) Values() []string { return g.values }

// Condition is a single exact match clause.
type Condition struct {
	key   string
	value string
}

// NewMatch creates an exact match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, value: value}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }
