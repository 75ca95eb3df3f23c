package lattice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies a dimension's value algebra.
type Kind string

// Dimension kinds. The set is closed; every operation switches
// exhaustively over these.
const (
	KindSet         Kind = "set"
	KindOrderedEnum Kind = "ordered_enum"
	KindBoolean     Kind = "boolean"
)

// Dimension is one typed axis of context variation. Exactly one of the
// kind-specific field groups is populated, selected by Kind.
type Dimension struct {
	Name string
	Kind Kind

	// Set kind: the universe of atoms and the declared bottom subset.
	Atoms     map[string]bool
	BottomSet []string

	// Ordered enum kind: tokens in ascending permissiveness.
	Order      []string
	BottomEnum string
	rank       map[string]int

	// Boolean kind: which constant is the permissive end.
	TopBool    bool
	BottomBool bool

	// TopSymbol is the raw token that normalizes to Top ("*" for set
	// dimensions, "*" or an order member for enums).
	TopSymbol string
}

// Value is a normalized value of one dimension. Values carry the owning
// dimension's name so a value can never silently cross dimensions; the
// Top variant is likewise local to its dimension, never a shared
// sentinel.
type Value struct {
	dim  string
	top  bool
	set  []string // sorted unique atoms, set kind
	enum string   // token, ordered_enum kind
	flag bool     // boolean kind
}

// IsTop reports whether v is its dimension's Top.
func (v Value) IsTop() bool { return v.top }

// Members returns the atom subset of a set-kind value. Nil for Top.
func (v Value) Members() []string { return v.set }

// String renders the value for display and reports.
func (v Value) String() string {
	if v.top {
		return "*"
	}
	if v.set != nil {
		return "[" + strings.Join(v.set, ",") + "]"
	}
	if v.enum != "" {
		return v.enum
	}
	return strconv.FormatBool(v.flag)
}

func newSetDimension(name string, atoms []string, top string, bottom []string) (*Dimension, error) {
	if len(atoms) == 0 {
		return nil, fmt.Errorf("%w: set dimension %q must define atoms", ErrInvalidDimension, name)
	}
	if top != "*" {
		return nil, fmt.Errorf("%w: set dimension %q must use %q for top", ErrInvalidDimension, name, "*")
	}
	universe := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		universe[a] = true
	}
	for _, b := range bottom {
		if !universe[b] {
			return nil, fmt.Errorf("%w: set dimension %q bottom has unknown atom %q", ErrInvalidDimension, name, b)
		}
	}
	return &Dimension{
		Name:      name,
		Kind:      KindSet,
		Atoms:     universe,
		BottomSet: bottom,
		TopSymbol: top,
	}, nil
}

func newOrderedEnumDimension(name string, order []string, top, bottom string) (*Dimension, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: ordered enum %q must define order", ErrInvalidDimension, name)
	}
	rank := make(map[string]int, len(order))
	for i, token := range order {
		rank[token] = i
	}
	if top != "*" {
		if _, ok := rank[top]; !ok {
			return nil, fmt.Errorf("%w: ordered enum %q top must be %q or in order", ErrInvalidDimension, name, "*")
		}
	}
	if _, ok := rank[bottom]; !ok {
		return nil, fmt.Errorf("%w: ordered enum %q bottom must be in order", ErrInvalidDimension, name)
	}
	return &Dimension{
		Name:       name,
		Kind:       KindOrderedEnum,
		Order:      order,
		BottomEnum: bottom,
		rank:       rank,
		TopSymbol:  top,
	}, nil
}

func newBooleanDimension(name string, top, bottom bool) (*Dimension, error) {
	if top == bottom {
		return nil, fmt.Errorf("%w: boolean dimension %q top and bottom must differ", ErrInvalidDimension, name)
	}
	return &Dimension{
		Name:       name,
		Kind:       KindBoolean,
		TopBool:    top,
		BottomBool: bottom,
	}, nil
}

// Normalize validates a raw document value against the dimension's
// declared universe and returns its normalized form.
func (d *Dimension) Normalize(raw any) (Value, error) {
	switch d.Kind {
	case KindSet:
		return d.normalizeSet(raw)
	case KindOrderedEnum:
		return d.normalizeEnum(raw)
	case KindBoolean:
		return d.normalizeBool(raw)
	}
	return Value{}, fmt.Errorf("%w: %q", ErrInvalidDimension, d.Kind)
}

func (d *Dimension) normalizeSet(raw any) (Value, error) {
	if s, ok := raw.(string); ok && s == d.TopSymbol {
		return Value{dim: d.Name, top: true}, nil
	}
	items, err := stringSlice(raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: set dimension %q expects a list or %q", ErrBadValue, d.Name, d.TopSymbol)
	}
	seen := make(map[string]bool, len(items))
	var unknown []string
	members := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		if !d.Atoms[item] {
			unknown = append(unknown, item)
			continue
		}
		members = append(members, item)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Value{}, fmt.Errorf("%w: set dimension %q has unknown atoms %v", ErrBadValue, d.Name, unknown)
	}
	sort.Strings(members)
	return Value{dim: d.Name, set: members}, nil
}

func (d *Dimension) normalizeEnum(raw any) (Value, error) {
	token, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("%w: ordered enum %q expects a string value", ErrBadValue, d.Name)
	}
	if token == d.TopSymbol {
		return Value{dim: d.Name, top: true}, nil
	}
	if _, ok := d.rank[token]; !ok {
		return Value{}, fmt.Errorf("%w: ordered enum %q has unknown value %q", ErrBadValue, d.Name, token)
	}
	return Value{dim: d.Name, enum: token}, nil
}

func (d *Dimension) normalizeBool(raw any) (Value, error) {
	b, ok := raw.(bool)
	if !ok {
		return Value{}, fmt.Errorf("%w: boolean dimension %q expects a boolean value", ErrBadValue, d.Name)
	}
	return Value{dim: d.Name, flag: b, top: b == d.TopBool}, nil
}

// Leq reports whether a is at most as permissive as b. Both values must
// come from this dimension's Normalize.
func (d *Dimension) Leq(a, b Value) bool {
	if a.dim != d.Name || b.dim != d.Name {
		return false
	}
	switch d.Kind {
	case KindSet:
		if a.top {
			return b.top
		}
		if b.top {
			return true
		}
		return subset(a.set, b.set)
	case KindOrderedEnum:
		if a.top {
			return b.top
		}
		if b.top {
			return true
		}
		return d.rank[a.enum] <= d.rank[b.enum]
	case KindBoolean:
		return a.flag == d.BottomBool || b.flag == d.TopBool
	}
	return false
}

// Join returns the least upper bound of values. Fails on empty input.
func (d *Dimension) Join(values []Value) (Value, error) {
	if len(values) == 0 {
		return Value{}, fmt.Errorf("%w: join on dimension %q", ErrEmptyInput, d.Name)
	}
	switch d.Kind {
	case KindSet:
		union := make(map[string]bool)
		for _, v := range values {
			if v.top {
				return Value{dim: d.Name, top: true}, nil
			}
			for _, m := range v.set {
				union[m] = true
			}
		}
		return Value{dim: d.Name, set: sortedKeys(union)}, nil
	case KindOrderedEnum:
		best := values[0]
		for _, v := range values[1:] {
			if v.top || best.top {
				return Value{dim: d.Name, top: true}, nil
			}
			if d.rank[v.enum] > d.rank[best.enum] {
				best = v
			}
		}
		if best.top {
			return Value{dim: d.Name, top: true}, nil
		}
		return best, nil
	case KindBoolean:
		for _, v := range values {
			if v.flag == d.TopBool {
				return Value{dim: d.Name, flag: d.TopBool, top: true}, nil
			}
		}
		return Value{dim: d.Name, flag: d.BottomBool}, nil
	}
	return Value{}, fmt.Errorf("%w: %q", ErrInvalidDimension, d.Kind)
}

// Meet returns the greatest lower bound of values. Top members act as "no
// constraint" and are dropped unless every member is Top. Fails on empty
// input.
func (d *Dimension) Meet(values []Value) (Value, error) {
	if len(values) == 0 {
		return Value{}, fmt.Errorf("%w: meet on dimension %q", ErrEmptyInput, d.Name)
	}
	switch d.Kind {
	case KindSet, KindOrderedEnum:
		ordinary := values[:0:0]
		for _, v := range values {
			if !v.top {
				ordinary = append(ordinary, v)
			}
		}
		if len(ordinary) == 0 {
			return Value{dim: d.Name, top: true}, nil
		}
		if d.Kind == KindOrderedEnum {
			least := ordinary[0]
			for _, v := range ordinary[1:] {
				if d.rank[v.enum] < d.rank[least.enum] {
					least = v
				}
			}
			return least, nil
		}
		intersect := make(map[string]bool, len(ordinary[0].set))
		for _, m := range ordinary[0].set {
			intersect[m] = true
		}
		for _, v := range ordinary[1:] {
			members := make(map[string]bool, len(v.set))
			for _, m := range v.set {
				members[m] = true
			}
			for m := range intersect {
				if !members[m] {
					delete(intersect, m)
				}
			}
		}
		return Value{dim: d.Name, set: sortedKeys(intersect)}, nil
	case KindBoolean:
		for _, v := range values {
			if v.flag == d.BottomBool {
				return Value{dim: d.Name, flag: d.BottomBool}, nil
			}
		}
		return Value{dim: d.Name, flag: d.TopBool, top: true}, nil
	}
	return Value{}, fmt.Errorf("%w: %q", ErrInvalidDimension, d.Kind)
}

// subset reports whether every member of a is in b. Both slices are
// sorted and deduplicated by Normalize.
func subset(a, b []string) bool {
	i := 0
	for _, m := range a {
		for i < len(b) && b[i] < m {
			i++
		}
		if i >= len(b) || b[i] != m {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string member %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list")
}
