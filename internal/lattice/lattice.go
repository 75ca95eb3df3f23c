// Package lattice implements the multi-dimensional partial order over
// operating contexts that policy-coverage decisions are made against. A
// lattice is loaded once from a YAML or JSON document, optionally gated by
// a JSON schema, and is read-only for the rest of the run.
package lattice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Descriptor maps every declared dimension name to a normalized value for
// one named context.
type Descriptor struct {
	Values map[string]Value
}

// Lattice is the loaded context lattice: dimension algebra plus the named
// contexts evaluated against it.
type Lattice struct {
	Version    string
	Dimensions map[string]*Dimension
	Contexts   map[string]Descriptor

	// dimNames fixes iteration order for deterministic errors and reports.
	dimNames []string
}

// LoadOptions controls document validation during load.
type LoadOptions struct {
	// SchemaPath names a JSON-Schema document the lattice must satisfy.
	// When set, a missing or invalid schema fails the load closed.
	SchemaPath string
}

// LoadFile reads, optionally schema-validates, and builds a lattice from a
// YAML or JSON document.
func LoadFile(path string, opts LoadOptions) (*Lattice, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lattice %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse lattice %s: %w", path, err)
	}
	if opts.SchemaPath != "" {
		if err := validateSchema(doc, opts.SchemaPath); err != nil {
			return nil, err
		}
	}
	return FromDocument(doc)
}

// validateSchema checks the decoded document against a JSON schema. The
// document round-trips through JSON so YAML-decoded values carry the types
// the validator expects.
func validateSchema(doc any, schemaPath string) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("%w: compile %s: %v", ErrSchema, schemaPath, err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrSchema, err)
	}
	var instance any
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: decode document: %v", ErrSchema, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// FromDocument builds a lattice from a decoded document.
func FromDocument(doc any) (*Lattice, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document must be an object", ErrMalformed)
	}
	version, ok := root["version"].(string)
	if !ok || version == "" {
		return nil, fmt.Errorf("%w: lattice is missing version", ErrMalformed)
	}

	dims, names, err := loadDimensions(root["dimensions"])
	if err != nil {
		return nil, err
	}
	contexts, err := loadContexts(root["contexts"], dims, names)
	if err != nil {
		return nil, err
	}

	return &Lattice{
		Version:    version,
		Dimensions: dims,
		Contexts:   contexts,
		dimNames:   names,
	}, nil
}

func loadDimensions(raw any) (map[string]*Dimension, []string, error) {
	specs, _ := raw.(map[string]any)
	dims := make(map[string]*Dimension, len(specs))
	for name, rawSpec := range specs {
		spec, ok := rawSpec.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("%w: dimension %q must be an object", ErrMalformed, name)
		}
		dim, err := buildDimension(name, spec)
		if err != nil {
			return nil, nil, err
		}
		dims[name] = dim
	}
	if len(dims) == 0 {
		return nil, nil, fmt.Errorf("%w: lattice must define at least one dimension", ErrMalformed)
	}
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)
	return dims, names, nil
}

func buildDimension(name string, spec map[string]any) (*Dimension, error) {
	kind, _ := spec["type"].(string)
	switch Kind(kind) {
	case KindSet:
		atoms, err := optionalStringSlice(spec["atoms"])
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q atoms: %v", ErrMalformed, name, err)
		}
		bottom, err := optionalStringSlice(spec["bottom"])
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q bottom: %v", ErrMalformed, name, err)
		}
		top := stringOr(spec["top"], "*")
		return newSetDimension(name, atoms, top, bottom)
	case KindOrderedEnum:
		order, err := optionalStringSlice(spec["order"])
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q order: %v", ErrMalformed, name, err)
		}
		top := stringOr(spec["top"], "*")
		bottom, _ := spec["bottom"].(string)
		return newOrderedEnumDimension(name, order, top, bottom)
	case KindBoolean:
		top := boolOr(spec["top"], true)
		bottom := boolOr(spec["bottom"], false)
		return newBooleanDimension(name, top, bottom)
	}
	return nil, fmt.Errorf("%w: unknown dimension type %q for %q", ErrMalformed, kind, name)
}

func loadContexts(raw any, dims map[string]*Dimension, dimNames []string) (map[string]Descriptor, error) {
	specs, _ := raw.(map[string]any)
	contexts := make(map[string]Descriptor, len(specs))
	for id, rawDesc := range specs {
		desc, ok := rawDesc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: context %q must be an object", ErrMalformed, id)
		}
		var missing, extra []string
		for _, name := range dimNames {
			if _, ok := desc[name]; !ok {
				missing = append(missing, name)
			}
		}
		for key := range desc {
			if _, ok := dims[key]; !ok {
				extra = append(extra, key)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: context %q missing dimensions %v", ErrContextShape, id, missing)
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return nil, fmt.Errorf("%w: context %q has unknown dimensions %v", ErrContextShape, id, extra)
		}
		values := make(map[string]Value, len(dimNames))
		for _, name := range dimNames {
			v, err := dims[name].Normalize(desc[name])
			if err != nil {
				return nil, fmt.Errorf("context %q: %w", id, err)
			}
			values[name] = v
		}
		contexts[id] = Descriptor{Values: values}
	}
	if len(contexts) == 0 {
		return nil, fmt.Errorf("%w: lattice must define at least one context", ErrMalformed)
	}
	return contexts, nil
}

// DimensionNames returns the declared dimension names in sorted order.
func (l *Lattice) DimensionNames() []string {
	return l.dimNames
}

// Resolve returns the descriptor for a context id.
func (l *Lattice) Resolve(id string) (Descriptor, error) {
	desc, ok := l.Contexts[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownContext, id)
	}
	return desc, nil
}

// Leq reports whether the left context is at most as permissive as the
// right context on every dimension.
func (l *Lattice) Leq(leftID, rightID string) (bool, error) {
	left, err := l.Resolve(leftID)
	if err != nil {
		return false, err
	}
	right, err := l.Resolve(rightID)
	if err != nil {
		return false, err
	}
	for _, name := range l.dimNames {
		if !l.Dimensions[name].Leq(left.Values[name], right.Values[name]) {
			return false, nil
		}
	}
	return true, nil
}

// Covers reports whether sup is at least as permissive as sub across every
// axis. This orientation drives every downstream policy decision: a
// tolerance declared at a covering context governs every context beneath
// it.
func (l *Lattice) Covers(supID, subID string) (bool, error) {
	return l.Leq(subID, supID)
}

// Join returns the per-dimension least upper bound of the given contexts.
func (l *Lattice) Join(ids []string) (Descriptor, error) {
	return l.combine(ids, func(d *Dimension, vals []Value) (Value, error) {
		return d.Join(vals)
	})
}

// Meet returns the per-dimension greatest lower bound of the given contexts.
func (l *Lattice) Meet(ids []string) (Descriptor, error) {
	return l.combine(ids, func(d *Dimension, vals []Value) (Value, error) {
		return d.Meet(vals)
	})
}

func (l *Lattice) combine(ids []string, op func(*Dimension, []Value) (Value, error)) (Descriptor, error) {
	if len(ids) == 0 {
		return Descriptor{}, fmt.Errorf("%w: at least one context id required", ErrEmptyInput)
	}
	resolved := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		desc, err := l.Resolve(id)
		if err != nil {
			return Descriptor{}, err
		}
		resolved = append(resolved, desc)
	}
	values := make(map[string]Value, len(l.dimNames))
	for _, name := range l.dimNames {
		vals := make([]Value, 0, len(resolved))
		for _, desc := range resolved {
			vals = append(vals, desc.Values[name])
		}
		v, err := op(l.Dimensions[name], vals)
		if err != nil {
			return Descriptor{}, err
		}
		values[name] = v
	}
	return Descriptor{Values: values}, nil
}

func optionalStringSlice(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	return stringSlice(raw)
}

func stringOr(raw any, fallback string) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fallback
}

func boolOr(raw any, fallback bool) bool {
	if b, ok := raw.(bool); ok {
		return b
	}
	return fallback
}
