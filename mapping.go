package refract

import "fmt"

// Spec declares how upstream editor settings map to local option names.
// Keys are local option names; values describe how each option is derived.
// A Spec is treated as immutable once handed to a Bridge.
type Spec map[string]Rule

// Rule describes how a single local option is derived from upstream
// settings. The three variants are Key, Mapped, and Group.
type Rule interface {
	rule()
}

// Key is a direct lookup: the option takes the upstream value verbatim.
// If the upstream key is absent from the settings payload, the option is
// omitted from the result entirely.
type Key string

func (Key) rule() {}

// SizeMode controls how a dimension value carrying "size" and "unit"
// fields is reduced during conversion.
type SizeMode int

const (
	// SizeDefault applies the per-level default: pass-through at the top
	// level, bare size extraction for leaves nested inside a Group.
	SizeDefault SizeMode = iota

	// SizeNumber extracts the bare numeric size.
	SizeNumber

	// SizeWithUnit joins size and unit into a single string, e.g. "10px".
	// Only meaningful for leaves nested inside a Group; at the top level
	// the value passes through whole.
	SizeWithUnit
)

// Mapped derives an option from a single upstream key, optionally gated
// by a condition and optionally reducing dimension values.
//
// When Condition names an upstream key whose value is falsy, the option
// resolves to false and Key is never consulted. When Condition passes (or
// is empty) and Key is empty, the option is omitted.
type Mapped struct {
	Condition string
	Key       string
	Size      SizeMode
}

func (Mapped) rule() {}

// Group derives a composite option by resolving a nested Spec against the
// same settings payload, optionally gated by a condition. A falsy
// condition resolves the whole group to false.
type Group struct {
	Condition string
	Fields    Spec
}

func (Group) rule() {}

// ParseSpec converts an untyped mapping document into a Spec.
//
// The document shape mirrors the declarative form used by editor themes:
// each entry is either a plain string (a direct upstream key) or a map
// with optional "condition", "value", and "return_size" fields, where
// "value" is either an upstream key or a nested mapping of the same shape.
func ParseSpec(raw map[string]any) (Spec, error) {
	spec := make(Spec, len(raw))
	for name, entry := range raw {
		rule, err := parseRule(entry)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", name, err)
		}
		spec[name] = rule
	}
	return spec, nil
}

func parseRule(entry any) (Rule, error) {
	switch v := entry.(type) {
	case string:
		return Key(v), nil
	case map[string]any:
		return parseRuleMap(v)
	default:
		return nil, fmt.Errorf("rule must be a string or a mapping, got %T", entry)
	}
}

func parseRuleMap(m map[string]any) (Rule, error) {
	condition, err := optionalString(m, "condition")
	if err != nil {
		return nil, err
	}

	size := SizeDefault
	if rs, ok := m["return_size"]; ok {
		b, ok := rs.(bool)
		if !ok {
			return nil, fmt.Errorf("return_size must be a boolean, got %T", rs)
		}
		if b {
			size = SizeNumber
		} else {
			size = SizeWithUnit
		}
	}

	value, hasValue := m["value"]
	if !hasValue {
		if condition == "" {
			return nil, fmt.Errorf("rule has neither condition nor value")
		}
		// Condition-only rule: falsy gate yields false, truthy yields
		// nothing. Mapped with an empty Key models exactly that.
		return Mapped{Condition: condition}, nil
	}

	switch v := value.(type) {
	case string:
		return Mapped{Condition: condition, Key: v, Size: size}, nil
	case map[string]any:
		fields, err := ParseSpec(v)
		if err != nil {
			return nil, err
		}
		return Group{Condition: condition, Fields: fields}, nil
	default:
		return nil, fmt.Errorf("value must be a string or a mapping, got %T", value)
	}
}

func optionalString(m map[string]any, field string) (string, error) {
	v, ok := m[field]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", field, v)
	}
	return s, nil
}

// LoadSpec decodes a mapping document with the given codec and parses it
// into a Spec. Pass nil to use JSONCodec.
func LoadSpec(data []byte, codec Codec) (Spec, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	var raw map[string]any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode spec: %w", err)
	}
	return ParseSpec(raw)
}
