package refract

import (
	"fmt"
	"math"
)

// Convert resolves the entire spec against a flat settings payload and
// returns the derived options. The result is newly allocated; neither the
// spec nor the settings map is mutated.
//
// Resolution follows the rule variants:
//
//   - Key: the upstream value verbatim; omitted when the upstream key is
//     absent.
//   - Mapped: a falsy condition short-circuits to false. Otherwise the
//     lookup key resolves like Key, with SizeNumber reducing a dimension
//     value (a map carrying "size" and "unit") to its bare size.
//   - Group: a falsy condition short-circuits to false. Otherwise the
//     nested fields resolve one level down, where dimension values reduce
//     to their bare size by default and SizeWithUnit joins size and unit
//     into a single string such as "10px".
func (s Spec) Convert(settings map[string]any) map[string]any {
	return s.convert(settings, false)
}

func (s Spec) convert(settings map[string]any, nested bool) map[string]any {
	out := make(map[string]any, len(s))
	for name, rule := range s {
		if v, ok := resolveRule(rule, settings, nested); ok {
			out[name] = v
		}
	}
	return out
}

// resolveRule resolves a single rule. The second return reports whether
// the option should appear in the result at all.
func resolveRule(rule Rule, settings map[string]any, nested bool) (any, bool) {
	switch r := rule.(type) {
	case Key:
		v, ok := settings[string(r)]
		if !ok {
			return nil, false
		}
		if nested {
			return reduceSize(v, SizeDefault), true
		}
		return v, true

	case Mapped:
		if r.Condition != "" && !truthy(settings[r.Condition]) {
			return false, true
		}
		if r.Key == "" {
			// Condition-only rule with a passing gate contributes nothing.
			return nil, false
		}
		v, ok := settings[r.Key]
		if !ok {
			return nil, false
		}
		if nested {
			return reduceSize(v, r.Size), true
		}
		if r.Size == SizeNumber {
			if size, _, ok := dimension(v); ok {
				return size, true
			}
		}
		return v, true

	case Group:
		if r.Condition != "" && !truthy(settings[r.Condition]) {
			return false, true
		}
		return r.Fields.convert(settings, true), true

	default:
		return nil, false
	}
}

// reduceSize applies the nested-level dimension defaults: bare size unless
// the rule explicitly asks for the joined "sizeunit" string. Non-dimension
// values pass through untouched.
func reduceSize(v any, mode SizeMode) any {
	size, unit, ok := dimension(v)
	if !ok {
		return v
	}
	if mode == SizeWithUnit {
		return fmt.Sprintf("%v%v", size, unit)
	}
	return size
}

// dimension extracts the size and unit from a dimension-shaped value:
// a map carrying a defined "size" field and an optional "unit".
func dimension(v any) (size, unit any, ok bool) {
	m, isMap := v.(map[string]any)
	if !isMap {
		return nil, nil, false
	}
	size, ok = m["size"]
	if !ok {
		return nil, nil, false
	}
	unit = m["unit"]
	if unit == nil {
		unit = ""
	}
	return size, unit, true
}

// truthy mirrors the host editor's notion of falsiness: nil, false, empty
// strings, numeric zero, and NaN are falsy. Containers are truthy even
// when empty.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int8:
		return x != 0
	case int16:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case uint:
		return x != 0
	case uint8:
		return x != 0
	case uint16:
		return x != 0
	case uint32:
		return x != 0
	case uint64:
		return x != 0
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}
