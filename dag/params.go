package dag

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kbukum/segmentation/errors"
)

// Coerce converts v to the Go representation of t: string, int, float64,
// bool or []string. Values decoded from YAML, JSON or environment strings
// are accepted when the conversion is lossless. NaN and infinities are
// never accepted.
func Coerce(t ValueType, v any) (any, error) {
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case TypeInt:
		switch x := v.(type) {
		case int:
			return x, nil
		case int32:
			return int(x), nil
		case int64:
			return int(x), nil
		case uint64:
			if x <= math.MaxInt64 {
				return int(x), nil
			}
		case float64:
			if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
				return int(x), nil
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				return n, nil
			}
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			if finite(x) {
				return x, nil
			}
		case float32:
			if finite(float64(x)) {
				return float64(x), nil
			}
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && finite(f) {
				return f, nil
			}
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	case TypeList:
		switch x := v.(type) {
		case []string:
			return append([]string(nil), x...), nil
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list element %v is %T, not string", item, item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			if strings.TrimSpace(x) == "" {
				return []string{}, nil
			}
			parts := strings.Split(x, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts, nil
		}
	default:
		return nil, fmt.Errorf("type %s cannot be supplied as an argument", t)
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, t)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// ResolveArguments merges args over parameter defaults and coerces every
// value to its declared type. Unknown argument names and missing required
// parameters are INVALID_INPUT errors. Optional parameters without a value
// are left out of the returned map.
func ResolveArguments(p *Pipeline, args map[string]any) (map[string]any, error) {
	var problems []string
	for _, name := range sortedKeys(args) {
		if _, ok := p.Param(name); !ok {
			problems = append(problems, fmt.Sprintf("%s: not a parameter of %s", name, p.Name))
		}
	}

	resolved := make(map[string]any, len(p.Params))
	for _, def := range p.Params {
		raw, ok := args[def.Name]
		if !ok || raw == nil {
			raw = def.Default
		}
		if raw == nil {
			if !def.Optional {
				problems = append(problems, fmt.Sprintf("%s: is required", def.Name))
			}
			continue
		}
		v, err := Coerce(def.Type, raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}
		resolved[def.Name] = v
	}

	if len(problems) > 0 {
		return nil, errors.Validation(strings.Join(problems, "; ")).
			WithDetail("pipeline", p.Name)
	}
	return resolved, nil
}

// WithArguments returns a copy of p whose parameter defaults are the
// resolved arguments. The original document is not modified.
func WithArguments(p *Pipeline, args map[string]any) (*Pipeline, error) {
	resolved, err := ResolveArguments(p, args)
	if err != nil {
		return nil, err
	}
	c := p.Clone()
	for i := range c.Params {
		if v, ok := resolved[c.Params[i].Name]; ok {
			c.Params[i].Default = v
		}
	}
	return c, nil
}

// SeedState writes resolved arguments into state under their parameter keys.
func SeedState(state *State, resolved map[string]any) {
	for name, v := range resolved {
		state.Set(ParamKey(name), v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
