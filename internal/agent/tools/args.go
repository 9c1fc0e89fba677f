package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"advisor-backend/pkg/errs"
)

// Symbol is a symbolic argument key such as the ones produced by ":to" style decoders.
type Symbol string

// Args holds tool arguments keyed by plain string names.
type Args map[string]any

// Normalize converts any supported argument container into Args.
// Keys may be strings, ":prefixed" strings, or Symbols; all map to the bare name.
func Normalize(raw any) (Args, error) {
	out := Args{}
	switch v := raw.(type) {
	case nil:
		return out, nil
	case Args:
		for k, val := range v {
			out[keyName(k)] = val
		}
	case map[string]any:
		for k, val := range v {
			out[keyName(k)] = val
		}
	case map[string]string:
		for k, val := range v {
			out[keyName(k)] = val
		}
	case map[Symbol]any:
		for k, val := range v {
			out[keyName(string(k))] = val
		}
	case map[any]any:
		for k, val := range v {
			switch key := k.(type) {
			case string:
				out[keyName(key)] = val
			case Symbol:
				out[keyName(string(key))] = val
			default:
				return nil, errs.Validation("unsupported argument key %v", k)
			}
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return out, nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, errs.Validation("arguments are not a JSON object: %v", err)
		}
		return Normalize(decoded)
	default:
		return nil, errs.Validation("unsupported arguments type %T", raw)
	}
	return out, nil
}

func keyName(k string) string {
	return strings.TrimPrefix(strings.TrimSpace(k), ":")
}

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Int reads a positive integer, accepting JSON numbers and numeric strings.
func (a Args) Int(key string, def int) int {
	var n int
	switch v := a[key].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return def
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		n = i
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

// Strings reads a list argument. A comma-separated string is split.
func (a Args) Strings(key string) []string {
	var items []string
	switch v := a[key].(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	case string:
		items = strings.Split(v, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a Args) missing(required []string) []string {
	var out []string
	for _, key := range required {
		if a.String(key) == "" {
			out = append(out, key)
		}
	}
	return out
}
