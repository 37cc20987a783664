package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

// Render produces a canonical DSL source string for a single call, used by
// the compiler to populate CompiledStep.Dsl for replay and audit logs.
// Rendering is deterministic: arguments keep their original declaration
// order and values round-trip through the same literal syntax Parse accepts.
func Render(c Call) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(c.Verb)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteByte(':')
		b.WriteString(a.Name)
		b.WriteByte(' ')
		b.WriteString(renderValue(a.Value))
	}
	if c.As != "" {
		b.WriteString(" :as @")
		b.WriteString(c.As)
	}
	b.WriteByte(')')
	return b.String()
}

func renderValue(v Value) string {
	switch v.Kind {
	case KString:
		return strconv.Quote(v.Str)
	case KInteger:
		return strconv.FormatInt(v.Int, 10)
	case KDecimal:
		return strconv.FormatFloat(v.Dec, 'f', -1, 64)
	case KBool:
		if v.Bool {
			return "#t"
		}
		return "#f"
	case KDate:
		return v.Str
	case KSymbol:
		return "@" + v.Str
	case KList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KMap:
		parts := make([]string, len(v.MapVal))
		for i, e := range v.MapVal {
			parts[i] = fmt.Sprintf(":%s %s", e.Key, renderValue(e.Value))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return ""
	}
}
