package validator

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
)

// checkCrossConstraints evaluates every CrossConstraint declared on the
// verb against the typed argument map and the set of provided keys. Each
// violation yields exactly one error pointing at the constraint's span
// (the whole call, since a constraint spans multiple arguments).
func (v *callValidator) checkCrossConstraints(def registry.VerbDef, typed map[string]TypedValue, provided map[string]dsl.Arg) {
	for _, c := range def.Constraints {
		switch c.Kind {
		case registry.ExactlyOne:
			n := countProvided(provided, c.Args)
			if n != 1 {
				v.fail(ConstraintViolation, v.call.Span, "exactly one of %v must be provided, got %d", c.Args, n)
			}

		case registry.AtLeastOne:
			n := countProvided(provided, c.Args)
			if n == 0 {
				v.fail(ConstraintViolation, v.call.Span, "at least one of %v must be provided", c.Args)
			}

		case registry.Requires:
			if _, ok := provided[c.If]; ok {
				if _, ok := provided[c.Then]; !ok {
					v.fail(ConstraintViolation, v.call.Span, "argument %q requires %q", c.If, c.Then)
				}
			}

		case registry.Excludes:
			_, ifOk := provided[c.If]
			_, thenOk := provided[c.Then]
			if ifOk && thenOk {
				v.fail(ConstraintViolation, v.call.Span, "argument %q excludes %q", c.If, c.Then)
			}

		case registry.ConditionalRequired:
			tv, ok := typed[c.If]
			if ok && typedValueEquals(tv, c.Equals) {
				if _, ok := provided[c.Then]; !ok {
					v.fail(ConstraintViolation, v.call.Span, "argument %q is required when %q equals %v", c.Then, c.If, c.Equals)
				}
			}

		case registry.LessThan:
			v.checkLessThan(c, typed)
		}
	}
}

func countProvided(provided map[string]dsl.Arg, names []string) int {
	n := 0
	for _, name := range names {
		if _, ok := provided[name]; ok {
			n++
		}
	}
	return n
}

// checkLessThan evaluates "A < B" via a tiny expr-lang/expr program rather
// than a hand-rolled numeric comparison, so future constraint kinds that
// need richer predicates can share the same evaluation path.
func (v *callValidator) checkLessThan(c registry.CrossConstraint, typed map[string]TypedValue) {
	a, aOk := typed[c.A]
	b, bOk := typed[c.B]
	if !aOk || !bOk {
		return // constraint only applies when both sides are present
	}

	env := map[string]any{
		"a": numericOrStringOf(a),
		"b": numericOrStringOf(b),
	}
	program, err := expr.Compile("a < b", expr.Env(env))
	if err != nil {
		v.fail(ConstraintViolation, v.call.Span, "internal error compiling constraint %q < %q: %v", c.A, c.B, err)
		return
	}
	result, err := expr.Run(program, env)
	if err != nil {
		v.fail(ConstraintViolation, v.call.Span, "internal error evaluating constraint %q < %q: %v", c.A, c.B, err)
		return
	}
	if ok, _ := result.(bool); !ok {
		v.fail(ConstraintViolation, v.call.Span, fmt.Sprintf("%s must be less than %s", c.A, c.B))
	}
}

func numericOrStringOf(tv TypedValue) any {
	switch tv.SemType.Kind {
	case registry.SemInteger:
		return tv.Int
	case registry.SemDecimal:
		return tv.Dec
	case registry.SemDate:
		return tv.Str // ISO-8601 dates compare correctly as strings
	default:
		return tv.Str
	}
}
