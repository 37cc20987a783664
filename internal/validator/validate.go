package validator

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
)

// Validate binds ast against reg under vctx, returning either a complete
// ValidatedAst or a non-empty ValidationReport — never both (INV-1).
func Validate(ast *dsl.RawAst, reg *registry.Registry, vctx ValidationContext) (*ValidatedAst, *ValidationReport) {
	report := &ValidationReport{}
	out := &ValidatedAst{Symbols: make(SymbolTable)}

	for callIdx, call := range ast.Calls {
		v := &callValidator{
			callIdx: callIdx,
			call:    call,
			reg:     reg,
			vctx:    vctx,
			report:  report,
			symbols: out.Symbols,
		}
		validated, ok := v.run()
		if ok {
			out.Calls = append(out.Calls, validated)
		}
	}

	if report.HasErrors() {
		return nil, report
	}
	return out, report
}

type callValidator struct {
	callIdx int
	call    dsl.Call
	reg     *registry.Registry
	vctx    ValidationContext
	report  *ValidationReport
	symbols SymbolTable
}

func (v *callValidator) fail(kind ErrorKind, span dsl.Span, format string, args ...any) {
	v.report.add(&ValidationError{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Span:      span,
		CallIndex: v.callIdx,
	})
}

func (v *callValidator) failSuggest(kind ErrorKind, span dsl.Span, suggestions []string, format string, args ...any) {
	v.report.add(&ValidationError{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		Span:        span,
		CallIndex:   v.callIdx,
		Suggestions: suggestions,
	})
}

func (v *callValidator) run() (ValidatedCall, bool) {
	def, ok := v.reg.Lookup(v.call.Verb)
	if !ok {
		v.fail(UnknownVerb, v.call.VerbSpan, "unknown verb %q", v.call.Verb)
		return ValidatedCall{}, false
	}

	provided := make(map[string]dsl.Arg, len(v.call.Args))
	for _, a := range v.call.Args {
		provided[a.Name] = a
	}

	typed := make(map[string]TypedValue)
	var order []string
	errBefore := len(v.report.Errors)

	for _, spec := range def.Args {
		arg, isProvided := provided[spec.Name]
		if isProvided {
			tv, ok := v.coerce(arg.Value, spec.SemType, spec.Name)
			if ok {
				typed[spec.Name] = tv
				order = append(order, spec.Name)
				v.applyValidationRules(spec, tv, arg.Span)
			}
			continue
		}

		providedKeys := keysOf(provided)
		required := evalRequired(spec.Required, typed, providedKeys)
		if !required {
			continue
		}

		if dv := v.tryDefault(spec); dv != nil {
			typed[spec.Name] = *dv
			order = append(order, spec.Name)
			continue
		}

		v.fail(MissingRequired, v.call.Span, "missing required argument %q (%s)", spec.Name, describeRequired(spec.Required))
	}

	v.checkUnknownArgs(def, provided)
	v.checkCrossConstraints(def, typed, provided)

	if v.call.As != "" {
		v.captureSymbol(def)
	}

	if len(v.report.Errors) > errBefore {
		return ValidatedCall{}, false
	}

	return ValidatedCall{
		Verb:     v.call.Verb,
		VerbSpan: v.call.VerbSpan,
		Args:     typed,
		ArgOrder: order,
		As:       v.call.As,
		Span:     v.call.Span,
		Original: v.call,
	}, true
}

func keysOf(m map[string]dsl.Arg) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func describeRequired(r registry.RequiredRule) string {
	switch r.Kind {
	case registry.Always:
		return "always required"
	case registry.UnlessProvided:
		return fmt.Sprintf("required unless %q is provided", r.Arg)
	case registry.IfEquals:
		return fmt.Sprintf("required when %q equals %v", r.Arg, r.Value)
	case registry.IfProvided:
		return fmt.Sprintf("required because %q was provided", r.Arg)
	default:
		return "required"
	}
}

func evalRequired(r registry.RequiredRule, typed map[string]TypedValue, providedKeys map[string]bool) bool {
	switch r.Kind {
	case registry.Always:
		return true
	case registry.Never:
		return false
	case registry.UnlessProvided:
		return !providedKeys[r.Arg]
	case registry.IfProvided:
		return providedKeys[r.Arg]
	case registry.IfEquals:
		tv, ok := typed[r.Arg]
		if !ok {
			return false
		}
		return typedValueEquals(tv, r.Value)
	default:
		return false
	}
}

func typedValueEquals(tv TypedValue, want any) bool {
	switch w := want.(type) {
	case string:
		return tv.Str == w
	case bool:
		return tv.Bool == w
	case int:
		return tv.Int == int64(w)
	case int64:
		return tv.Int == w
	case float64:
		return tv.Dec == w
	default:
		return false
	}
}

func (v *callValidator) tryDefault(spec registry.ArgSpec) *TypedValue {
	if spec.Default == nil {
		return nil
	}
	switch spec.Default.Kind {
	case registry.DefaultFromContext:
		val, ok := v.vctx.Defaults[spec.Default.ContextKey]
		if !ok {
			return nil
		}
		tv := valueFromContext(val, spec.SemType)
		return &tv
	case registry.DefaultStatic:
		tv := valueFromContext(spec.Default.Static, spec.SemType)
		return &tv
	default:
		return nil
	}
}

func valueFromContext(val any, st registry.SemType) TypedValue {
	tv := TypedValue{SemType: st}
	switch x := val.(type) {
	case string:
		tv.Str = x
	case bool:
		tv.Bool = x
	case int:
		tv.Int = int64(x)
	case int64:
		tv.Int = x
	case float64:
		if st.Kind == registry.SemInteger {
			tv.Int = int64(x)
		} else {
			tv.Dec = x
		}
	}
	return tv
}

// coerce type-checks value against semType, recording a TypeMismatch,
// UnknownRef or SymbolError as appropriate. Returns ok=false when the
// argument should not be added to the typed map.
func (v *callValidator) coerce(value dsl.Value, semType registry.SemType, argName string) (TypedValue, bool) {
	switch semType.Kind {
	case registry.SemString:
		if value.Kind != dsl.KString {
			v.fail(TypeMismatch, value.Span, "argument %q expects a string", argName)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Str: value.Str}, true

	case registry.SemUUID:
		if value.Kind != dsl.KString {
			v.fail(TypeMismatch, value.Span, "argument %q expects a uuid string", argName)
			return TypedValue{}, false
		}
		if _, err := uuid.Parse(value.Str); err != nil {
			v.fail(TypeMismatch, value.Span, "argument %q is not a valid uuid: %q", argName, value.Str)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Str: value.Str}, true

	case registry.SemInteger:
		if value.Kind != dsl.KInteger {
			v.fail(TypeMismatch, value.Span, "argument %q expects an integer", argName)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Int: value.Int}, true

	case registry.SemDecimal:
		switch value.Kind {
		case dsl.KDecimal:
			return TypedValue{SemType: semType, Span: value.Span, Dec: value.Dec}, true
		case dsl.KInteger:
			return TypedValue{SemType: semType, Span: value.Span, Dec: float64(value.Int)}, true
		default:
			v.fail(TypeMismatch, value.Span, "argument %q expects a decimal", argName)
			return TypedValue{}, false
		}

	case registry.SemDate:
		if value.Kind != dsl.KDate {
			v.fail(TypeMismatch, value.Span, "argument %q expects an ISO-8601 date", argName)
			return TypedValue{}, false
		}
		if _, err := time.Parse("2006-01-02", value.Str); err != nil {
			v.fail(TypeMismatch, value.Span, "argument %q is not a valid date: %q", argName, value.Str)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Str: value.Str}, true

	case registry.SemBoolean:
		if value.Kind != dsl.KBool {
			v.fail(TypeMismatch, value.Span, "argument %q expects a boolean", argName)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Bool: value.Bool}, true

	case registry.SemRef:
		if value.Kind != dsl.KString {
			v.fail(TypeMismatch, value.Span, "argument %q expects a reference name", argName)
			return TypedValue{}, false
		}
		if v.vctx.Resolver == nil {
			v.fail(UnknownRef, value.Span, "no resolver configured for ref kind %q", semType.RefKind)
			return TypedValue{}, false
		}
		id, suggestions, found := v.vctx.Resolver.ResolveRef(semType.RefKind, value.Str)
		if !found {
			v.failSuggest(UnknownRef, value.Span, suggestions, "no %s found matching %q", semType.RefKind, value.Str)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Str: value.Str, ResolvedRef: id}, true

	case registry.SemEnum:
		if value.Kind != dsl.KString {
			v.fail(TypeMismatch, value.Span, "argument %q expects an enum string", argName)
			return TypedValue{}, false
		}
		for _, allowed := range semType.EnumValues {
			if allowed == value.Str {
				return TypedValue{SemType: semType, Span: value.Span, Str: value.Str}, true
			}
		}
		v.fail(ValidationFailed, value.Span, "argument %q value %q is not one of %v", argName, value.Str, semType.EnumValues)
		return TypedValue{}, false

	case registry.SemSymbol:
		if value.Kind != dsl.KSymbol {
			v.fail(TypeMismatch, value.Span, "argument %q expects a symbol reference", argName)
			return TypedValue{}, false
		}
		entry, ok := v.symbols[value.Str]
		if !ok {
			v.fail(SymbolError, value.Span, "undefined symbol @%s", value.Str)
			return TypedValue{}, false
		}
		return TypedValue{SemType: semType, Span: value.Span, Str: value.Str, ResolvedRef: entry.ResolvedID}, true

	case registry.SemListOf:
		if value.Kind != dsl.KList {
			v.fail(TypeMismatch, value.Span, "argument %q expects a list", argName)
			return TypedValue{}, false
		}
		items := make([]TypedValue, 0, len(value.List))
		for _, item := range value.List {
			tv, ok := v.coerce(item, *semType.Elem, argName)
			if !ok {
				return TypedValue{}, false
			}
			items = append(items, tv)
		}
		return TypedValue{SemType: semType, Span: value.Span, List: items}, true

	case registry.SemMap:
		if value.Kind != dsl.KMap {
			v.fail(TypeMismatch, value.Span, "argument %q expects a map", argName)
			return TypedValue{}, false
		}
		fieldSpecs := make(map[string]registry.ArgSpec, len(semType.Fields))
		for _, f := range semType.Fields {
			fieldSpecs[f.Name] = f
		}
		out := make(map[string]TypedValue, len(value.MapVal))
		for _, entry := range value.MapVal {
			fs, ok := fieldSpecs[entry.Key]
			if !ok {
				v.fail(UnknownArg, entry.Span, "unknown map key %q in argument %q", entry.Key, argName)
				continue
			}
			tv, ok := v.coerce(entry.Value, fs.SemType, argName+"."+entry.Key)
			if ok {
				out[entry.Key] = tv
			}
		}
		return TypedValue{SemType: semType, Span: value.Span, MapVal: out}, true

	default:
		v.fail(TypeMismatch, value.Span, "argument %q has an unrecognized semantic type", argName)
		return TypedValue{}, false
	}
}

func (v *callValidator) applyValidationRules(spec registry.ArgSpec, tv TypedValue, span dsl.Span) {
	for _, rule := range spec.Validation {
		switch rule.Kind {
		case registry.RulePattern:
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				continue
			}
			if !re.MatchString(tv.Str) {
				v.fail(ValidationFailed, span, "argument %q does not match pattern %s (%s)", spec.Name, rule.Pattern, rule.Desc)
			}

		case registry.RuleRange:
			n := numericOf(tv)
			if rule.Min != nil && n < *rule.Min {
				v.fail(ValidationFailed, span, "argument %q value %v below minimum %v", spec.Name, n, *rule.Min)
			}
			if rule.Max != nil && n > *rule.Max {
				v.fail(ValidationFailed, span, "argument %q value %v above maximum %v", spec.Name, n, *rule.Max)
			}

		case registry.RuleLength:
			l := float64(len(tv.Str))
			if rule.Min != nil && l < *rule.Min {
				v.fail(ValidationFailed, span, "argument %q too short (min %v)", spec.Name, *rule.Min)
			}
			if rule.Max != nil && l > *rule.Max {
				v.fail(ValidationFailed, span, "argument %q too long (max %v)", spec.Name, *rule.Max)
			}

		case registry.RuleDateRange:
			d, err := time.Parse("2006-01-02", tv.Str)
			if err != nil {
				continue
			}
			if rule.MinDate != "" {
				if minD, err := time.Parse("2006-01-02", rule.MinDate); err == nil && d.Before(minD) {
					v.fail(ValidationFailed, span, "argument %q date %s before minimum %s", spec.Name, tv.Str, rule.MinDate)
				}
			}
			if rule.MaxDate != "" {
				if maxD, err := time.Parse("2006-01-02", rule.MaxDate); err == nil && d.After(maxD) {
					v.fail(ValidationFailed, span, "argument %q date %s after maximum %s", spec.Name, tv.Str, rule.MaxDate)
				}
			}

		case registry.RuleNotEmpty:
			if tv.Str == "" {
				v.fail(ValidationFailed, span, "argument %q must not be empty", spec.Name)
			}

		case registry.RuleValidUUID:
			if _, err := uuid.Parse(tv.Str); err != nil {
				v.fail(ValidationFailed, span, "argument %q is not a valid uuid", spec.Name)
			}

		case registry.RuleValidEmail:
			if !emailPattern.MatchString(tv.Str) {
				v.fail(ValidationFailed, span, "argument %q is not a valid email address", spec.Name)
			}

		case registry.RuleLookupMustExist:
			// Resolution already occurred during coerce (SemRef); nothing
			// further to check here beyond what ResolveRef already did.
		}
	}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func numericOf(tv TypedValue) float64 {
	if tv.SemType.Kind == registry.SemInteger {
		return float64(tv.Int)
	}
	return tv.Dec
}

func (v *callValidator) checkUnknownArgs(def registry.VerbDef, provided map[string]dsl.Arg) {
	known := make(map[string]bool, len(def.Args))
	names := make([]string, 0, len(def.Args))
	for _, spec := range def.Args {
		known[spec.Name] = true
		names = append(names, spec.Name)
	}
	for name, arg := range provided {
		if known[name] {
			continue
		}
		v.failSuggest(UnknownArg, arg.Span, suggest(name, names), "unknown argument %q for verb %q", name, v.call.Verb)
	}
}

func (v *callValidator) captureSymbol(def registry.VerbDef) {
	if def.Produces == nil || !def.Produces.CapturesSymbol {
		v.fail(SymbolError, v.call.AsSpan, "verb %q does not produce a capturable value", v.call.Verb)
		return
	}
	if _, exists := v.symbols[v.call.As]; exists {
		v.fail(SymbolError, v.call.AsSpan, "duplicate symbol definition @%s", v.call.As)
		return
	}
	v.symbols[v.call.As] = SymbolEntry{
		SemType:      def.Produces.SemType,
		DefiningStep: v.callIdx,
		DefiningVerb: v.call.Verb,
		DefiningSpan: v.call.AsSpan,
	}
}
