// Package registry holds the static, compile-time verb registry the
// schema validator binds raw calls against. The registry is immutable at
// runtime — reloading it requires a process restart (spec Non-goals:
// no runtime schema evolution).
package registry

// SemTypeKind enumerates the semantic type variants an argument can take.
type SemTypeKind int

const (
	SemString SemTypeKind = iota
	SemUUID
	SemInteger
	SemDecimal
	SemDate
	SemBoolean
	SemRef
	SemEnum
	SemSymbol
	SemListOf
	SemMap
)

// SemType describes the semantic type of an argument value. Composite
// kinds (Ref, Enum, ListOf, Map) carry their payload in the matching field.
type SemType struct {
	Kind SemTypeKind

	// RefKind names the entity kind a Ref(ref_kind) resolves against,
	// e.g. "entity", "cbu", "person".
	RefKind string

	// EnumValues lists the admissible values for an Enum type.
	EnumValues []string

	// Elem is the element type for ListOf.
	Elem *SemType

	// Fields describes the keyed members of a Map type.
	Fields []ArgSpec
}

func String() SemType  { return SemType{Kind: SemString} }
func UUID() SemType    { return SemType{Kind: SemUUID} }
func Integer() SemType { return SemType{Kind: SemInteger} }
func Decimal() SemType { return SemType{Kind: SemDecimal} }
func Date() SemType    { return SemType{Kind: SemDate} }
func Boolean() SemType { return SemType{Kind: SemBoolean} }
func Symbol() SemType  { return SemType{Kind: SemSymbol} }

func Ref(refKind string) SemType { return SemType{Kind: SemRef, RefKind: refKind} }
func Enum(values ...string) SemType {
	return SemType{Kind: SemEnum, EnumValues: values}
}
func ListOf(elem SemType) SemType { return SemType{Kind: SemListOf, Elem: &elem} }
func Map(fields ...ArgSpec) SemType {
	return SemType{Kind: SemMap, Fields: fields}
}

// String renders a SemType as a short human-readable description, used in
// error messages (TypeMismatch).
func (t SemType) String() string {
	switch t.Kind {
	case SemString:
		return "string"
	case SemUUID:
		return "uuid"
	case SemInteger:
		return "integer"
	case SemDecimal:
		return "decimal"
	case SemDate:
		return "date"
	case SemBoolean:
		return "boolean"
	case SemRef:
		return "ref(" + t.RefKind + ")"
	case SemEnum:
		return "enum"
	case SemSymbol:
		return "symbol"
	case SemListOf:
		return "list"
	case SemMap:
		return "map"
	default:
		return "unknown"
	}
}

// RequiredKind enumerates the ways an argument's presence can be required.
type RequiredKind int

const (
	Always RequiredKind = iota
	Never
	UnlessProvided
	IfEquals
	IfProvided
)

// RequiredRule describes when an argument must be supplied.
type RequiredRule struct {
	Kind RequiredKind

	// Arg is the argument name referenced by UnlessProvided/IfEquals/IfProvided.
	Arg string

	// Value is the comparison value for IfEquals.
	Value any
}

func AlwaysRequired() RequiredRule      { return RequiredRule{Kind: Always} }
func NeverRequired() RequiredRule       { return RequiredRule{Kind: Never} }
func RequiredUnless(arg string) RequiredRule {
	return RequiredRule{Kind: UnlessProvided, Arg: arg}
}
func RequiredIfEquals(arg string, value any) RequiredRule {
	return RequiredRule{Kind: IfEquals, Arg: arg, Value: value}
}
func RequiredIfProvided(arg string) RequiredRule {
	return RequiredRule{Kind: IfProvided, Arg: arg}
}

// DefaultKind enumerates the sources a default value can come from.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultStatic
	DefaultFromContext
)

// DefaultValue describes how to fill a missing-but-required argument.
type DefaultValue struct {
	Kind DefaultKind

	// Static holds the literal default for DefaultStatic.
	Static any

	// ContextKey names the ValidationContext field to pull for DefaultFromContext.
	ContextKey string
}

// ValidationRuleKind enumerates the per-argument validation checks.
type ValidationRuleKind int

const (
	RulePattern ValidationRuleKind = iota
	RuleRange
	RuleLength
	RuleDateRange
	RuleNotEmpty
	RuleLookupMustExist
	RuleValidUUID
	RuleValidEmail
)

// ValidationRule describes a single per-argument validation check.
type ValidationRule struct {
	Kind ValidationRuleKind

	// Pattern / Desc are used by RulePattern.
	Pattern string
	Desc    string

	// Min / Max are used by RuleRange, RuleLength and RuleDateRange.
	// For RuleDateRange these are "YYYY-MM-DD" strings; for the others,
	// numeric bounds. A nil pointer means "unbounded" on that side.
	Min *float64
	Max *float64
	MinDate string
	MaxDate string
}

// ArgSpec describes one named argument of a verb.
type ArgSpec struct {
	Name       string
	SemType    SemType
	Required   RequiredRule
	Default    *DefaultValue
	Validation []ValidationRule

	// Mutating marks an argument whose resolved ref is written to by the
	// verb (not just read), contributing its resolved id to the
	// compiler's write_set computation.
	Mutating bool
}

// CrossConstraintKind enumerates the multi-argument constraint variants.
type CrossConstraintKind int

const (
	ExactlyOne CrossConstraintKind = iota
	AtLeastOne
	Requires
	Excludes
	ConditionalRequired
	LessThan
)

// CrossConstraint describes a constraint spanning more than one argument.
type CrossConstraint struct {
	Kind CrossConstraintKind

	// Args holds the argument names for ExactlyOne/AtLeastOne.
	Args []string

	// If/Then hold single argument names for Requires/Excludes/ConditionalRequired.
	If   string
	Then string

	// Equals is the comparison value for ConditionalRequired.
	Equals any

	// A/B hold argument names for LessThan (A < B).
	A string
	B string
}

// CaptureRule describes what a verb captures into the symbol table via
// ":as @name", if anything.
type CaptureRule struct {
	CapturesSymbol bool
	SemType        SemType
}

// VerbDef is the static definition of one registered verb.
type VerbDef struct {
	Name        string
	Args        []ArgSpec
	Constraints []CrossConstraint
	Produces    *CaptureRule
}

// Registry is an immutable, lookup-optimized table of verb definitions
// keyed by fully-qualified name ("domain.verb").
type Registry struct {
	verbs map[string]VerbDef
	names []string // in registration order, for suggestion scans
}

// New builds a Registry from a list of verb definitions. Panics on
// duplicate verb names — a programming error, not a runtime condition.
func New(defs []VerbDef) *Registry {
	verbs := make(map[string]VerbDef, len(defs))
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		if _, exists := verbs[d.Name]; exists {
			panic("registry: duplicate verb " + d.Name)
		}
		verbs[d.Name] = d
		names = append(names, d.Name)
	}
	return &Registry{verbs: verbs, names: names}
}

// Lookup returns the VerbDef for a fully-qualified verb name.
func (r *Registry) Lookup(name string) (VerbDef, bool) {
	v, ok := r.verbs[name]
	return v, ok
}

// Names returns all registered verb names, unordered copy-safe for callers.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
