// Package validator binds a parsed dsl.RawAst against the static verb
// registry, producing a ValidatedAst with resolved references, defaults,
// and symbol captures, or a span-preserving ValidationReport of errors.
package validator

import (
	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
)

// ValidationContext supplies process- and session-scoped defaults (used by
// DefaultValue::FromContext) and the search index used to resolve Ref args.
type ValidationContext struct {
	// Defaults maps a context key (e.g. "cbu_id", "entity_id") to its
	// current value for this session.
	Defaults map[string]any

	// Resolver resolves Ref(kind) argument values against the search
	// index. Implemented by internal/searchindex.Manager in production,
	// stubbed in tests.
	Resolver RefResolver
}

// RefResolver looks up a reference by display text within one entity kind.
type RefResolver interface {
	ResolveRef(refKind, query string) (id string, suggestions []string, found bool)
}

// TypedValue is a value that has been coerced to and checked against its
// ArgSpec's SemType.
type TypedValue struct {
	SemType registry.SemType
	Span    dsl.Span

	Str  string
	Int  int64
	Dec  float64
	Bool bool
	// ResolvedRef holds the entity id a Ref(kind) value resolved to.
	ResolvedRef string
	List        []TypedValue
	MapVal      map[string]TypedValue
}

// SymbolEntry is one binding in the SymbolTable.
type SymbolEntry struct {
	ResolvedID    string // empty until the compiler/gate resolves it at runtime
	SemType       registry.SemType
	DefiningStep  int // index of the defining call within the program
	DefiningVerb  string
	DefiningSpan  dsl.Span
}

// SymbolTable maps capture names (without '@') to their binding.
type SymbolTable map[string]SymbolEntry

// ValidatedCall is one verb call after successful resolution.
type ValidatedCall struct {
	Verb       string
	VerbSpan   dsl.Span
	Args       map[string]TypedValue
	ArgOrder   []string // declaration order of the ArgSpecs actually present, for deterministic rendering
	As         string
	Span       dsl.Span
	Original   dsl.Call
}

// ValidatedAst is the output of a fully successful validation pass.
type ValidatedAst struct {
	Calls   []ValidatedCall
	Symbols SymbolTable
}
