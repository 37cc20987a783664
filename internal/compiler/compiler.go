// Package compiler lowers a validator.ValidatedAst into a runbook.CompiledRunbook:
// step identity assignment, write-set computation for lock ordering, the
// depends_on DAG derived from symbol captures, and the replay envelope.
package compiler

import (
	"sort"

	"github.com/google/uuid"

	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/observability"
	"github.com/runbookd/runbookd/internal/registry"
	"github.com/runbookd/runbookd/internal/runbook"
	"github.com/runbookd/runbookd/internal/validator"
)

// ExpansionContext carries the shared parameters and session references a
// compilation run needs beyond what the validated AST itself provides.
type ExpansionContext struct {
	SessionID      string
	RegistryHash   string
	ValidatorVersion string
	PackSnapshot   map[string]string
	ResolvedContext map[string]any
	TraceContext   observability.TraceContext
}

// Compile lowers ast into a CompiledRunbook in status Compiled. It relies
// on the validator having already rejected unknown verbs: a verb absent
// from reg is not reported here, and its step is compiled against an empty
// verb definition (no mutating args, no produces placeholder).
func Compile(ast *validator.ValidatedAst, reg *registry.Registry, ctx ExpansionContext, originalInput string) *runbook.CompiledRunbook {
	symbolToStepID := make(map[string]uuid.UUID, len(ast.Symbols))
	steps := make([]runbook.CompiledStep, len(ast.Calls))
	stepIDs := make([]uuid.UUID, len(ast.Calls))

	for i := range ast.Calls {
		stepIDs[i] = runbook.NewStepID()
	}
	for name, entry := range ast.Symbols {
		symbolToStepID[name] = stepIDs[entry.DefiningStep]
	}

	for i, call := range ast.Calls {
		def, _ := reg.Lookup(call.Verb)

		writeSet := computeWriteSet(def, call, stepIDs[i])
		dependsOn := computeDependsOn(call, symbolToStepID)

		steps[i] = runbook.CompiledStep{
			StepID:        stepIDs[i],
			Sentence:      renderSentence(call),
			Verb:          call.Verb,
			Dsl:           dsl.Render(call.Original),
			Args:          flattenArgs(call),
			DependsOn:     dependsOn,
			ExecutionMode: runbook.Sync,
			WriteSet:      writeSet,
		}
	}

	return &runbook.CompiledRunbook{
		ID:        runbook.NewRunbookID(),
		SessionID: ctx.SessionID,
		Version:   1,
		Steps:     steps,
		Status:    runbook.Status{Kind: runbook.StatusCompiled},
		Envelope: runbook.ReplayEnvelope{
			OriginalInput:    originalInput,
			ValidatorVersion: ctx.ValidatorVersion,
			RegistryHash:     ctx.RegistryHash,
			PackSnapshot:     ctx.PackSnapshot,
			ResolvedContext:  ctx.ResolvedContext,
			TraceContext:     ctx.TraceContext,
		},
	}
}

// computeWriteSet gathers every entity id this step writes to: resolved
// refs on arguments marked Mutating, plus — for verbs that produce a new
// ref-typed symbol — a step-scoped placeholder identifying the
// not-yet-created entity, so concurrent runbooks creating under the same
// symbol-producing step still serialize at the lock boundary.
func computeWriteSet(def registry.VerbDef, call validator.ValidatedCall, stepID uuid.UUID) []string {
	set := make(map[string]bool)
	argByName := make(map[string]registry.ArgSpec, len(def.Args))
	for _, a := range def.Args {
		argByName[a.Name] = a
	}

	for name, tv := range call.Args {
		spec, ok := argByName[name]
		if !ok || !spec.Mutating {
			continue
		}
		if id := refIDOf(tv); id != "" {
			set[id] = true
		}
	}

	if def.Produces != nil && def.Produces.SemType.Kind == registry.SemRef {
		set["step:"+stepID.String()] = true
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func refIDOf(tv validator.TypedValue) string {
	if tv.ResolvedRef != "" {
		return tv.ResolvedRef
	}
	return tv.Str
}

// computeDependsOn declares depends_on as the step ids whose symbol
// captures are referenced anywhere within this call's arguments.
func computeDependsOn(call validator.ValidatedCall, symbolToStepID map[string]uuid.UUID) []uuid.UUID {
	deps := make(map[uuid.UUID]bool)
	for _, tv := range call.Args {
		collectSymbolDeps(tv, symbolToStepID, deps)
	}
	out := make([]uuid.UUID, 0, len(deps))
	for id := range deps {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func collectSymbolDeps(tv validator.TypedValue, symbolToStepID map[string]uuid.UUID, deps map[uuid.UUID]bool) {
	if tv.SemType.Kind == registry.SemSymbol {
		if id, ok := symbolToStepID[tv.Str]; ok {
			deps[id] = true
		}
		return
	}
	for _, item := range tv.List {
		collectSymbolDeps(item, symbolToStepID, deps)
	}
	for _, v := range tv.MapVal {
		collectSymbolDeps(v, symbolToStepID, deps)
	}
}

func flattenArgs(call validator.ValidatedCall) map[string]any {
	out := make(map[string]any, len(call.Args))
	for name, tv := range call.Args {
		out[name] = flattenValue(tv)
	}
	return out
}

func flattenValue(tv validator.TypedValue) any {
	switch tv.SemType.Kind {
	case registry.SemInteger:
		return tv.Int
	case registry.SemDecimal:
		return tv.Dec
	case registry.SemBoolean:
		return tv.Bool
	case registry.SemListOf:
		out := make([]any, len(tv.List))
		for i, item := range tv.List {
			out[i] = flattenValue(item)
		}
		return out
	case registry.SemMap:
		out := make(map[string]any, len(tv.MapVal))
		for k, v := range tv.MapVal {
			out[k] = flattenValue(v)
		}
		return out
	default:
		if tv.ResolvedRef != "" {
			return tv.ResolvedRef
		}
		return tv.Str
	}
}

func renderSentence(call validator.ValidatedCall) string {
	if call.As != "" {
		return call.Verb + " -> @" + call.As
	}
	return call.Verb
}
