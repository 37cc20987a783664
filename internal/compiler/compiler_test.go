package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
	"github.com/runbookd/runbookd/internal/validator"
)

func TestCompile_DependsOnFollowsSymbolCapture(t *testing.T) {
	reg := registry.Default()
	ast, err := dsl.Parse(`
		(entity.create :name "Acme Corp" :kind "corporation" :as @acme)
		(cbu.create :name "Acme CBU" :jurisdiction "KY" :as @acme_cbu)
		(cbu.link :entity @acme :role "owner")
	`)
	require.NoError(t, err)

	validated, report := validator.Validate(ast, reg, validator.ValidationContext{})
	require.False(t, report.HasErrors())

	rb := Compile(validated, reg, ExpansionContext{SessionID: "s1"}, "original text")
	require.Len(t, rb.Steps, 3)

	linkStep := rb.Steps[2]
	assert.Equal(t, "cbu.link", linkStep.Verb)
	require.Len(t, linkStep.DependsOn, 1)
	assert.Equal(t, rb.Steps[0].StepID, linkStep.DependsOn[0])
}

func TestCompile_WriteSetFromMutatingArg(t *testing.T) {
	reg := registry.Default()
	resolver := stubResolver{ids: map[string]string{"account:Main Fund": "acct-1", "instrument:AAPL": "instr-1"}}
	ast, err := dsl.Parse(`(position.book :account "Main Fund" :instrument "AAPL" :qty 10 :effective_from 2024-01-01)`)
	require.NoError(t, err)

	validated, report := validator.Validate(ast, reg, validator.ValidationContext{Resolver: resolver})
	require.False(t, report.HasErrors())

	rb := Compile(validated, reg, ExpansionContext{SessionID: "s1"}, "src")
	require.Len(t, rb.Steps, 1)
	assert.Contains(t, rb.Steps[0].WriteSet, "acct-1")
}

func TestCompile_ProducingVerbGetsPlaceholderWriteSet(t *testing.T) {
	reg := registry.Default()
	ast, err := dsl.Parse(`(entity.create :name "Acme Corp" :kind "corporation")`)
	require.NoError(t, err)

	validated, report := validator.Validate(ast, reg, validator.ValidationContext{})
	require.False(t, report.HasErrors())

	rb := Compile(validated, reg, ExpansionContext{SessionID: "s1"}, "src")
	require.Len(t, rb.Steps[0].WriteSet, 1)
}

func TestCompile_StatusStartsCompiled(t *testing.T) {
	reg := registry.Default()
	ast, err := dsl.Parse(`(entity.create :name "Acme Corp" :kind "corporation")`)
	require.NoError(t, err)
	validated, report := validator.Validate(ast, reg, validator.ValidationContext{})
	require.False(t, report.HasErrors())

	rb := Compile(validated, reg, ExpansionContext{}, "src")
	assert.Equal(t, 0, int(rb.Status.Kind)) // StatusCompiled
}

type stubResolver struct {
	ids map[string]string
}

func (s stubResolver) ResolveRef(refKind, query string) (string, []string, bool) {
	id, ok := s.ids[refKind+":"+query]
	return id, nil, ok
}
