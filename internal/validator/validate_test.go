package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
)

type stubResolver struct {
	ids map[string]string // "kind:query" -> id
}

func (s *stubResolver) ResolveRef(refKind, query string) (string, []string, bool) {
	id, ok := s.ids[refKind+":"+query]
	if !ok {
		return "", []string{"Acme Corporation"}, false
	}
	return id, nil, true
}

func testRegistry() *registry.Registry {
	return registry.New([]registry.VerbDef{
		{
			Name: "entity.create",
			Args: []registry.ArgSpec{
				{Name: "name", SemType: registry.String(), Required: registry.AlwaysRequired()},
				{Name: "active", SemType: registry.Boolean(), Required: registry.NeverRequired()},
			},
			Produces: &registry.CaptureRule{CapturesSymbol: true, SemType: registry.Ref("entity")},
		},
		{
			Name: "cbu.link",
			Args: []registry.ArgSpec{
				{Name: "entity", SemType: registry.Symbol(), Required: registry.AlwaysRequired()},
				{Name: "role", SemType: registry.Enum("owner", "beneficiary"), Required: registry.AlwaysRequired()},
			},
		},
		{
			Name: "position.book",
			Args: []registry.ArgSpec{
				{Name: "account", SemType: registry.Ref("account"), Required: registry.AlwaysRequired()},
				{Name: "qty", SemType: registry.Integer(), Required: registry.AlwaysRequired()},
				{Name: "start", SemType: registry.Date(), Required: registry.AlwaysRequired()},
				{Name: "end", SemType: registry.Date(), Required: registry.AlwaysRequired()},
			},
			Constraints: []registry.CrossConstraint{
				{Kind: registry.LessThan, A: "start", B: "end"},
			},
		},
	})
}

func parse(t *testing.T, src string) *dsl.RawAst {
	t.Helper()
	ast, err := dsl.Parse(src)
	require.NoError(t, err)
	return ast
}

func TestValidate_SimpleSuccess(t *testing.T) {
	ast := parse(t, `(entity.create :name "Acme Corp")`)
	out, report := Validate(ast, testRegistry(), ValidationContext{})
	require.False(t, report.HasErrors())
	require.Len(t, out.Calls, 1)
	assert.Equal(t, "Acme Corp", out.Calls[0].Args["name"].Str)
}

func TestValidate_UnknownVerb(t *testing.T) {
	ast := parse(t, `(bogus.verb :x 1)`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	assert.Equal(t, UnknownVerb, report.Errors[0].Kind)
}

func TestValidate_MissingRequired(t *testing.T) {
	ast := parse(t, `(entity.create :active #t)`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	assert.Equal(t, MissingRequired, report.Errors[0].Kind)
}

func TestValidate_UnknownArgWithSuggestion(t *testing.T) {
	ast := parse(t, `(entity.create :nam "Acme Corp")`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	// Errors[0] is the MissingRequired for the absent :name; per-arg
	// resolution runs before the unknown-argument check.
	require.Len(t, report.Errors, 2)
	assert.Equal(t, UnknownArg, report.Errors[1].Kind)
	assert.Contains(t, report.Errors[1].Suggestions, "name")
}

func TestValidate_SymbolCaptureAndDuplicateDefinition(t *testing.T) {
	ast := parse(t, `
		(entity.create :name "Acme Corp" :as @acme)
		(entity.create :name "Other Co" :as @acme)
	`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	assert.Equal(t, SymbolError, report.Errors[0].Kind)
}

func TestValidate_SymbolReferenceResolves(t *testing.T) {
	ast := parse(t, `
		(entity.create :name "Acme Corp" :as @acme)
		(cbu.link :entity @acme :role "owner")
	`)
	out, report := Validate(ast, testRegistry(), ValidationContext{})
	require.False(t, report.HasErrors())
	require.Len(t, out.Calls, 2)
	assert.Equal(t, "acme", out.Calls[1].Args["entity"].Str)
}

func TestValidate_UndefinedSymbolReference(t *testing.T) {
	ast := parse(t, `(cbu.link :entity @ghost :role "owner")`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	assert.Equal(t, SymbolError, report.Errors[0].Kind)
}

func TestValidate_UnknownRefWithSuggestions(t *testing.T) {
	resolver := &stubResolver{ids: map[string]string{}}
	ast := parse(t, `(position.book :account "Nonexistent Fund" :qty 10 :start 2024-01-01 :end 2024-02-01)`)
	_, report := Validate(ast, testRegistry(), ValidationContext{Resolver: resolver})
	require.True(t, report.HasErrors())
	assert.Equal(t, UnknownRef, report.Errors[0].Kind)
	assert.NotEmpty(t, report.Errors[0].Suggestions)
}

func TestValidate_LessThanConstraintViolation(t *testing.T) {
	resolver := &stubResolver{ids: map[string]string{"account:Main Fund": "acct-1"}}
	ast := parse(t, `(position.book :account "Main Fund" :qty 10 :start 2024-03-01 :end 2024-01-01)`)
	_, report := Validate(ast, testRegistry(), ValidationContext{Resolver: resolver})
	require.True(t, report.HasErrors())
	found := false
	for _, e := range report.Errors {
		if e.Kind == ConstraintViolation {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_LessThanConstraintSatisfied(t *testing.T) {
	resolver := &stubResolver{ids: map[string]string{"account:Main Fund": "acct-1"}}
	ast := parse(t, `(position.book :account "Main Fund" :qty 10 :start 2024-01-01 :end 2024-03-01)`)
	_, report := Validate(ast, testRegistry(), ValidationContext{Resolver: resolver})
	assert.False(t, report.HasErrors())
}

func TestValidate_EnumRejectsUnknownValue(t *testing.T) {
	ast := parse(t, `
		(entity.create :name "Acme Corp" :as @acme)
		(cbu.link :entity @acme :role "villain")
	`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
}

func TestValidate_DefaultFromContext(t *testing.T) {
	reg := registry.New([]registry.VerbDef{
		{
			Name: "entity.create",
			Args: []registry.ArgSpec{
				{
					Name:     "owner_cbu",
					SemType:  registry.String(),
					Required: registry.AlwaysRequired(),
					Default:  &registry.DefaultValue{Kind: registry.DefaultFromContext, ContextKey: "cbu_id"},
				},
			},
		},
	})
	ast := parse(t, `(entity.create)`)
	out, report := Validate(ast, reg, ValidationContext{Defaults: map[string]any{"cbu_id": "cbu-42"}})
	require.False(t, report.HasErrors())
	assert.Equal(t, "cbu-42", out.Calls[0].Args["owner_cbu"].Str)
}

func TestValidate_CallsAreIndependent(t *testing.T) {
	ast := parse(t, `
		(bogus.verb :x 1)
		(entity.create :name "Acme Corp")
	`)
	_, report := Validate(ast, testRegistry(), ValidationContext{})
	require.True(t, report.HasErrors())
	require.Len(t, report.Errors, 1)
}
