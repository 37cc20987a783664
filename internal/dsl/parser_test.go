package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleCall(t *testing.T) {
	ast, err := Parse(`(entity.create :name "Acme Corp" :active #t)`)
	require.NoError(t, err)
	require.Len(t, ast.Calls, 1)

	call := ast.Calls[0]
	assert.Equal(t, "entity.create", call.Verb)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "name", call.Args[0].Name)
	assert.Equal(t, KString, call.Args[0].Value.Kind)
	assert.Equal(t, "Acme Corp", call.Args[0].Value.Str)
	assert.Equal(t, "active", call.Args[1].Name)
	assert.Equal(t, KBool, call.Args[1].Value.Kind)
	assert.True(t, call.Args[1].Value.Bool)
}

func TestParse_SymbolCaptureAndReference(t *testing.T) {
	ast, err := Parse(`
		(entity.create :name "Acme Corp" :as @acme)
		(cbu.link :entity @acme :role "owner")
	`)
	require.NoError(t, err)
	require.Len(t, ast.Calls, 2)

	assert.Equal(t, "acme", ast.Calls[0].As)

	linkArgs := ast.Calls[1].Args
	require.Len(t, linkArgs, 2)
	assert.Equal(t, KSymbol, linkArgs[0].Value.Kind)
	assert.Equal(t, "acme", linkArgs[0].Value.Str)
}

func TestParse_ListMapDateDecimalNegative(t *testing.T) {
	ast, err := Parse(`(position.book :tags [ "a" "b" ] :meta {:k1 1 :k2 2.5} :as_of 2024-01-15 :qty -3.25)`)
	require.NoError(t, err)
	call := ast.Calls[0]

	tags := call.Args[0].Value
	assert.Equal(t, KList, tags.Kind)
	require.Len(t, tags.List, 2)
	assert.Equal(t, "a", tags.List[0].Str)

	meta := call.Args[1].Value
	assert.Equal(t, KMap, meta.Kind)
	require.Len(t, meta.MapVal, 2)
	assert.Equal(t, "k1", meta.MapVal[0].Key)
	assert.EqualValues(t, 1, meta.MapVal[0].Value.Int)

	asOf := call.Args[2].Value
	assert.Equal(t, KDate, asOf.Kind)
	assert.Equal(t, "2024-01-15", asOf.Str)

	qty := call.Args[3].Value
	assert.Equal(t, KDecimal, qty.Kind)
	assert.InDelta(t, -3.25, qty.Dec, 0.0001)
}

func TestParse_CommentsIgnored(t *testing.T) {
	ast, err := Parse(`
		; opening the position
		(position.book :qty 10) ; trailing note
	`)
	require.NoError(t, err)
	require.Len(t, ast.Calls, 1)
	assert.Equal(t, "position.book", ast.Calls[0].Verb)
}

func TestParse_UnterminatedListIsSyntaxError(t *testing.T) {
	_, err := Parse(`(position.book :tags [ "a" "b" )`)
	require.Error(t, err)
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestParse_MalformedDateFallsBackOrErrors(t *testing.T) {
	_, err := Parse(`(position.book :as_of 2024-1-5)`)
	require.Error(t, err)
}

func TestRender_RoundTripsThroughParse(t *testing.T) {
	src := `(entity.create :name "Acme Corp" :active #t :as @acme)`
	ast, err := Parse(src)
	require.NoError(t, err)

	rendered := Render(ast.Calls[0])
	reparsed, err := Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, ast.Calls[0].Verb, reparsed.Calls[0].Verb)
	assert.Equal(t, ast.Calls[0].As, reparsed.Calls[0].As)
	require.Len(t, reparsed.Calls[0].Args, len(ast.Calls[0].Args))
}
