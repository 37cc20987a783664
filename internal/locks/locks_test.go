package locks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortKeys_OrdersByEntityTypeThenID(t *testing.T) {
	keys := []Key{
		{EntityType: "cbu", ID: "b"},
		{EntityType: "account", ID: "z"},
		{EntityType: "account", ID: "a"},
	}
	SortKeys(keys)
	assert.Equal(t, []Key{
		{EntityType: "account", ID: "a"},
		{EntityType: "account", ID: "z"},
		{EntityType: "cbu", ID: "b"},
	}, keys)
}

func TestAdvisoryKey_IsDeterministicAndDistinguishesIDBoundary(t *testing.T) {
	a := advisoryKey(Key{EntityType: "account", ID: "123"})
	b := advisoryKey(Key{EntityType: "account", ID: "123"})
	assert.Equal(t, a, b)

	// "ac" + "count123" must not collide with "account" + "123": the
	// embedded NUL separator keeps the two distinct even though their
	// concatenations are equal.
	c := advisoryKey(Key{EntityType: "ac", ID: "count123"})
	assert.NotEqual(t, a, c)
}

func TestContentionError_Error(t *testing.T) {
	err := &ContentionError{EntityType: "account", ID: "acc-1"}
	assert.Contains(t, err.Error(), "account")
	assert.Contains(t, err.Error(), "acc-1")
}
