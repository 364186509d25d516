package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageOf(fqns ...string) []*Entity {
	out := make([]*Entity, 0, len(fqns))
	for _, fqn := range fqns {
		out = append(out, &Entity{FullyQualifiedName: fqn})
	}
	return out
}

func fqns(page []*Entity) []string {
	out := make([]string, 0, len(page))
	for _, e := range page {
		out = append(out, e.FullyQualifiedName)
	}
	return out
}

// The scenario throughout: five entities a1 < a2 < a3 < a4 < a5 under
// a common prefix, page size 2. The store fetches limit+1 rows.

func TestWindowAfter_FirstPage(t *testing.T) {
	trimmed, before, after := windowAfter(pageOf("a1", "a2", "a3"), 2, false)

	assert.Equal(t, []string{"a1", "a2"}, fqns(trimmed))
	assert.Nil(t, before)
	require.NotNil(t, after)
	assert.Equal(t, "a2", *after)
}

func TestWindowAfter_MiddlePage(t *testing.T) {
	// after=a2 fetched [a3,a4,a5]
	trimmed, before, after := windowAfter(pageOf("a3", "a4", "a5"), 2, true)

	assert.Equal(t, []string{"a3", "a4"}, fqns(trimmed))
	require.NotNil(t, before)
	assert.Equal(t, "a3", *before)
	require.NotNil(t, after)
	assert.Equal(t, "a4", *after)
}

func TestWindowAfter_LastPage(t *testing.T) {
	// after=a4 fetched [a5]
	trimmed, before, after := windowAfter(pageOf("a5"), 2, true)

	assert.Equal(t, []string{"a5"}, fqns(trimmed))
	require.NotNil(t, before)
	assert.Equal(t, "a5", *before)
	assert.Nil(t, after)
}

func TestWindowAfter_Empty(t *testing.T) {
	trimmed, before, after := windowAfter(nil, 2, true)

	assert.Empty(t, trimmed)
	assert.Nil(t, before)
	assert.Nil(t, after)
}

func TestWindowBefore_MiddlePage(t *testing.T) {
	// before=a4 fetched desc [a3,a2,a1], re-sorted asc
	trimmed, before, after := windowBefore(pageOf("a1", "a2", "a3"), 2, true)

	assert.Equal(t, []string{"a2", "a3"}, fqns(trimmed))
	require.NotNil(t, before)
	assert.Equal(t, "a2", *before)
	require.NotNil(t, after)
	assert.Equal(t, "a3", *after)
}

func TestWindowBefore_FirstPage(t *testing.T) {
	// before=a3 fetched desc [a2,a1], no extra row
	trimmed, before, after := windowBefore(pageOf("a1", "a2"), 2, true)

	assert.Equal(t, []string{"a1", "a2"}, fqns(trimmed))
	assert.Nil(t, before)
	require.NotNil(t, after)
	assert.Equal(t, "a2", *after)
}

func TestWindowBefore_LastPageWithoutCursor(t *testing.T) {
	// nil cursor asks for the last page: fetched desc [a5,a4,a3]
	trimmed, before, after := windowBefore(pageOf("a3", "a4", "a5"), 2, false)

	assert.Equal(t, []string{"a4", "a5"}, fqns(trimmed))
	require.NotNil(t, before)
	assert.Equal(t, "a4", *before)
	assert.Nil(t, after)
}

func TestWindowBefore_Empty(t *testing.T) {
	trimmed, before, after := windowBefore(nil, 2, true)

	assert.Empty(t, trimmed)
	assert.Nil(t, before)
	assert.Nil(t, after)
}
