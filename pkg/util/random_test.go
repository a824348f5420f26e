package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferenceGenerator(t *testing.T) {
	next, err := NewReferenceGenerator()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := next()
		require.True(t, strings.HasPrefix(ref, "PED-"), ref)

		body := strings.TrimPrefix(ref, "PED-")
		assert.Len(t, body, ReferenceLength)
		for _, r := range body {
			assert.True(t, strings.ContainsRune(ReferenceAlphabet, r), "unexpected character %q", r)
		}

		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}
