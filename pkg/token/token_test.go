package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesDistinctTokens(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := New()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(tok), 43)
		_, dup := seen[tok]
		assert.False(t, dup, "token collision")
		seen[tok] = struct{}{}
	}
}
