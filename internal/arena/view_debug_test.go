//go:build arena_debug

package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringViewAfterResetPanicsInDebugBuilds(t *testing.T) {
	a := New(32)
	b, err := a.Alloc(5)
	require.NoError(t, err)
	copy(b, "hello")
	v := NewView(a, b)

	a.Reset()

	require.Panics(t, func() {
		_ = v.String(a)
	})
}
