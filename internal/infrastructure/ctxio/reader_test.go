package ctxio

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader(t *testing.T) {
	t.Run("reads through while ctx is live", func(t *testing.T) {
		data, err := io.ReadAll(NewReader(context.Background(), strings.NewReader("hello")))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("fails once ctx is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		r := NewReader(ctx, strings.NewReader("hello world"))

		buf := make([]byte, 5)
		n, err := r.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))

		cancel()
		n, err = r.Read(buf)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
