package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitmarket/engine"
)

func TestEncodeDecodeEvent(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ev := sampleEvent()

		message, err := EncodeEvent(ev)
		require.NoError(t, err)
		require.Contains(t, message, "data")

		decoded, err := DecodeEvent(message)
		require.NoError(t, err)
		assert.Equal(t, ev, decoded)
	})

	t.Run("empty message yields zero event", func(t *testing.T) {
		decoded, err := DecodeEvent(map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, engine.Event{}, decoded)
	})

	t.Run("missing data field", func(t *testing.T) {
		_, err := DecodeEvent(map[string]any{"other": "value"})
		assert.Error(t, err)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := DecodeEvent(map[string]any{"data": "not-base64!!"})
		assert.Error(t, err)
	})

	t.Run("invalid msgpack payload", func(t *testing.T) {
		_, err := DecodeEvent(map[string]any{"data": "aGVsbG8gd29ybGQ="})
		assert.Error(t, err)
	})
}
