package valkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/gymmap/internal/core/domain"
)

func TestPositionKey(t *testing.T) {
	assert.Equal(t, "position:last:phone-1", PositionKey("phone-1"))
}

func TestDecodePosition(t *testing.T) {
	pos, err := decodePosition([]byte(`{"latitude":37.5,"longitude":127,"stored_at":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Latitude: 37.5, Longitude: 127}, pos)
}

func TestDecodePosition_Unusable(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage":      `not json`,
		"out of range": `{"latitude":91,"longitude":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodePosition([]byte(raw))
			assert.True(t, errors.Is(err, domain.ErrPositionNotCached), "got %v", err)
		})
	}
}
