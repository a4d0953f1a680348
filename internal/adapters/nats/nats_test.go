package natsadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/ports"
)

func TestSubjects(t *testing.T) {
	s := NewSubjects("")
	assert.Equal(t, "gymmap.position.phone-1", s.Position("phone-1"))
	assert.Equal(t, "gymmap.position.phone-1.current", s.CurrentPosition("phone-1"))
	assert.Equal(t, "gymmap.session.abc", s.Session("abc"))
	assert.Equal(t, "gymmap.session.>", s.AllSessions())

	assert.Equal(t, "a_b_c_", Token("a.b c>"))
	assert.Equal(t, "_", Token(""))
}

func TestDecodeFix(t *testing.T) {
	pos, err := DecodeFix([]byte(`{"device_id":"d","position":{"latitude":37.51,"longitude":127.01}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Latitude: 37.51, Longitude: 127.01}, pos)

	_, err = DecodeFix([]byte(`{"device_id":"d","error":"permission denied"}`))
	assert.EqualError(t, err, "permission denied")

	_, err = DecodeFix([]byte(`{"position":{"latitude":100,"longitude":0}}`))
	assert.Error(t, err)

	_, err = DecodeFix([]byte(`{`))
	assert.Error(t, err)
}

func TestFeedResponder_Lookup(t *testing.T) {
	r := NewFeedResponder(nil, "gymmap", time.Minute, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	missing := r.Lookup("phone-1", now)
	assert.NotEmpty(t, missing.Error)

	r.Record(domain.PositionFix{DeviceID: "phone-1", Position: domain.Position{Latitude: 1, Longitude: 2}, Time: now.Add(-10 * time.Second)})
	fresh := r.Lookup("phone-1", now)
	assert.Empty(t, fresh.Error)
	assert.Equal(t, domain.Position{Latitude: 1, Longitude: 2}, fresh.Position)

	stale := r.Lookup("phone-1", now.Add(2*time.Minute))
	assert.NotEmpty(t, stale.Error)
}

func TestFeedResponder_DeviceToken(t *testing.T) {
	r := NewFeedResponder(nil, "gymmap", 0, nil)

	token, ok := r.deviceToken("gymmap.position.phone-1.current")
	assert.True(t, ok)
	assert.Equal(t, "phone-1", token)

	_, ok = r.deviceToken("gymmap.position.phone-1")
	assert.False(t, ok)
	_, ok = r.deviceToken("other.position.phone-1.current")
	assert.False(t, ok)
}

func TestGeolocator_WithoutConnection(t *testing.T) {
	geo := NewLocators(nil, "gymmap", nil).ForDevice("phone-1")

	_, err := geo.WatchPosition(func(domain.Position) {}, func(error) {}, ports.PositionOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, domain.ErrWatchUnsupported)

	_, err = geo.CurrentPosition(testContext(t), ports.PositionOptions{Timeout: time.Second})
	assert.Error(t, err)
}

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
