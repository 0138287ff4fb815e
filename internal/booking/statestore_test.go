package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStore_UnknownUserGetsIdleState(t *testing.T) {
	store := NewMemoryStateStore()

	state, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StepIdle, state.Step)
	assert.Empty(t, state.PatientName)
}

func TestMemoryStateStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	state := NewState()
	state.Step = StepAwaitingPhone
	state.PatientName = "Asha"
	require.NoError(t, store.Put(ctx, 42, state))

	// Mutating the caller's copy must not leak into the store.
	state.PatientName = "changed"

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingPhone, got.Step)
	assert.Equal(t, "Asha", got.PatientName)
}

func TestMemoryStateStore_ResetClearsFields(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	state := NewState()
	state.Step = StepSelectingSlot
	state.DoctorName = "Dr. Mehta"
	require.NoError(t, store.Put(ctx, 7, state))
	require.NoError(t, store.Reset(ctx, 7))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StepIdle, got.Step)
	assert.Empty(t, got.DoctorName)
}

func newTestRedisStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStateStore(client, time.Hour), mr
}

func TestRedisStateStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	state := NewState()
	state.Step = StepAwaitingReportUpload
	state.LastAppointmentID = "APT1700000000000"
	require.NoError(t, store.Put(ctx, 99, state))

	got, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingReportUpload, got.Step)
	assert.Equal(t, "APT1700000000000", got.LastAppointmentID)
}

func TestRedisStateStore_MissingKeyYieldsIdleState(t *testing.T) {
	store, _ := newTestRedisStore(t)

	got, err := store.Get(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, StepIdle, got.Step)
}

func TestRedisStateStore_SessionExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	state := NewState()
	state.Step = StepAwaitingName
	require.NoError(t, store.Put(ctx, 5, state))

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StepIdle, got.Step)
}

func TestRedisStateStore_Reset(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	state := NewState()
	state.Step = StepSelectingDoctor
	require.NoError(t, store.Put(ctx, 5, state))
	require.NoError(t, store.Reset(ctx, 5))

	got, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StepIdle, got.Step)
}
