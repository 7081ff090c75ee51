package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peekStore remembers the last angle stored so tests can answer correctly
type peekStore struct {
	ChallengeStore
	last map[string]int
}

func (p *peekStore) Set(ctx context.Context, id string, angle int, ttl time.Duration) error {
	p.last[id] = angle
	return p.ChallengeStore.Set(ctx, id, angle, ttl)
}

func TestRotateCaptchaRoundTrip(t *testing.T) {
	store := &peekStore{ChallengeStore: NewMemoryChallengeStore(), last: map[string]int{}}
	svc, err := NewCaptchaServiceRotate(store, time.Minute, 5, 160)
	require.NoError(t, err)
	ctx := context.Background()

	ch, err := svc.GenerateRotate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.NotEmpty(t, ch.MasterImageBase64)
	assert.NotEmpty(t, ch.ThumbImageBase64)
	assert.Positive(t, ch.ThumbSize)

	angle := store.last[ch.ID]
	assert.True(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)))
	assert.False(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)), "challenge is single use")
}

func TestRotateCaptchaWrongAngleConsumesChallenge(t *testing.T) {
	store := &peekStore{ChallengeStore: NewMemoryChallengeStore(), last: map[string]int{}}
	svc, err := NewCaptchaServiceRotate(store, time.Minute, 5, 160)
	require.NoError(t, err)
	ctx := context.Background()

	ch, err := svc.GenerateRotate(ctx)
	require.NoError(t, err)
	angle := store.last[ch.ID]

	wrong := float64((angle + 90) % 360)
	assert.False(t, svc.VerifyRotate(ctx, ch.ID, wrong))
	assert.False(t, svc.VerifyRotate(ctx, ch.ID, float64(angle)))
	assert.False(t, svc.VerifyRotate(ctx, "", 0))
	assert.False(t, svc.VerifyRotate(ctx, "unknown", 0))
}

func TestMemoryChallengeStoreExpiry(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", 42, -time.Second))
	_, ok, err := store.Take(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "b", 17, time.Minute))
	angle, ok, err := store.Take(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 17, angle)
}
