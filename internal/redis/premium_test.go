package redis_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLoader struct {
	tier  enum.Tier
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) LoadPremiumTier(_ context.Context, _ snowflake.ID) (enum.Tier, error) {
	f.calls.Add(1)
	return f.tier, f.err
}

func setupTest(t *testing.T, loader *fakeLoader) (*redis.PremiumSource, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return redis.NewPremiumSource(client, loader, zap.NewNop()), mr
}

func TestRefreshCachesDatabaseTier(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{tier: enum.TierPremium}
	source, mr := setupTest(t, loader)

	tier, err := source.Refresh(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, enum.TierPremium, tier)

	cached, err := mr.Get("premium:tier:42")
	require.NoError(t, err)
	assert.Equal(t, "premium", cached)
	assert.Greater(t, mr.TTL("premium:tier:42"), time.Duration(0))

	tier, err = source.Refresh(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, enum.TierPremium, tier)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestRefreshPrefersCachedTier(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{tier: enum.TierFree}
	source, mr := setupTest(t, loader)
	require.NoError(t, mr.Set("premium:tier:7", "premium"))

	tier, err := source.Refresh(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, enum.TierPremium, tier)
	assert.Zero(t, loader.calls.Load())
}

func TestRefreshPropagatesDatabaseFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	source, _ := setupTest(t, &fakeLoader{err: boom})

	_, err := source.Refresh(t.Context(), 9)
	require.ErrorIs(t, err, boom)
}

func TestPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	source, mr := setupTest(t, &fakeLoader{})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var received atomic.Uint64
	done := make(chan error, 1)
	go func() {
		done <- source.Subscribe(ctx, func(guildID snowflake.ID, tier enum.Tier) {
			if tier == enum.TierPremium {
				received.Store(uint64(guildID))
			}
		})
	}()

	require.Eventually(t, func() bool {
		require.NoError(t, source.Publish(t.Context(), 55, enum.TierPremium))
		return received.Load() == 55
	}, 5*time.Second, 50*time.Millisecond)

	cached, err := mr.Get("premium:tier:55")
	require.NoError(t, err)
	assert.Equal(t, "premium", cached)

	cancel()
	require.NoError(t, <-done)
}

func TestDecodeTierChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    redis.TierChange
		wantErr bool
	}{
		{name: "valid", payload: `{"guildId":"12","tier":"premium"}`, want: redis.TierChange{GuildID: 12, Tier: "premium"}},
		{name: "missing guild", payload: `{"tier":"premium"}`, wantErr: true},
		{name: "garbage", payload: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := redis.DecodeTierChange(tt.payload)
			if tt.wantErr {
				require.ErrorIs(t, err, redis.ErrInvalidTierChange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
