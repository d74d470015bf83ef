package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"go.uber.org/zap"
)

const (
	// TierChangesChannel carries TierChange payloads.
	TierChangesChannel = "premium:changes"
	// TierTTL bounds how long a cached tier is trusted before the database is asked again.
	TierTTL = 15 * time.Minute
)

// ErrInvalidTierChange is returned for payloads that cannot be decoded.
var ErrInvalidTierChange = errors.New("invalid tier change payload")

// TierLoader reads the authoritative tier of a guild.
type TierLoader interface {
	LoadPremiumTier(ctx context.Context, guildID snowflake.ID) (enum.Tier, error)
}

// TierChange is published whenever a guild's entitlement changes.
type TierChange struct {
	GuildID snowflake.ID `json:"guildId"`
	Tier    string       `json:"tier"`
}

// PremiumSource serves guild tiers from Redis, falling back to the database
// on a miss, and relays entitlement changes published by the billing side.
type PremiumSource struct {
	client   rueidis.Client
	fallback TierLoader
	logger   *zap.Logger
}

// NewPremiumSource creates a PremiumSource.
func NewPremiumSource(client rueidis.Client, fallback TierLoader, logger *zap.Logger) *PremiumSource {
	return &PremiumSource{
		client:   client,
		fallback: fallback,
		logger:   logger.Named("premium"),
	}
}

func tierKey(guildID snowflake.ID) string {
	return "premium:tier:" + strconv.FormatUint(uint64(guildID), 10)
}

// Refresh returns the current tier of a guild.
func (s *PremiumSource) Refresh(ctx context.Context, guildID snowflake.ID) (enum.Tier, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(tierKey(guildID)).Build()).ToString()
	switch {
	case err == nil:
		return enum.TierFromString(value), nil
	case rueidis.IsRedisNil(err):
	default:
		s.logger.Warn("Failed to read cached tier, asking the database",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
	}

	tier, err := s.fallback.LoadPremiumTier(ctx, guildID)
	if err != nil {
		return enum.TierFree, err
	}

	if err := s.cache(ctx, guildID, tier); err != nil {
		s.logger.Warn("Failed to cache tier",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
	}
	return tier, nil
}

func (s *PremiumSource) cache(ctx context.Context, guildID snowflake.ID, tier enum.Tier) error {
	return s.client.Do(ctx, s.client.B().Set().
		Key(tierKey(guildID)).
		Value(tier.String()).
		Ex(TierTTL).
		Build()).Error()
}

// Publish caches the new tier of a guild and notifies every subscriber.
func (s *PremiumSource) Publish(ctx context.Context, guildID snowflake.ID, tier enum.Tier) error {
	if err := s.cache(ctx, guildID, tier); err != nil {
		return fmt.Errorf("failed to cache tier: %w (guildID=%d)", err, guildID)
	}

	data, err := sonic.Marshal(TierChange{GuildID: guildID, Tier: tier.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal tier change: %w", err)
	}

	err = s.client.Do(ctx, s.client.B().Publish().
		Channel(TierChangesChannel).
		Message(string(data)).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to publish tier change: %w (guildID=%d)", err, guildID)
	}
	return nil
}

// Subscribe delivers tier changes to handle until ctx is done.
func (s *PremiumSource) Subscribe(ctx context.Context, handle func(guildID snowflake.ID, tier enum.Tier)) error {
	err := s.client.Receive(ctx, s.client.B().Subscribe().Channel(TierChangesChannel).Build(),
		func(msg rueidis.PubSubMessage) {
			change, err := DecodeTierChange(msg.Message)
			if err != nil {
				s.logger.Warn("Dropped tier change", zap.String("payload", msg.Message), zap.Error(err))
				return
			}
			handle(change.GuildID, enum.TierFromString(change.Tier))
		})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("tier change subscription ended: %w", err)
	}
	return nil
}

// DecodeTierChange parses a published payload.
func DecodeTierChange(payload string) (TierChange, error) {
	var change TierChange
	if err := sonic.UnmarshalString(payload, &change); err != nil {
		return change, fmt.Errorf("%w: %w", ErrInvalidTierChange, err)
	}
	if change.GuildID == 0 {
		return change, fmt.Errorf("%w: missing guild", ErrInvalidTierChange)
	}
	return change, nil
}
