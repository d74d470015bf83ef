package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// GuildPremium is the persisted entitlement of a guild.
type GuildPremium struct {
	bun.BaseModel `bun:"table:guild_premiums,alias:gp"`

	GuildID   snowflake.ID `bun:",pk"`
	Tier      enum.Tier    `bun:",notnull"`
	ExpiresAt *time.Time   `bun:",nullzero"` // Null for permanent entitlements
	UpdatedAt time.Time    `bun:",notnull"`
}

// ActiveTier returns the tier in effect at now.
func (p *GuildPremium) ActiveTier(now time.Time) enum.Tier {
	if p == nil || (p.ExpiresAt != nil && now.After(*p.ExpiresAt)) {
		return enum.TierFree
	}
	return p.Tier
}

// ResourceCounts are the live counts of quota-bounded resources in a guild.
type ResourceCounts struct {
	Starboards       int `json:"starboards"`
	AutostarChannels int `json:"autostarChannels"`
}

// PremiumLock caches a guild's tier together with its resource counts.
// A dirty lock must be refreshed before its counts are trusted.
type PremiumLock struct {
	GuildID     snowflake.ID   `json:"guildId"`
	Tier        enum.Tier      `json:"tier"`
	Counts      ResourceCounts `json:"counts"`
	Dirty       bool           `json:"dirty"`
	RefreshedAt time.Time      `json:"refreshedAt"`
}

// Quotas are the ceilings of one tier.
type Quotas struct {
	Starboards         int `koanf:"starboards"`
	AutostarChannels   int `koanf:"autostar_channels"`
	OverridesPerTarget int `koanf:"overrides_per_target"`
	VoteEmojis         int `koanf:"vote_emojis"`
	RegexLength        int `koanf:"regex_length"`
	UploadBytes        int `koanf:"upload_bytes"`
}

// Ceiling returns the quota for kind, or 0 when the kind is unknown.
func (q Quotas) Ceiling(kind enum.QuotaKind) int {
	switch kind {
	case enum.QuotaKindStarboards:
		return q.Starboards
	case enum.QuotaKindAutostarChannels:
		return q.AutostarChannels
	case enum.QuotaKindOverridesPerTarget:
		return q.OverridesPerTarget
	case enum.QuotaKindVoteEmojis:
		return q.VoteEmojis
	case enum.QuotaKindRegexLength:
		return q.RegexLength
	case enum.QuotaKindUploadBytes:
		return q.UploadBytes
	default:
		return 0
	}
}

// DefaultQuotas returns the built-in free and premium ceilings.
func DefaultQuotas() (free, premium Quotas) {
	free = Quotas{
		Starboards:         3,
		AutostarChannels:   3,
		OverridesPerTarget: 10,
		VoteEmojis:         3,
		RegexLength:        200,
		UploadBytes:        8 << 20,
	}
	premium = Quotas{
		Starboards:         10,
		AutostarChannels:   10,
		OverridesPerTarget: 20,
		VoteEmojis:         20,
		RegexLength:        1000,
		UploadBytes:        25 << 20,
	}
	return free, premium
}
