package types

import (
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/uptrace/bun"
)

// TargetConfig is a starboard or autostar channel together with its overrides.
type TargetConfig struct {
	bun.BaseModel `bun:"table:target_configs,alias:tc"`

	ID        int64           `bun:",pk,autoincrement"       json:"id"`
	GuildID   snowflake.ID    `bun:",notnull"                json:"guildId"`
	Kind      enum.TargetKind `bun:",notnull"                json:"kind"`
	ChannelID snowflake.ID    `bun:",notnull"                json:"channelId"` // Starboard destination or autostar source
	Name      string          `bun:",notnull"                json:"name"`
	NSFW      bool            `bun:",notnull,default:false"  json:"nsfw"`
	Settings  Settings        `bun:"type:jsonb,notnull"      json:"settings"`
	Filter    *filter.Node    `bun:"type:jsonb"              json:"filter,omitempty"`
	Overrides []*Override     `bun:"rel:has-many,join:id=target_id" json:"overrides"`
	CreatedAt time.Time       `bun:",notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time       `bun:",notnull,default:current_timestamp" json:"updatedAt"`
}

// Override patches a target's settings for messages matching its scope and filter.
type Override struct {
	bun.BaseModel `bun:"table:target_overrides,alias:o"`

	ID       int64          `bun:",pk,autoincrement" json:"id"`
	TargetID int64          `bun:",notnull"          json:"targetId"`
	Name     string         `bun:",notnull"          json:"name"`
	Position int            `bun:",notnull"          json:"position"` // Declaration order within the target
	Scope    enum.ScopeKind `bun:",notnull"          json:"scope"`
	ScopeIDs []snowflake.ID `bun:"type:jsonb,notnull" json:"scopeIds"`
	Patch    SettingsPatch  `bun:"type:jsonb,notnull" json:"patch"`
	Filter   *filter.Node   `bun:"type:jsonb"        json:"filter,omitempty"`
}

// Matches reports whether the override's scope selects the given channel chain and roles.
// Channel scopes match the channel or a thread's parent, category scopes match the
// category, role scopes match any of the author's roles.
func (o *Override) Matches(channelID, parentID, categoryID snowflake.ID, roles []snowflake.ID) bool {
	switch o.Scope {
	case enum.ScopeKindChannel:
		return slices.Contains(o.ScopeIDs, channelID) || (parentID != 0 && slices.Contains(o.ScopeIDs, parentID))
	case enum.ScopeKindCategory:
		return categoryID != 0 && slices.Contains(o.ScopeIDs, categoryID)
	case enum.ScopeKindRole:
		for _, role := range roles {
			if slices.Contains(o.ScopeIDs, role) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Clone returns a deep copy of the target and its overrides.
func (t *TargetConfig) Clone() *TargetConfig {
	out := *t
	out.Settings = t.Settings.Clone()
	out.Overrides = make([]*Override, len(t.Overrides))
	for i, o := range t.Overrides {
		c := *o
		c.ScopeIDs = append([]snowflake.ID(nil), o.ScopeIDs...)
		out.Overrides[i] = &c
	}
	return &out
}

// Filters returns every filter tree the target carries, including override filters.
func (t *TargetConfig) Filters() []*filter.Node {
	nodes := make([]*filter.Node, 0, len(t.Overrides)+1)
	if t.Filter != nil {
		nodes = append(nodes, t.Filter)
	}
	for _, o := range t.Overrides {
		if o.Filter != nil {
			nodes = append(nodes, o.Filter)
		}
	}
	return nodes
}
