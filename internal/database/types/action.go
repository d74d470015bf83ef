package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// Action is a side effect requested from the action sink.
type Action struct {
	ID        uuid.UUID
	Kind      enum.ActionKind
	GuildID   snowflake.ID
	TargetID  int64
	ChannelID snowflake.ID // Starboard channel for posts, source channel for autostar actions
	MessageID snowflake.ID // Source message
	SourceID  snowflake.ID // Channel of the source message
	AuthorID  snowflake.ID
	PostID    snowflake.ID // Existing post, for updates and deletes
	VoteCount int
	Emojis    []string // Reactions to add
	// AttachmentURL and SizeLimit describe an upload.
	AttachmentURL string
	SizeLimit     int
}

// NewAction creates an action with a fresh id.
func NewAction(kind enum.ActionKind, guildID snowflake.ID, targetID int64) Action {
	return Action{
		ID:       uuid.New(),
		Kind:     kind,
		GuildID:  guildID,
		TargetID: targetID,
	}
}
