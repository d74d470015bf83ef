package evalctx

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// Context is the immutable snapshot every filter and resolver decision reads from.
// It owns copies of all slices so callers cannot mutate it after Build.
type Context struct {
	Kind      enum.EventKind
	GuildID   snowflake.ID
	Message   Message
	Author    *Member
	Channel   Channel
	Voter     *Member
	Emoji     string
	Timestamp time.Time
}

// Message is the normalized view of the source message.
type Message struct {
	ID             snowflake.ID
	Known          bool
	Content        string
	Length         int
	HasImage       bool
	HasLink        bool
	IsForumStarter bool
	Attachments    []Attachment
	CreatedAt      time.Time
}

// Channel is the channel the message is considered to live in.
// For a forum starter this is the forum itself, otherwise the channel or thread
// the message was posted in.
type Channel struct {
	ID            snowflake.ID
	Type          enum.ChannelType
	ParentID      snowflake.ID
	CategoryID    snowflake.ID
	IsThread      bool
	IsForumPost   bool
	ForumParentID snowflake.ID
	NSFW          bool
}

// ChannelChain returns the channel, its thread parent and its category, skipping unknown ids.
func (c *Context) ChannelChain() []snowflake.ID {
	chain := make([]snowflake.ID, 0, 3)
	chain = append(chain, c.Channel.ID)
	if c.Channel.IsThread && c.Channel.ParentID != 0 {
		chain = append(chain, c.Channel.ParentID)
	}
	if id := c.Channel.CategoryID; id != 0 && id != chain[len(chain)-1] {
		chain = append(chain, id)
	}
	return chain
}

// AuthorRoles returns the author's roles, or nil when the author is unknown.
func (c *Context) AuthorRoles() []snowflake.ID {
	if c.Author == nil {
		return nil
	}
	return c.Author.Roles
}

// AuthorHasRole reports whether the author carries any of the given roles.
func (c *Context) AuthorHasRole(roles []snowflake.ID) bool {
	if c.Author == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range c.Author.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Age returns how old the message was at the time of the event.
// The second return value is false when the creation time is unknown.
func (c *Context) Age() (time.Duration, bool) {
	if c.Message.CreatedAt.IsZero() {
		return 0, false
	}
	return c.Timestamp.Sub(c.Message.CreatedAt), true
}
