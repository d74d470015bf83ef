package evalctx

import (
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// RawEvent is the gateway-agnostic shape of an incoming event.
// The gateway adapter fills in whatever it knows; missing pieces stay nil.
type RawEvent struct {
	Kind      enum.EventKind
	GuildID   snowflake.ID
	MessageID snowflake.ID
	Message   *RawMessage
	Channel   RawChannel
	// Parent is the thread's parent channel when Channel is a thread.
	Parent *RawChannel
	// CategoryID is the category of the top-level channel, if known.
	CategoryID snowflake.ID
	Author     *Member
	Voter      *Member
	Emoji      string
	Timestamp  time.Time
}

// RawMessage is the message body as delivered by the gateway.
type RawMessage struct {
	Content     string
	Attachments []Attachment
	EmbedImages []string
	CreatedAt   time.Time
}

// RawChannel describes a channel as delivered by the gateway.
type RawChannel struct {
	ID       snowflake.ID
	Type     enum.ChannelType
	ParentID snowflake.ID
	NSFW     bool
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID          snowflake.ID `json:"id"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"contentType"`
	URL         string       `json:"url"`
	Size        int          `json:"size"`
}

// IsImage reports whether the attachment is an image by content type or extension.
func (a Attachment) IsImage() bool {
	if a.ContentType != "" {
		return strings.HasPrefix(a.ContentType, "image/")
	}
	return hasImageExtension(a.Filename)
}

// Member is a guild member acting as author or voter.
type Member struct {
	ID    snowflake.ID
	Roles []snowflake.ID
	Bot   bool
}

func (m *Member) clone() *Member {
	if m == nil {
		return nil
	}
	out := *m
	out.Roles = append([]snowflake.ID(nil), m.Roles...)
	return &out
}
