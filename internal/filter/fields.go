package filter

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/evalctx"
)

// Field paths understood by the built-in registry.
const (
	FieldMessageID              = "message.id"
	FieldMessageContent         = "message.content"
	FieldMessageLength          = "message.length"
	FieldMessageHasImage        = "message.has_image"
	FieldMessageHasLink         = "message.has_link"
	FieldMessageIsForumStarter  = "message.is_forum_starter"
	FieldMessageAgeSeconds      = "message.age_seconds"
	FieldMessageAttachmentCount = "message.attachment_count"

	FieldAuthorID    = "author.id"
	FieldAuthorRoles = "author.roles"
	FieldAuthorIsBot = "author.is_bot"

	FieldChannelID            = "channel.id"
	FieldChannelType          = "channel.type"
	FieldChannelParentID      = "channel.parent_id"
	FieldChannelCategoryID    = "channel.category_id"
	FieldChannelIsThread      = "channel.is_thread"
	FieldChannelIsForumPost   = "channel.is_forum_post"
	FieldChannelForumParentID = "channel.forum_parent_id"
	FieldChannelNSFW          = "channel.nsfw"

	FieldVoterID    = "voter.id"
	FieldVoterRoles = "voter.roles"
	FieldVoterIsBot = "voter.is_bot"

	FieldReactionEmoji = "reaction.emoji"
	FieldEventKind     = "event.kind"
)

func idString(id snowflake.ID) (any, bool) {
	if id == 0 {
		return nil, false
	}
	return id.String(), true
}

func idList(ids []snowflake.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// messageField only resolves when the event carried the message body.
func messageField(get func(m *evalctx.Message) any) Accessor {
	return func(ctx *evalctx.Context) (any, bool) {
		if !ctx.Message.Known {
			return nil, false
		}
		return get(&ctx.Message), true
	}
}

func memberField(pick func(ctx *evalctx.Context) *evalctx.Member, get func(m *evalctx.Member) (any, bool)) Accessor {
	return func(ctx *evalctx.Context) (any, bool) {
		m := pick(ctx)
		if m == nil {
			return nil, false
		}
		return get(m)
	}
}

func author(ctx *evalctx.Context) *evalctx.Member { return ctx.Author }
func voter(ctx *evalctx.Context) *evalctx.Member  { return ctx.Voter }

func builtinFields() []Field {
	return []Field{
		{Path: FieldMessageID, Kind: ValueString, Get: func(ctx *evalctx.Context) (any, bool) {
			return idString(ctx.Message.ID)
		}},
		{Path: FieldMessageContent, Kind: ValueString, Get: messageField(func(m *evalctx.Message) any {
			return m.Content
		})},
		{Path: FieldMessageLength, Kind: ValueNumber, Get: messageField(func(m *evalctx.Message) any {
			return float64(m.Length)
		})},
		{Path: FieldMessageHasImage, Kind: ValueBool, Get: messageField(func(m *evalctx.Message) any {
			return m.HasImage
		})},
		{Path: FieldMessageHasLink, Kind: ValueBool, Get: messageField(func(m *evalctx.Message) any {
			return m.HasLink
		})},
		{Path: FieldMessageAttachmentCount, Kind: ValueNumber, Get: messageField(func(m *evalctx.Message) any {
			return float64(len(m.Attachments))
		})},
		{Path: FieldMessageIsForumStarter, Kind: ValueBool, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Message.IsForumStarter, true
		}},
		{Path: FieldMessageAgeSeconds, Kind: ValueNumber, Get: func(ctx *evalctx.Context) (any, bool) {
			age, ok := ctx.Age()
			if !ok {
				return nil, false
			}
			return age.Seconds(), true
		}},

		{Path: FieldAuthorID, Kind: ValueString, Stable: true, Get: memberField(author, func(m *evalctx.Member) (any, bool) {
			return idString(m.ID)
		})},
		{Path: FieldAuthorRoles, Kind: ValueList, Stable: true, Get: memberField(author, func(m *evalctx.Member) (any, bool) {
			return idList(m.Roles), true
		})},
		{Path: FieldAuthorIsBot, Kind: ValueBool, Stable: true, Get: memberField(author, func(m *evalctx.Member) (any, bool) {
			return m.Bot, true
		})},

		{Path: FieldChannelID, Kind: ValueString, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return idString(ctx.Channel.ID)
		}},
		{Path: FieldChannelType, Kind: ValueString, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Channel.Type.String(), true
		}},
		{Path: FieldChannelParentID, Kind: ValueString, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return idString(ctx.Channel.ParentID)
		}},
		{Path: FieldChannelCategoryID, Kind: ValueString, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return idString(ctx.Channel.CategoryID)
		}},
		{Path: FieldChannelIsThread, Kind: ValueBool, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Channel.IsThread, true
		}},
		{Path: FieldChannelIsForumPost, Kind: ValueBool, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Channel.IsForumPost, true
		}},
		{Path: FieldChannelForumParentID, Kind: ValueString, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return idString(ctx.Channel.ForumParentID)
		}},
		{Path: FieldChannelNSFW, Kind: ValueBool, Stable: true, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Channel.NSFW, true
		}},

		{Path: FieldVoterID, Kind: ValueString, Get: memberField(voter, func(m *evalctx.Member) (any, bool) {
			return idString(m.ID)
		})},
		{Path: FieldVoterRoles, Kind: ValueList, Get: memberField(voter, func(m *evalctx.Member) (any, bool) {
			return idList(m.Roles), true
		})},
		{Path: FieldVoterIsBot, Kind: ValueBool, Get: memberField(voter, func(m *evalctx.Member) (any, bool) {
			return m.Bot, true
		})},

		{Path: FieldReactionEmoji, Kind: ValueString, Get: func(ctx *evalctx.Context) (any, bool) {
			if ctx.Emoji == "" {
				return nil, false
			}
			return ctx.Emoji, true
		}},
		{Path: FieldEventKind, Kind: ValueString, Get: func(ctx *evalctx.Context) (any, bool) {
			return ctx.Kind.String(), true
		}},
	}
}
