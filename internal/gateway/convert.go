package gateway

import (
	"strconv"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/evalctx"
)

func channelType(t discord.ChannelType) enum.ChannelType {
	switch t {
	case discord.ChannelTypeGuildText:
		return enum.ChannelTypeText
	case discord.ChannelTypeGuildNews:
		return enum.ChannelTypeAnnouncement
	case discord.ChannelTypeGuildCategory:
		return enum.ChannelTypeCategory
	case discord.ChannelTypeGuildForum:
		return enum.ChannelTypeForum
	case discord.ChannelTypeGuildPublicThread:
		return enum.ChannelTypePublicThread
	case discord.ChannelTypeGuildPrivateThread:
		return enum.ChannelTypePrivateThread
	case discord.ChannelTypeGuildNewsThread:
		return enum.ChannelTypeAnnouncementThread
	case discord.ChannelTypeGuildVoice:
		return enum.ChannelTypeVoice
	default:
		return enum.ChannelTypeUnknown
	}
}

func rawChannel(ch discord.GuildChannel) evalctx.RawChannel {
	raw := evalctx.RawChannel{
		ID:   ch.ID(),
		Type: channelType(ch.Type()),
	}
	if parentID := ch.ParentID(); parentID != nil {
		raw.ParentID = *parentID
	}
	if nsfw, ok := ch.(interface{ NSFW() bool }); ok {
		raw.NSFW = nsfw.NSFW()
	}
	return raw
}

func rawMessage(msg discord.Message) *evalctx.RawMessage {
	raw := &evalctx.RawMessage{
		Content:     msg.Content,
		Attachments: make([]evalctx.Attachment, 0, len(msg.Attachments)),
		CreatedAt:   msg.CreatedAt,
	}

	for _, att := range msg.Attachments {
		converted := evalctx.Attachment{
			ID:       att.ID,
			Filename: att.Filename,
			URL:      att.URL,
			Size:     att.Size,
		}
		if att.ContentType != nil {
			converted.ContentType = *att.ContentType
		}
		raw.Attachments = append(raw.Attachments, converted)
	}

	for _, embed := range msg.Embeds {
		switch {
		case embed.Image != nil && embed.Image.URL != "":
			raw.EmbedImages = append(raw.EmbedImages, embed.Image.URL)
		case embed.Thumbnail != nil && embed.Thumbnail.URL != "":
			raw.EmbedImages = append(raw.EmbedImages, embed.Thumbnail.URL)
		}
	}
	return raw
}

// rawMember combines a user with its optional guild membership.
func rawMember(user discord.User, member *discord.Member) *evalctx.Member {
	out := &evalctx.Member{
		ID:  user.ID,
		Bot: user.Bot,
	}
	if member != nil {
		out.Roles = append([]snowflake.ID(nil), member.RoleIDs...)
	}
	return out
}

// emojiName formats an emoji the way vote emojis are stored: the unicode
// character itself, or name:id for custom emojis.
func emojiName(e discord.PartialEmoji) string {
	var name string
	if e.Name != nil {
		name = *e.Name
	}
	if e.ID == nil {
		return name
	}
	return name + ":" + strconv.FormatUint(uint64(*e.ID), 10)
}
