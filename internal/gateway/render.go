package gateway

import (
	"fmt"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/starboard/internal/database/types"
)

const (
	// DefaultEmoji prefixes post headers when no display emoji is configured.
	DefaultEmoji = "⭐"
	// DefaultColor is the accent color of post embeds.
	DefaultColor = 0xFFAC33

	maxDescription = 4096
)

// Renderer formats starboard posts.
type Renderer struct {
	Emoji string
	Color int
}

func (r Renderer) emoji() string {
	if r.Emoji == "" {
		return DefaultEmoji
	}
	return r.Emoji
}

func (r Renderer) color() int {
	if r.Color == 0 {
		return DefaultColor
	}
	return r.Color
}

// Header is the text line above a post's embed.
func (r Renderer) Header(a types.Action) string {
	return fmt.Sprintf("%s **%d** | <#%d>", r.emoji(), a.VoteCount, a.SourceID)
}

// Embed renders the source message.
func (r Renderer) Embed(msg *discord.Message, a types.Action) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetAuthor(msg.Author.EffectiveName(), "", msg.Author.EffectiveAvatarURL()).
		SetColor(r.color()).
		SetTimestamp(msg.CreatedAt).
		AddField("Source", fmt.Sprintf("[Jump to message](%s)", jumpURL(a)), false)

	if msg.Content != "" {
		builder.SetDescription(truncate(msg.Content, maxDescription))
	}
	if image := firstImage(msg); image != "" {
		builder.SetImage(image)
	}
	return builder.Build()
}

// Create renders a new post.
func (r Renderer) Create(msg *discord.Message, a types.Action) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(r.Header(a)).
		SetEmbeds(r.Embed(msg, a)).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()
}

// Update renders an existing post. A nil msg only refreshes the header.
func (r Renderer) Update(msg *discord.Message, a types.Action) discord.MessageUpdate {
	builder := discord.NewMessageUpdateBuilder().SetContent(r.Header(a))
	if msg != nil {
		builder.SetEmbeds(r.Embed(msg, a))
	}
	return builder.Build()
}

func jumpURL(a types.Action) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", a.GuildID, a.SourceID, a.MessageID)
}

func firstImage(msg *discord.Message) string {
	raw := rawMessage(*msg)
	for _, att := range raw.Attachments {
		if att.IsImage() {
			return att.URL
		}
	}
	if len(raw.EmbedImages) > 0 {
		return raw.EmbedImages[0]
	}
	return ""
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
