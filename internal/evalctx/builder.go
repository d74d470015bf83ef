package evalctx

import (
	"errors"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidEvent is returned when an event lacks the fields every decision needs.
var ErrInvalidEvent = errors.New("invalid event")

var linkPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>]+`)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

func hasImageExtension(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// Builder turns raw gateway events into evaluation contexts.
type Builder struct {
	clock clockwork.Clock
}

// NewBuilder creates a Builder that stamps events lacking a timestamp with the clock's time.
func NewBuilder(clock clockwork.Clock) *Builder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Builder{clock: clock}
}

// Build produces an immutable Context from a raw event.
func (b *Builder) Build(raw *RawEvent) (*Context, error) {
	if raw == nil {
		return nil, ErrInvalidEvent
	}
	if raw.GuildID == 0 || raw.MessageID == 0 || raw.Channel.ID == 0 {
		return nil, ErrInvalidEvent
	}
	if raw.Kind.IsReaction() && (raw.Voter == nil || raw.Emoji == "") {
		return nil, ErrInvalidEvent
	}

	ctx := &Context{
		Kind:      raw.Kind,
		GuildID:   raw.GuildID,
		Author:    raw.Author.clone(),
		Voter:     raw.Voter.clone(),
		Emoji:     raw.Emoji,
		Timestamp: raw.Timestamp,
	}
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = b.clock.Now()
	}

	ctx.Message = buildMessage(raw)
	ctx.Channel = buildChannel(raw)
	ctx.Message.IsForumStarter = ctx.Channel.IsForumPost && raw.MessageID == raw.Channel.ID

	// A forum starter message belongs to the forum, not to its own thread.
	if ctx.Message.IsForumStarter {
		ctx.Channel = Channel{
			ID:            raw.Parent.ID,
			Type:          raw.Parent.Type,
			ParentID:      raw.Parent.ParentID,
			CategoryID:    raw.Parent.ParentID,
			IsForumPost:   true,
			ForumParentID: raw.Parent.ID,
			NSFW:          raw.Parent.NSFW,
		}
	}

	return ctx, nil
}

func buildMessage(raw *RawEvent) Message {
	msg := Message{ID: raw.MessageID}
	if raw.Message == nil {
		return msg
	}

	content := norm.NFC.String(raw.Message.Content)
	msg.Known = true
	msg.Content = content
	msg.Length = utf8.RuneCountInString(content)
	msg.HasLink = linkPattern.MatchString(content)
	msg.CreatedAt = raw.Message.CreatedAt
	msg.Attachments = append([]Attachment(nil), raw.Message.Attachments...)

	for _, a := range msg.Attachments {
		if a.IsImage() {
			msg.HasImage = true
			break
		}
	}
	if len(raw.Message.EmbedImages) > 0 {
		msg.HasImage = true
	}
	return msg
}

func buildChannel(raw *RawEvent) Channel {
	ch := Channel{
		ID:         raw.Channel.ID,
		Type:       raw.Channel.Type,
		ParentID:   raw.Channel.ParentID,
		CategoryID: raw.CategoryID,
		IsThread:   raw.Channel.Type.IsThread(),
		NSFW:       raw.Channel.NSFW,
	}

	if !ch.IsThread {
		if ch.CategoryID == 0 {
			ch.CategoryID = raw.Channel.ParentID
		}
		return ch
	}

	if raw.Parent != nil {
		ch.ParentID = raw.Parent.ID
		if ch.CategoryID == 0 {
			ch.CategoryID = raw.Parent.ParentID
		}
		// Threads inherit the age restriction of their parent.
		ch.NSFW = ch.NSFW || raw.Parent.NSFW
		if raw.Parent.Type == enum.ChannelTypeForum {
			ch.IsForumPost = true
			ch.ForumParentID = raw.Parent.ID
		}
	}
	return ch
}
