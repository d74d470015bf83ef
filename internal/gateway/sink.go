package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/pkg/utils"
	"go.uber.org/zap"
)

// MessageRest is the subset of the Discord REST API the sink uses.
type MessageRest interface {
	GetMessage(channelID, messageID snowflake.ID, opts ...rest.RequestOpt) (*discord.Message, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(
		channelID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt,
	) (*discord.Message, error)
	DeleteMessage(channelID, messageID snowflake.ID, opts ...rest.RequestOpt) error
	AddReaction(channelID, messageID snowflake.ID, emoji string, opts ...rest.RequestOpt) error
}

// Fetcher downloads attachments.
type Fetcher interface {
	Download(ctx context.Context, url string, limit int) ([]byte, error)
}

// Sink executes engine actions through the Discord REST API.
type Sink struct {
	rest     MessageRest
	fetcher  Fetcher
	renderer Renderer
	logger   *zap.Logger
}

// NewSink creates a Sink.
func NewSink(client MessageRest, fetcher Fetcher, renderer Renderer, logger *zap.Logger) *Sink {
	return &Sink{
		rest:     client,
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logger.Named("sink"),
	}
}

// CreatePost posts a source message to its starboard.
func (s *Sink) CreatePost(ctx context.Context, a types.Action) (snowflake.ID, error) {
	msg, err := s.rest.GetMessage(a.SourceID, a.MessageID, rest.WithCtx(ctx))
	if err != nil {
		return 0, classify(fmt.Errorf("failed to fetch source message: %w", err))
	}

	post, err := s.rest.CreateMessage(a.ChannelID, s.renderer.Create(msg, a), rest.WithCtx(ctx))
	if err != nil {
		return 0, classify(fmt.Errorf("failed to create post: %w", err))
	}
	return post.ID, nil
}

// UpdatePost refreshes a post. When the source message can no longer be read
// only the vote count is updated.
func (s *Sink) UpdatePost(ctx context.Context, a types.Action) error {
	msg, err := s.rest.GetMessage(a.SourceID, a.MessageID, rest.WithCtx(ctx))
	if err != nil {
		if !isGone(err) {
			return classify(fmt.Errorf("failed to fetch source message: %w", err))
		}
		msg = nil
	}

	if _, err := s.rest.UpdateMessage(a.ChannelID, a.PostID, s.renderer.Update(msg, a), rest.WithCtx(ctx)); err != nil {
		return classify(fmt.Errorf("failed to update post: %w", err))
	}
	return nil
}

// DeletePost removes a post. A post that is already gone counts as deleted.
func (s *Sink) DeletePost(ctx context.Context, a types.Action) error {
	return s.deleteMessage(ctx, a.ChannelID, a.PostID)
}

// UploadAttachment re-uploads a source attachment as a reply to its post.
func (s *Sink) UploadAttachment(ctx context.Context, a types.Action) error {
	data, err := s.fetcher.Download(ctx, a.AttachmentURL, a.SizeLimit)
	if err != nil {
		return err
	}

	postID := a.PostID
	create := discord.NewMessageCreateBuilder().
		AddFiles(discord.NewFile(attachmentName(a.AttachmentURL), "", bytes.NewReader(data))).
		SetMessageReference(&discord.MessageReference{MessageID: &postID}).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()

	if _, err := s.rest.CreateMessage(a.ChannelID, create, rest.WithCtx(ctx)); err != nil {
		return classify(fmt.Errorf("failed to upload attachment: %w", err))
	}
	return nil
}

// AddReactions adds the vote emojis to an autostar message.
func (s *Sink) AddReactions(ctx context.Context, a types.Action) error {
	for _, emoji := range a.Emojis {
		if err := s.rest.AddReaction(a.ChannelID, a.MessageID, emoji, rest.WithCtx(ctx)); err != nil {
			return classify(fmt.Errorf("failed to add reaction %s: %w", emoji, err))
		}
	}
	return nil
}

// DeleteMessage removes an invalid autostar message.
func (s *Sink) DeleteMessage(ctx context.Context, a types.Action) error {
	return s.deleteMessage(ctx, a.ChannelID, a.MessageID)
}

func (s *Sink) deleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := s.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil && isGone(err) {
		s.logger.Debug("Message already deleted",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Uint64("messageID", uint64(messageID)))
		return nil
	}
	if err != nil {
		return classify(fmt.Errorf("failed to delete message: %w", err))
	}
	return nil
}

// isGone reports whether Discord no longer knows the message or channel.
func isGone(err error) bool {
	return rest.IsJSONErrorCode(err, rest.JSONErrorCodeUnknownMessage, rest.JSONErrorCodeUnknownChannel)
}

// classify marks errors no retry can fix as permanent.
func classify(err error) error {
	if isGone(err) || rest.IsJSONErrorCode(err, rest.JSONErrorCodeMissingAccess, rest.JSONErrorCodeMissingPermissions) {
		return fmt.Errorf("%w: %w", utils.ErrPermanent, err)
	}
	return err
}

func attachmentName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "attachment"
	}
	if name := path.Base(u.Path); name != "." && name != "/" {
		return name
	}
	return "attachment"
}
