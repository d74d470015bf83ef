// Package gateway connects the starboard engine to Discord.
package gateway

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/engine"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/metrics"
	"go.uber.org/zap"
)

// Gateway feeds Discord events to the engine and dispatches the resulting actions.
type Gateway struct {
	client     bot.Client
	engine     *engine.Engine
	dispatcher *engine.Dispatcher
	queue      *serialQueue // Events of one message run in arrival order
	logger     *zap.Logger
	ctx        context.Context //nolint:containedctx // base context of event handlers
	cancel     context.CancelFunc
}

// New creates the Discord client and wires its events to eng.
func New(
	token string, eng *engine.Engine, config engine.DispatcherConfig,
	fetcher Fetcher, m *metrics.Metrics, logger *zap.Logger,
) (*Gateway, error) {
	g := &Gateway{
		engine: eng,
		queue:  newSerialQueue(),
		logger: logger.Named("gateway"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:         g.onMessageCreate,
			OnGuildMessageUpdate:         g.onMessageUpdate,
			OnGuildMessageDelete:         g.onMessageDelete,
			OnGuildMessageReactionAdd:    g.onReactionAdd,
			OnGuildMessageReactionRemove: g.onReactionRemove,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	g.client = client
	g.dispatcher = engine.NewDispatcher(eng, NewSink(client.Rest(), fetcher, Renderer{}, logger), config, m, logger)
	return g, nil
}

// Open connects to the gateway. Events are handled until Close.
func (g *Gateway) Open(ctx context.Context) error {
	g.ctx, g.cancel = context.WithCancel(context.WithoutCancel(ctx))

	g.logger.Info("Opening gateway")
	if err := g.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	return nil
}

// Close disconnects from Discord, cancels in-flight handlers and waits for them.
func (g *Gateway) Close(ctx context.Context) {
	g.logger.Info("Closing gateway")
	g.client.Close(ctx)
	if g.cancel != nil {
		g.cancel()
	}
	g.queue.Wait()
}

func (g *Gateway) context() context.Context {
	if g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

// process runs one event through the engine and dispatches its actions.
func (g *Gateway) process(raw *evalctx.RawEvent) {
	ctx := g.context()

	actions, err := g.engine.HandleEvent(ctx, raw)
	if err != nil {
		g.logger.Error("Failed to handle event",
			zap.String("kind", raw.Kind.String()),
			zap.Uint64("guildID", uint64(raw.GuildID)),
			zap.Uint64("messageID", uint64(raw.MessageID)),
			zap.Error(err))
	}
	if len(actions) == 0 {
		return
	}

	if err := g.dispatcher.Dispatch(ctx, actions); err != nil {
		g.logger.Warn("Some actions failed",
			zap.Uint64("guildID", uint64(raw.GuildID)),
			zap.Uint64("messageID", uint64(raw.MessageID)),
			zap.Error(err))
	}
}

func (g *Gateway) onMessageCreate(e *events.GuildMessageCreate) {
	g.onMessage(enum.EventKindMessageCreate, e.GuildID, e.ChannelID, e.Message)
}

func (g *Gateway) onMessageUpdate(e *events.GuildMessageUpdate) {
	g.onMessage(enum.EventKindMessageUpdate, e.GuildID, e.ChannelID, e.Message)
}

func (g *Gateway) onMessage(kind enum.EventKind, guildID, channelID snowflake.ID, msg discord.Message) {
	if msg.Author.ID == g.client.ApplicationID() {
		return
	}

	raw := &evalctx.RawEvent{
		Kind:      kind,
		GuildID:   guildID,
		MessageID: msg.ID,
		Message:   rawMessage(msg),
		Author:    rawMember(msg.Author, msg.Member),
	}

	g.queue.Submit(msg.ID, func() {
		if !g.fillChannel(raw, channelID) {
			return
		}
		g.process(raw)
	})
}

func (g *Gateway) onMessageDelete(e *events.GuildMessageDelete) {
	raw := &evalctx.RawEvent{
		Kind:      enum.EventKindMessageDelete,
		GuildID:   e.GuildID,
		MessageID: e.MessageID,
	}

	g.queue.Submit(e.MessageID, func() {
		if !g.fillChannel(raw, e.ChannelID) {
			return
		}
		g.process(raw)
	})
}

func (g *Gateway) onReactionAdd(e *events.GuildMessageReactionAdd) {
	voter := &e.Member
	g.onReaction(enum.EventKindReactionAdd, e.GenericGuildMessageReaction, voter)
}

func (g *Gateway) onReactionRemove(e *events.GuildMessageReactionRemove) {
	g.onReaction(enum.EventKindReactionRemove, e.GenericGuildMessageReaction, nil)
}

func (g *Gateway) onReaction(kind enum.EventKind, e *events.GenericGuildMessageReaction, voter *discord.Member) {
	if e.UserID == g.client.ApplicationID() {
		return
	}

	g.queue.Submit(e.MessageID, func() {
		raw := &evalctx.RawEvent{
			Kind:      kind,
			GuildID:   e.GuildID,
			MessageID: e.MessageID,
			Emoji:     emojiName(e.Emoji),
		}

		if voter == nil || voter.User.ID == 0 {
			voter = g.member(e.GuildID, e.UserID)
		}
		if voter == nil {
			raw.Voter = &evalctx.Member{ID: e.UserID}
		} else {
			raw.Voter = rawMember(voter.User, voter)
		}

		if msg := g.message(e.ChannelID, e.MessageID); msg != nil {
			raw.Message = rawMessage(*msg)
			raw.Author = rawMember(msg.Author, g.member(e.GuildID, msg.Author.ID))
		}

		if !g.fillChannel(raw, e.ChannelID) {
			return
		}
		g.process(raw)
	})
}

// fillChannel resolves the channel, its thread parent and its category.
func (g *Gateway) fillChannel(raw *evalctx.RawEvent, channelID snowflake.ID) bool {
	ch := g.channel(channelID)
	if ch == nil {
		g.logger.Debug("Dropped event for unknown channel", zap.Uint64("channelID", uint64(channelID)))
		return false
	}

	raw.Channel = rawChannel(ch)
	raw.CategoryID = raw.Channel.ParentID

	if raw.Channel.Type.IsThread() && raw.Channel.ParentID != 0 {
		if parent := g.channel(raw.Channel.ParentID); parent != nil {
			p := rawChannel(parent)
			raw.Parent = &p
			raw.CategoryID = p.ParentID
		}
	}
	return true
}

func (g *Gateway) channel(channelID snowflake.ID) discord.GuildChannel {
	if ch, ok := g.client.Caches().Channel(channelID); ok {
		return ch
	}

	ch, err := g.client.Rest().GetChannel(channelID, rest.WithCtx(g.context()))
	if err != nil {
		g.logger.Warn("Failed to fetch channel", zap.Uint64("channelID", uint64(channelID)), zap.Error(err))
		return nil
	}
	guildCh, ok := ch.(discord.GuildChannel)
	if !ok {
		return nil
	}
	return guildCh
}

func (g *Gateway) message(channelID, messageID snowflake.ID) *discord.Message {
	if msg, ok := g.client.Caches().Message(channelID, messageID); ok {
		return &msg
	}

	msg, err := g.client.Rest().GetMessage(channelID, messageID, rest.WithCtx(g.context()))
	if err != nil {
		g.logger.Debug("Failed to fetch message",
			zap.Uint64("messageID", uint64(messageID)),
			zap.Error(err))
		return nil
	}
	return msg
}

func (g *Gateway) member(guildID, userID snowflake.ID) *discord.Member {
	if member, ok := g.client.Caches().Member(guildID, userID); ok {
		return &member
	}

	member, err := g.client.Rest().GetMember(guildID, userID, rest.WithCtx(g.context()))
	if err != nil {
		g.logger.Debug("Failed to fetch member",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return nil
	}
	return member
}
