package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// ConfigChangesChannel carries ConfigChange payloads.
const ConfigChangesChannel = "config:changes"

// ErrInvalidConfigChange is returned for payloads that cannot be decoded.
var ErrInvalidConfigChange = errors.New("invalid config change payload")

// ConfigChange announces that a target was edited or deleted outside the bot.
// A zero TargetID covers every target of the guild.
type ConfigChange struct {
	GuildID  snowflake.ID `json:"guildId"`
	TargetID int64        `json:"targetId"`
	Deleted  bool         `json:"deleted"`
}

// ConfigNotifier relays target changes between processes so each can drop
// its cached configuration.
type ConfigNotifier struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewConfigNotifier creates a ConfigNotifier.
func NewConfigNotifier(client rueidis.Client, logger *zap.Logger) *ConfigNotifier {
	return &ConfigNotifier{
		client: client,
		logger: logger.Named("config_changes"),
	}
}

// Publish notifies every subscriber of change.
func (n *ConfigNotifier) Publish(ctx context.Context, change ConfigChange) error {
	data, err := sonic.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal config change: %w", err)
	}

	err = n.client.Do(ctx, n.client.B().Publish().
		Channel(ConfigChangesChannel).
		Message(string(data)).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to publish config change: %w (guildID=%d, targetID=%d)",
			err, change.GuildID, change.TargetID)
	}
	return nil
}

// Subscribe delivers config changes to handle until ctx is done.
func (n *ConfigNotifier) Subscribe(ctx context.Context, handle func(change ConfigChange)) error {
	err := n.client.Receive(ctx, n.client.B().Subscribe().Channel(ConfigChangesChannel).Build(),
		func(msg rueidis.PubSubMessage) {
			change, err := DecodeConfigChange(msg.Message)
			if err != nil {
				n.logger.Warn("Dropped config change", zap.String("payload", msg.Message), zap.Error(err))
				return
			}
			handle(change)
		})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("config change subscription ended: %w", err)
	}
	return nil
}

// DecodeConfigChange parses a published payload.
func DecodeConfigChange(payload string) (ConfigChange, error) {
	var change ConfigChange
	if err := sonic.UnmarshalString(payload, &change); err != nil {
		return change, fmt.Errorf("%w: %w", ErrInvalidConfigChange, err)
	}
	if change.GuildID == 0 {
		return change, fmt.Errorf("%w: missing guild", ErrInvalidConfigChange)
	}
	return change, nil
}
