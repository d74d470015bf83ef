package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// TargetCommands returns commands that inspect configured targets.
func TargetCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "targets",
			Usage:     "List the starboards and autostar channels of a guild",
			ArgsUsage: "GUILD_ID",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print the full configuration as JSON",
				},
			},
			Action: handleTargets(deps),
		},
		{
			Name:      "target-delete",
			Usage:     "Delete a target with its entries and notify running bots",
			ArgsUsage: "GUILD_ID TARGET_ID",
			Action:    handleTargetDelete(deps),
		},
		{
			Name:      "entry-by-post",
			Usage:     "Show the starred entry behind a starboard post",
			ArgsUsage: "POST_ID",
			Action:    handleEntryByPost(deps),
		},
	}
}

func handleTargets(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}

		targets, err := deps.DB.Model().Target().GetGuildTargets(ctx, guildID)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			out, err := sonic.ConfigStd.MarshalIndent(targets, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode targets: %w", err)
			}
			_, err = fmt.Fprintln(os.Stdout, string(out))
			return err
		}

		for _, target := range targets {
			deps.Logger.Info("Target",
				zap.Int64("id", target.ID),
				zap.String("name", target.Name),
				zap.String("kind", target.Kind.String()),
				zap.Uint64("channelID", uint64(target.ChannelID)),
				zap.Int("overrides", len(target.Overrides)),
			)
		}
		return nil
	}
}

func handleTargetDelete(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}
		if c.Args().Len() < 2 {
			return ErrTargetIDRequired
		}
		targetID, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTargetID, err)
		}

		if err := deps.DB.Model().Target().DeleteTarget(ctx, guildID, targetID); err != nil {
			return err
		}

		// The row is gone either way, so a failed notification only delays the bots
		change := redis.ConfigChange{GuildID: guildID, TargetID: targetID, Deleted: true}
		if err := deps.Notifier.Publish(ctx, change); err != nil {
			deps.Logger.Warn("Failed to notify bots", zap.Error(err))
		}

		deps.Logger.Info("Target deleted",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Int64("targetID", targetID))
		return nil
	}
}

func handleEntryByPost(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() < 1 {
			return ErrPostIDRequired
		}
		postID, err := snowflake.Parse(c.Args().First())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPostID, err)
		}

		entry, err := deps.DB.Model().Entry().GetEntryByPost(ctx, postID)
		if err != nil {
			return err
		}

		deps.Logger.Info("Starred entry",
			zap.Uint64("messageID", uint64(entry.MessageID)),
			zap.Int64("targetID", entry.TargetID),
			zap.Uint64("channelID", uint64(entry.ChannelID)),
			zap.Uint64("authorID", uint64(entry.AuthorID)),
			zap.Int("votes", entry.VoteCount),
			zap.String("state", entry.State.String()),
			zap.Bool("frozen", entry.Frozen),
			zap.Bool("trashed", entry.Trashed),
			zap.Bool("sourceDeleted", entry.SourceDeleted))
		return nil
	}
}
