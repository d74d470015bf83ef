package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/scheduler"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// PremiumCommands returns the guild entitlement commands.
func PremiumCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "premium-get",
			Usage:     "Show the tier of a guild",
			ArgsUsage: "GUILD_ID",
			Action:    handlePremiumGet(deps),
		},
		{
			Name:      "premium-set",
			Usage:     "Set the tier of a guild and notify running bots",
			ArgsUsage: "GUILD_ID TIER",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "duration",
					Usage: "How long the tier lasts, 0 for no expiry",
				},
			},
			Action: handlePremiumSet(deps),
		},
		{
			Name:   "premium-expire",
			Usage:  "Downgrade every guild whose entitlement has expired",
			Action: handlePremiumExpire(deps),
		},
	}
}

func handlePremiumGet(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}

		tier, err := deps.DB.Model().Premium().GetTier(ctx, guildID)
		if err != nil {
			return err
		}

		deps.Logger.Info("Guild tier",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("tier", tier.String()))
		return nil
	}
}

func handlePremiumSet(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		guildID, err := guildArg(c)
		if err != nil {
			return err
		}
		if c.Args().Len() < 2 {
			return ErrTierRequired
		}
		tier := enum.TierFromString(c.Args().Get(1))

		var expiresAt *time.Time
		if d := c.Duration("duration"); d > 0 {
			t := time.Now().Add(d)
			expiresAt = &t
		}

		if err := deps.DB.Model().Premium().SetTier(ctx, guildID, tier, expiresAt); err != nil {
			return err
		}

		return deps.Premium.Publish(ctx, guildID, tier)
	}
}

func handlePremiumExpire(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		job := scheduler.ExpiryJob(deps.DB.Model().Premium(), deps.Premium, clockwork.NewRealClock(), deps.Logger)
		return job(ctx)
	}
}

// guildArg parses the first argument as a guild ID.
func guildArg(c *cli.Command) (snowflake.ID, error) {
	if c.Args().Len() < 1 {
		return 0, ErrGuildIDRequired
	}

	id, err := snowflake.Parse(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidGuildID, err)
	}
	return id, nil
}
