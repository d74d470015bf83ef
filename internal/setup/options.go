package setup

import (
	"fmt"
	"time"

	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/engine"
	"github.com/robalyx/starboard/internal/entry"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/robalyx/starboard/internal/governor"
	"github.com/robalyx/starboard/internal/setup/config"
)

// EngineConfig builds the engine configuration. Unset values keep their defaults.
func EngineConfig(core *config.Core) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	if core.Filter != (config.FilterLimits{}) {
		cfg.Filter = filter.Limits{
			MaxDepth:       core.Filter.MaxDepth,
			MaxWidth:       core.Filter.MaxWidth,
			MaxNodes:       core.Filter.MaxNodes,
			MaxRegexLength: core.Filter.MaxRegexLength,
		}
	}

	for name, cooldown := range core.Cooldowns {
		kind, ok := enum.ResourceKindFromString(name)
		if !ok {
			return engine.Config{}, fmt.Errorf("%w: %s", config.ErrUnknownResourceKind, name)
		}
		cfg.Governor.Policies[kind] = governor.Policy{
			Free: governor.Limit{
				Count:  cooldown.FreeCount,
				Period: time.Duration(cooldown.FreePeriod) * time.Second,
			},
			Premium: governor.Limit{
				Count:  cooldown.PremiumCount,
				Period: time.Duration(cooldown.PremiumPeriod) * time.Second,
			},
		}
	}

	if core.FreeQuotas != (config.Quotas{}) {
		cfg.Governor.FreeQuotas = quotas(core.FreeQuotas)
	}
	if core.PremiumQuotas != (config.Quotas{}) {
		cfg.Governor.PremiumQuotas = quotas(core.PremiumQuotas)
	}
	if core.IdleAfter > 0 {
		cfg.Governor.IdleAfter = time.Duration(core.IdleAfter) * time.Minute
	}
	if core.OldMessageAge > 0 {
		cfg.OldMessageAge = time.Duration(core.OldMessageAge) * time.Minute
	}

	cfg.Entry = entry.Policy{ResurrectRemoved: core.ResurrectRemoved}
	return cfg, nil
}

func quotas(q config.Quotas) types.Quotas {
	return types.Quotas{
		Starboards:         q.Starboards,
		AutostarChannels:   q.AutostarChannels,
		OverridesPerTarget: q.OverridesPerTarget,
		VoteEmojis:         q.VoteEmojis,
		RegexLength:        q.RegexLength,
		UploadBytes:        q.UploadBytes,
	}
}

// DispatcherConfig builds the action dispatcher configuration.
func DispatcherConfig(d *config.Dispatch) engine.DispatcherConfig {
	cfg := engine.DefaultDispatcherConfig()
	if d.Timeout > 0 {
		cfg.Timeout = time.Duration(d.Timeout) * time.Millisecond
	}
	if d.MaxConcurrent > 0 {
		cfg.MaxConcurrent = d.MaxConcurrent
	}
	if d.MaxRetries > 0 {
		cfg.Retry.MaxRetries = d.MaxRetries
	}
	return cfg
}

// RetryOptions builds the database retry options.
func RetryOptions(r *config.Retry) dbretry.Options {
	opts := dbretry.DefaultOptions
	if r.MaxRetries > 0 {
		opts.MaxRetries = r.MaxRetries
	}
	if r.Delay > 0 {
		opts.InitialInterval = time.Duration(r.Delay) * time.Millisecond
	}
	if r.MaxDelay > 0 {
		opts.MaxInterval = time.Duration(r.MaxDelay) * time.Millisecond
	}
	return opts
}
