package commands

import (
	"errors"

	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired     = errors.New("NAME argument required")
	ErrGuildIDRequired  = errors.New("GUILD_ID argument required")
	ErrTierRequired     = errors.New("TIER argument required")
	ErrInvalidGuildID   = errors.New("invalid GUILD_ID")
	ErrTargetIDRequired = errors.New("TARGET_ID argument required")
	ErrInvalidTargetID  = errors.New("invalid TARGET_ID")
	ErrPostIDRequired   = errors.New("POST_ID argument required")
	ErrInvalidPostID    = errors.New("invalid POST_ID")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Premium  *redis.PremiumSource
	Notifier *redis.ConfigNotifier
	Logger   *zap.Logger
}
