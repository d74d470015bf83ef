// Package memstore is an in-memory store used by tests and by the bot when no
// database is configured.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

type entryKey struct {
	messageID snowflake.ID
	targetID  int64
}

// Store keeps targets, entries and tiers in maps. Values are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	targets map[int64]*types.TargetConfig
	entries map[entryKey]*types.StarredEntry
	tiers   map[snowflake.ID]enum.Tier
	nextID  int64
	failure error
	saves   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		targets: make(map[int64]*types.TargetConfig),
		entries: make(map[entryKey]*types.StarredEntry),
		tiers:   make(map[snowflake.ID]enum.Tier),
	}
}

// Fail makes every following call return err until Fail(nil) is called.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Saves returns how many entry saves succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SaveTarget inserts or replaces a target, assigning an id to new targets and overrides.
func (s *Store) SaveTarget(_ context.Context, target *types.TargetConfig) (*types.TargetConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return nil, s.failure
	}

	stored := target.Clone()
	if stored.ID == 0 {
		s.nextID++
		stored.ID = s.nextID
	}
	for i, o := range stored.Overrides {
		if o.ID == 0 {
			s.nextID++
			o.ID = s.nextID
		}
		o.TargetID = stored.ID
		o.Position = i
	}
	s.targets[stored.ID] = stored
	return stored.Clone(), nil
}

// DeleteTarget removes a target and its entries.
func (s *Store) DeleteTarget(_ context.Context, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return s.failure
	}
	if _, ok := s.targets[targetID]; !ok {
		return fmt.Errorf("%w (targetID=%d)", types.ErrTargetNotFound, targetID)
	}

	delete(s.targets, targetID)
	for k := range s.entries {
		if k.targetID == targetID {
			delete(s.entries, k)
		}
	}
	return nil
}

// LoadTargetConfig returns a target with its overrides.
func (s *Store) LoadTargetConfig(_ context.Context, targetID int64) (*types.TargetConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, s.failure
	}
	t, ok := s.targets[targetID]
	if !ok {
		return nil, fmt.Errorf("%w (targetID=%d)", types.ErrTargetNotFound, targetID)
	}
	return t.Clone(), nil
}

// LoadGuildTargets returns every target of a guild ordered by id.
func (s *Store) LoadGuildTargets(_ context.Context, guildID snowflake.ID) ([]*types.TargetConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, s.failure
	}

	var out []*types.TargetConfig
	for _, t := range s.targets {
		if t.GuildID == guildID {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *types.TargetConfig) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// LoadStarredEntry returns the entry of a (message, target) pair.
func (s *Store) LoadStarredEntry(_ context.Context, messageID snowflake.ID, targetID int64) (*types.StarredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, s.failure
	}
	e, ok := s.entries[entryKey{messageID, targetID}]
	if !ok {
		return nil, types.ErrEntryNotFound
	}
	return e.Clone(), nil
}

// SaveStarredEntry upserts an entry.
func (s *Store) SaveStarredEntry(_ context.Context, entry *types.StarredEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return s.failure
	}
	s.entries[entryKey{entry.MessageID, entry.TargetID}] = entry.Clone()
	s.saves++
	return nil
}

// SetPremiumTier records a guild's tier.
func (s *Store) SetPremiumTier(guildID snowflake.ID, tier enum.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[guildID] = tier
}

// LoadPremiumTier returns a guild's tier, free when unknown.
func (s *Store) LoadPremiumTier(_ context.Context, guildID snowflake.ID) (enum.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return enum.TierFree, s.failure
	}
	return s.tiers[guildID], nil
}

// CountResources counts the quota-bounded resources of a guild.
func (s *Store) CountResources(_ context.Context, guildID snowflake.ID) (types.ResourceCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return types.ResourceCounts{}, s.failure
	}

	var counts types.ResourceCounts
	for _, t := range s.targets {
		if t.GuildID != guildID {
			continue
		}
		switch t.Kind {
		case enum.TargetKindStarboard:
			counts.Starboards++
		case enum.TargetKindAutostar:
			counts.AutostarChannels++
		}
	}
	return counts, nil
}
