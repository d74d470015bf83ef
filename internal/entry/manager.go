// Package entry owns the lifecycle of starred entries: vote tallying, threshold
// crossing and the post actions that follow from it.
package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/governor"
	"go.uber.org/zap"
)

// Store persists starred entries. LoadStarredEntry returns types.ErrEntryNotFound
// when no entry exists for the pair.
type Store interface {
	LoadStarredEntry(ctx context.Context, messageID snowflake.ID, targetID int64) (*types.StarredEntry, error)
	SaveStarredEntry(ctx context.Context, entry *types.StarredEntry) error
}

// Limiter authorizes post updates.
type Limiter interface {
	TryConsume(key governor.Key, tier enum.Tier, cost int) governor.Decision
}

// Policy holds behaviour switches of the lifecycle.
type Policy struct {
	// ResurrectRemoved lets a removed entry be posted again when its votes
	// cross the threshold again.
	ResurrectRemoved bool `koanf:"resurrect_removed"`
}

// Target is the resolved starboard an entry belongs to.
type Target struct {
	ID              int64
	GuildID         snowflake.ID
	ChannelID       snowflake.ID
	NSFW            bool
	RequiredUpvotes int
	RemoveBelow     int
	LinkEdits       bool
	Tier            enum.Tier
}

// Source is the message an entry tracks.
type Source struct {
	MessageID snowflake.ID
	ChannelID snowflake.ID
	AuthorID  snowflake.ID
	NSFW      bool
}

// Vote is a single reaction change.
type Vote struct {
	VoterID snowflake.ID
	Emoji   string
	Up      bool
	Add     bool
}

// Result is the outcome of a transition. Entry is the durable state after the
// transition, or nil when no entry exists.
type Result struct {
	Entry   *types.StarredEntry
	Actions []types.Action
}

// Manager applies transitions to starred entries, one at a time per (message, target).
type Manager struct {
	store   Store
	limiter Limiter
	locks   *KeyedLocks
	policy  Policy
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, limiter Limiter, policy Policy, clock clockwork.Clock, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		store:   store,
		limiter: limiter,
		locks:   NewKeyedLocks(),
		policy:  policy,
		clock:   clock,
		logger:  logger.Named("entry"),
	}
}

// Locks returns the manager's lock table.
func (m *Manager) Locks() *KeyedLocks {
	return m.locks
}

// mutation computes the next state of an entry. It receives a copy of the current
// entry, or nil when none exists, and returns the entry to save (nil to skip saving)
// and the actions to emit after a successful save.
type mutation func(current *types.StarredEntry) (*types.StarredEntry, []types.Action)

// transact runs a mutation inside the exclusive section of the pair.
// The section is not cancellable once entered and the durable entry only changes
// if the save succeeds.
func (m *Manager) transact(ctx context.Context, messageID snowflake.ID, targetID int64, fn mutation) (Result, error) {
	unlock := m.locks.Lock(messageID, targetID)
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	current, err := m.store.LoadStarredEntry(ctx, messageID, targetID)
	if err != nil && !errors.Is(err, types.ErrEntryNotFound) {
		return Result{}, fmt.Errorf("failed to load starred entry: %w (messageID=%d, targetID=%d)", err, messageID, targetID)
	}
	if errors.Is(err, types.ErrEntryNotFound) {
		current = nil
	}

	var working *types.StarredEntry
	if current != nil {
		working = current.Clone()
	}

	next, actions := fn(working)
	if next == nil {
		// Nothing to persist; actions that need no state change still go out
		return Result{Entry: current, Actions: actions}, nil
	}

	next.UpdatedAt = m.clock.Now()
	if err := m.store.SaveStarredEntry(ctx, next); err != nil {
		return Result{Entry: current}, fmt.Errorf("failed to save starred entry: %w (messageID=%d, targetID=%d)", err, messageID, targetID)
	}

	if len(actions) > 0 {
		m.logger.Debug("Entry transition",
			zap.Uint64("messageID", uint64(messageID)),
			zap.Int64("targetID", targetID),
			zap.String("state", next.State.String()),
			zap.Int("voteCount", next.VoteCount),
			zap.Int("actions", len(actions)))
	}

	return Result{Entry: next.Clone(), Actions: actions}, nil
}

// ApplyVote counts or uncounts a vote and performs the resulting transition.
// Votes are idempotent per (voter, emoji): repeated adds and unmatched removes change nothing.
func (m *Manager) ApplyVote(ctx context.Context, target Target, source Source, vote Vote) (Result, error) {
	return m.transact(ctx, source.MessageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil {
			// Entries are created by the first counted upvote
			if !vote.Add || !vote.Up {
				return nil, nil
			}
			e = types.NewStarredEntry(source.MessageID, target.ID, m.clock.Now())
			e.GuildID = target.GuildID
			e.ChannelID = source.ChannelID
			e.AuthorID = source.AuthorID
			e.NSFW = source.NSFW
		}

		var changed bool
		if vote.Add {
			changed = e.AddVote(vote.VoterID, vote.Emoji, vote.Up)
		} else {
			changed = e.RemoveVote(vote.VoterID, vote.Emoji)
		}
		if !changed {
			return nil, nil
		}

		return e, m.transition(e, target)
	})
}

// HandleEdit emits a post update for an edited source message when the target links edits.
func (m *Manager) HandleEdit(ctx context.Context, target Target, source Source) (Result, error) {
	return m.transact(ctx, source.MessageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil || !target.LinkEdits || e.State != enum.EntryStatePosted || e.PostID == nil {
			return nil, nil
		}
		if update, ok := m.update(e, target); ok {
			return nil, []types.Action{update}
		}
		return nil, nil
	})
}

// HandleDelete removes the post of a deleted source message regardless of its votes.
func (m *Manager) HandleDelete(ctx context.Context, target Target, messageID snowflake.ID) (Result, error) {
	return m.transact(ctx, messageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil || e.State == enum.EntryStateRemoved {
			return nil, nil
		}

		var actions []types.Action
		if e.State == enum.EntryStatePosted && e.PostID != nil {
			actions = append(actions, m.action(enum.ActionKindDeletePost, e, target))
		}
		e.State = enum.EntryStateRemoved
		e.SourceDeleted = true
		return e, actions
	})
}

// SetFrozen freezes or unfreezes an entry. Frozen entries ignore vote thresholds.
func (m *Manager) SetFrozen(ctx context.Context, target Target, messageID snowflake.ID, frozen bool) (Result, error) {
	return m.moderate(ctx, target, messageID, func(e *types.StarredEntry) bool {
		if e.Frozen == frozen {
			return false
		}
		e.Frozen = frozen
		return true
	})
}

// SetTrashed trashes or restores an entry. Restoring reopens a removed entry.
func (m *Manager) SetTrashed(ctx context.Context, target Target, messageID snowflake.ID, trashed bool) (Result, error) {
	return m.moderate(ctx, target, messageID, func(e *types.StarredEntry) bool {
		if e.Trashed == trashed {
			return false
		}
		e.Trashed = trashed
		if !trashed {
			reopen(e)
		}
		return true
	})
}

// SetForced forces an entry onto the board or lifts the force. Forcing reopens a removed entry.
func (m *Manager) SetForced(ctx context.Context, target Target, messageID snowflake.ID, forced bool) (Result, error) {
	return m.moderate(ctx, target, messageID, func(e *types.StarredEntry) bool {
		if e.Forced == forced {
			return false
		}
		e.Forced = forced
		if forced {
			reopen(e)
		}
		return true
	})
}

func (m *Manager) moderate(ctx context.Context, target Target, messageID snowflake.ID, apply func(e *types.StarredEntry) bool) (Result, error) {
	res, err := m.transact(ctx, messageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil || !apply(e) {
			return nil, nil
		}
		return e, m.transition(e, target)
	})
	if err == nil && res.Entry == nil {
		return res, fmt.Errorf("%w (messageID=%d, targetID=%d)", types.ErrEntryNotFound, messageID, target.ID)
	}
	return res, err
}

// RecordPost stores the id of a post created for an entry. If the entry was
// removed while the post was being created, the new post is deleted again.
func (m *Manager) RecordPost(ctx context.Context, target Target, messageID, postID snowflake.ID) (Result, error) {
	return m.transact(ctx, messageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil {
			return nil, nil
		}

		e.PostID = &postID
		e.PostFailed = false

		switch e.State {
		case enum.EntryStatePosted:
			return e, nil
		case enum.EntryStateRemoved:
			return e, []types.Action{m.action(enum.ActionKindDeletePost, e, target)}
		default:
			return nil, nil
		}
	})
}

// PostFailed returns a pending post to the unposted state so the next vote retries it.
func (m *Manager) PostFailed(ctx context.Context, target Target, messageID snowflake.ID) (Result, error) {
	return m.transact(ctx, messageID, target.ID, func(e *types.StarredEntry) (*types.StarredEntry, []types.Action) {
		if e == nil || e.State != enum.EntryStatePosted || e.PostID != nil {
			return nil, nil
		}
		e.State = enum.EntryStateUnposted
		e.PostFailed = true
		return e, nil
	})
}

// transition moves the entry according to its status and returns the actions to emit.
func (m *Manager) transition(e *types.StarredEntry, target Target) []types.Action {
	status := Status(e, target)

	state := e.State
	// A deleted source has nothing left to post
	if state == enum.EntryStateRemoved && m.policy.ResurrectRemoved && !e.SourceDeleted && status == enum.MessageStatusSend {
		state = enum.EntryStateUnposted
	}

	switch state {
	case enum.EntryStateUnposted:
		if status != enum.MessageStatusSend {
			return nil
		}
		e.State = enum.EntryStatePosted
		e.PostID = nil
		return []types.Action{m.action(enum.ActionKindCreatePost, e, target)}

	case enum.EntryStatePosted:
		switch status {
		case enum.MessageStatusRemove, enum.MessageStatusTrash:
			e.State = enum.EntryStateRemoved
			if e.PostID == nil {
				// RecordPost deletes the post once it exists
				return nil
			}
			return []types.Action{m.action(enum.ActionKindDeletePost, e, target)}
		case enum.MessageStatusSend, enum.MessageStatusNoAction:
			if e.Frozen || e.PostID == nil {
				return nil
			}
			if update, ok := m.update(e, target); ok {
				return []types.Action{update}
			}
			return nil
		}
	}
	return nil
}

// update builds an UpdatePost action if the post's update cooldown allows it.
func (m *Manager) update(e *types.StarredEntry, target Target) (types.Action, bool) {
	if m.limiter != nil {
		key := governor.Key{
			GuildID:    target.GuildID,
			Kind:       enum.ResourceKindPostUpdate,
			ResourceID: e.PostID.String(),
		}
		if d := m.limiter.TryConsume(key, target.Tier, 1); !d.Allowed {
			m.logger.Debug("Post update skipped by cooldown",
				zap.Uint64("postID", uint64(*e.PostID)),
				zap.Duration("retryAfter", d.RetryAfter))
			return types.Action{}, false
		}
	}
	return m.action(enum.ActionKindUpdatePost, e, target), true
}

func (m *Manager) action(kind enum.ActionKind, e *types.StarredEntry, target Target) types.Action {
	a := types.NewAction(kind, target.GuildID, target.ID)
	a.ChannelID = target.ChannelID
	a.MessageID = e.MessageID
	a.SourceID = e.ChannelID
	a.AuthorID = e.AuthorID
	a.VoteCount = e.VoteCount
	if e.PostID != nil {
		a.PostID = *e.PostID
	}
	return a
}

// reopen returns a removed entry to the unposted state.
func reopen(e *types.StarredEntry) {
	if e.State == enum.EntryStateRemoved && !e.SourceDeleted {
		e.State = enum.EntryStateUnposted
		e.PostID = nil
	}
}
