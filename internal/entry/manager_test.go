package entry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/memstore"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/entry"
	"github.com/robalyx/starboard/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	messageID snowflake.ID = 1000
	postID    snowflake.ID = 2000
)

var (
	target = entry.Target{
		ID:              1,
		GuildID:         10,
		ChannelID:       20,
		RequiredUpvotes: 3,
		RemoveBelow:     2,
		LinkEdits:       true,
	}
	source = entry.Source{MessageID: messageID, ChannelID: 30, AuthorID: 40}
)

func setupTest(t *testing.T, policy entry.Policy) (*entry.Manager, *memstore.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := memstore.New()
	gov := governor.New(governor.DefaultConfig(), clock, nil, nil, zap.NewNop())
	return entry.NewManager(store, gov, policy, clock, zap.NewNop()), store, clock
}

func upvote(voter snowflake.ID) entry.Vote {
	return entry.Vote{VoterID: voter, Emoji: "⭐", Up: true, Add: true}
}

func unvote(voter snowflake.ID) entry.Vote {
	return entry.Vote{VoterID: voter, Emoji: "⭐", Up: true, Add: false}
}

func kinds(actions []types.Action) []enum.ActionKind {
	out := make([]enum.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	m, _, clock := setupTest(t, entry.Policy{})
	ctx := context.Background()

	var all []types.Action
	for voter := range snowflake.ID(3) {
		res, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
		require.NoError(t, err)
		all = append(all, res.Actions...)
	}
	require.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(all))
	assert.Equal(t, 3, all[0].VoteCount)
	assert.Equal(t, target.ChannelID, all[0].ChannelID)
	assert.Equal(t, source.ChannelID, all[0].SourceID)

	res, err := m.RecordPost(ctx, target, messageID, postID)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	assert.Equal(t, enum.EntryStatePosted, res.Entry.State)

	// First removal keeps the post and updates it
	clock.Advance(time.Minute)
	res, err = m.ApplyVote(ctx, target, source, unvote(1))
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindUpdatePost}, kinds(res.Actions))
	assert.Equal(t, postID, res.Actions[0].PostID)
	assert.Equal(t, 2, res.Actions[0].VoteCount)

	// Second removal drops below the threshold
	res, err = m.ApplyVote(ctx, target, source, unvote(2))
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))
	assert.Equal(t, enum.EntryStateRemoved, res.Entry.State)

	// Removed is terminal
	for voter := range snowflake.ID(5) {
		res, err = m.ApplyVote(ctx, target, source, upvote(voter+10))
		require.NoError(t, err)
		assert.Empty(t, res.Actions)
	}
	assert.Equal(t, enum.EntryStateRemoved, res.Entry.State)
	assert.Equal(t, 6, res.Entry.VoteCount)
}

func TestResurrectPolicy(t *testing.T) {
	t.Parallel()

	t.Run("entries removed by votes come back", func(t *testing.T) {
		t.Parallel()

		m, _, _ := setupTest(t, entry.Policy{ResurrectRemoved: true})
		ctx := context.Background()

		for voter := range snowflake.ID(3) {
			_, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
			require.NoError(t, err)
		}
		_, err := m.RecordPost(ctx, target, messageID, postID)
		require.NoError(t, err)

		_, err = m.ApplyVote(ctx, target, source, unvote(1))
		require.NoError(t, err)
		res, err := m.ApplyVote(ctx, target, source, unvote(2))
		require.NoError(t, err)
		require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))

		_, err = m.ApplyVote(ctx, target, source, upvote(50))
		require.NoError(t, err)
		res, err = m.ApplyVote(ctx, target, source, upvote(51))
		require.NoError(t, err)
		require.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(res.Actions))
		assert.Equal(t, enum.EntryStatePosted, res.Entry.State)
		assert.Nil(t, res.Entry.PostID)
	})

	t.Run("entries of deleted messages stay removed", func(t *testing.T) {
		t.Parallel()

		m, _, _ := setupTest(t, entry.Policy{ResurrectRemoved: true})
		ctx := context.Background()

		for voter := range snowflake.ID(3) {
			_, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
			require.NoError(t, err)
		}
		_, err := m.RecordPost(ctx, target, messageID, postID)
		require.NoError(t, err)

		res, err := m.HandleDelete(ctx, target, messageID)
		require.NoError(t, err)
		require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))
		assert.True(t, res.Entry.SourceDeleted)

		res, err = m.ApplyVote(ctx, target, source, upvote(50))
		require.NoError(t, err)
		assert.Empty(t, res.Actions)
		assert.Equal(t, enum.EntryStateRemoved, res.Entry.State)

		res, err = m.SetForced(ctx, target, messageID, true)
		require.NoError(t, err)
		assert.Empty(t, res.Actions)
		assert.Equal(t, enum.EntryStateRemoved, res.Entry.State)
	})
}

func TestIdempotentVotes(t *testing.T) {
	t.Parallel()

	m, store, _ := setupTest(t, entry.Policy{})
	ctx := context.Background()

	res, err := m.ApplyVote(ctx, target, source, upvote(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.VoteCount)

	res, err = m.ApplyVote(ctx, target, source, upvote(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.VoteCount)
	assert.Equal(t, 1, store.Saves())

	res, err = m.ApplyVote(ctx, target, source, unvote(1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Entry.VoteCount)

	// A remove without a counted add changes nothing
	res, err = m.ApplyVote(ctx, target, source, unvote(1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Entry.VoteCount)
	assert.Equal(t, 2, store.Saves())

	// Removes and downvotes never create entries
	other := source
	other.MessageID = 77
	res, err = m.ApplyVote(ctx, target, other, entry.Vote{VoterID: 1, Emoji: "👎", Add: true})
	require.NoError(t, err)
	assert.Nil(t, res.Entry)
}

func TestConcurrentVotes(t *testing.T) {
	t.Parallel()

	m, _, _ := setupTest(t, entry.Policy{})
	ctx := context.Background()

	var (
		mu      sync.Mutex
		actions []types.Action
		wg      sync.WaitGroup
	)
	for voter := range snowflake.ID(50) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every voter reacts twice to exercise duplicate delivery
			for range 2 {
				res, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
				assert.NoError(t, err)
				mu.Lock()
				actions = append(actions, res.Actions...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(actions))
	assert.Equal(t, 0, m.Locks().Len())

	res, err := m.ApplyVote(ctx, target, source, upvote(1))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Entry.VoteCount)
}

func TestSaveFailureLeavesEntryUnchanged(t *testing.T) {
	t.Parallel()

	m, store, _ := setupTest(t, entry.Policy{})
	ctx := context.Background()

	for voter := range snowflake.ID(2) {
		_, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
		require.NoError(t, err)
	}

	boom := errors.New("connection refused")
	store.Fail(boom)
	res, err := m.ApplyVote(ctx, target, source, upvote(3))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, res.Actions)
	store.Fail(nil)

	stored, err := store.LoadStarredEntry(ctx, messageID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.VoteCount)
	assert.Equal(t, enum.EntryStateUnposted, stored.State)

	// Redelivery applies the vote exactly once
	res, err = m.ApplyVote(ctx, target, source, upvote(3))
	require.NoError(t, err)
	assert.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(res.Actions))
	assert.Equal(t, 0, m.Locks().Len())
}

func TestHandleEditAndDelete(t *testing.T) {
	t.Parallel()

	m, _, clock := setupTest(t, entry.Policy{})
	ctx := context.Background()

	// Edits of untracked messages do nothing
	res, err := m.HandleEdit(ctx, target, source)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)

	for voter := range snowflake.ID(3) {
		_, err = m.ApplyVote(ctx, target, source, upvote(voter+1))
		require.NoError(t, err)
	}
	_, err = m.RecordPost(ctx, target, messageID, postID)
	require.NoError(t, err)

	// Post updates are limited to 4 per 10 seconds
	var updates int
	for range 6 {
		res, err = m.HandleEdit(ctx, target, source)
		require.NoError(t, err)
		updates += len(res.Actions)
	}
	assert.Equal(t, 4, updates)

	clock.Advance(11 * time.Second)
	noLink := target
	noLink.LinkEdits = false
	res, err = m.HandleEdit(ctx, noLink, source)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)

	res, err = m.HandleDelete(ctx, target, messageID)
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))
	assert.Equal(t, postID, res.Actions[0].PostID)

	res, err = m.HandleDelete(ctx, target, messageID)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
}

func TestPendingPost(t *testing.T) {
	t.Parallel()

	m, _, _ := setupTest(t, entry.Policy{})
	ctx := context.Background()

	for voter := range snowflake.ID(3) {
		_, err := m.ApplyVote(ctx, target, source, upvote(voter+1))
		require.NoError(t, err)
	}

	t.Run("failure returns to unposted", func(t *testing.T) {
		res, err := m.PostFailed(ctx, target, messageID)
		require.NoError(t, err)
		assert.Equal(t, enum.EntryStateUnposted, res.Entry.State)
		assert.True(t, res.Entry.PostFailed)

		res, err = m.ApplyVote(ctx, target, source, upvote(4))
		require.NoError(t, err)
		assert.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(res.Actions))
	})

	t.Run("removal before the post exists", func(t *testing.T) {
		res, err := m.HandleDelete(ctx, target, messageID)
		require.NoError(t, err)
		assert.Empty(t, res.Actions)

		res, err = m.RecordPost(ctx, target, messageID, postID)
		require.NoError(t, err)
		require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))
		assert.Equal(t, postID, res.Actions[0].PostID)
	})
}

func TestModeration(t *testing.T) {
	t.Parallel()

	m, _, _ := setupTest(t, entry.Policy{})
	ctx := context.Background()

	_, err := m.SetForced(ctx, target, messageID, true)
	require.ErrorIs(t, err, types.ErrEntryNotFound)

	res, err := m.ApplyVote(ctx, target, source, upvote(1))
	require.NoError(t, err)
	assert.Empty(t, res.Actions)

	res, err = m.SetForced(ctx, target, messageID, true)
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(res.Actions))
	_, err = m.RecordPost(ctx, target, messageID, postID)
	require.NoError(t, err)

	res, err = m.SetTrashed(ctx, target, messageID, true)
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(res.Actions))
	assert.Equal(t, enum.EntryStateRemoved, res.Entry.State)

	// Restoring a trashed entry that is still forced posts it again
	res, err = m.SetTrashed(ctx, target, messageID, false)
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(res.Actions))

	// Frozen entries ignore the vote threshold
	_, err = m.RecordPost(ctx, target, messageID, postID+1)
	require.NoError(t, err)
	res, err = m.SetFrozen(ctx, target, messageID, true)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	res, err = m.SetForced(ctx, target, messageID, false)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	assert.Equal(t, enum.EntryStatePosted, res.Entry.State)
	assert.Equal(t, 1, res.Entry.VoteCount)
}

func TestStatusPrecedence(t *testing.T) {
	t.Parallel()

	board := entry.Target{RequiredUpvotes: 3, RemoveBelow: 1}

	tests := []struct {
		name  string
		entry types.StarredEntry
		want  enum.MessageStatus
	}{
		{"nsfw source on sfw board", types.StarredEntry{NSFW: true, Forced: true}, enum.MessageStatusRemove},
		{"trashed beats forced", types.StarredEntry{Trashed: true, Forced: true}, enum.MessageStatusTrash},
		{"forced beats frozen", types.StarredEntry{Forced: true, Frozen: true}, enum.MessageStatusSend},
		{"frozen ignores votes", types.StarredEntry{Frozen: true, VoteCount: 10}, enum.MessageStatusNoAction},
		{"threshold reached", types.StarredEntry{VoteCount: 3}, enum.MessageStatusSend},
		{"below removal", types.StarredEntry{VoteCount: 0}, enum.MessageStatusRemove},
		{"in between", types.StarredEntry{VoteCount: 2}, enum.MessageStatusNoAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, entry.Status(&tt.entry, board))
		})
	}
}
