package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// Vote is one counted reaction on a tracked message.
type Vote struct {
	VoterID snowflake.ID `json:"voterId"`
	Emoji   string       `json:"emoji"`
	Up      bool         `json:"up"`
}

// VoteSet holds the counted votes of an entry keyed by voter and emoji.
type VoteSet map[string]Vote

// voteKey identifies a vote by voter and emoji.
func voteKey(voterID snowflake.ID, emoji string) string {
	return voterID.String() + ":" + emoji
}

// Has reports whether the voter's reaction with emoji is already counted.
func (v VoteSet) Has(voterID snowflake.ID, emoji string) bool {
	_, ok := v[voteKey(voterID, emoji)]
	return ok
}

// Score returns upvotes minus downvotes.
func (v VoteSet) Score() int {
	score := 0
	for _, vote := range v {
		if vote.Up {
			score++
		} else {
			score--
		}
	}
	return score
}

// StarredEntry tracks one message against one starboard.
// There is at most one entry per (MessageID, TargetID).
type StarredEntry struct {
	bun.BaseModel `bun:"table:starred_entries,alias:se"`

	MessageID     snowflake.ID    `bun:",pk"                    json:"messageId"`
	TargetID      int64           `bun:",pk"                    json:"targetId"`
	GuildID       snowflake.ID    `bun:",notnull"               json:"guildId"`
	ChannelID     snowflake.ID    `bun:",notnull"               json:"channelId"`
	AuthorID      snowflake.ID    `bun:",notnull"               json:"authorId"`
	VoteCount     int             `bun:",notnull"               json:"voteCount"`
	Votes         VoteSet         `bun:"type:jsonb,notnull"     json:"votes"`
	PostID        *snowflake.ID   `bun:",nullzero"              json:"postId,omitempty"`
	State         enum.EntryState `bun:",notnull"               json:"state"`
	Frozen        bool            `bun:",notnull,default:false" json:"frozen"`
	Trashed       bool            `bun:",notnull,default:false" json:"trashed"`
	Forced        bool            `bun:",notnull,default:false" json:"forced"`
	NSFW          bool            `bun:",notnull,default:false" json:"nsfw"` // Source channel was age restricted
	PostFailed    bool            `bun:",notnull,default:false" json:"postFailed"`
	SourceDeleted bool            `bun:",notnull,default:false" json:"sourceDeleted"` // Removed because the source message is gone
	CreatedAt     time.Time       `bun:",notnull"               json:"createdAt"`
	UpdatedAt     time.Time       `bun:",notnull"               json:"updatedAt"`
}

// NewStarredEntry creates an unposted entry with no votes.
func NewStarredEntry(messageID snowflake.ID, targetID int64, now time.Time) *StarredEntry {
	return &StarredEntry{
		MessageID: messageID,
		TargetID:  targetID,
		Votes:     make(VoteSet),
		State:     enum.EntryStateUnposted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so transitions can be computed without touching the stored value.
func (e *StarredEntry) Clone() *StarredEntry {
	out := *e
	out.Votes = make(VoteSet, len(e.Votes))
	for k, v := range e.Votes {
		out.Votes[k] = v
	}
	if e.PostID != nil {
		id := *e.PostID
		out.PostID = &id
	}
	return &out
}

// AddVote counts a vote. It returns false when the vote was already counted.
func (e *StarredEntry) AddVote(voterID snowflake.ID, emoji string, up bool) bool {
	if e.Votes == nil {
		e.Votes = make(VoteSet)
	}
	key := voteKey(voterID, emoji)
	if _, ok := e.Votes[key]; ok {
		return false
	}
	e.Votes[key] = Vote{VoterID: voterID, Emoji: emoji, Up: up}
	e.VoteCount = e.Votes.Score()
	return true
}

// RemoveVote uncounts a vote. It returns false when the vote was never counted.
func (e *StarredEntry) RemoveVote(voterID snowflake.ID, emoji string) bool {
	key := voteKey(voterID, emoji)
	if _, ok := e.Votes[key]; !ok {
		return false
	}
	delete(e.Votes, key)
	e.VoteCount = e.Votes.Score()
	return true
}
