package entry

import (
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// Status computes what should happen to an entry's post given its flags and votes.
// Checks apply in order: an age restricted source on a non age restricted board is
// removed, trashed entries are trashed, forced entries are sent, frozen entries are
// left alone, then the vote thresholds decide.
func Status(e *types.StarredEntry, target Target) enum.MessageStatus {
	switch {
	case e.NSFW && !target.NSFW:
		return enum.MessageStatusRemove
	case e.Trashed:
		return enum.MessageStatusTrash
	case e.Forced:
		return enum.MessageStatusSend
	case e.Frozen:
		return enum.MessageStatusNoAction
	case e.VoteCount >= target.RequiredUpvotes:
		return enum.MessageStatusSend
	case e.VoteCount < target.RemoveBelow:
		return enum.MessageStatusRemove
	default:
		return enum.MessageStatusNoAction
	}
}
