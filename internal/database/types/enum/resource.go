package enum

// ResourceKind names a cooldown-governed resource.
type ResourceKind int

const (
	// ResourceKindPostUpdate limits edits to a single starboard post.
	ResourceKindPostUpdate ResourceKind = iota + 1
	// ResourceKindAutostarSend limits autostar reactions per autostar channel.
	ResourceKindAutostarSend
	// ResourceKindStarboardVote is the per-user custom cooldown of a starboard.
	ResourceKindStarboardVote
	// ResourceKindOldMessageEdit limits edit syncing of old messages per channel.
	ResourceKindOldMessageEdit
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindPostUpdate:
		return "post_update"
	case ResourceKindAutostarSend:
		return "autostar_send"
	case ResourceKindStarboardVote:
		return "starboard_vote"
	case ResourceKindOldMessageEdit:
		return "old_message_edit"
	default:
		return "unknown"
	}
}

// ResourceKinds lists every governed resource.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{
		ResourceKindPostUpdate,
		ResourceKindAutostarSend,
		ResourceKindStarboardVote,
		ResourceKindOldMessageEdit,
	}
}

// ResourceKindFromString parses a resource name as written by String.
func ResourceKindFromString(s string) (ResourceKind, bool) {
	for _, k := range ResourceKinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// QuotaKind names a per-guild or per-target quota bounded by the premium tier.
type QuotaKind int

const (
	QuotaKindStarboards QuotaKind = iota + 1
	QuotaKindAutostarChannels
	QuotaKindOverridesPerTarget
	QuotaKindVoteEmojis
	QuotaKindRegexLength
	QuotaKindUploadBytes
)

func (k QuotaKind) String() string {
	switch k {
	case QuotaKindStarboards:
		return "starboards"
	case QuotaKindAutostarChannels:
		return "autostar_channels"
	case QuotaKindOverridesPerTarget:
		return "overrides_per_target"
	case QuotaKindVoteEmojis:
		return "vote_emojis"
	case QuotaKindRegexLength:
		return "regex_length"
	case QuotaKindUploadBytes:
		return "upload_bytes"
	default:
		return "unknown"
	}
}
