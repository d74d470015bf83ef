package enum

// EntryState is the lifecycle state of a starred entry.
type EntryState int

const (
	// EntryStateUnposted means the entry is being tracked but has no post yet.
	EntryStateUnposted EntryState = iota
	// EntryStatePosted means a post exists on the starboard.
	EntryStatePosted
	// EntryStateRemoved means the post was taken down. Terminal unless resurrection is enabled.
	EntryStateRemoved
)

func (s EntryState) String() string {
	switch s {
	case EntryStateUnposted:
		return "unposted"
	case EntryStatePosted:
		return "posted"
	case EntryStateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MessageStatus is the verdict computed for an entry after a vote or flag change.
type MessageStatus int

const (
	MessageStatusNoAction MessageStatus = iota
	MessageStatusSend
	MessageStatusRemove
	MessageStatusTrash
)

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusNoAction:
		return "no_action"
	case MessageStatusSend:
		return "send"
	case MessageStatusRemove:
		return "remove"
	case MessageStatusTrash:
		return "trash"
	default:
		return "unknown"
	}
}
