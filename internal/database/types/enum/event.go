package enum

// EventKind identifies the gateway event that produced an evaluation context.
type EventKind int

const (
	// EventKindMessageCreate is a new message posted in a guild channel.
	EventKindMessageCreate EventKind = iota + 1
	// EventKindReactionAdd is a reaction added to a message.
	EventKindReactionAdd
	// EventKindReactionRemove is a reaction removed from a message.
	EventKindReactionRemove
	// EventKindMessageUpdate is an edit to an existing message.
	EventKindMessageUpdate
	// EventKindMessageDelete is the deletion of a source message.
	EventKindMessageDelete
)

func (k EventKind) String() string {
	switch k {
	case EventKindMessageCreate:
		return "message_create"
	case EventKindReactionAdd:
		return "reaction_add"
	case EventKindReactionRemove:
		return "reaction_remove"
	case EventKindMessageUpdate:
		return "message_update"
	case EventKindMessageDelete:
		return "message_delete"
	default:
		return "unknown"
	}
}

// IsReaction reports whether the event carries a voter and an emoji.
func (k EventKind) IsReaction() bool {
	return k == EventKindReactionAdd || k == EventKindReactionRemove
}
