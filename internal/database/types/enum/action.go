package enum

// ActionKind is the kind of side effect requested from the action sink.
type ActionKind int

const (
	ActionKindCreatePost ActionKind = iota + 1
	ActionKindUpdatePost
	ActionKindDeletePost
	ActionKindUploadAttachment
	ActionKindAddReactions
	ActionKindDeleteMessage
)

func (k ActionKind) String() string {
	switch k {
	case ActionKindCreatePost:
		return "create_post"
	case ActionKindUpdatePost:
		return "update_post"
	case ActionKindDeletePost:
		return "delete_post"
	case ActionKindUploadAttachment:
		return "upload_attachment"
	case ActionKindAddReactions:
		return "add_reactions"
	case ActionKindDeleteMessage:
		return "delete_message"
	default:
		return "unknown"
	}
}
