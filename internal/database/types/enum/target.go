package enum

// TargetKind distinguishes the two kinds of configured channels.
type TargetKind int

const (
	// TargetKindStarboard collects popular messages into a dedicated channel.
	TargetKindStarboard TargetKind = iota + 1
	// TargetKindAutostar reacts to every qualifying message posted in a channel.
	TargetKindAutostar
)

func (k TargetKind) String() string {
	switch k {
	case TargetKindStarboard:
		return "starboard"
	case TargetKindAutostar:
		return "autostar"
	default:
		return "unknown"
	}
}
