package enum

// ChannelType is the subset of Discord channel types the bot distinguishes.
type ChannelType int

const (
	ChannelTypeUnknown ChannelType = iota
	ChannelTypeText
	ChannelTypeAnnouncement
	ChannelTypeCategory
	ChannelTypeForum
	ChannelTypePublicThread
	ChannelTypePrivateThread
	ChannelTypeAnnouncementThread
	ChannelTypeVoice
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypeText:
		return "text"
	case ChannelTypeAnnouncement:
		return "announcement"
	case ChannelTypeCategory:
		return "category"
	case ChannelTypeForum:
		return "forum"
	case ChannelTypePublicThread:
		return "public_thread"
	case ChannelTypePrivateThread:
		return "private_thread"
	case ChannelTypeAnnouncementThread:
		return "announcement_thread"
	case ChannelTypeVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// IsThread reports whether the channel type is any kind of thread.
func (t ChannelType) IsThread() bool {
	switch t {
	case ChannelTypePublicThread, ChannelTypePrivateThread, ChannelTypeAnnouncementThread:
		return true
	default:
		return false
	}
}
