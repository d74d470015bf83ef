package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Settings are the requirements and behaviour of a target.
type Settings struct {
	Enabled         bool           `json:"enabled"`
	RequiredUpvotes int            `json:"requiredUpvotes"` // Votes needed to post
	RemoveBelow     int            `json:"removeBelow"`     // Posts are removed once votes drop below this
	UpvoteEmojis    []string       `json:"upvoteEmojis"`
	DownvoteEmojis  []string       `json:"downvoteEmojis"`
	RequiredRoles   []snowflake.ID `json:"requiredRoles"` // Author must hold one of these, if set
	VoterRoles      []snowflake.ID `json:"voterRoles"`    // Voter must hold one of these, if set
	SelfVote        bool           `json:"selfVote"`
	AllowBots       bool           `json:"allowBots"`
	RequireImage    bool           `json:"requireImage"`
	MinChars        int            `json:"minChars"`
	MaxChars        int            `json:"maxChars"`  // 0 means unlimited
	OlderThan       time.Duration  `json:"olderThan"` // Message must be at least this old
	NewerThan       time.Duration  `json:"newerThan"` // Message must be at most this old, 0 means unlimited
	DeleteInvalid   bool           `json:"deleteInvalid"`
	LinkEdits       bool           `json:"linkEdits"`
	CooldownEnabled bool           `json:"cooldownEnabled"`
	CooldownCount   int            `json:"cooldownCount"`
	CooldownPeriod  time.Duration  `json:"cooldownPeriod"`
}

// DefaultSettings returns the settings a new target starts with.
func DefaultSettings() Settings {
	return Settings{
		Enabled:         true,
		RequiredUpvotes: 3,
		RemoveBelow:     1,
		UpvoteEmojis:    []string{"⭐"},
		LinkEdits:       true,
		CooldownCount:   5,
		CooldownPeriod:  5 * time.Second,
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.UpvoteEmojis = append([]string(nil), s.UpvoteEmojis...)
	s.DownvoteEmojis = append([]string(nil), s.DownvoteEmojis...)
	s.RequiredRoles = append([]snowflake.ID(nil), s.RequiredRoles...)
	s.VoterRoles = append([]snowflake.ID(nil), s.VoterRoles...)
	return s
}

// IsUpvote reports whether emoji counts as an upvote.
func (s *Settings) IsUpvote(emoji string) bool {
	return containsString(s.UpvoteEmojis, emoji)
}

// IsDownvote reports whether emoji counts as a downvote.
func (s *Settings) IsDownvote(emoji string) bool {
	return containsString(s.DownvoteEmojis, emoji)
}

// SettingsPatch overrides individual settings. Nil fields are left untouched.
type SettingsPatch struct {
	Enabled         *bool           `json:"enabled,omitempty"`
	RequiredUpvotes *int            `json:"requiredUpvotes,omitempty"`
	RemoveBelow     *int            `json:"removeBelow,omitempty"`
	UpvoteEmojis    *[]string       `json:"upvoteEmojis,omitempty"`
	DownvoteEmojis  *[]string       `json:"downvoteEmojis,omitempty"`
	RequiredRoles   *[]snowflake.ID `json:"requiredRoles,omitempty"`
	VoterRoles      *[]snowflake.ID `json:"voterRoles,omitempty"`
	SelfVote        *bool           `json:"selfVote,omitempty"`
	AllowBots       *bool           `json:"allowBots,omitempty"`
	RequireImage    *bool           `json:"requireImage,omitempty"`
	MinChars        *int            `json:"minChars,omitempty"`
	MaxChars        *int            `json:"maxChars,omitempty"`
	OlderThan       *time.Duration  `json:"olderThan,omitempty"`
	NewerThan       *time.Duration  `json:"newerThan,omitempty"`
	DeleteInvalid   *bool           `json:"deleteInvalid,omitempty"`
	LinkEdits       *bool           `json:"linkEdits,omitempty"`
	CooldownEnabled *bool           `json:"cooldownEnabled,omitempty"`
	CooldownCount   *int            `json:"cooldownCount,omitempty"`
	CooldownPeriod  *time.Duration  `json:"cooldownPeriod,omitempty"`
}

// Apply returns s with every set field of the patch written over it.
func (p *SettingsPatch) Apply(s Settings) Settings {
	if p == nil {
		return s
	}
	set(&s.Enabled, p.Enabled)
	set(&s.RequiredUpvotes, p.RequiredUpvotes)
	set(&s.RemoveBelow, p.RemoveBelow)
	setSlice(&s.UpvoteEmojis, p.UpvoteEmojis)
	setSlice(&s.DownvoteEmojis, p.DownvoteEmojis)
	setSlice(&s.RequiredRoles, p.RequiredRoles)
	setSlice(&s.VoterRoles, p.VoterRoles)
	set(&s.SelfVote, p.SelfVote)
	set(&s.AllowBots, p.AllowBots)
	set(&s.RequireImage, p.RequireImage)
	set(&s.MinChars, p.MinChars)
	set(&s.MaxChars, p.MaxChars)
	set(&s.OlderThan, p.OlderThan)
	set(&s.NewerThan, p.NewerThan)
	set(&s.DeleteInvalid, p.DeleteInvalid)
	set(&s.LinkEdits, p.LinkEdits)
	set(&s.CooldownEnabled, p.CooldownEnabled)
	set(&s.CooldownCount, p.CooldownCount)
	set(&s.CooldownPeriod, p.CooldownPeriod)
	return s
}

// EmojiCount returns the number of vote emojis the patch would configure, or -1 if it sets none.
func (p *SettingsPatch) EmojiCount() int {
	if p == nil || (p.UpvoteEmojis == nil && p.DownvoteEmojis == nil) {
		return -1
	}
	n := 0
	if p.UpvoteEmojis != nil {
		n += len(*p.UpvoteEmojis)
	}
	if p.DownvoteEmojis != nil {
		n += len(*p.DownvoteEmojis)
	}
	return n
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setSlice[T any](dst *[]T, src *[]T) {
	if src != nil {
		*dst = append([]T(nil), (*src)...)
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
