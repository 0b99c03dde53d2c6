package model

import "time"

const (
	// MinPollIntervalMinutes and MaxPollIntervalMinutes bound the user
	// configurable poll interval.
	MinPollIntervalMinutes = 5
	MaxPollIntervalMinutes = 60

	DefaultPollIntervalMinutes = 5
)

// IconStyle selects how the unread indicator is drawn.
type IconStyle string

const (
	IconStyleDefault    IconStyle = "default"
	IconStyleMonochrome IconStyle = "monochrome"
	IconStyleFilled     IconStyle = "filled"
)

// IconStyles lists the valid icon styles.
var IconStyles = []IconStyle{IconStyleDefault, IconStyleMonochrome, IconStyleFilled}

// ParseIconStyle validates s, returning ok=false for unknown styles.
func ParseIconStyle(s string) (IconStyle, bool) {
	for _, st := range IconStyles {
		if string(st) == s {
			return st, true
		}
	}
	return IconStyleDefault, false
}

// Settings is the single logical row of user-editable scalars persisted in
// the local store.
type Settings struct {
	// PollIntervalMinutes is how often to poll, clamped to [5, 60].
	PollIntervalMinutes int `json:"poll_interval_minutes"`

	ShowBadge            bool      `json:"show_badge"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	LaunchAtLogin        bool      `json:"launch_at_login"`
	IconStyle            IconStyle `json:"icon_style"`

	// LastPollAt is when the last successful poll finished.
	LastPollAt *time.Time `json:"last_poll_at,omitempty"`

	// CacheToken is the opaque validator sent with the next conditional fetch.
	CacheToken string `json:"cache_token,omitempty"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() Settings {
	return Settings{
		PollIntervalMinutes:  DefaultPollIntervalMinutes,
		ShowBadge:            true,
		NotificationsEnabled: true,
		LaunchAtLogin:        false,
		IconStyle:            IconStyleDefault,
	}
}

// ClampPollInterval bounds minutes to the supported range.
func ClampPollInterval(minutes int) int {
	if minutes < MinPollIntervalMinutes {
		return MinPollIntervalMinutes
	}
	if minutes > MaxPollIntervalMinutes {
		return MaxPollIntervalMinutes
	}
	return minutes
}

// PollInterval returns the clamped interval as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(ClampPollInterval(s.PollIntervalMinutes)) * time.Minute
}
