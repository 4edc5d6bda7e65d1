package models

const (
	SettingsVersion        = 1
	DefaultCooldownSeconds = 30
	DefaultReplyText       = "Привет! Сейчас я не в сети, отвечу позже."
)

type Settings struct {
	CooldownSeconds uint32
	ReplyText       string
}

func DefaultSettings() Settings {
	return Settings{
		CooldownSeconds: DefaultCooldownSeconds,
		ReplyText:       DefaultReplyText,
	}
}

// PartialSettings is what a store managed to read. Nil fields were missing
// or unreadable and get defaults in Complete.
type PartialSettings struct {
	CooldownSeconds *uint32
	ReplyText       *string
}

// Complete fills missing fields with defaults and reports whether any
// field had to be filled.
func (p PartialSettings) Complete() (Settings, bool) {
	s := DefaultSettings()
	filled := false
	if p.CooldownSeconds != nil {
		s.CooldownSeconds = *p.CooldownSeconds
	} else {
		filled = true
	}
	if p.ReplyText != nil && *p.ReplyText != "" {
		s.ReplyText = *p.ReplyText
	} else {
		filled = true
	}
	return s, filled
}
