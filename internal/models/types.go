package models

type CommandKind string

const (
	CommandSetCooldown  CommandKind = "setcooldown"
	CommandSetMessage   CommandKind = "setmessage"
	CommandShowSettings CommandKind = "showsettings"
)

func (k CommandKind) IsValid() bool {
	switch k {
	case CommandSetCooldown, CommandSetMessage, CommandShowSettings:
		return true
	default:
		return false
	}
}
