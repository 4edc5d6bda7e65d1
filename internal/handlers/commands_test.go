package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want command
		ok   bool
	}{
		{"/setcooldown 60", command{name: "setcooldown", argument: "60"}, true},
		{".setcooldown 60", command{name: "setcooldown", argument: "60"}, true},
		{"/SetCooldown@my_bot  15 ", command{name: "setcooldown", argument: "15"}, true},
		{"/setmessage Привет, я занят", command{name: "setmessage", argument: "Привет, я занят"}, true},
		{"/setmessage\nПервая строка\nвторая", command{name: "setmessage", argument: "Первая строка\nвторая"}, true},
		{"/showsettings", command{name: "showsettings"}, true},
		{"hello", command{}, false},
		{"/", command{}, false},
		{"", command{}, false},
		{"/@bot", command{}, false},
	}

	for _, tt := range tests {
		got, ok := parseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, "text %q", tt.text)
		assert.Equal(t, tt.want, got, "text %q", tt.text)
	}
}

func TestParseCommand_ArgumentPreserved_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		arg := rapid.StringMatching(`[a-zA-Zа-яА-Я0-9,.!][a-zA-Zа-яА-Я0-9 ,.!]{0,60}[a-zA-Zа-яА-Я0-9,.!]`).Draw(rt, "arg")

		cmd, ok := parseCommand("/setmessage " + arg)
		if !ok {
			rt.Fatalf("Expected command to parse")
		}
		if cmd.argument != arg {
			rt.Errorf("Expected argument %q, got %q", arg, cmd.argument)
		}
	})
}
