package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/ad/go-telegram-autoreply/internal/services"
)

const (
	helpText = "Автоответчик для Telegram Business.\n\n" +
		"/setcooldown <секунды> — установить кулдаун\n" +
		"/setmessage <текст> — установить текст автоответа\n" +
		"/showsettings — показать текущие настройки"
	cooldownInstruction = "Укажите кулдаун в секундах. Например: /setcooldown 60 для установки кулдауна в 60 секунд."
	cooldownInvalid     = "Введите корректное время кулдауна (число в секундах)."
	messageInstruction  = "Укажите текст автоответа. Например: /setmessage Привет, я сейчас не могу ответить."
	notPersistedWarning = "\n⚠️ Не удалось сохранить настройки, они действуют до перезапуска."
)

type command struct {
	name     string
	argument string
}

// parseCommand splits "/name@bot argument" or the userbot-style
// ".name argument". The argument keeps inner newlines.
func parseCommand(text string) (command, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '/' && text[0] != '.') {
		return command{}, false
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return command{}, false
	}
	return command{name: strings.ToLower(head), argument: strings.TrimSpace(rest)}, true
}

func commandKind(name string) (models.CommandKind, bool) {
	kind := models.CommandKind(name)
	return kind, kind.IsValid()
}

func formatSettings(s models.Settings) string {
	return fmt.Sprintf("Текущие настройки автоответчика:\nКулдаун: %d секунд\nТекст автоответа: %s",
		s.CooldownSeconds, s.ReplyText)
}

// commandReply turns a command result into the text shown to the owner.
func commandReply(kind models.CommandKind, argument string, result services.CommandResult, err error) string {
	if err != nil {
		if !errors.Is(err, services.ErrInvalidArgument) {
			return fmt.Sprintf("Ошибка: %v", err)
		}
		switch kind {
		case models.CommandSetCooldown:
			if strings.TrimSpace(argument) == "" {
				return cooldownInstruction
			}
			return cooldownInvalid
		case models.CommandSetMessage:
			return messageInstruction
		default:
			return helpText
		}
	}

	var text string
	switch kind {
	case models.CommandSetCooldown:
		text = fmt.Sprintf("Кулдаун успешно установлен на %d секунд.", result.Settings.CooldownSeconds)
	case models.CommandSetMessage:
		text = "Текст автоответа успешно обновлен."
	default:
		text = formatSettings(result.Settings)
	}
	if !result.Persisted {
		text += notPersistedWarning
	}
	return text
}
