package services

import (
	"context"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// TelegramAPI is the part of *bot.Bot the auto-reply service calls.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	DeleteBusinessMessages(ctx context.Context, params *bot.DeleteBusinessMessagesParams) (bool, error)
	GetBusinessConnection(ctx context.Context, params *bot.GetBusinessConnectionParams) (*tgmodels.BusinessConnection, error)
}

var _ TelegramAPI = (*bot.Bot)(nil)
