package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

const maxReportLength = 4000

// ErrorManager reports panics and undeliverable auto-replies to the owner's
// private chat with the bot.
type ErrorManager struct {
	api     TelegramAPI
	ownerID atomic.Int64
}

func NewErrorManager(api TelegramAPI, ownerID int64) *ErrorManager {
	e := &ErrorManager{api: api}
	e.ownerID.Store(ownerID)
	return e
}

func (e *ErrorManager) SetOwnerID(ownerID int64) {
	e.ownerID.Store(ownerID)
}

func (e *ErrorManager) NotifyOwner(ctx context.Context, panicValue interface{}, update *tgmodels.Update) {
	msg := fmt.Sprintf("🚨 Panic in handler\nFrom: %s\nError: %v\n\nStack trace:\n%s",
		describeSender(update), panicValue, string(debug.Stack()))
	e.send(ctx, msg)
}

func (e *ErrorManager) NotifySendFailure(ctx context.Context, chatID int64, request interface{}, err error) {
	msg := fmt.Sprintf("❌ Failed to send auto-reply\nChat: [%d]\nError: %v\n\nCurl:\n%s",
		chatID, err, buildCurlCommand(request))
	e.send(ctx, msg)
}

func (e *ErrorManager) send(ctx context.Context, msg string) {
	ownerID := e.ownerID.Load()
	if ownerID == 0 {
		return
	}
	_, err := e.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: ownerID,
		Text:   truncateReport(msg),
	})
	if err != nil {
		log.Printf("[ERROR] Failed to send report to owner %d: %v", ownerID, err)
	}
}

// truncateReport cuts on a rune boundary; Telegram rejects invalid UTF-8.
func truncateReport(msg string) string {
	if len(msg) <= maxReportLength {
		return msg
	}
	n := maxReportLength
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n] + "\n... (truncated)"
}

func describeSender(update *tgmodels.Update) string {
	if update == nil {
		return "unknown"
	}
	var from *tgmodels.User
	switch {
	case update.BusinessMessage != nil:
		from = update.BusinessMessage.From
	case update.Message != nil:
		from = update.Message.From
	}
	if from == nil {
		return "unknown"
	}
	return FormatUser(*from)
}

func FormatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

func buildCurlCommand(request interface{}) string {
	jsonData, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Sprintf("# Failed to serialize request: %v", err)
	}

	return fmt.Sprintf("curl -X POST 'https://api.telegram.org/bot[BOT_TOKEN]/sendMessage' \\\n  -H 'Content-Type: application/json' \\\n  -d '%s'",
		string(jsonData))
}
