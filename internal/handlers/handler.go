package handlers

import (
	"context"
	"log"

	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/ad/go-telegram-autoreply/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

type AutoReplier interface {
	OwnerID() int64
	HandleIncoming(ctx context.Context, msg models.IncomingMessage) (services.Outcome, error)
	HandleOutgoing(senderID int64) bool
	ApplyCommand(ctx context.Context, kind models.CommandKind, argument string) (services.CommandResult, error)
}

type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

type PanicReporter interface {
	NotifyOwner(ctx context.Context, panicValue interface{}, update *tgmodels.Update)
}

type BotHandler struct {
	replier  AutoReplier
	sender   MessageSender
	reporter PanicReporter
}

func NewBotHandler(replier AutoReplier, sender MessageSender, reporter PanicReporter) *BotHandler {
	return &BotHandler{
		replier:  replier,
		sender:   sender,
		reporter: reporter,
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	switch {
	case update.BusinessMessage != nil:
		h.handleBusinessMessage(ctx, update.BusinessMessage)
	case update.BusinessConnection != nil:
		h.handleBusinessConnection(update.BusinessConnection)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		log.Printf("[HANDLER] Recovered panic: %v", r)
		if h.reporter != nil {
			h.reporter.NotifyOwner(ctx, r, update)
		}
	}
}

func (h *BotHandler) handleBusinessMessage(ctx context.Context, msg *tgmodels.Message) {
	// Our own auto-replies come back as business messages from the owner.
	if msg.SenderBusinessBot != nil || msg.From == nil {
		return
	}

	if h.replier.HandleOutgoing(msg.From.ID) {
		return
	}

	outcome, err := h.replier.HandleIncoming(ctx, models.IncomingMessage{
		Peer: models.Peer{
			ChatID:               msg.Chat.ID,
			BusinessConnectionID: msg.BusinessConnectionID,
		},
		SenderID:  msg.From.ID,
		MessageID: msg.ID,
		Private:   msg.Chat.Type == tgmodels.ChatTypePrivate,
	})
	if err != nil {
		log.Printf("[AUTOREPLY] chat=%d outcome=%s err=%v", msg.Chat.ID, outcome, err)
		return
	}
	if outcome == services.OutcomeReplied {
		log.Printf("[AUTOREPLY] Replied to %s", services.FormatUser(*msg.From))
	}
}

func (h *BotHandler) handleBusinessConnection(conn *tgmodels.BusinessConnection) {
	if conn.User.ID != h.replier.OwnerID() {
		log.Printf("[BUSINESS] Connection %s belongs to %s, not the configured owner; its messages are treated as peers",
			conn.ID, services.FormatUser(conn.User))
		return
	}
	if conn.IsEnabled {
		log.Printf("[BUSINESS] Connection %s enabled", conn.ID)
	} else {
		log.Printf("[BUSINESS] Connection %s disabled", conn.ID)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil || msg.From.ID != h.replier.OwnerID() {
		return
	}

	cmd, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	if cmd.name == "start" || cmd.name == "help" {
		h.reply(ctx, msg.Chat.ID, helpText)
		return
	}

	kind, ok := commandKind(cmd.name)
	if !ok {
		return
	}

	result, err := h.replier.ApplyCommand(ctx, kind, cmd.argument)
	h.reply(ctx, msg.Chat.ID, commandReply(kind, cmd.argument, result, err))
}

func (h *BotHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		log.Printf("[HANDLER] Failed to answer command in chat %d: %v", chatID, err)
	}
}

// MatchUpdate selects the updates HandleUpdate understands.
func MatchUpdate(update *tgmodels.Update) bool {
	return update.BusinessMessage != nil || update.BusinessConnection != nil || update.Message != nil
}
