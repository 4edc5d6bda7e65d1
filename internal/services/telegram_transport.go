package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultSendRate = 25

	// DefaultFailureReportInterval limits failure reports to one per peer.
	DefaultFailureReportInterval = 10 * time.Minute

	failureReportPeers = 1024
	maxRetryAfter      = 30 * time.Second
)

var ErrOwnerUnknown = errors.New("owner identity is not configured")

type TransportConfig struct {
	OwnerID              int64
	BusinessConnectionID string
	// SendRate is the number of Bot API calls per second.
	SendRate float64
	// FailureReportInterval is the minimum time between two failure reports
	// about the same peer.
	FailureReportInterval time.Duration
}

// TelegramTransport sends auto-replies on behalf of a Telegram Business
// account through the bot's business connection.
type TelegramTransport struct {
	api                  TelegramAPI
	errMgr               *ErrorManager
	limiter              *rate.Limiter
	ownerID              int64
	businessConnectionID string
	maxRetry             int

	reportInterval time.Duration
	lastReports    *lru.Cache[int64, time.Time]
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewTelegramTransport(api TelegramAPI, errMgr *ErrorManager, cfg TransportConfig) *TelegramTransport {
	if cfg.SendRate <= 0 {
		cfg.SendRate = DefaultSendRate
	}
	if cfg.FailureReportInterval <= 0 {
		cfg.FailureReportInterval = DefaultFailureReportInterval
	}
	lastReports, _ := lru.New[int64, time.Time](failureReportPeers)
	return &TelegramTransport{
		api:                  api,
		errMgr:               errMgr,
		limiter:              rate.NewLimiter(rate.Limit(cfg.SendRate), 1),
		ownerID:              cfg.OwnerID,
		businessConnectionID: cfg.BusinessConnectionID,
		maxRetry:             2,
		reportInterval:       cfg.FailureReportInterval,
		lastReports:          lastReports,
		now:                  time.Now,
		sleep:                sleepContext,
	}
}

// OwnIdentity prefers the configured owner and otherwise asks Telegram who
// owns the configured business connection.
func (t *TelegramTransport) OwnIdentity(ctx context.Context) (int64, error) {
	if t.ownerID != 0 {
		return t.ownerID, nil
	}
	if t.businessConnectionID == "" {
		return 0, ErrOwnerUnknown
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	conn, err := t.api.GetBusinessConnection(ctx, &bot.GetBusinessConnectionParams{
		BusinessConnectionID: t.businessConnectionID,
	})
	if err != nil {
		return 0, fmt.Errorf("get business connection: %w", err)
	}
	if conn.User.ID == 0 {
		return 0, ErrOwnerUnknown
	}

	t.ownerID = conn.User.ID
	if t.errMgr != nil {
		t.errMgr.SetOwnerID(t.ownerID)
	}
	log.Printf("[TRANSPORT] Owner resolved from business connection: %s", FormatUser(conn.User))
	return t.ownerID, nil
}

func (t *TelegramTransport) SendReply(ctx context.Context, peer models.Peer, replyTo int, text string) (int, error) {
	params := &bot.SendMessageParams{
		BusinessConnectionID: peer.BusinessConnectionID,
		ChatID:               peer.ChatID,
		Text:                 text,
	}
	if replyTo != 0 {
		params.ReplyParameters = &tgmodels.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}

	msg, err := t.sendWithRetry(ctx, params)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// sendWithRetry repeats a send only when Telegram refused it with 429. Any
// other error may hide a delivered message, and a second copy could never be
// deleted.
func (t *TelegramTransport) sendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxRetry; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		msg, err := t.api.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		var tooMany *bot.TooManyRequestsError
		if !errors.As(err, &tooMany) || attempt == t.maxRetry-1 {
			break
		}
		wait := time.Duration(tooMany.RetryAfter) * time.Second
		if wait > maxRetryAfter {
			break
		}
		log.Printf("[TRANSPORT] Rate limited by Telegram, retrying in %s", wait)
		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	chatID, _ := params.ChatID.(int64)
	t.reportFailure(ctx, chatID, params, lastErr)
	return nil, lastErr
}

// reportFailure tells the owner about an undeliverable reply at most once per
// peer per report interval.
func (t *TelegramTransport) reportFailure(ctx context.Context, chatID int64, params *bot.SendMessageParams, sendErr error) {
	if t.errMgr == nil {
		return
	}
	now := t.now()
	if last, ok := t.lastReports.Get(chatID); ok && now.Sub(last) < t.reportInterval {
		return
	}
	t.lastReports.Add(chatID, now)

	if err := t.limiter.Wait(ctx); err != nil {
		return
	}
	t.errMgr.NotifySendFailure(ctx, chatID, params, sendErr)
}

// DeleteMessage removes a message the bot sent. Messages sent through a
// business connection can only be removed with deleteBusinessMessages.
func (t *TelegramTransport) DeleteMessage(ctx context.Context, peer models.Peer, messageID int) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	var ok bool
	var err error
	if peer.BusinessConnectionID != "" {
		ok, err = t.api.DeleteBusinessMessages(ctx, &bot.DeleteBusinessMessagesParams{
			BusinessConnectionID: peer.BusinessConnectionID,
			MessageIDs:           []int{messageID},
		})
	} else {
		ok, err = t.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    peer.ChatID,
			MessageID: messageID,
		})
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete message %d in chat %d: not deleted", messageID, peer.ChatID)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
