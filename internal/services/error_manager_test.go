package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestErrorManager_NotifyOwnerTruncates(t *testing.T) {
	api := newFakeTelegramAPI()
	e := NewErrorManager(api, 5)

	update := &tgmodels.Update{BusinessMessage: &tgmodels.Message{From: &tgmodels.User{ID: 9, FirstName: "Ann", Username: "ann"}}}
	e.NotifyOwner(context.Background(), strings.Repeat("x", 5000), update)

	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(5), api.sent[0].ChatID)
	assert.Contains(t, api.sent[0].Text, "Ann @ann [9]")
	assert.True(t, strings.HasSuffix(api.sent[0].Text, "... (truncated)"))
}

func TestErrorManager_TruncatesOnRuneBoundary(t *testing.T) {
	api := newFakeTelegramAPI()
	e := NewErrorManager(api, 5)

	e.NotifyOwner(context.Background(), strings.Repeat("ж", 3000), &tgmodels.Update{})

	require.Len(t, api.sent, 1)
	text := api.sent[0].Text
	assert.True(t, utf8.ValidString(text), "report is not valid UTF-8")
	assert.True(t, strings.HasSuffix(text, "... (truncated)"))
}

func TestTruncateReport_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := rapid.StringMatching(`[a-zж🚨]{0,3000}`).Draw(rt, "msg")

		got := truncateReport(msg)
		if !utf8.ValidString(got) {
			rt.Fatalf("Truncated report is invalid UTF-8 (len=%d)", len(got))
		}
		if len(msg) <= maxReportLength {
			if got != msg {
				rt.Errorf("Short report was modified")
			}
			return
		}
		body := strings.TrimSuffix(got, "\n... (truncated)")
		if len(body) > maxReportLength || len(body) < maxReportLength-utf8.UTFMax {
			rt.Errorf("Unexpected truncated length %d", len(body))
		}
		if !strings.HasPrefix(msg, body) {
			rt.Errorf("Truncated report is not a prefix of the original")
		}
	})
}

func TestErrorManager_NoOwnerNoReport(t *testing.T) {
	api := newFakeTelegramAPI()
	e := NewErrorManager(api, 0)

	e.NotifyOwner(context.Background(), "boom", nil)
	assert.Empty(t, api.sent)
}

func TestFormatUser(t *testing.T) {
	assert.Equal(t, "Ann Lee @al [3]", FormatUser(tgmodels.User{ID: 3, FirstName: "Ann", LastName: "Lee", Username: "al"}))
	assert.Equal(t, "Bob [4]", FormatUser(tgmodels.User{ID: 4, FirstName: "Bob"}))
}
