package db

import (
	"database/sql"
	"testing"

	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSettingsRepository_LoadEmpty(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))

	partial, err := repo.Load()
	require.NoError(t, err)
	assert.Nil(t, partial)
}

func TestSettingsRepository_SaveAndLoad_Property(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))

	rapid.Check(t, func(rt *rapid.T) {
		want := models.Settings{
			CooldownSeconds: rapid.Uint32().Draw(rt, "cooldown"),
			ReplyText:       rapid.StringMatching(`[a-zA-Zа-яА-Я0-9 ,.!]{1,200}`).Draw(rt, "text"),
		}
		if err := repo.Save(want); err != nil {
			rt.Fatalf("Save failed: %v", err)
		}

		partial, err := repo.Load()
		if err != nil {
			rt.Fatalf("Load failed: %v", err)
		}
		if partial == nil {
			rt.Fatalf("Expected stored settings, got nil")
		}
		got, filled := partial.Complete()
		if filled {
			rt.Errorf("Expected complete settings after Save")
		}
		if got != want {
			rt.Errorf("Expected %+v, got %+v", want, got)
		}
	})
}

func TestSettingsRepository_MalformedCooldownIsDropped(t *testing.T) {
	queue := setupTestDB(t)
	repo := NewSettingsRepository(queue)

	_, err := queue.Execute(func(db *sql.DB) (interface{}, error) {
		return db.Exec(`INSERT INTO settings (key, value) VALUES ('cooldown', 'soon'), ('auto_reply_message', 'away')`)
	})
	require.NoError(t, err)

	partial, err := repo.Load()
	require.NoError(t, err)
	require.NotNil(t, partial)
	assert.Nil(t, partial.CooldownSeconds)

	got, filled := partial.Complete()
	assert.True(t, filled)
	assert.Equal(t, uint32(models.DefaultCooldownSeconds), got.CooldownSeconds)
	assert.Equal(t, "away", got.ReplyText)
}
