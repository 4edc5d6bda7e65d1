package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSettingsFile_LoadMissing(t *testing.T) {
	f := NewSettingsFile(filepath.Join(t.TempDir(), "auto_reply_settings.json"))

	partial, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, partial)
}

func TestSettingsFile_LoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto_reply_settings.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	partial, err := NewSettingsFile(path).Load()
	require.NoError(t, err)
	assert.Nil(t, partial)
}

func TestSettingsFile_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto_reply_settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewSettingsFile(path).Load()
	if !errors.Is(err, models.ErrMalformedSettings) {
		t.Fatalf("Expected ErrMalformedSettings, got %v", err)
	}
}

func TestSettingsFile_LoadLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto_reply_settings.json")
	legacy := `{
    "cooldown": 60,
    "auto_reply_message": "Сейчас занят"
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	partial, err := NewSettingsFile(path).Load()
	require.NoError(t, err)
	require.NotNil(t, partial)

	got, filled := partial.Complete()
	assert.False(t, filled)
	assert.Equal(t, models.Settings{CooldownSeconds: 60, ReplyText: "Сейчас занят"}, got)
}

func TestSettingsFile_LoadPartialAndWrongTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto_reply_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cooldown": "sixty", "auto_reply_message": "hi"}`), 0o600))

	partial, err := NewSettingsFile(path).Load()
	require.NoError(t, err)
	require.NotNil(t, partial)
	assert.Nil(t, partial.CooldownSeconds)

	got, filled := partial.Complete()
	assert.True(t, filled)
	assert.Equal(t, uint32(models.DefaultCooldownSeconds), got.CooldownSeconds)
	assert.Equal(t, "hi", got.ReplyText)
}

func TestSettingsFile_NegativeCooldownDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto_reply_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cooldown": -5}`), 0o600))

	partial, err := NewSettingsFile(path).Load()
	require.NoError(t, err)
	require.NotNil(t, partial)
	assert.Nil(t, partial.CooldownSeconds)
}

func TestSettingsFile_SaveAndLoad_Property(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		f := NewSettingsFile(filepath.Join(dir, "nested", "settings.json"))
		want := models.Settings{
			CooldownSeconds: rapid.Uint32().Draw(rt, "cooldown"),
			ReplyText:       rapid.StringMatching(`[a-zA-Zа-яА-Я0-9 "\\,.!]{1,200}`).Draw(rt, "text"),
		}
		if err := f.Save(want); err != nil {
			rt.Fatalf("Save failed: %v", err)
		}

		partial, err := f.Load()
		if err != nil {
			rt.Fatalf("Load failed: %v", err)
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

func TestSettingsFile_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewSettingsFile(filepath.Join(dir, "settings.json"))

	require.NoError(t, f.Save(models.DefaultSettings()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.json", entries[0].Name())

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), `"cooldown": 30`)
}
