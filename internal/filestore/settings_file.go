// Package filestore keeps auto-reply settings in a small JSON file, the
// format used by the original userbot module:
//
//	{"version": 1, "cooldown": 30, "auto_reply_message": "..."}
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ad/go-telegram-autoreply/internal/models"
)

type settingsRecord struct {
	Version          int     `json:"version"`
	Cooldown         *int64  `json:"cooldown,omitempty"`
	AutoReplyMessage *string `json:"auto_reply_message,omitempty"`
}

type SettingsFile struct {
	path string
	mu   sync.Mutex
}

func NewSettingsFile(path string) *SettingsFile {
	return &SettingsFile{path: filepath.Clean(strings.TrimSpace(path))}
}

func (f *SettingsFile) Path() string {
	return f.path
}

// Load returns nil when the file does not exist. Content that is not a JSON
// object yields an error wrapping models.ErrMalformedSettings; fields of the
// wrong type or range are dropped individually.
func (f *SettingsFile) Load() (*models.PartialSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedSettings, f.path, err)
	}

	partial := &models.PartialSettings{}
	if v, ok := raw["cooldown"]; ok {
		var cooldown int64
		if err := json.Unmarshal(v, &cooldown); err == nil && cooldown >= 0 && cooldown <= int64(^uint32(0)) {
			c := uint32(cooldown)
			partial.CooldownSeconds = &c
		}
	}
	if v, ok := raw["auto_reply_message"]; ok {
		var text string
		if err := json.Unmarshal(v, &text); err == nil {
			partial.ReplyText = &text
		}
	}
	return partial, nil
}

func (f *SettingsFile) Save(settings models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cooldown := int64(settings.CooldownSeconds)
	text := settings.ReplyText
	return writeJSONAtomic(f.path, settingsRecord{
		Version:          models.SettingsVersion,
		Cooldown:         &cooldown,
		AutoReplyMessage: &text,
	})
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode json %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}
