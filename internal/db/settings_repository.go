package db

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"

	"github.com/ad/go-telegram-autoreply/internal/models"
)

const (
	keyCooldown         = "cooldown"
	keyAutoReplyMessage = "auto_reply_message"
)

type SettingsRepository struct {
	queue *DBQueue
}

func NewSettingsRepository(queue *DBQueue) *SettingsRepository {
	return &SettingsRepository{queue: queue}
}

// Load returns nil when no auto-reply key is stored. An unparsable cooldown
// is dropped so the caller falls back to the default for that field.
func (r *SettingsRepository) Load() (*models.PartialSettings, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		rows, err := db.Query(`SELECT key, value FROM settings WHERE key IN (?, ?)`, keyCooldown, keyAutoReplyMessage)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var found bool
		partial := &models.PartialSettings{}
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, err
			}
			found = true
			switch key {
			case keyCooldown:
				cooldown, err := strconv.ParseUint(value, 10, 32)
				if err != nil {
					log.Printf("[SETTINGS] Ignoring malformed cooldown %q in database", value)
					continue
				}
				v := uint32(cooldown)
				partial.CooldownSeconds = &v
			case keyAutoReplyMessage:
				v := value
				partial.ReplyText = &v
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if !found {
			return (*models.PartialSettings)(nil), nil
		}
		return partial, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return result.(*models.PartialSettings), nil
}

func (r *SettingsRepository) Save(settings models.Settings) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		tx, err := db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		stmt := `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`
		if _, err := tx.Exec(stmt, keyCooldown, strconv.FormatUint(uint64(settings.CooldownSeconds), 10)); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(stmt, keyAutoReplyMessage, settings.ReplyText); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
