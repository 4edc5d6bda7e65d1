package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ad/go-telegram-autoreply/internal/models"
)

type ReplyStateRepository struct {
	queue *DBQueue
}

func NewReplyStateRepository(queue *DBQueue) *ReplyStateRepository {
	return &ReplyStateRepository{queue: queue}
}

func (r *ReplyStateRepository) Save(state models.ReplyState) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO reply_state (peer_id, business_connection_id, message_id, sent_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(peer_id) DO UPDATE SET
				business_connection_id = excluded.business_connection_id,
				message_id = excluded.message_id,
				sent_at = excluded.sent_at
		`, state.Peer.ChatID, state.Peer.BusinessConnectionID, state.MessageID, unixMilli(state.SentAt))
		return nil, err
	})
	return err
}

// Get returns sql.ErrNoRows when nothing is remembered for the peer.
func (r *ReplyStateRepository) Get(ctx context.Context, peerID int64) (*models.ReplyState, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		row := db.QueryRow(`
			SELECT peer_id, business_connection_id, message_id, sent_at
			FROM reply_state WHERE peer_id = ?
		`, peerID)
		return scanReplyState(row)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.ReplyState), nil
}

// LoadAll returns the most recent states first, at most limit rows.
func (r *ReplyStateRepository) LoadAll(limit int) ([]models.ReplyState, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		rows, err := db.Query(`
			SELECT peer_id, business_connection_id, message_id, sent_at
			FROM reply_state ORDER BY sent_at DESC LIMIT ?
		`, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var states []models.ReplyState
		for rows.Next() {
			state, err := scanReplyState(rows)
			if err != nil {
				return nil, err
			}
			states = append(states, *state)
		}
		return states, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load reply states: %w", err)
	}
	return result.([]models.ReplyState), nil
}

// Clear forgets the peer's last reply and reports whether one was stored.
func (r *ReplyStateRepository) Clear(ctx context.Context, peerID int64) (bool, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		res, err := db.Exec(`DELETE FROM reply_state WHERE peer_id = ?`, peerID)
		if err != nil {
			return nil, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return false, err
	}
	return result.(int64) > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReplyState(row rowScanner) (*models.ReplyState, error) {
	var state models.ReplyState
	var sentAt int64
	if err := row.Scan(&state.Peer.ChatID, &state.Peer.BusinessConnectionID, &state.MessageID, &sentAt); err != nil {
		return nil, err
	}
	if sentAt != 0 {
		state.SentAt = time.UnixMilli(sentAt)
	}
	return &state, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
