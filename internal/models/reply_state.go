package models

import "time"

// Peer is the address an auto-reply is delivered to. BusinessConnectionID is
// empty for chats the bot talks to directly.
type Peer struct {
	ChatID               int64
	BusinessConnectionID string
}

type ReplyState struct {
	Peer      Peer
	MessageID int
	SentAt    time.Time
}

func (s *ReplyState) HasReply() bool {
	return s != nil && s.MessageID != 0
}

type IncomingMessage struct {
	Peer      Peer
	SenderID  int64
	MessageID int
	Private   bool
}
