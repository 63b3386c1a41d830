package entity

import "time"

type ChatMessage struct {
	GameID   string    `json:"game_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}
