package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type ChatRepository interface {
	Append(ctx context.Context, msg *entity.ChatMessage) error
	History(ctx context.Context, gameID string, limit int64) ([]entity.ChatMessage, error)
}

type dbChat struct {
	client *redis.Client
}

func NewChatRepository(client *redis.Client) ChatRepository {
	return &dbChat{
		client: client,
	}
}

// Append pushes one message onto the game's chat log.
func (that *dbChat) Append(ctx context.Context, msg *entity.ChatMessage) error {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	chatKey := "chat:" + msg.GameID
	if err = that.client.RPush(ctx, chatKey, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}

// History returns the most recent messages of a game's chat log, oldest
// first. A limit of zero or less returns the whole log.
func (that *dbChat) History(ctx context.Context, gameID string, limit int64) ([]entity.ChatMessage, error) {
	chatKey := "chat:" + gameID

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	entries, err := that.client.LRange(ctx, chatKey, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	messages := make([]entity.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var msg entity.ChatMessage
		if err = json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
