package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

// ContextCache mirrors conversation state into Redis so other processes
// (dashboards, the banking worker) can read it cheaply. It is strictly
// best-effort: every failure is logged and swallowed, and the database
// remains the source of truth.
type ContextCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewContextCache(client *redis.Client) *ContextCache {
	return &ContextCache{client: client, ttl: 24 * time.Hour}
}

func conversationKey(id uint) string {
	return fmt.Sprintf("conversation:%d", id)
}

func (c *ContextCache) SetConversation(ctx context.Context, conv *models.Conversation) {
	if c == nil || c.client == nil {
		return
	}
	body, err := json.Marshal(conv)
	if err != nil {
		log.Printf("⚠️ Failed to encode conversation %d for cache: %v", conv.ID, err)
		return
	}
	if err := c.client.Set(ctx, conversationKey(conv.ID), body, c.ttl).Err(); err != nil {
		log.Printf("⚠️ Failed to cache conversation %d: %v", conv.ID, err)
	}
}

// GetConversation returns the cached snapshot, or nil on miss or error.
func (c *ContextCache) GetConversation(ctx context.Context, id uint) *models.Conversation {
	if c == nil || c.client == nil {
		return nil
	}
	body, err := c.client.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️ Failed to read cached conversation %d: %v", id, err)
		}
		return nil
	}
	var conv models.Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		log.Printf("⚠️ Failed to decode cached conversation %d: %v", id, err)
		return nil
	}
	return &conv
}

func (c *ContextCache) DeleteConversation(ctx context.Context, id uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, conversationKey(id)).Err(); err != nil {
		log.Printf("⚠️ Failed to drop cached conversation %d: %v", id, err)
	}
}
