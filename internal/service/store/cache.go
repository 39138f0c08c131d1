package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"codeshare/internal/models"
	"codeshare/internal/redis"
)

const sessionCacheTTL = 30 * time.Minute

// sessionCache keeps full session records in redis so polling clients
// don't hit the database on every tick. Every mutation invalidates the
// entry; a nil client degrades to always-miss.
type sessionCache struct {
	client *redis.Client
}

func newSessionCache(client *redis.Client) *sessionCache {
	return &sessionCache{client: client}
}

func (c *sessionCache) load(ctx context.Context, id string) (*models.Session, bool) {
	if c == nil || c.client == nil || id == "" {
		return nil, false
	}
	raw, err := c.client.Get(ctx, sessionKey(id))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("store load session cache failed: %v", err)
		}
		return nil, false
	}
	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Printf("store decode cached session failed: %v", err)
		return nil, false
	}
	return &session, true
}

func (c *sessionCache) save(ctx context.Context, session *models.Session) {
	if c == nil || c.client == nil || session == nil || session.ID == "" {
		return
	}
	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("store marshal session cache failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, sessionKey(session.ID), data, sessionCacheTTL); err != nil {
		log.Printf("store cache session failed: %v", err)
	}
}

func (c *sessionCache) invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil || id == "" {
		return
	}
	if err := c.client.Del(ctx, sessionKey(id)); err != nil && err != redis.ErrCacheMiss {
		log.Printf("store invalidate session cache failed: %v", err)
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("store:session:%s", id)
}
