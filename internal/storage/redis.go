package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andyleap/donna/internal/models"
	"github.com/redis/go-redis/v9"
)

type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client: client,
	}
}

func redisUserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func (r *RedisStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	data, err := r.client.Get(ctx, redisUserKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

func (r *RedisStorage) SaveUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// User records are durable; no TTL.
	if err := r.client.Set(ctx, redisUserKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (r *RedisStorage) UserExists(ctx context.Context, userID int64) (bool, error) {
	n, err := r.client.Exists(ctx, redisUserKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStorage) CountUsers(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, "user:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan user keys: %w", err)
	}
	return count, nil
}
