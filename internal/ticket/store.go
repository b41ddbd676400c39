// Package ticket issues one-time WebSocket connect tickets. Browsers can't
// set headers on a WebSocket handshake, so instead of putting the JWT in the
// URL a client trades it for a short-lived ticket and redeems that on
// connect. Tickets live in Redis with an explicit TTL and are consumed
// atomically, so one ticket never authenticates two connections.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 60 * time.Second

var ErrInvalidTicket = errors.New("ticket invalid or expired")

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client, prefix: "wsticket:", ttl: defaultTTL}, nil
}

// NewStoreWithClient creates a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "wsticket:", ttl: defaultTTL}
}

func (s *Store) key(token string) string {
	return s.prefix + token
}

// Issue creates a ticket bound to the given user.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store ticket: %w", err)
	}
	return token, nil
}

// Redeem consumes a ticket and returns the user it was issued to. GETDEL
// makes the redeem atomic; a second redeem of the same token fails.
func (s *Store) Redeem(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return "", ErrInvalidTicket
	}
	if err != nil {
		return "", fmt.Errorf("redeem ticket: %w", err)
	}
	return userID, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
