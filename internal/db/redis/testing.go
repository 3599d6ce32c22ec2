package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with the provided rueidis clients (test-only).
func NewStoreForTest(c rueidis.Client, replicas ...rueidis.Client) *Store {
	return &Store{client: c, replicas: replicas}
}
