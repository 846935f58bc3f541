package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StoreChangeChannel returns the Redis PubSub channel carrying content repository change paths
func (r *CacheKeyStruct) StoreChangeChannel() string {
	return "store:changes"
}

// PresenceConnKey returns the cache key holding one live connection's heartbeat
func (r *CacheKeyStruct) PresenceConnKey(connID string) string {
	return fmt.Sprintf("presence:conn:%s", connID)
}

// PresenceUserConnsKey returns the cache key for the set of a user's connection IDs
func (r *CacheKeyStruct) PresenceUserConnsKey(userID string) string {
	return fmt.Sprintf("presence:user:%s:conns", userID)
}

var CacheKey = NewCacheKeyStruct()
