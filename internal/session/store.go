package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Preferences replaces the localStorage keys the old views read and wrote
// independently: one shared record per client, read once at startup,
// written through on change.
type Preferences struct {
	DarkMode  bool   `json:"darkMode"`
	UserEmail string `json:"userEmail"`
}

// Store persists per-client preferences.
type Store interface {
	Get(ctx context.Context, clientID string) (Preferences, error)
	Put(ctx context.Context, clientID string, prefs Preferences) error
	Healthy(ctx context.Context) bool
}

// NewStore picks the backend: "memory" for dev/testing, Redis otherwise.
func NewStore(backend, redisAddr string) Store {
	if backend == "memory" {
		return NewMemory()
	}
	return NewRedis(redisAddr)
}

// Memory is a map-backed store for dev and tests.
type Memory struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{prefs: make(map[string]Preferences)}
}

// Get returns the stored preferences, or zero values for unknown clients.
func (m *Memory) Get(_ context.Context, clientID string) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs[clientID], nil
}

// Put writes through.
func (m *Memory) Put(_ context.Context, clientID string, prefs Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[clientID] = prefs
	return nil
}

// Healthy always succeeds for the in-memory backend.
func (m *Memory) Healthy(context.Context) bool { return true }

// Redis stores preferences as JSON values with short client timeouts.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{client: client}
}

func prefsKey(clientID string) string {
	return "medreserve:prefs:" + clientID
}

// Get returns stored preferences; a missing key yields zero values.
func (r *Redis) Get(ctx context.Context, clientID string) (Preferences, error) {
	val, err := r.client.Get(ctx, prefsKey(clientID)).Result()
	if err == redis.Nil {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("session: get: %w", err)
	}
	var prefs Preferences
	if err := json.Unmarshal([]byte(val), &prefs); err != nil {
		return Preferences{}, fmt.Errorf("session: decode: %w", err)
	}
	return prefs, nil
}

// Put writes through immediately.
func (r *Redis) Put(ctx context.Context, clientID string, prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := r.client.Set(ctx, prefsKey(clientID), data, 0).Err(); err != nil {
		return fmt.Errorf("session: put: %w", err)
	}
	return nil
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}
