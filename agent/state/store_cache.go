package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheStore is an in-process Store for local runs and tests. States are kept
// JSON-encoded so a loaded copy never aliases the stored one.
type CacheStore struct {
	cache *cache.Cache
}

func NewCacheStore(ttl, cleanupInterval time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CacheStore{
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (s *CacheStore) Load(_ context.Context, sessionID string) (*SessionState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	raw, found := s.cache.Get(sessionID)
	if !found {
		return nil, ErrStateNotFound
	}
	payload, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T", raw)
	}

	var st SessionState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	st.EnsureMaps()
	return &st, nil
}

func (s *CacheStore) Save(_ context.Context, st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(st.SessionID) == "" {
		return ErrInvalidSession
	}
	prepareForSave(st)

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	s.cache.Set(st.SessionID, payload, cache.DefaultExpiration)
	return nil
}

func (s *CacheStore) Delete(_ context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	s.cache.Delete(sessionID)
	return nil
}
