package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/secureshare/portal/internal/domain"
)

const grantKeyPrefix = "secureshare:grant:"

// ErrGrantNotFound is returned for unknown or purged grant tokens.
var ErrGrantNotFound = errors.New("storage: grant not found")

// GrantStore records issued download grants so they can be redeemed and
// tracks the most recent grant per holder and file.
type GrantStore interface {
	Save(ctx context.Context, grant domain.DownloadGrant) error
	Get(ctx context.Context, token string) (*domain.DownloadGrant, error)
	Latest(ctx context.Context, holderID, fileID string) (*domain.DownloadGrant, error)
}

type grantRecord struct {
	FileID    string    `json:"file_id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedTo  string    `json:"issued_to"`
	IssuedAt  time.Time `json:"issued_at"`
}

func toRecord(g domain.DownloadGrant) grantRecord {
	return grantRecord{
		FileID:    g.FileID,
		Token:     g.Token,
		URL:       g.URL,
		ExpiresAt: g.ExpiresAt,
		IssuedTo:  g.IssuedTo,
		IssuedAt:  g.IssuedAt,
	}
}

func (r grantRecord) grant() *domain.DownloadGrant {
	return &domain.DownloadGrant{
		FileID:    r.FileID,
		Token:     r.Token,
		URL:       r.URL,
		ExpiresAt: r.ExpiresAt,
		IssuedTo:  r.IssuedTo,
		IssuedAt:  r.IssuedAt,
	}
}

// RedisGrantStore keeps grants in Redis until retention past their expiry.
type RedisGrantStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisGrantStore(client *redis.Client, retention time.Duration) *RedisGrantStore {
	return &RedisGrantStore{client: client, retention: retention}
}

func tokenKey(token string) string {
	return grantKeyPrefix + token
}

func latestKey(holderID, fileID string) string {
	return grantKeyPrefix + "latest:" + holderID + ":" + fileID
}

func (s *RedisGrantStore) Save(ctx context.Context, grant domain.DownloadGrant) error {
	raw, err := json.Marshal(toRecord(grant))
	if err != nil {
		return err
	}
	ttl := time.Until(grant.ExpiresAt) + s.retention
	if ttl <= 0 {
		ttl = time.Second
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(grant.Token), raw, ttl)
		if grant.IssuedTo != "" {
			pipe.Set(ctx, latestKey(grant.IssuedTo, grant.FileID), grant.Token, ttl)
		}
		return nil
	})
	return err
}

func (s *RedisGrantStore) Get(ctx context.Context, token string) (*domain.DownloadGrant, error) {
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec grantRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec.grant(), nil
}

func (s *RedisGrantStore) Latest(ctx context.Context, holderID, fileID string) (*domain.DownloadGrant, error) {
	token, err := s.client.Get(ctx, latestKey(holderID, fileID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, token)
}

// MemoryGrantStore is the in-process GrantStore.
type MemoryGrantStore struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time
	byToken   map[string]grantRecord
	latest    map[string]string
}

func NewMemoryGrantStore(retention time.Duration) *MemoryGrantStore {
	return &MemoryGrantStore{
		retention: retention,
		now:       time.Now,
		byToken:   make(map[string]grantRecord),
		latest:    make(map[string]string),
	}
}

func (s *MemoryGrantStore) Save(_ context.Context, grant domain.DownloadGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	s.byToken[grant.Token] = toRecord(grant)
	if grant.IssuedTo != "" {
		s.latest[latestKey(grant.IssuedTo, grant.FileID)] = grant.Token
	}
	return nil
}

func (s *MemoryGrantStore) Get(_ context.Context, token string) (*domain.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(token)
}

func (s *MemoryGrantStore) Latest(_ context.Context, holderID, fileID string) (*domain.DownloadGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.latest[latestKey(holderID, fileID)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return s.get(token)
}

func (s *MemoryGrantStore) get(token string) (*domain.DownloadGrant, error) {
	rec, ok := s.byToken[token]
	if !ok || s.now().After(rec.ExpiresAt.Add(s.retention)) {
		return nil, ErrGrantNotFound
	}
	return rec.grant(), nil
}

// Sweep drops grants past retention and reports how many were removed.
func (s *MemoryGrantStore) Sweep(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purge(), nil
}

// purge drops grants past retention. Callers hold mu.
func (s *MemoryGrantStore) purge() int {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for token, rec := range s.byToken {
		if rec.ExpiresAt.Before(cutoff) {
			delete(s.byToken, token)
			removed++
		}
	}
	for key, token := range s.latest {
		if _, ok := s.byToken[token]; !ok {
			delete(s.latest, key)
		}
	}
	return removed
}
