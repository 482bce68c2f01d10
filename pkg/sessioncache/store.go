// pkg/sessioncache/store.go
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
)

// Default timeouts for redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Config holds redis connection configuration.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces records, e.g. "federate:session:".
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store persists session artifacts keyed by (subject, product) with expiry.
// The backing store's TTL is an eventually-consistent backstop only; the
// read path enforces expiry itself so no expired artifact is ever returned.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("sessioncache: addr is required")
	}
	if cfg.KeyPrefix == "" {
		return nil, errors.New("sessioncache: key prefix is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sessioncache: connect: %w", err)
	}

	return &Store{client: client, keyPrefix: cfg.KeyPrefix, now: time.Now}, nil
}

// NewWithClient wraps a pre-configured client. Useful for miniredis tests.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) recordKey(compositeKey string) string {
	return s.keyPrefix + compositeKey
}

// GetValid returns the live artifact for compositeKey, or nil when absent.
// An expired record is deleted on sight and reported as absent (lazy
// expiry; there is no background sweep to rely on). On a hit the
// lastAccessedAt timestamp is bumped in place.
func (s *Store) GetValid(ctx context.Context, compositeKey string) (*Artifact, error) {
	key := s.recordKey(compositeKey)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessioncache: get %s: %w", compositeKey, err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("sessioncache: unmarshal %s: %w", compositeKey, err)
	}

	now := s.now().Unix()
	if art.ExpiresAt < now {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("sessioncache: purge expired %s: %w", compositeKey, err)
		}
		return nil, nil
	}

	art.LastAccessedAt = now
	updated, err := json.Marshal(&art)
	if err != nil {
		return nil, fmt.Errorf("sessioncache: marshal %s: %w", compositeKey, err)
	}
	ttl := time.Unix(art.ExpiresAt, 0).Sub(s.now())
	if err := s.client.Set(ctx, key, updated, ttl).Err(); err != nil {
		return nil, fmt.Errorf("sessioncache: touch %s: %w", compositeKey, err)
	}

	return &art, nil
}

// Put unconditionally upserts the artifact, overwriting any prior value
// for its composite key. The redis TTL tracks expiresAt as a backstop.
func (s *Store) Put(ctx context.Context, art *Artifact) error {
	if art == nil || art.CompositeKey == "" {
		return errors.New("sessioncache: artifact with composite key required")
	}

	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("sessioncache: marshal %s: %w", art.CompositeKey, err)
	}

	ttl := time.Unix(art.ExpiresAt, 0).Sub(s.now())
	if ttl < 0 {
		// Already past expiry; store without a TTL and let the read
		// path purge it.
		ttl = 0
	}

	if err := s.client.Set(ctx, s.recordKey(art.CompositeKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("sessioncache: put %s: %w", art.CompositeKey, err)
	}
	return nil
}

// Invalidate deletes the record for compositeKey. Absent keys are not an
// error.
func (s *Store) Invalidate(ctx context.Context, compositeKey string) error {
	if err := s.client.Del(ctx, s.recordKey(compositeKey)).Err(); err != nil {
		return fmt.Errorf("sessioncache: invalidate %s: %w", compositeKey, err)
	}
	return nil
}

// InvalidateAll sweeps every (subject, product) record for the subject
// across the known product key set. Individual delete failures are
// swallowed: success means the best-effort sweep completed.
func (s *Store) InvalidateAll(ctx context.Context, subject string, knownKeys []catalog.ProductKey) int {
	removed := 0
	for _, pk := range knownKeys {
		res, err := s.client.Del(ctx, s.recordKey(CompositeKey(subject, pk))).Result()
		if err != nil {
			continue
		}
		removed += int(res)
	}
	return removed
}
