package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix          = "session:"
	defaultMaxAttempts = 5
)

var ErrConflict = errors.New("session was modified concurrently")

// Store keeps sessions as JSON blobs in Redis with a sliding expiry.
type Store struct {
	client      *redis.Client
	ttl         time.Duration
	maxAttempts int
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client:      client,
		ttl:         ttl,
		maxAttempts: defaultMaxAttempts,
	}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Load returns the stored session, or an empty one when none exists.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(data)
}

// Update applies fn to the stored session inside a WATCH/MULTI transaction
// and retries when another request wrote the same session in between. An
// error from fn aborts the update without writing.
func (s *Store) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	key := sessionKey(id)
	var result *Session

	txf := func(tx *redis.Tx) error {
		sess := &Session{}
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("get session: %w", err)
		default:
			if sess, err = decode(data); err != nil {
				return err
			}
		}

		if err := fn(sess); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if sess.isEmpty() {
				pipe.Del(ctx, key)
				return nil
			}
			encoded, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = sess
		return nil
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrConflict
}

func decode(data []byte) (*Session, error) {
	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}
