package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, 100*time.Minute), mr, client
}

func TestStore_Load(t *testing.T) {
	store, mr, _ := setupStore(t)
	ctx := context.Background()

	t.Run("missing session is empty", func(t *testing.T) {
		sess, err := store.Load(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, sess.Cart)
		assert.Equal(t, 0, sess.CartQuantity())
	})

	t.Run("malformed session is an error", func(t *testing.T) {
		require.NoError(t, mr.Set(sessionKey("broken"), "{"))

		_, err := store.Load(ctx, "broken")
		assert.Error(t, err)
	})
}

func TestStore_Update(t *testing.T) {
	store, mr, client := setupStore(t)
	ctx := context.Background()
	product := domain.Product{ID: "p1", Title: "Honey", Price: 500}

	t.Run("persists the cart with the session ttl", func(t *testing.T) {
		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.CartOrNew().Add(product, product.ID, 2)
			return nil
		})
		require.NoError(t, err)

		sess, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, sess.Cart)
		assert.Equal(t, 2, sess.Cart.TotalQuantity)
		assert.Equal(t, int64(1000), sess.Cart.TotalPrice)
		assert.Equal(t, 100*time.Minute, mr.TTL(sessionKey("s1")))
	})

	t.Run("error from fn leaves the session untouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.ClearCart()
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sess, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 2, sess.CartQuantity())
	})

	t.Run("empty session deletes the key", func(t *testing.T) {
		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.ClearCart()
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists(sessionKey("s1")))
	})

	t.Run("retries after a concurrent write", func(t *testing.T) {
		calls := 0
		sess, err := store.Update(ctx, "s2", func(s *Session) error {
			calls++
			if calls == 1 {
				// another request lands between WATCH and EXEC
				other := `{"cart":{"items":{},"totalQty":0,"totalPrice":0},"flash":{"success":["from other tab"]}}`
				require.NoError(t, client.Set(ctx, sessionKey("s2"), other, time.Minute).Err())
			}
			s.AddFlash(FlashError, "mine")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"from other tab"}, sess.Flash[FlashSuccess])
		assert.Equal(t, []string{"mine"}, sess.Flash[FlashError])
	})

	t.Run("gives up after repeated conflicts", func(t *testing.T) {
		_, err := store.Update(ctx, "s3", func(s *Session) error {
			require.NoError(t, client.Set(ctx, sessionKey("s3"), `{}`, time.Minute).Err())
			s.AddFlash(FlashError, "never stored")
			return nil
		})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestSession_PopFlash(t *testing.T) {
	sess := &Session{}
	assert.Empty(t, sess.PopFlash())

	sess.AddFlash(FlashSuccess, "added")
	sess.AddFlash(FlashSuccess, "again")

	flash := sess.PopFlash()
	assert.Equal(t, []string{"added", "again"}, flash[FlashSuccess])
	assert.Nil(t, sess.Flash)
}
