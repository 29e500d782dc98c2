package smartpost

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placesXML = `<?xml version="1.0" encoding="UTF-8"?>
<places_info>
  <item><place_id>102</place_id><name>Tartu Lõunakeskus</name><city>Tartu</city><address>Ringtee 75</address></item>
  <item><place_id>101</place_id><name>Kristiine Keskus</name><city>Tallinn</city><address>Endla 45</address></item>
  <item><place_id></place_id><name>Broken</name><city>Nowhere</city></item>
</places_info>`

func setupClient(t *testing.T, handler http.HandlerFunc) (*Client, *miniredis.Miniredis) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL, server.Client(), rdb, time.Hour, logger), mr
}

func TestClient_PlacesJSON(t *testing.T) {
	t.Run("converts the feed and caches it", func(t *testing.T) {
		var calls atomic.Int32
		client, mr := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(placesXML))
		})

		data, err := client.PlacesJSON(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `[
			{"place_id":"101","name":"Kristiine Keskus","city":"Tallinn","address":"Endla 45"},
			{"place_id":"102","name":"Tartu Lõunakeskus","city":"Tartu","address":"Ringtee 75"}
		]`, string(data))

		assert.True(t, mr.Exists(cacheKey))
		assert.Equal(t, time.Hour, mr.TTL(cacheKey))

		_, err = client.PlacesJSON(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("collapses concurrent misses", func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})
		client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			<-release
			_, _ = w.Write([]byte(placesXML))
		})

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.PlacesJSON(context.Background())
				assert.NoError(t, err)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fetch outlives a cancelled caller", func(t *testing.T) {
		client, mr := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(placesXML))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		data, err := client.PlacesJSON(ctx)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Kristiine Keskus")
		assert.True(t, mr.Exists(cacheKey))
	})

	t.Run("upstream failure", func(t *testing.T) {
		client, mr := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.PlacesJSON(context.Background())
		assert.True(t, errors.Is(err, ErrUpstream))
		assert.False(t, mr.Exists(cacheKey))
	})

	t.Run("malformed feed", func(t *testing.T) {
		client, _ := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<places_info><item>"))
		})

		_, err := client.PlacesJSON(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	})
}
