package smartpost

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "smartpost:places"

var ErrUpstream = errors.New("smartpost feed unavailable")

// Place is one parcel locker a customer can pick as destination.
type Place struct {
	PlaceID string `xml:"place_id" json:"place_id"`
	Name    string `xml:"name" json:"name"`
	City    string `xml:"city" json:"city"`
	Address string `xml:"address" json:"address"`
}

type feed struct {
	Items []Place `xml:"item"`
}

// Client serves the locker list, caching the converted JSON in Redis.
// Concurrent cache misses share a single upstream request.
type Client struct {
	url        string
	httpClient *http.Client
	cache      *redis.Client
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger

	fetchTimeout time.Duration
}

func NewClient(url string, httpClient *http.Client, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: httpClient,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,

		fetchTimeout: 30 * time.Second,
	}
}

// PlacesJSON returns the locker list encoded as a JSON array.
func (c *Client) PlacesJSON(ctx context.Context) ([]byte, error) {
	cached, err := c.cache.Get(ctx, cacheKey).Bytes()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("smartpost cache read failed", "error", err)
	}

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		// Shared by every waiting caller, so one caller going away must not
		// cancel it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		places, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(places)
		if err != nil {
			return nil, fmt.Errorf("marshal places: %w", err)
		}

		if err := c.cache.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
			c.logger.Warn("smartpost cache write failed", "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context) ([]Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create smartpost request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var f feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", ErrUpstream, err)
	}

	places := make([]Place, 0, len(f.Items))
	for _, p := range f.Items {
		if p.PlaceID == "" || p.Name == "" {
			continue
		}
		places = append(places, p)
	}
	sort.SliceStable(places, func(i, j int) bool {
		if places[i].City != places[j].City {
			return places[i].City < places[j].City
		}
		return places[i].Name < places[j].Name
	})

	return places, nil
}
