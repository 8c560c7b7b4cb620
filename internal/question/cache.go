package question

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

// Cache stores resolved titles in Redis so repeated lookups skip the upstream model.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ TitleCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl, prefix: "logbook:title:"}
}

func (c *Cache) key(number int) string {
	return c.prefix + strconv.Itoa(number)
}

func (c *Cache) Get(ctx context.Context, number int) (string, bool, error) {
	title, err := c.client.Get(ctx, c.key(number)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return title, true, nil
}

func (c *Cache) Set(ctx context.Context, number int, title string) error {
	return c.client.Set(ctx, c.key(number), title, c.ttl).Err()
}
