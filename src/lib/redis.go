package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		return nil
	}
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// MarkReferenceSeen claims a gateway reference for processing. Webhook and
// redirect-callback deliveries of the same reference race; the database
// guard stays authoritative, this only spares duplicate gateway calls.
// Returns true when redis is unavailable so verification always proceeds.
func MarkReferenceSeen(ctx context.Context, reference string) bool {
	rd := GetRedisClient()
	if rd == nil {
		return true
	}
	ok, err := rd.SetNX(ctx, "gateway:verify:"+reference, 1, 24*time.Hour).Result()
	if err != nil {
		log.Printf("[redis] Error claiming reference %s: %s\n", reference, err.Error())
		return true
	}
	return ok
}
