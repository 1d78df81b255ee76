// Package rediscontainer starts the Redis instance backing the L2 cache tests.
package rediscontainer

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/testutil/docker"
)

var container = &docker.Container{
	Name:          "livpred-redis-test",
	Dockerfile:    "Dockerfile.redis.test",
	HostPort:      "6390",
	ContainerPort: "6379",
	ReadyTimeout:  5 * time.Second,
}

func init() { container.Ready = ping }

// Addr exposes the Redis host:port used by integration tests.
func Addr() string { return container.Addr() }

// Setup builds the image, runs the container and waits for PING to succeed.
func Setup() error { return container.Start() }

// Teardown stops the container if it is running.
func Teardown() error { return container.Stop() }

func ping() error {
	client := goredis.NewClient(&goredis.Options{Addr: Addr(), DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	return client.Ping(ctx).Err()
}
