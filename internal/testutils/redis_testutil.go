package testutils

import (
	"context"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
)

// RunTestRedis starts a disposable redis container and returns its address.
func RunTestRedis(t *testing.T) (string, error) {
	t.Helper()

	hostPort, err := startContainer(t, nil, container{
		name: "redis",
		opts: &dockertest.RunOptions{
			Repository: "redis",
			Tag:        "7-alpine",
		},
		port: "6379/tcp",
		ready: func(hostPort string) error {
			client := redis.NewClient(&redis.Options{Addr: "localhost:" + hostPort})
			defer client.Close()

			return client.Ping(context.Background()).Err()
		},
	})
	if err != nil {
		return "", err
	}
	return "localhost:" + hostPort, nil
}
