package testutils

import (
	"fmt"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	logLevelDebug = "debug"

	containerExpiry  = 120 // seconds
	containerMaxWait = 60 * time.Second
)

// container describes a disposable service started for a test.
type container struct {
	name string
	opts *dockertest.RunOptions
	// port is the exposed port, as "5432/tcp".
	port string
	// ready is retried with the host port until it succeeds.
	ready func(hostPort string) error
}

// startContainer runs c and returns its host port once ready. The container
// is purged when the test ends and hard killed after containerExpiry.
func startContainer(t *testing.T, logger log.Logger, c container) (string, error) {
	t.Helper()

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	pool, err := dockertest.NewPool("")
	if err != nil {
		return "", fmt.Errorf("new test %s: create dockertest pool: %w", c.name, err)
	}

	resource, err := pool.RunWithOptions(c.opts, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", fmt.Errorf("new test %s: start resource: %w", c.name, err)
	}

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatal(err)
		}
	})

	if err := resource.Expire(containerExpiry); err != nil {
		return "", fmt.Errorf("new test %s: set expiry: %w", c.name, err)
	}

	if logger != nil && logger.Level() == logLevelDebug {
		stop, err := attachLogs(pool, resource, logger)
		if err != nil {
			return "", fmt.Errorf("new test %s: connect to container log output: %w", c.name, err)
		}
		defer stop()
	}

	hostPort := resource.GetPort(c.port)
	pool.MaxWait = containerMaxWait
	if err := pool.Retry(func() error { return c.ready(hostPort) }); err != nil {
		return "", fmt.Errorf("new test %s: could not connect to docker: %w", c.name, err)
	}
	return hostPort, nil
}

// attachLogs streams the container output to the logger while it boots.
func attachLogs(pool *dockertest.Pool, resource *dockertest.Resource, logger log.Logger) (func(), error) {
	logWaiter, err := pool.Client.AttachToContainerNonBlocking(docker.AttachToContainerOptions{
		Container:    resource.Container.ID,
		OutputStream: logger.Writer(),
		ErrorStream:  logger.Writer(),
		Stderr:       true,
		Stdout:       true,
		Stream:       true,
	})
	if err != nil {
		return nil, err
	}

	return func() {
		if err := logWaiter.Close(); err != nil {
			logger.Error("could not close container log", "error", err)
		}
		if err := logWaiter.Wait(); err != nil {
			logger.Error("could not wait for container log to close", "error", err)
		}
	}, nil
}
