package suite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"goban/internal/bootstrap"
	repo "goban/internal/repository"
)

const (
	containerTTL = 120 // seconds
	startTimeout = 120 * time.Second
)

var redisContainer = dockertest.RunOptions{
	Repository: "redis",
	Tag:        "alpine",
}

// Suite is a redis-backed environment for repository tests.
type Suite struct {
	*testing.T
	Logger  *zap.SugaredLogger
	Storage *redis.Client
}

// New starts a throwaway redis container for t. The test is skipped in -short
// mode and when docker is not reachable.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	if testing.Short() {
		t.Skip("redis container skipped in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	t.Cleanup(cancel)

	client, err := startRedis(ctx, t)
	if err != nil {
		t.Fatal(err)
	}

	return ctx, &Suite{
		T:       t,
		Logger:  zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)).Sugar(),
		Storage: client,
	}
}

// RecordRepository returns a repository writing under key on the suite's redis.
// The key is cleared first so subtests do not see each other's records.
func (s *Suite) RecordRepository(ctx context.Context, t testing.TB, key string) *repo.RecordRepository {
	t.Helper()

	if err := s.Storage.Del(ctx, key).Err(); err != nil {
		t.Fatalf("could not clear %s: %v", key, err)
	}

	cfg := bootstrap.Config{RecordKey: key}
	return repo.NewRecordRepository(cfg, s.Logger, s.Storage)
}

func startRedis(ctx context.Context, t *testing.T) (*redis.Client, error) {
	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	pool.MaxWait = startTimeout

	opts := redisContainer
	resource, err := pool.RunWithOptions(&opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("could not start redis: %w", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge redis container: %v", err)
		}
	})

	// hard kill in case cleanup never runs; never returns an error
	_ = resource.Expire(containerTTL)

	client := redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
	t.Cleanup(func() { _ = client.Close() })

	// the server inside may need a moment before it accepts connections
	if err = pool.Retry(func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		return nil, fmt.Errorf("could not reach redis: %w", err)
	}

	return client, nil
}
