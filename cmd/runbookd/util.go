package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/runbookd/runbookd/internal/config"
	"github.com/runbookd/runbookd/internal/locks"
	"github.com/runbookd/runbookd/internal/pack"
	"github.com/runbookd/runbookd/internal/runbook"
)

func loadPackManifests(dir string) ([]*pack.Manifest, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return pack.LoadManifests(paths)
}

func parseRunbookID(s string) (runbook.CompiledRunbookID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid runbook id %q: %w", s, err)
	}
	return id, nil
}

// parseLockMode maps config.GateConfig.LockMode ("try", the spec default,
// or "wait") to the locks.AcquireMode the gate expects. Unrecognized
// values fall back to Try rather than blocking indefinitely by surprise.
func parseLockMode(s string) locks.AcquireMode {
	if strings.EqualFold(s, "wait") {
		return locks.Wait
	}
	return locks.Try
}

// redisClient builds a dedicated client for pub/sub invalidation signals,
// separate from the RedisCache's own client since CacheInvalidator needs
// long-lived Subscribe semantics.
func redisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
