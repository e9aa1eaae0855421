// Package rediscache fronts a SubjectStore with a read-through Redis cache
// for single-subject lookups.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

const (
	keyPrefix = "portunus:subject:"
	// genPrefix keys a per-subject counter bumped by every Upsert.  A fill
	// only lands if the counter did not move while the backing read ran.
	genPrefix = "portunus:subject-gen:"
)

// SubjectCache implements store.SubjectStore.  Only FindBySubjectID is
// cached; Upsert writes through to the backing store, bumps the subject's
// generation, and then drops the key.  Redis errors are logged and the
// backing store answers instead.
type SubjectCache struct {
	next   store.SubjectStore
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewSubjectCache(next store.SubjectStore, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *SubjectCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectCache{next: next, client: client, ttl: ttl, logger: logger}
}

// NewClient parses a redis:// URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func key(subjectID string) string { return keyPrefix + subjectID }
func genKey(subjectID string) string { return genPrefix + subjectID }

// errStaleFill aborts a fill whose generation moved under it.
var errStaleFill = errors.New("subject changed during fill")

func (c *SubjectCache) FindBySubjectID(ctx context.Context, subjectID string) (types.Subject, error) {
	raw, err := c.client.Get(ctx, key(subjectID)).Bytes()
	switch {
	case err == nil:
		var sub types.Subject
		if jerr := json.Unmarshal(raw, &sub); jerr == nil {
			return sub, nil
		}
		c.logger.Warn("subject cache: dropping undecodable entry", zap.String("subject_id", subjectID))
		c.invalidate(ctx, subjectID)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("subject cache: get failed", zap.String("subject_id", subjectID), zap.Error(err))
	}

	gen, genErr := c.generation(ctx, subjectID)

	sub, err := c.next.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return types.Subject{}, err
	}
	if genErr == nil {
		c.fill(ctx, sub, gen)
	}
	return sub, nil
}

func (c *SubjectCache) Upsert(ctx context.Context, sub types.Subject) error {
	if err := c.next.Upsert(ctx, sub); err != nil {
		return err
	}
	if err := c.client.Incr(ctx, genKey(sub.SubjectID)).Err(); err != nil {
		c.logger.Warn("subject cache: bump generation failed", zap.String("subject_id", sub.SubjectID), zap.Error(err))
	}
	c.invalidate(ctx, sub.SubjectID)
	return nil
}

func (c *SubjectCache) generation(ctx context.Context, subjectID string) (string, error) {
	gen, err := c.client.Get(ctx, genKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return gen, err
}

// fill caches sub only if no Upsert bumped the generation since gen was
// read.  WATCH makes a bump between the check and the SET abort the write.
func (c *SubjectCache) fill(ctx context.Context, sub types.Subject, gen string) {
	b, err := json.Marshal(sub)
	if err != nil {
		return
	}
	gk := genKey(sub.SubjectID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		now, err := tx.Get(ctx, gk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if now != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key(sub.SubjectID), b, c.ttl)
			return nil
		})
		return err
	}, gk)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("subject cache: skipped stale fill", zap.String("subject_id", sub.SubjectID))
	default:
		c.logger.Warn("subject cache: set failed", zap.String("subject_id", sub.SubjectID), zap.Error(err))
	}
}

func (c *SubjectCache) ListAll(ctx context.Context) ([]types.Subject, error) {
	return c.next.ListAll(ctx)
}

func (c *SubjectCache) MostRecentlyCreated(ctx context.Context) (types.Subject, error) {
	return c.next.MostRecentlyCreated(ctx)
}

func (c *SubjectCache) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

func (c *SubjectCache) invalidate(ctx context.Context, subjectID string) {
	if err := c.client.Del(ctx, key(subjectID)).Err(); err != nil {
		c.logger.Warn("subject cache: invalidate failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}
