package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/rediscache"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

func newCache(t *testing.T) (*rediscache.SubjectCache, *memory.SubjectStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := memory.NewSubjectStore()
	return rediscache.NewSubjectCache(backing, client, time.Minute, nil), backing, mr
}

func subject(id, name string) types.Subject {
	return types.Subject{
		SubjectID: id,
		Name:      name,
		Template:  types.Template{Kind: types.TemplateVerified, Vector: []float64{0.1, 0.2}},
	}
}

func TestSubjectCache_ReadThroughPopulatesKey(t *testing.T) {
	c, backing, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, subject("EMP-1", "Ann")))

	got, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.True(t, mr.Exists("portunus:subject:EMP-1"))
	assert.Greater(t, mr.TTL("portunus:subject:EMP-1"), time.Duration(0))
}

func TestSubjectCache_UpsertInvalidates(t *testing.T) {
	c, _, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, subject("EMP-1", "Ann")))
	_, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("portunus:subject:EMP-1"))

	require.NoError(t, c.Upsert(ctx, subject("EMP-1", "Ann B")))
	assert.False(t, mr.Exists("portunus:subject:EMP-1"))

	got, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", got.Name)
}

func TestSubjectCache_NotFoundIsNotCached(t *testing.T) {
	c, _, mr := newCache(t)

	_, err := c.FindBySubjectID(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, mr.Exists("portunus:subject:ghost"))
}

func TestSubjectCache_RedisDownFallsBackToStore(t *testing.T) {
	c, backing, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, subject("EMP-1", "Ann")))

	mr.Close()

	got, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

func TestSubjectCache_CorruptEntryDropped(t *testing.T) {
	c, backing, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, subject("EMP-1", "Ann")))
	require.NoError(t, mr.Set("portunus:subject:EMP-1", "{not json"))

	got, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

// racingStore runs onFind once, after the backing read has returned, to
// land an Upsert between the cache's read and its fill.
type racingStore struct {
	*memory.SubjectStore
	onFind func()
}

func (r *racingStore) FindBySubjectID(ctx context.Context, subjectID string) (types.Subject, error) {
	sub, err := r.SubjectStore.FindBySubjectID(ctx, subjectID)
	if hook := r.onFind; hook != nil {
		r.onFind = nil
		hook()
	}
	return sub, err
}

func TestSubjectCache_ConcurrentUpsertPreventsStaleFill(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &racingStore{SubjectStore: memory.NewSubjectStore()}
	c := rediscache.NewSubjectCache(backing, client, time.Minute, nil)
	ctx := context.Background()
	require.NoError(t, c.Upsert(ctx, subject("EMP-1", "Ann")))

	placeholder := subject("EMP-1", "Ann")
	placeholder.Template = types.Template{Kind: types.TemplatePlaceholder, Vector: []float64{0, 0}}
	backing.onFind = func() { require.NoError(t, c.Upsert(ctx, placeholder)) }

	old, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, types.TemplateVerified, old.Template.Kind)
	assert.False(t, mr.Exists("portunus:subject:EMP-1"), "read that raced an upsert must not fill")

	got, err := c.FindBySubjectID(ctx, "EMP-1")
	require.NoError(t, err)
	assert.Equal(t, types.TemplatePlaceholder, got.Template.Kind)
	assert.True(t, mr.Exists("portunus:subject:EMP-1"))
}

func TestNewClient_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := rediscache.NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = rediscache.NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
