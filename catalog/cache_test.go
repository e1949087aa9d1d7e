package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	reads map[string]int
	err   error
}

func (l *fakeLoader) Read(_ context.Context, schema, table string) (*TableInfo, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.reads[Key(schema, table)]++
	return &TableInfo{Schema: schema, Name: table}, nil
}

func newFakeCache(ttl time.Duration) (*Cache, *fakeLoader, *time.Time) {
	loader := &fakeLoader{reads: make(map[string]int)}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(loader, ttl)
	c.now = func() time.Time { return now }
	return c, loader, &now
}

func TestCacheHit(t *testing.T) {
	c, loader, _ := newFakeCache(time.Minute)
	var hits, misses int
	c.OnLookup = func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}

	first, err := c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "hr", "emp")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, loader.reads["HR.EMP"])
	require.Equal(t, 1, hits)
	require.Equal(t, 1, misses)
}

func TestCacheExpiry(t *testing.T) {
	c, loader, now := newFakeCache(time.Minute)
	_, err := c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)

	*now = now.Add(59 * time.Second)
	_, err = c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	require.Equal(t, 1, loader.reads["HR.EMP"])

	*now = now.Add(time.Second)
	_, err = c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	require.Equal(t, 2, loader.reads["HR.EMP"])
}

func TestCacheWithoutTTL(t *testing.T) {
	c, loader, now := newFakeCache(0)
	_, err := c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	*now = now.Add(24 * time.Hour)
	_, err = c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	require.Equal(t, 1, loader.reads["HR.EMP"])
}

func TestCacheTablesAndInvalidate(t *testing.T) {
	c, loader, _ := newFakeCache(time.Minute)
	for _, name := range []string{"JOBS", "EMP", "DEPT"} {
		_, err := c.Get(context.Background(), "HR", name)
		require.NoError(t, err)
	}
	_, err := c.Get(context.Background(), "APP", "USERS")
	require.NoError(t, err)
	require.Equal(t, []string{"APP.USERS", "HR.DEPT", "HR.EMP", "HR.JOBS"}, c.Tables())

	c.Invalidate("hr", "emp")
	require.Equal(t, []string{"APP.USERS", "HR.DEPT", "HR.JOBS"}, c.Tables())
	_, err = c.Get(context.Background(), "HR", "EMP")
	require.NoError(t, err)
	require.Equal(t, 2, loader.reads["HR.EMP"])
}

func TestCacheLoadError(t *testing.T) {
	c, loader, _ := newFakeCache(time.Minute)
	loader.err = ErrTableNotFound
	_, err := c.Get(context.Background(), "HR", "NOPE")
	require.True(t, errors.Is(err, ErrTableNotFound))
	require.Empty(t, c.Tables())
}
